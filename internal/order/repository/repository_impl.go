package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, business_account_id, plan_id, quantity, total_price, currency,
			status, provider, provider_ref, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.BusinessAccountID,
		order.PlanID,
		order.Quantity,
		order.TotalPrice,
		order.Currency,
		order.Status,
		order.Provider,
		order.ProviderRef,
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, business_account_id, plan_id, quantity, total_price, currency,
			status, provider, provider_ref, paid_at, created_at, updated_at
		 FROM orders
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, business_account_id, plan_id, quantity, total_price, currency,
			status, provider, provider_ref, paid_at, created_at, updated_at
		 FROM orders
		 WHERE business_account_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		accountID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindPlan(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var item domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, credit_amount, unit_price, currency, active, created_at
		 FROM plans
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, prior, next domain.OrderStatus, meta domain.TransitionMeta, now time.Time) (bool, error) {
	var paidAt *time.Time
	if next == domain.OrderStatusPaid {
		at := meta.PaidAt
		if at.IsZero() {
			at = now
		}
		paidAt = &at
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?,
		     provider = CASE WHEN ? != '' THEN ? ELSE provider END,
		     provider_ref = CASE WHEN ? != '' THEN ? ELSE provider_ref END,
		     paid_at = COALESCE(?, paid_at),
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		next,
		meta.Provider, meta.Provider,
		meta.ProviderRef, meta.ProviderRef,
		paidAt,
		now,
		id,
		prior,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
