package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/credit/domain"
	"github.com/edusocial/edusocial/internal/metrics"
	"github.com/edusocial/edusocial/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// balanceRetries bounds the optimistic CAS loop on credit_balances.
const balanceRetries = 3

var errAlreadyApplied = errors.New("credit_already_applied")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("credit.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) Credit(ctx context.Context, accountID, orderID snowflake.ID, amount int64, description string) (*domain.Balance, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if orderID == 0 {
		return nil, domain.ErrInvalidOrder
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var lastErr error
	for attempt := 0; attempt < balanceRetries; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.applyCredit(tx, accountID, orderID, amount, description)
		})
		switch {
		case err == nil:
			if s.metrics != nil {
				s.metrics.CreditsApplied.Add(float64(amount))
			}
			s.log.Info("credits applied",
				zap.String("business_account_id", accountID.String()),
				zap.String("order_id", orderID.String()),
				zap.Int64("amount", amount),
			)
			return s.Balance(ctx, accountID)
		case errors.Is(err, errAlreadyApplied):
			s.log.Info("credit already applied, skipping",
				zap.String("order_id", orderID.String()),
			)
			return s.Balance(ctx, accountID)
		case errors.Is(err, domain.ErrBalanceContention):
			lastErr = err
			continue
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

func (s *Service) applyCredit(tx *gorm.DB, accountID, orderID snowflake.ID, amount int64, description string) error {
	now := time.Now().UTC()

	res := tx.Exec(`
		INSERT INTO credit_balances (business_account_id, total_credits, used_credits, updated_at)
		VALUES (?, 0, 0, ?)
		ON CONFLICT (business_account_id) DO NOTHING
	`, accountID, now)
	if res.Error != nil {
		return res.Error
	}

	var applied int64
	if err := tx.Raw(`
		SELECT COUNT(1) FROM credit_transactions WHERE order_id = ? AND type = ?
	`, orderID, domain.TransactionTypeCredit).Scan(&applied).Error; err != nil {
		return err
	}
	if applied > 0 {
		return errAlreadyApplied
	}

	var bal domain.Balance
	if err := tx.Raw(`
		SELECT business_account_id, total_credits, used_credits, updated_at
		FROM credit_balances WHERE business_account_id = ?
	`, accountID).Scan(&bal).Error; err != nil {
		return err
	}

	res = tx.Exec(`
		UPDATE credit_balances
		SET total_credits = total_credits + ?, updated_at = ?
		WHERE business_account_id = ? AND total_credits = ? AND used_credits = ?
	`, amount, now, accountID, bal.TotalCredits, bal.UsedCredits)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrBalanceContention
	}

	entry := domain.Transaction{
		ID:                s.genID.Generate(),
		BusinessAccountID: accountID,
		OrderID:           &orderID,
		Type:              domain.TransactionTypeCredit,
		CreditChange:      amount,
		ResultingBalance:  bal.TotalCredits + amount - bal.UsedCredits,
		Description:       description,
		CreatedAt:         now,
	}
	if err := tx.Create(&entry).Error; err != nil {
		// Concurrent delivery for the same order won the unique index race.
		// Roll back our balance bump and report the earlier application.
		if db.IsDuplicateKeyErr(err) {
			return errAlreadyApplied
		}
		return err
	}
	return nil
}

func (s *Service) Debit(ctx context.Context, accountID snowflake.ID, amount int64, reason string) (*domain.Balance, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE credit_balances
			SET used_credits = used_credits + ?, updated_at = ?
			WHERE business_account_id = ? AND used_credits + ? <= total_credits
		`, amount, now, accountID, amount)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInsufficientCredits
		}

		var bal domain.Balance
		if err := tx.Raw(`
			SELECT business_account_id, total_credits, used_credits, updated_at
			FROM credit_balances WHERE business_account_id = ?
		`, accountID).Scan(&bal).Error; err != nil {
			return err
		}

		entry := domain.Transaction{
			ID:                s.genID.Generate(),
			BusinessAccountID: accountID,
			Type:              domain.TransactionTypeDebit,
			CreditChange:      -amount,
			ResultingBalance:  bal.Available(),
			Description:       reason,
			CreatedAt:         now,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CreditsDebited.Add(float64(amount))
	}
	s.log.Info("credits debited",
		zap.String("business_account_id", accountID.String()),
		zap.Int64("amount", amount),
		zap.String("reason", reason),
	)
	return s.Balance(ctx, accountID)
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (*domain.Balance, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}

	var bal domain.Balance
	res := s.db.WithContext(ctx).Raw(`
		SELECT business_account_id, total_credits, used_credits, updated_at
		FROM credit_balances WHERE business_account_id = ?
	`, accountID).Scan(&bal)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.Balance{BusinessAccountID: accountID}, nil
	}
	return &bal, nil
}

func (s *Service) Transactions(ctx context.Context, accountID snowflake.ID, limit int) ([]domain.Transaction, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var entries []domain.Transaction
	if err := s.db.WithContext(ctx).Raw(`
		SELECT id, business_account_id, order_id, type, credit_change, resulting_balance, description, created_at
		FROM credit_transactions
		WHERE business_account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, accountID, limit).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
