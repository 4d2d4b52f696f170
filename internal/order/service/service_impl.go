package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/metrics"
	"github.com/edusocial/edusocial/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("order.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if req.BusinessAccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if req.PlanID == 0 {
		return nil, domain.ErrPlanNotFound
	}
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if req.TotalPrice <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}

	plan, err := s.repo.FindPlan(ctx, s.db, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil || !plan.Active {
		return nil, domain.ErrPlanNotFound
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:                s.genID.Generate(),
		BusinessAccountID: req.BusinessAccountID,
		PlanID:            req.PlanID,
		Quantity:          req.Quantity,
		TotalPrice:        req.TotalPrice,
		Currency:          currency,
		Status:            domain.OrderStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.WithLabelValues(currency).Inc()
	}
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("business_account_id", order.BusinessAccountID.String()),
		zap.Int64("total_price", order.TotalPrice),
		zap.String("currency", order.Currency),
	)
	return order, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) ListByAccount(ctx context.Context, accountID snowflake.ID, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByAccount(ctx, s.db, accountID, limit)
}

func (s *Service) GetPlan(ctx context.Context, id snowflake.ID) (*domain.Plan, error) {
	plan, err := s.repo.FindPlan(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) Transition(ctx context.Context, id snowflake.ID, target domain.OrderStatus, meta domain.TransitionMeta) (*domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Redelivered confirmations land here after the first writer won.
	if order.Status == target {
		return order, nil
	}
	if !domain.CanTransition(order.Status, target) {
		return nil, domain.ErrInvalidTransition
	}

	now := time.Now().UTC()
	updated, err := s.repo.UpdateStatus(ctx, s.db, id, order.Status, target, meta, now)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost the race. Re-read: if the other writer applied the same
		// target the call is still idempotent, otherwise surface conflict.
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == target {
			return current, nil
		}
		return nil, domain.ErrTransitionConflict
	}

	if s.metrics != nil {
		s.metrics.OrderTransitions.WithLabelValues(string(order.Status), string(target)).Inc()
	}
	s.log.Info("order transitioned",
		zap.String("order_id", id.String()),
		zap.String("from", string(order.Status)),
		zap.String("to", string(target)),
	)

	return s.Get(ctx, id)
}
