package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/config"
	creditdomain "github.com/edusocial/edusocial/internal/credit/domain"
	invoicedomain "github.com/edusocial/edusocial/internal/invoice/domain"
	"github.com/edusocial/edusocial/internal/metrics"
	orderdomain "github.com/edusocial/edusocial/internal/order/domain"
	"github.com/edusocial/edusocial/internal/payment/adapters"
	"github.com/edusocial/edusocial/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Config   config.Config
	Registry *adapters.Registry
	Repo     domain.Repository
	Orders   orderdomain.Service
	Credits  creditdomain.Service
	Invoices invoicedomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	cfg      config.PaymentConfig
	registry *adapters.Registry
	repo     domain.Repository
	orders   orderdomain.Service
	credits  creditdomain.Service
	invoices invoicedomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		cfg:      p.Config.Payment,
		registry: p.Registry,
		repo:     p.Repo,
		orders:   p.Orders,
		credits:  p.Credits,
		invoices: p.Invoices,
		metrics:  p.Metrics,
	}
}

func (s *Service) adapterConfig() domain.AdapterConfig {
	return domain.AdapterConfig{
		WebhookSecret:       s.cfg.WebhookSecret,
		CheckoutURL:         s.cfg.CheckoutURL,
		SupportedCurrencies: s.cfg.SupportedCurrencies,
		DefaultCurrency:     s.cfg.DefaultCurrency,
		CurrencyPolicy:      s.cfg.CurrencyPolicy,
	}
}

func (s *Service) CreateSession(ctx context.Context, req domain.SessionRequest) (*domain.Session, error) {
	adapter, err := s.registry.NewAdapter(s.cfg.Provider, s.adapterConfig())
	if err != nil {
		return nil, err
	}

	session, err := adapter.CreateSession(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("provider", session.Provider),
		zap.String("provider_ref", session.ProviderRef),
		zap.String("order_id", req.OrderID.String()),
		zap.String("currency", session.Currency),
	)
	return session, nil
}

func (s *Service) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	adapter, err := s.registry.NewAdapter(provider, s.adapterConfig())
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.countWebhook(provider, "rejected")
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			s.countWebhook(provider, "ignored")
		}
		return err
	}

	now := time.Now().UTC()
	rec := &domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		OrderID:         event.OrderID,
		Status:          domain.EventStatusReceived,
		Payload:         event.RawPayload,
		ReceivedAt:      now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, rec)
	if err != nil {
		return err
	}
	if !inserted {
		stored, err := s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("payment event %s/%s recorded but not found", event.Provider, event.ProviderEventID)
		}
		if stored.ProcessedAt != nil {
			s.countWebhook(provider, "duplicate")
			s.log.Info("webhook already processed, skipping",
				zap.String("provider", event.Provider),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return domain.ErrEventAlreadyProcessed
		}
		// Redelivery of an event that never finished processing. Run it
		// again under the stored record.
		rec = stored
	}

	if err := s.processEvent(ctx, event); err != nil {
		markErr := s.repo.MarkFailed(ctx, s.db, int64(rec.ID), err.Error(), time.Now().UTC())
		if markErr != nil {
			s.log.Error("mark event failed", zap.Error(markErr))
		}
		s.countWebhook(provider, "failed")
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, int64(rec.ID), time.Now().UTC()); err != nil {
		return err
	}
	s.countWebhook(provider, "processed")
	return nil
}

func (s *Service) processEvent(ctx context.Context, event *domain.PaymentEvent) error {
	switch event.Type {
	case domain.EventTypePaymentSucceeded:
		return s.confirmOrder(ctx, event)
	case domain.EventTypePaymentFailed:
		return s.failOrder(ctx, event)
	default:
		return domain.ErrInvalidEvent
	}
}

func (s *Service) confirmOrder(ctx context.Context, event *domain.PaymentEvent) error {
	order, err := s.orders.Get(ctx, event.OrderID)
	if err != nil {
		return err
	}
	plan, err := s.orders.GetPlan(ctx, order.PlanID)
	if err != nil {
		return err
	}

	order, err = s.orders.Transition(ctx, order.ID, orderdomain.OrderStatusPaid, orderdomain.TransitionMeta{
		Provider:    event.Provider,
		ProviderRef: event.ProviderRef,
		PaidAt:      event.OccurredAt,
	})
	if err != nil {
		return err
	}

	creditAmount := plan.CreditAmount * int64(order.Quantity)
	if _, err := s.credits.Credit(ctx, order.BusinessAccountID, order.ID, creditAmount, "order paid"); err != nil {
		return err
	}

	if _, err := s.invoices.Generate(ctx, order.ID); err != nil {
		return err
	}

	s.log.Info("payment confirmed",
		zap.String("order_id", order.ID.String()),
		zap.Int64("credits", creditAmount),
		zap.String("provider_ref", event.ProviderRef),
	)
	return nil
}

func (s *Service) failOrder(ctx context.Context, event *domain.PaymentEvent) error {
	_, err := s.orders.Transition(ctx, event.OrderID, orderdomain.OrderStatusFailed, orderdomain.TransitionMeta{
		Provider:    event.Provider,
		ProviderRef: event.ProviderRef,
	})
	if err != nil {
		return err
	}
	s.log.Info("payment failed",
		zap.String("order_id", event.OrderID.String()),
		zap.String("provider_event_id", event.ProviderEventID),
	)
	return nil
}

func (s *Service) countWebhook(provider, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WebhooksProcessed.WithLabelValues(provider, outcome).Inc()
}
