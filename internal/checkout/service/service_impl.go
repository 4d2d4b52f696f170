package service

import (
	"context"

	"github.com/edusocial/edusocial/internal/checkout/domain"
	orderdomain "github.com/edusocial/edusocial/internal/order/domain"
	paymentdomain "github.com/edusocial/edusocial/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Orders   orderdomain.Service
	Payments paymentdomain.Service
}

type Service struct {
	log      *zap.Logger
	orders   orderdomain.Service
	payments paymentdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("checkout.service"),
		orders:   p.Orders,
		payments: p.Payments,
	}
}

func (s *Service) Start(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	plan, err := s.orders.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	// Price and currency are taken from the plan, never the client.
	currency := plan.Currency
	if req.Currency != "" {
		currency = req.Currency
	}
	if req.Quantity <= 0 {
		return nil, orderdomain.ErrInvalidQuantity
	}

	order, err := s.orders.Create(ctx, orderdomain.CreateOrderRequest{
		BusinessAccountID: req.BusinessAccountID,
		PlanID:            req.PlanID,
		Quantity:          req.Quantity,
		TotalPrice:        plan.UnitPrice * int64(req.Quantity),
		Currency:          currency,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.payments.CreateSession(ctx, paymentdomain.SessionRequest{
		OrderID:  order.ID,
		Amount:   order.TotalPrice,
		Currency: order.Currency,
	})
	if err != nil {
		// Order stays pending; a later cancel sweep or manual cancel
		// resolves it.
		return nil, err
	}

	s.log.Info("checkout started",
		zap.String("order_id", order.ID.String()),
		zap.String("provider", session.Provider),
	)
	return &domain.CheckoutResult{
		OrderID:      order.ID,
		Provider:     session.Provider,
		RedirectURL:  session.RedirectURL,
		ClientSecret: session.ClientSecret,
	}, nil
}
