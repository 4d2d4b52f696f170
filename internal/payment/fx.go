package payment

import (
	"github.com/edusocial/edusocial/internal/payment/adapters"
	"github.com/edusocial/edusocial/internal/payment/adapters/stripe"
	"github.com/edusocial/edusocial/internal/payment/repository"
	"github.com/edusocial/edusocial/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
