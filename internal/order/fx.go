package order

import (
	"github.com/edusocial/edusocial/internal/order/repository"
	"github.com/edusocial/edusocial/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
