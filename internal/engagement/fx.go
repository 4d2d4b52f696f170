package engagement

import (
	"github.com/edusocial/edusocial/internal/engagement/buffer"
	"github.com/edusocial/edusocial/internal/engagement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("engagement.service",
	fx.Provide(buffer.NewRedisBuffer),
	fx.Provide(service.NewService),
)
