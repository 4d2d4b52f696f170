package moderation

import (
	"github.com/edusocial/edusocial/internal/moderation/reviewer"
	"github.com/edusocial/edusocial/internal/moderation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("moderation.service",
	fx.Provide(reviewer.NewHTTPClient),
	fx.Provide(service.NewService),
)
