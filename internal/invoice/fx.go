package invoice

import (
	"github.com/edusocial/edusocial/internal/invoice/pdf"
	"github.com/edusocial/edusocial/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(pdf.NewRenderer),
	fx.Provide(service.NewService),
)
