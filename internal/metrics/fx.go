package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

func provide() (prometheus.Registerer, prometheus.Gatherer, *Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	return registry, registry, New(registry)
}

var Module = fx.Module("metrics",
	fx.Provide(provide),
)
