package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the domain counters served on /metrics.
type Metrics struct {
	OrdersCreated     *prometheus.CounterVec
	OrderTransitions  *prometheus.CounterVec
	WebhooksProcessed *prometheus.CounterVec
	CreditsApplied    prometheus.Counter
	CreditsDebited    prometheus.Counter
	InvoicesGenerated prometheus.Counter
	ModerationVerdict *prometheus.CounterVec
	FlushBatches      prometheus.Counter
	FlushedEvents     prometheus.Counter
	FlushDuration     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edusocial_orders_created_total",
			Help: "Credit orders created, by currency.",
		}, []string{"currency"}),
		OrderTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edusocial_order_transitions_total",
			Help: "Order status transitions applied.",
		}, []string{"from", "to"}),
		WebhooksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edusocial_payment_webhooks_total",
			Help: "Payment webhooks processed, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CreditsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "edusocial_credits_applied_total",
			Help: "Ledger credit applications.",
		}),
		CreditsDebited: factory.NewCounter(prometheus.CounterOpts{
			Name: "edusocial_credits_debited_total",
			Help: "Ledger debit applications.",
		}),
		InvoicesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "edusocial_invoices_generated_total",
			Help: "Invoices generated for paid orders.",
		}),
		ModerationVerdict: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "edusocial_moderation_verdicts_total",
			Help: "Moderation job verdicts applied.",
		}, []string{"verdict"}),
		FlushBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "edusocial_engagement_flush_batches_total",
			Help: "Engagement buffer flush batches executed.",
		}),
		FlushedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "edusocial_engagement_flushed_events_total",
			Help: "Engagement events drained from the buffer.",
		}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "edusocial_engagement_flush_duration_seconds",
			Help:    "Duration of engagement buffer flushes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
