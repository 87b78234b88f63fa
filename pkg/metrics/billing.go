package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeUnmatched = "unmatched"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// BillingMetrics tracks webhook traffic and organization status changes.
type BillingMetrics struct {
	webhookEvents *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripe_webhook_events_total",
		Help:      "Stripe webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "organization_status_transitions_total",
		Help:      "Organization billing status changes.",
	}, []string{"from", "to"})
	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grace_sweep_organizations_total",
		Help:      "Organizations evaluated by the grace-period sweeper by result.",
	}, []string{"result"})
	reg.MustRegister(webhookEvents, transitions, sweepRuns)
	return &BillingMetrics{
		webhookEvents: webhookEvents,
		transitions:   transitions,
		sweepRuns:     sweepRuns,
	}
}

// IncWebhookEvent counts one webhook delivery.
func (b *BillingMetrics) IncWebhookEvent(eventType, outcome string) {
	if b == nil || b.webhookEvents == nil {
		return
	}
	b.webhookEvents.WithLabelValues(labelOrUnknown(eventType), labelOrUnknown(outcome)).Inc()
}

// IncTransition counts a status change. Unchanged statuses are skipped.
func (b *BillingMetrics) IncTransition(from, to string) {
	if b == nil || b.transitions == nil || from == to {
		return
	}
	if from == "" {
		from = "pre_billing"
	}
	b.transitions.WithLabelValues(from, labelOrUnknown(to)).Inc()
}

// AddSweepResult counts organizations handled by one sweep.
func (b *BillingMetrics) AddSweepResult(result string, count int) {
	if b == nil || b.sweepRuns == nil || count <= 0 {
		return
	}
	b.sweepRuns.WithLabelValues(labelOrUnknown(result)).Add(float64(count))
}
