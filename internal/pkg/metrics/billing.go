package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结果标签
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// BillingMetrics 支付与配额相关指标
type BillingMetrics interface {
	IncCheckoutCreated(provider string)
	IncCheckoutFailed(provider string)
	IncPaymentVerified(outcome string)
	IncWebhookEvent(provider, eventType, outcome string)
	IncQuotaConsumed(outcome string)
	SetActiveSubscriptions(planID string, n int64)
	SetWaitlistSize(n int64)
}

type billingMetrics struct {
	checkouts           *prometheus.CounterVec
	paymentVerification *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	quotaConsumed       *prometheus.CounterVec
	activeSubscriptions *prometheus.GaugeVec
	waitlistSize        prometheus.Gauge
}

// NewRegistry 带 Go 运行时指标的 registry
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func NewBillingMetrics(registry *prometheus.Registry) BillingMetrics {
	factory := promauto.With(registry)

	return &billingMetrics{
		checkouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_checkouts_total",
				Help: "Checkout sessions and payment orders by provider and result",
			},
			[]string{"provider", "result"},
		),
		paymentVerification: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_payment_verifications_total",
				Help: "Client-side payment verifications by outcome",
			},
			[]string{"outcome"},
		),
		webhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_webhook_events_total",
				Help: "Provider webhook events by type and outcome",
			},
			[]string{"provider", "event", "outcome"},
		),
		quotaConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_quota_consume_total",
				Help: "Upload quota consume attempts by outcome",
			},
			[]string{"outcome"},
		),
		activeSubscriptions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "billing_active_subscriptions",
				Help: "Active developer subscriptions per plan",
			},
			[]string{"plan"},
		),
		waitlistSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "waitlist_entries",
				Help: "Total waitlist entries",
			},
		),
	}
}

func (m *billingMetrics) IncCheckoutCreated(provider string) {
	m.checkouts.WithLabelValues(provider, "created").Inc()
}

func (m *billingMetrics) IncCheckoutFailed(provider string) {
	m.checkouts.WithLabelValues(provider, "failed").Inc()
}

func (m *billingMetrics) IncPaymentVerified(outcome string) {
	m.paymentVerification.WithLabelValues(outcome).Inc()
}

func (m *billingMetrics) IncWebhookEvent(provider, eventType, outcome string) {
	m.webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

func (m *billingMetrics) IncQuotaConsumed(outcome string) {
	m.quotaConsumed.WithLabelValues(outcome).Inc()
}

func (m *billingMetrics) SetActiveSubscriptions(planID string, n int64) {
	m.activeSubscriptions.WithLabelValues(planID).Set(float64(n))
}

func (m *billingMetrics) SetWaitlistSize(n int64) {
	m.waitlistSize.Set(float64(n))
}

type noop struct{}

// Noop 不记录任何指标，用于测试和未启用指标的场景
func Noop() BillingMetrics { return noop{} }

func (noop) IncCheckoutCreated(string)              {}
func (noop) IncCheckoutFailed(string)               {}
func (noop) IncPaymentVerified(string)              {}
func (noop) IncWebhookEvent(string, string, string) {}
func (noop) IncQuotaConsumed(string)                {}
func (noop) SetActiveSubscriptions(string, int64)   {}
func (noop) SetWaitlistSize(int64)                  {}
