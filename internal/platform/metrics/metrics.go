package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPLatency             *prometheus.HistogramVec
	VerificationsSubmitted  *prometheus.CounterVec
	ProviderLatency         *prometheus.HistogramVec
	ProviderErrors          *prometheus.CounterVec
	CreditsConsumed         prometheus.Counter
	PaymentsConfirmed       prometheus.Counter
	OTPSent                 prometheus.Counter
	OTPVerifications        *prometheus.CounterVec
	AccessGrantListDuration prometheus.Histogram
}

// New creates and registers all metrics with reg. Pass prometheus.DefaultRegisterer
// in main and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "instantverify_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),

		VerificationsSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "instantverify_verifications_submitted_total",
			Help: "Verification submissions by verification type and resulting status",
		}, []string{"type", "status"}),

		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "instantverify_provider_duration_seconds",
			Help:    "Duration of outbound provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),

		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "instantverify_provider_errors_total",
			Help: "Outbound provider failures by provider and error category",
		}, []string{"provider", "category"}),

		CreditsConsumed: f.NewCounter(prometheus.CounterOpts{
			Name: "instantverify_credits_consumed_total",
			Help: "Verification credits consumed",
		}),

		PaymentsConfirmed: f.NewCounter(prometheus.CounterOpts{
			Name: "instantverify_payments_confirmed_total",
			Help: "Payments confirmed with the gateway",
		}),

		OTPSent: f.NewCounter(prometheus.CounterOpts{
			Name: "instantverify_otp_sent_total",
			Help: "One-time passcodes dispatched",
		}),

		OTPVerifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "instantverify_otp_verifications_total",
			Help: "OTP verification attempts by outcome",
		}, []string{"outcome"}),

		AccessGrantListDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "instantverify_access_grants_list_duration_seconds",
			Help:    "Duration of access grant lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementVerification(verificationType, status string) {
	if m != nil {
		m.VerificationsSubmitted.WithLabelValues(verificationType, status).Inc()
	}
}

// ObserveProviderLatency records the duration of a call to an external provider.
func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementProviderError(provider, category string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(provider, category).Inc()
	}
}

func (m *Metrics) IncrementCreditsConsumed() {
	if m != nil {
		m.CreditsConsumed.Inc()
	}
}

func (m *Metrics) IncrementPaymentsConfirmed() {
	if m != nil {
		m.PaymentsConfirmed.Inc()
	}
}

func (m *Metrics) IncrementOTPSent() {
	if m != nil {
		m.OTPSent.Inc()
	}
}

// IncrementOTPVerification records an outcome: "verified", "invalid", "expired" or "locked".
func (m *Metrics) IncrementOTPVerification(outcome string) {
	if m != nil {
		m.OTPVerifications.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveAccessGrantList(d time.Duration) {
	if m != nil {
		m.AccessGrantListDuration.Observe(d.Seconds())
	}
}
