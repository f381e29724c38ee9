// Package metrics provides Prometheus metrics collection for reflectd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for reflectd.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures prometheus.Counter

	// Entitlement metrics
	Verdicts          *prometheus.CounterVec
	ProviderFallbacks prometheus.Counter

	// Webhook metrics
	WebhookEvents *prometheus.CounterVec

	// Sync metrics
	SyncedSubscriptions prometheus.Counter
	SyncErrors          prometheus.Counter

	// Title generation metrics
	TitleGenerations *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "reflectd",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "reflectd",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		AuthFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
		),
		Verdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "entitlement_verdicts_total",
				Help:      "Total entitlement evaluations by reason",
			},
			[]string{"reason"},
		),
		ProviderFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "provider_fallbacks_total",
				Help:      "Total cold-start fallbacks to a live provider lookup",
			},
		),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "webhook_events_total",
				Help:      "Total webhook events by type and result",
			},
			[]string{"type", "result"},
		),
		SyncedSubscriptions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "synced_subscriptions_total",
				Help:      "Total subscriptions reconciled by the sync job",
			},
		),
		SyncErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "sync_errors_total",
				Help:      "Total subscriptions skipped by the sync job due to errors",
			},
		),
		TitleGenerations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "title_generations_total",
				Help:      "Total title generation attempts by outcome",
			},
			[]string{"outcome"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reflectd",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}
