// Package metrics implements admin.Metrics on top of Prometheus.
//
// Every collector is registered on a private registry so that tests and
// short-lived commands never touch the global default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fbadmin/internal/admin"
)

// Metrics implements the admin.Metrics interface with Prometheus collectors
type Metrics struct {
	config   admin.MetricsConfig
	registry *prometheus.Registry

	remoteCalls         *prometheus.CounterVec
	remoteCallDuration  *prometheus.HistogramVec
	tokenCache          *prometheus.CounterVec
	listenerEvents      *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
	jobRuns             *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance
func NewMetrics(config admin.MetricsConfig) (*Metrics, error) {
	namespace := config.Namespace
	if namespace == "" {
		namespace = "fbadmin"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		config:   config,
		registry: registry,

		// service: auth, remote_config, database, messaging, credential
		// operation: e.g. "get_template", "send", "transaction"
		// outcome: success or failure
		remoteCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_calls_total",
				Help:      "Total number of calls made to Firebase backends.",
			},
			[]string{"service", "operation", "outcome"},
		),
		remoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_call_duration_seconds",
				Help:      "Latency of calls made to Firebase backends.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		tokenCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_cache_total",
				Help:      "Access token cache lookups, labelled by result (hit/miss).",
			},
			[]string{"result"},
		),
		listenerEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listener_events_total",
				Help:      "Events delivered to realtime database listeners, by kind.",
			},
			[]string{"kind"},
		),
		activeSubscriptions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_subscriptions",
				Help:      "Number of open realtime database subscriptions.",
			},
		),
		jobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Scheduled job executions, by job and outcome.",
			},
			[]string{"job", "outcome"},
		),
	}, nil
}

// Registry exposes the registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRemoteCall records one call to a Firebase backend
func (m *Metrics) ObserveRemoteCall(service admin.ServiceType, operation, outcome string, duration time.Duration) {
	m.remoteCalls.WithLabelValues(service.String(), operation, outcome).Inc()
	m.remoteCallDuration.WithLabelValues(service.String(), operation).Observe(duration.Seconds())
}

// IncTokenCache records an access token cache lookup
func (m *Metrics) IncTokenCache(result string) {
	m.tokenCache.WithLabelValues(result).Inc()
}

// IncListenerEvents counts one listener event
func (m *Metrics) IncListenerEvents(kind string) {
	m.listenerEvents.WithLabelValues(kind).Inc()
}

// SetActiveSubscriptions sets the open subscription gauge
func (m *Metrics) SetActiveSubscriptions(count int) {
	m.activeSubscriptions.Set(float64(count))
}

// IncJobRuns counts one scheduled job execution
func (m *Metrics) IncJobRuns(job, outcome string) {
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}

// Nop is an admin.Metrics that discards everything. It is used when metrics
// are disabled in configuration.
type Nop struct{}

func (Nop) ObserveRemoteCall(admin.ServiceType, string, string, time.Duration) {}
func (Nop) IncTokenCache(string)                                               {}
func (Nop) IncListenerEvents(string)                                           {}
func (Nop) SetActiveSubscriptions(int)                                         {}
func (Nop) IncJobRuns(string, string)                                          {}
