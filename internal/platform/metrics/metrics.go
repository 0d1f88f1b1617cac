// Package metrics registers the process-wide Prometheus metrics shared
// across ingestion, the engine, the fan-out hub and the HTTP surface.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric exported by the process.
type Metrics struct {
	EventsIngested     *prometheus.CounterVec
	EventsRejected     *prometheus.CounterVec
	IncidentsCreated   prometheus.Counter
	IncidentsMerged    prometheus.Counter
	IngestionLatency   prometheus.Histogram
	ValidationOutcomes *prometheus.CounterVec
	HubSubscribers     prometheus.Gauge
	HubDropped         prometheus.Counter
	EndpointLatency    *prometheus.HistogramVec
	AuthFailures       prometheus.Counter
}

var (
	once    sync.Once
	process *Metrics
)

// New returns the process's metrics, creating and registering every metric
// with the default Prometheus registry on the first call; later calls
// return the same set.
func New() *Metrics {
	once.Do(func() { process = register() })
	return process
}

func register() *Metrics {
	return &Metrics{
		EventsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "alibi_events_ingested_total",
			Help: "Total camera events accepted by ingestion, by event_type",
		}, []string{"event_type"}),
		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "alibi_events_rejected_total",
			Help: "Total camera events rejected by schema validation, by reason",
		}, []string{"reason"}),
		IncidentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alibi_incidents_created_total",
			Help: "Total new incidents created by the grouper",
		}),
		IncidentsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alibi_incidents_merged_total",
			Help: "Total events attached to an existing incident",
		}),
		IngestionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "alibi_ingestion_duration_seconds",
			Help:    "End-to-end ingestion pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		ValidationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "alibi_validation_outcomes_total",
			Help: "Engine validation outcomes, by status",
		}, []string{"status"}),
		HubSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "alibi_hub_subscribers",
			Help: "Current number of connected push-stream subscribers",
		}),
		HubDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alibi_hub_messages_dropped_total",
			Help: "Total messages dropped due to a full subscriber queue",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alibi_endpoint_latency_seconds",
			Help:    "Latency of HTTP endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "alibi_auth_failures_total",
			Help: "Total authentication failures",
		}),
	}
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
}
