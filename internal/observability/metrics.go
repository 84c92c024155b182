package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// dashboard service.
type Metrics struct {
	SnapshotLoads  *prometheus.CounterVec // labels: outcome={ok,error}
	DatasetSystems prometheus.Gauge
	DatasetZips    prometheus.Gauge

	FilterRecomputeDuration prometheus.Histogram

	StoreWrites       *prometheus.CounterVec // labels: entity={message,task,resolution}
	StoreDeliveries   *prometheus.CounterVec // labels: entity={message,task}
	OpenSubscriptions prometheus.Gauge

	ChatStreams        *prometheus.CounterVec // labels: outcome={ok,error}
	ChatStreamDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SnapshotLoads,
		m.DatasetSystems,
		m.DatasetZips,
		m.FilterRecomputeDuration,
		m.StoreWrites,
		m.StoreDeliveries,
		m.OpenSubscriptions,
		m.ChatStreams,
		m.ChatStreamDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SnapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watershed",
			Name:      "snapshot_loads_total",
			Help:      "Startup snapshot load attempts by outcome.",
		}, []string{"outcome"}),
		DatasetSystems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watershed",
			Name:      "dataset_systems",
			Help:      "Water systems held in the in-memory snapshot.",
		}),
		DatasetZips: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watershed",
			Name:      "dataset_zip_codes",
			Help:      "Zip centroids held in the in-memory snapshot.",
		}),
		FilterRecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "watershed",
			Name:      "filter_recompute_duration_seconds",
			Help:      "Duration of a full filter-engine recompute.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watershed",
			Name:      "store_writes_total",
			Help:      "Fire-and-forget replicated store writes by entity.",
		}, []string{"entity"}),
		StoreDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watershed",
			Name:      "store_deliveries_total",
			Help:      "Replicated store pushes delivered to containers.",
		}, []string{"entity"}),
		OpenSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "watershed",
			Name:      "open_subscriptions",
			Help:      "Currently mounted annotation containers.",
		}),
		ChatStreams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "watershed",
			Name:      "chat_streams_total",
			Help:      "Chat completion streams by outcome.",
		}, []string{"outcome"}),
		ChatStreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "watershed",
			Name:      "chat_stream_duration_seconds",
			Help:      "Wall time of a chat stream from request to close.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}
