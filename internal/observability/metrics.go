package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "psychro"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// layering service and the chart planner.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Reclassification metrics.
	LayerElements *prometheus.CounterVec // labels: layer={chartborder,zone,density,points,text}
	LayerRules    *prometheus.CounterVec // labels: rule={trace,trace_default,text,border,fallback}
	LedgerSkips   prometheus.Counter

	// Planning metrics.
	RowsLoaded  prometheus.Counter
	RowsDropped prometheus.Counter
	JobsPlanned *prometheus.CounterVec // labels: mode
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates all metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total rendered-chart events read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total layered-chart events written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total events whose document could not be reclassified.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		LayerElements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_elements_total",
			Help:      "Top-level SVG elements placed in each layer.",
		}, []string{"layer"}),
		LayerRules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_rule_matches_total",
			Help:      "Top-level SVG elements matched by each classification rule.",
		}, []string{"rule"}),
		LedgerSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_skips_total",
			Help:      "Documents left untouched because they were already layered.",
		}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epw_rows_loaded_total",
			Help:      "Weather rows kept after parsing.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epw_rows_dropped_total",
			Help:      "Weather rows dropped for missing or invalid values.",
		}),
		JobsPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_jobs_planned_total",
			Help:      "Chart jobs emitted by the planner, by mode.",
		}, []string{"mode"}),
	}

	reg.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.LayerElements,
		m.LayerRules,
		m.LedgerSkips,
		m.RowsLoaded,
		m.RowsDropped,
		m.JobsPlanned,
	)

	return m
}
