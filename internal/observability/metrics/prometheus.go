// Package metrics provides Prometheus metrics for the dosage and key-point engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	DailyDoseComputations prometheus.Counter
	InvalidDoseQuantities prometheus.Counter
	DroppedConversions    *prometheus.CounterVec
	KeyPointLookups       *prometheus.CounterVec
	EvaluationDuration    prometheus.Histogram
	EvaluationsFailed     prometheus.Counter
	CohortQueueDepth      prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all metrics and registers them with reg. A nil reg leaves the
// collectors unregistered, which keeps tests independent of each other.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DailyDoseComputations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daily_dose_computations_total",
			Help: "Total daily dose aggregations performed",
		}),
		InvalidDoseQuantities: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daily_dose_invalid_quantities_total",
			Help: "Aggregations aborted because a dose quantity had no value",
		}),
		DroppedConversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unit_conversions_dropped_total",
			Help: "Quantities that could not be converted into the requested unit",
		}, []string{"source"}),
		KeyPointLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "key_point_lookups_total",
			Help: "Key-point decision table lookups by outcome",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "patient_evaluation_duration_seconds",
			Help:    "Patient state evaluation duration",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		EvaluationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "patient_evaluations_failed_total",
			Help: "Total failed patient evaluations",
		}),
		CohortQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cohort_queue_depth",
			Help: "Patients waiting for evaluation",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.DailyDoseComputations,
			m.InvalidDoseQuantities,
			m.DroppedConversions,
			m.KeyPointLookups,
			m.EvaluationDuration,
			m.EvaluationsFailed,
			m.CohortQueueDepth,
			m.CircuitBreakerState,
		)
	}

	return m
}

// Nop returns unregistered metrics for callers that do not export them.
func Nop() *Metrics {
	return New(nil)
}

// WriteTextfile dumps the gatherer's metrics in the text exposition format,
// for pickup by a node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
