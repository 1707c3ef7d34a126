package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecasts *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	ingested  *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storesales_forecasts_total",
				Help: "Forecast requests by outcome",
			},
			[]string{"status"},
		),
		errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storesales_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storesales_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ingested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storesales_rows_ingested_total",
				Help: "Raw rows stored, by source",
			},
			[]string{"source"},
		),
	}
}

// RecordForecast counts a forecast request outcome.
func (r *Recorder) RecordForecast(status string) {
	r.forecasts.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordIngested counts stored rows.
func (r *Recorder) RecordIngested(source string, n int) {
	r.ingested.WithLabelValues(source).Add(float64(n))
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordForecast(string)         {}
func (Nop) RecordError(string)            {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordIngested(string, int)    {}
