package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the counter samples of family name whose label matches.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					sum += m.GetCounter().GetValue()
				}
			}
		}
	}
	return sum
}

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWith(reg)

	r.RecordForecast("ok")
	r.RecordForecast("ok")
	r.RecordForecast("unknown_series")
	r.RecordError("publish")
	r.RecordIngested("kafka", 3)
	r.RecordLatency("forecast", 0.01)

	assert.Equal(t, 2.0, counterValue(t, reg, "storesales_forecasts_total", "status", "ok"))
	assert.Equal(t, 1.0, counterValue(t, reg, "storesales_forecasts_total", "status", "unknown_series"))
	assert.Equal(t, 1.0, counterValue(t, reg, "storesales_errors_total", "type", "publish"))
	assert.Equal(t, 3.0, counterValue(t, reg, "storesales_rows_ingested_total", "source", "kafka"))
}
