package oilmodel

import (
	"testing"
	"time"

	"StoreSales/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// x_t = 10 + 0.5*x_{t-1}, converging to 20.
func recurrence(n int) models.TimeSeries {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(models.TimeSeries, n)
	v := 0.0
	for i := range out {
		out[i] = models.Point{Date: start.AddDate(0, 0, i), Value: v}
		v = 10 + 0.5*v
	}
	return out
}

func TestFitRecoversCoefficients(t *testing.T) {
	series := recurrence(40)
	m, err := Fit(series, 1)
	require.NoError(t, err)
	assert.InDelta(t, 10, m.Intercept, 1e-6)
	require.Len(t, m.Coef, 1)
	assert.InDelta(t, 0.5, m.Coef[0], 1e-6)
	assert.Equal(t, series.End(), m.LastTrainedDate())
}

func TestForecastContinuesRecurrence(t *testing.T) {
	series := recurrence(40)
	m, err := Fit(series, 1)
	require.NoError(t, err)

	got, err := m.Forecast(models.OilForecastWindow)
	require.NoError(t, err)
	require.Len(t, got, models.OilForecastWindow)

	prev := series[len(series)-1].Value
	for i, v := range got {
		want := 10 + 0.5*prev
		assert.InDelta(t, want, v, 1e-6, "step %d", i)
		prev = want
	}
}

func TestFitTooShort(t *testing.T) {
	_, err := Fit(recurrence(5), 25)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestForecastUnfitted(t *testing.T) {
	_, err := (&ARModel{}).Forecast(3)
	assert.ErrorIs(t, err, ErrNotFitted)
}
