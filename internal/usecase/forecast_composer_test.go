package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
	applogger "StoreSales/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	trainedLast = time.Date(2017, 8, 15, 0, 0, 0, 0, time.UTC)
	bread       = models.SeriesID{StoreNbr: 1, Family: "BREAD"}
)

func artifactSet(historyEnd time.Time) *domrepo.ArtifactSet {
	var cov models.CovariateSeries
	var target models.TimeSeries
	for i := 2; i >= 0; i-- {
		d := historyEnd.AddDate(0, 0, -i)
		cov = append(cov, models.CovariateRow{Date: d, OnPromotion: 1, OilPrice: 47, IsHoliday: 0})
		target = append(target, models.Point{Date: d, Value: 10})
	}
	oil := make([]float64, models.OilForecastWindow)
	for i := range oil {
		oil[i] = 47 + float64(i)/10
	}
	return &domrepo.ArtifactSet{
		Manifest: domrepo.ModelManifest{
			ModelID:         "lgbm-1",
			TrainedLastDate: trainedLast,
			Series:          []models.SeriesID{bread},
		},
		Oil:        stubOil{last: trainedLast, values: oil},
		Covariates: map[models.SeriesID]models.CovariateSeries{bread: cov},
		Targets:    map[models.SeriesID]models.TimeSeries{bread: target},
	}
}

func request(horizon int) models.ForecastRequest {
	return models.ForecastRequest{
		StoreNbr:    1,
		Family:      "BREAD",
		Horizon:     horizon,
		OnPromotion: []int{0, 1, 2, 3, 4, 5, 6},
		IsHoliday:   []int{0, 0, 1, 0, 0, 0, 0},
	}
}

func linearValues(n int) []float64 {
	raw := []float64{12.345, 100, 0.5, 3.14159, 2.675, 9.999, 1}
	if n > len(raw) {
		n = len(raw)
	}
	return append([]float64(nil), raw[:n]...)
}

func TestProduceForecast(t *testing.T) {
	model := &stubModel{values: linearValues, reversed: true}
	pub := &fakePublisher{}
	metrics := newFakeMetrics()
	c := NewForecastComposer(stubLoader{set: artifactSet(trainedLast)}, model, metrics, applogger.Nop(), WithPublisher(pub))

	f, err := c.ProduceForecast(context.Background(), request(5))
	require.NoError(t, err)

	require.Len(t, f.Dates, 5)
	for i, d := range f.Dates {
		assert.Equal(t, trainedLast.AddDate(0, 0, i+1), d)
	}
	assert.Equal(t, []models.Sales{12.35, 100, 0.5, 3.14, 2.68}, f.Values)
	assert.Equal(t, "lgbm-1", f.ModelID)

	require.Len(t, model.gotPast, 8)
	assert.Equal(t, 5, model.gotN)
	assert.NoError(t, model.gotPast.Validate())
	future := model.gotPast[3:]
	assert.Equal(t, 2, future[2].OnPromotion)
	assert.Equal(t, 1, future[2].IsHoliday)
	assert.InDelta(t, 47.2, future[2].OilPrice, 1e-9)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "2017-08-16", pub.events[0].StartDate)
	assert.Equal(t, 1, metrics.forecasts["ok"])
	assert.Equal(t, 1, metrics.latency["forecast"])
}

func TestProduceForecastValidation(t *testing.T) {
	c := NewForecastComposer(stubLoader{set: artifactSet(trainedLast)}, &stubModel{values: linearValues}, newFakeMetrics(), applogger.Nop())

	tests := []struct {
		name string
		req  models.ForecastRequest
		want error
	}{
		{"too large", request(31), models.ErrHorizonTooLarge},
		{"zero", request(0), models.ErrHorizonNotPositive},
		{"negative", request(-1), models.ErrHorizonNotPositive},
		{"short covariates", request(8), models.ErrInsufficientCovariates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ProduceForecast(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, ErrorKind(err))
		})
	}
}

func TestProduceForecastUsesRequestedHorizonOnly(t *testing.T) {
	model := &stubModel{values: linearValues}
	c := NewForecastComposer(stubLoader{set: artifactSet(trainedLast)}, model, newFakeMetrics(), applogger.Nop())

	f, err := c.ProduceForecast(context.Background(), request(1))
	require.NoError(t, err)
	assert.Equal(t, []models.Sales{12.35}, f.Values)
	assert.Len(t, model.gotPast, 4)
}

func TestProduceForecastUnknownSeries(t *testing.T) {
	metrics := newFakeMetrics()
	c := NewForecastComposer(stubLoader{set: artifactSet(trainedLast)}, &stubModel{values: linearValues}, metrics, applogger.Nop())

	req := request(3)
	req.Family = "DAIRY"
	_, err := c.ProduceForecast(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrUnknownSeries)
	assert.Equal(t, 1, metrics.errors["forecast_unknown_series"])
	assert.Equal(t, 1, metrics.forecasts["error"])
}

func TestProduceForecastArtifactFailure(t *testing.T) {
	c := NewForecastComposer(stubLoader{err: errors.New("no such file")}, &stubModel{values: linearValues}, newFakeMetrics(), applogger.Nop())

	_, err := c.ProduceForecast(context.Background(), request(3))
	assert.ErrorIs(t, err, models.ErrArtifact)
	assert.Equal(t, KindArtifact, ErrorKind(err))
}

func TestProduceForecastGapInHistory(t *testing.T) {
	// history ends a day before the oil model's training end
	set := artifactSet(trainedLast.AddDate(0, 0, -1))
	c := NewForecastComposer(stubLoader{set: set}, &stubModel{values: linearValues}, newFakeMetrics(), applogger.Nop())

	_, err := c.ProduceForecast(context.Background(), request(3))
	assert.ErrorIs(t, err, models.ErrNotContiguous)
	assert.Equal(t, KindDataIntegrity, ErrorKind(err))
}

func TestProduceForecastModelOutputLength(t *testing.T) {
	model := &stubModel{values: func(n int) []float64 { return linearValues(n - 1) }}
	c := NewForecastComposer(stubLoader{set: artifactSet(trainedLast)}, model, newFakeMetrics(), applogger.Nop())

	_, err := c.ProduceForecast(context.Background(), request(3))
	assert.ErrorIs(t, err, models.ErrModelOutput)
}

func TestProduceForecastModelError(t *testing.T) {
	model := &stubModel{err: errors.New("connection refused")}
	c := NewForecastComposer(stubLoader{set: artifactSet(trainedLast)}, model, newFakeMetrics(), applogger.Nop())

	_, err := c.ProduceForecast(context.Background(), request(3))
	require.Error(t, err)
	assert.Equal(t, KindInternal, ErrorKind(err))
}

func TestProduceForecastPublishFailureIsNotFatal(t *testing.T) {
	metrics := newFakeMetrics()
	pub := &fakePublisher{err: errors.New("broker down")}
	c := NewForecastComposer(stubLoader{set: artifactSet(trainedLast)}, &stubModel{values: linearValues}, metrics, applogger.Nop(), WithPublisher(pub))

	_, err := c.ProduceForecast(context.Background(), request(2))
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.errors["forecast_publish"])
}

func TestProduceForecastDoesNotMutateArtifacts(t *testing.T) {
	set := artifactSet(trainedLast)
	c := NewForecastComposer(stubLoader{set: set}, &stubModel{values: linearValues}, newFakeMetrics(), applogger.Nop())

	_, err := c.ProduceForecast(context.Background(), request(5))
	require.NoError(t, err)
	assert.Len(t, set.Covariates[bread], 3)
	assert.Equal(t, trainedLast, set.Covariates[bread].End())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, KindInternal, ErrorKind(errors.New("x")))
	assert.Equal(t, KindDataIntegrity, ErrorKind(fmt.Errorf("wrap: %w", models.ErrModelOutput)))
	assert.Equal(t, KindDataIntegrity, ErrorKind(fmt.Errorf("generate covariates: %w", models.ErrInsufficientOil)))
}
