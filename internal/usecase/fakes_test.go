package usecase

import (
	"context"
	"sync"
	"time"

	"StoreSales/internal/domain/models"
	domrepo "StoreSales/internal/domain/repository"
)

type fakeMetrics struct {
	mu        sync.Mutex
	forecasts map[string]int
	errors    map[string]int
	ingested  map[string]int
	latency   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		forecasts: map[string]int{},
		errors:    map[string]int{},
		ingested:  map[string]int{},
		latency:   map[string]int{},
	}
}

func (m *fakeMetrics) RecordForecast(status string) {
	m.mu.Lock()
	m.forecasts[status]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	m.latency[op]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordIngested(source string, n int) {
	m.mu.Lock()
	m.ingested[source] += n
	m.mu.Unlock()
}

type stubOil struct {
	last   time.Time
	values []float64
	err    error
}

func (o stubOil) Forecast(n int) ([]float64, error) {
	if o.err != nil {
		return nil, o.err
	}
	if n > len(o.values) {
		n = len(o.values)
	}
	return append([]float64(nil), o.values[:n]...), nil
}

func (o stubOil) LastTrainedDate() time.Time { return o.last }

type stubLoader struct {
	set *domrepo.ArtifactSet
	err error
}

func (l stubLoader) Load(context.Context) (*domrepo.ArtifactSet, error) {
	return l.set, l.err
}

// stubModel returns the values in fn order for the last n covariate dates.
type stubModel struct {
	mu       sync.Mutex
	values   func(n int) []float64
	err      error
	gotPast  models.CovariateSeries
	gotN     int
	fitIDs   []models.SeriesID
	fitErr   error
	reversed bool
}

func (m *stubModel) Forecast(_ context.Context, n int, _ models.SeriesID, _ models.TimeSeries, past models.CovariateSeries) ([]models.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotPast, m.gotN = past, n
	if m.err != nil {
		return nil, m.err
	}
	vals := m.values(n)
	out := make([]models.Point, len(vals))
	for i, v := range vals {
		idx := len(past) - n + i
		var d time.Time
		if idx >= 0 && idx < len(past) {
			d = past[idx].Date
		}
		out[i] = models.Point{Date: d, Value: v}
	}
	if m.reversed {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (m *stubModel) Fit(_ context.Context, series []models.SeriesData) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fitErr != nil {
		return "", m.fitErr
	}
	for _, s := range series {
		m.fitIDs = append(m.fitIDs, s.ID)
	}
	return "lgbm-test", nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.ForecastProduced
	err    error
}

func (p *fakePublisher) PublishForecast(_ context.Context, ev models.ForecastProduced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }
