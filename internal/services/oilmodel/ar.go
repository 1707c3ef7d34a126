package oilmodel

import (
	"errors"
	"fmt"
	"math"
	"time"

	"StoreSales/internal/domain/models"
	domsvc "StoreSales/internal/domain/service"

	"gonum.org/v1/gonum/mat"
)

// DefaultLags is the number of lagged prices used as regressors.
const DefaultLags = 25

var (
	ErrTooShort  = errors.New("oilmodel: training series too short for lags")
	ErrNotFitted = errors.New("oilmodel: model has no coefficients")
)

// ARModel is a linear autoregressive model with intercept fitted by least
// squares. Forecasts are produced one step at a time, feeding each
// prediction back as the next lag.
type ARModel struct {
	Lags      int       `json:"lags"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"` // Coef[i] weighs lag i+1
	Tail      []float64 `json:"tail"` // last Lags training values, oldest first
	LastDate  time.Time `json:"last_date"`
}

// Fit trains an ARModel on a daily oil price series.
func Fit(series models.TimeSeries, lags int) (*ARModel, error) {
	if lags <= 0 {
		lags = DefaultLags
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("oilmodel: %w", err)
	}
	n := len(series)
	if n <= lags+1 {
		return nil, fmt.Errorf("%w: %d points, %d lags", ErrTooShort, n, lags)
	}

	values := series.Values()
	rows := n - lags
	x := mat.NewDense(rows, lags+1, nil)
	y := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		t := r + lags
		x.Set(r, 0, 1)
		for l := 1; l <= lags; l++ {
			x.Set(r, l, values[t-l])
		}
		y.SetVec(r, values[t])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return nil, fmt.Errorf("oilmodel: least squares: %w", err)
	}

	m := &ARModel{
		Lags:      lags,
		Intercept: beta.AtVec(0),
		Coef:      make([]float64, lags),
		Tail:      append([]float64(nil), values[n-lags:]...),
		LastDate:  models.Day(series.End()),
	}
	for l := 1; l <= lags; l++ {
		m.Coef[l-1] = beta.AtVec(l)
	}
	return m, nil
}

// Forecast projects n daily prices after LastDate.
func (m *ARModel) Forecast(n int) ([]float64, error) {
	if len(m.Coef) != m.Lags || len(m.Tail) != m.Lags || m.Lags == 0 {
		return nil, ErrNotFitted
	}
	if n <= 0 {
		return nil, fmt.Errorf("oilmodel: forecast length must be positive, got %d", n)
	}
	window := append(make([]float64, 0, m.Lags+n), m.Tail...)
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		next := m.Intercept
		last := len(window) - 1
		for l := 1; l <= m.Lags; l++ {
			next += m.Coef[l-1] * window[last-l+1]
		}
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return nil, fmt.Errorf("oilmodel: non-finite forecast at step %d", i+1)
		}
		window = append(window, next)
		out = append(out, next)
	}
	return out, nil
}

// LastTrainedDate is the last date of the training series.
func (m *ARModel) LastTrainedDate() time.Time { return m.LastDate }

var _ domsvc.OilModel = (*ARModel)(nil)
