package etl

import (
	"errors"
	"math"
	"time"

	"StoreSales/internal/domain/models"
)

var ErrNoObservations = errors.New("etl: series has no observations")

// Interpolate fills NaN entries by linear interpolation over position.
// Trailing gaps repeat the last observation and leading gaps repeat the first.
// The input is not modified.
func Interpolate(values []float64) ([]float64, error) {
	out := append([]float64(nil), values...)
	first, last := -1, -1
	for i, v := range out {
		if !math.IsNaN(v) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil, ErrNoObservations
	}
	for i := 0; i < first; i++ {
		out[i] = out[first]
	}
	for i := last + 1; i < len(out); i++ {
		out[i] = out[last]
	}
	prev := first
	for i := first + 1; i <= last; i++ {
		if math.IsNaN(out[i]) {
			continue
		}
		if gap := i - prev; gap > 1 {
			step := (out[i] - out[prev]) / float64(gap)
			for j := prev + 1; j < i; j++ {
				out[j] = out[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	return out, nil
}

// FillOil returns an oil price for every date in dates plus every quoted date.
// Missing quotes are interpolated in date order, then edge gaps filled from
// the nearest quote.
func FillOil(dates []time.Time, quotes []models.OilPrice) (map[time.Time]float64, error) {
	known := make(map[time.Time]float64, len(quotes))
	all := make(map[time.Time]struct{}, len(quotes)+len(dates))
	for _, q := range quotes {
		d := models.Day(q.Date)
		all[d] = struct{}{}
		if q.Value != nil && !math.IsNaN(*q.Value) {
			known[d] = *q.Value
		}
	}
	for _, d := range dates {
		all[models.Day(d)] = struct{}{}
	}

	ordered := sortedDates(all)
	values := make([]float64, len(ordered))
	for i, d := range ordered {
		if v, ok := known[d]; ok {
			values[i] = v
		} else {
			values[i] = math.NaN()
		}
	}
	filled, err := Interpolate(values)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]float64, len(ordered))
	for i, d := range ordered {
		out[d] = filled[i]
	}
	return out, nil
}
