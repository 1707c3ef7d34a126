package etl

import (
	"errors"
	"fmt"
)

// Evaluation holds one series' training values, held-out actuals and
// predictions for the same days.
type Evaluation struct {
	Train     []float64
	Actual    []float64
	Predicted []float64
}

var ErrNothingToEvaluate = errors.New("etl: nothing to evaluate")

// ScaledMSE min-max scales each series on its training range and returns the
// mean squared error pooled over all series. A zero training range divides
// by one.
func ScaledMSE(evals []Evaluation) (float64, error) {
	var sum float64
	var n int
	for i, e := range evals {
		if len(e.Actual) != len(e.Predicted) {
			return 0, fmt.Errorf("etl: series %d has %d actuals and %d predictions", i, len(e.Actual), len(e.Predicted))
		}
		if len(e.Train) == 0 {
			return 0, fmt.Errorf("etl: series %d has no training values", i)
		}
		lo, hi := e.Train[0], e.Train[0]
		for _, v := range e.Train[1:] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		scale := hi - lo
		if scale == 0 {
			scale = 1
		}
		for j := range e.Actual {
			d := (e.Actual[j] - e.Predicted[j]) / scale
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0, ErrNothingToEvaluate
	}
	return sum / float64(n), nil
}
