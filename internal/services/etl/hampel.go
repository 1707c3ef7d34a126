package etl

import (
	"math"
	"sort"
)

// madScale makes the median absolute deviation a consistent estimator of
// the standard deviation for normal data.
const madScale = 1.4826

// Hampel replaces outliers with the rolling median. A point is an outlier
// when it lies more than nSigma scaled MADs from the median of the centred
// window of size window. Points without a full window are left unchanged.
func Hampel(values []float64, window int, nSigma float64) []float64 {
	out := append([]float64(nil), values...)
	half := window / 2
	if half < 1 || len(values) < 2*half+1 {
		return out
	}
	buf := make([]float64, 2*half+1)
	dev := make([]float64, 2*half+1)
	for i := half; i < len(values)-half; i++ {
		copy(buf, values[i-half:i+half+1])
		med := median(buf)
		for j, v := range values[i-half : i+half+1] {
			dev[j] = math.Abs(v - med)
		}
		mad := madScale * median(dev)
		if math.Abs(values[i]-med) > nSigma*mad {
			out[i] = med
		}
	}
	return out
}

// median sorts xs in place.
func median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

// IsConstant reports whether values has zero variance.
func IsConstant(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			return false
		}
	}
	return true
}
