package features

import "math"

// BuildTarget constructs the forward-looking label: the 1-hour rolling
// volatility measured horizon hours ahead, realized as a backward shift
// of horizon*RowsPerHour rows over the already-computed volatility
// column. Rows whose shifted source falls past the series end are NaN
// and excluded downstream; there is no extrapolation.
//
// targetNorm is target divided by the current price, NaN on a
// non-positive or missing price.
func BuildTarget(volatility1h, prices []float64, horizonHours int) (target, targetNorm []float64) {
	n := len(volatility1h)
	shift := horizonHours * RowsPerHour

	target = make([]float64, n)
	targetNorm = make([]float64, n)
	for i := 0; i < n; i++ {
		j := i + shift
		if j >= n {
			target[i] = math.NaN()
			targetNorm[i] = math.NaN()
			continue
		}
		target[i] = volatility1h[j]
		if i < len(prices) && prices[i] > 0 && !math.IsNaN(target[i]) {
			targetNorm[i] = target[i] / prices[i]
		} else {
			targetNorm[i] = math.NaN()
		}
	}
	return target, targetNorm
}
