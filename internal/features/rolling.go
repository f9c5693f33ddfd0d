package features

import "math"

// Rolling-window operators over dense columns. NaN marks a missing value;
// every operator skips NaN inputs and yields NaN where fewer than
// minPeriods valid observations are in the window. All operators are
// causal: output[i] depends only on values[0..i].

// RollingMean computes the mean over the trailing window.
func RollingMean(values []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	count := 0
	for i := range values {
		if v := values[i]; !math.IsNaN(v) {
			sum += v
			count++
		}
		if j := i - window; j >= 0 {
			if v := values[j]; !math.IsNaN(v) {
				sum -= v
				count--
			}
		}
		if count >= minPeriods && count > 0 {
			out[i] = sum / float64(count)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// RollingStd computes the sample standard deviation over the trailing
// window. Undefined below minPeriods or for fewer than two observations.
func RollingStd(values []float64, window, minPeriods int) []float64 {
	out := make([]float64, len(values))
	sum, sumSq := 0.0, 0.0
	count := 0
	for i := range values {
		if v := values[i]; !math.IsNaN(v) {
			sum += v
			sumSq += v * v
			count++
		}
		if j := i - window; j >= 0 {
			if v := values[j]; !math.IsNaN(v) {
				sum -= v
				sumSq -= v * v
				count--
			}
		}
		if count >= minPeriods && count >= 2 {
			n := float64(count)
			variance := (sumSq - sum*sum/n) / (n - 1)
			if variance < 0 {
				variance = 0 // numerical noise
			}
			out[i] = math.Sqrt(variance)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// RollingMax computes the maximum over the trailing window using a
// monotonic deque. minPeriods equals the window size.
func RollingMax(values []float64, window int) []float64 {
	return rollingExtreme(values, window, func(a, b float64) bool { return a >= b })
}

// RollingMin computes the minimum over the trailing window.
func RollingMin(values []float64, window int) []float64 {
	return rollingExtreme(values, window, func(a, b float64) bool { return a <= b })
}

// rollingExtreme keeps a deque of indices whose values are monotonic
// under wins, so the front is always the window extreme.
func rollingExtreme(values []float64, window int, wins func(a, b float64) bool) []float64 {
	out := make([]float64, len(values))
	deque := make([]int, 0, window)
	count := 0 // valid observations in window
	for i := range values {
		if !math.IsNaN(values[i]) {
			for len(deque) > 0 && wins(values[i], values[deque[len(deque)-1]]) {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, i)
			count++
		}
		if j := i - window; j >= 0 && !math.IsNaN(values[j]) {
			count--
		}
		for len(deque) > 0 && deque[0] <= i-window {
			deque = deque[1:]
		}
		if count >= window && len(deque) > 0 {
			out[i] = values[deque[0]]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// EMA computes the exponentially weighted moving average with
// alpha = 2/(span+1), seeded by the first valid observation.
// A NaN input yields NaN at that index without disturbing the state.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	alpha := 2.0 / (float64(span) + 1.0)
	state := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		if math.IsNaN(state) {
			state = v
		} else {
			state = alpha*v + (1-alpha)*state
		}
		out[i] = state
	}
	return out
}

// Shift moves values back by lag rows: out[i] = values[i-lag].
// A negative lag looks forward; out-of-range indices are NaN.
func Shift(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		j := i - lag
		if j < 0 || j >= len(values) {
			out[i] = math.NaN()
		} else {
			out[i] = values[j]
		}
	}
	return out
}

// PctChange computes (values[i] - values[j]) / values[j] with
// j = max(0, i-lag): the lookback shortens at the head of the series
// where fewer rows exist, the same convention as the min-periods moving
// averages. Undefined at row 0 or on a zero/missing base.
func PctChange(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		j := i - lag
		if j < 0 {
			j = 0
		}
		base := values[j]
		if math.IsNaN(base) || base == 0 || math.IsNaN(values[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (values[i] - base) / base
	}
	return out
}

// Diff computes values[i] - values[i-1].
func Diff(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i == 0 || math.IsNaN(values[i]) || math.IsNaN(values[i-1]) {
			out[i] = math.NaN()
		} else {
			out[i] = values[i] - values[i-1]
		}
	}
	return out
}

// ratio divides two columns element-wise, NaN on zero or missing denominator.
func ratio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		if math.IsNaN(num[i]) || math.IsNaN(den[i]) || den[i] == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = num[i] / den[i]
		}
	}
	return out
}
