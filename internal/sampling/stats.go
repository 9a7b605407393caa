package sampling

import "math"

// z95 is the two-sided 95% normal quantile used for the running confidence
// interval in the stopping rule. The stopping rule only needs a stable
// width estimate, not an exact t quantile; the selector applies the real
// significance test.
const z95 = 1.959964

// Mean returns the arithmetic mean. Zero for an empty input.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the unbiased sample variance (n-1 denominator).
// Zero when fewer than two samples exist.
func Variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}

// StdDev returns the sample standard deviation.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// CoV returns the coefficient of variation (stddev / mean).
// Zero when the mean is zero.
func CoV(xs []float64) float64 {
	m := Mean(xs)
	if m == 0 {
		return 0
	}
	return StdDev(xs) / m
}

// MeanCI returns a normal-approximation confidence interval for the mean
// at the 95% level. Degenerates to (mean, mean) for fewer than two samples.
func MeanCI(xs []float64) (lo, hi float64) {
	m := Mean(xs)
	if len(xs) < 2 {
		return m, m
	}
	half := z95 * StdDev(xs) / math.Sqrt(float64(len(xs)))
	return m - half, m + half
}

// RelativeMargin returns the CI half-width divided by the mean: the
// quantity the adaptive stopping rule drives below its target. Returns
// +Inf when the mean is zero or non-positive (measurement noise produced
// nonsense; keep sampling).
func RelativeMargin(xs []float64) float64 {
	m := Mean(xs)
	if m <= 0 {
		return math.Inf(1)
	}
	lo, hi := MeanCI(xs)
	return (hi - lo) / 2 / m
}
