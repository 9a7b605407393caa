package sampling

import (
	"time"

	"github.com/roach88/perfsmith/internal/testkit"
)

// TimingSample is one measured duration of one implementation executing
// one scenario. RunIndex and Epoch let samples be grouped per measurement
// session and outliers traced back to their run.
type TimingSample struct {
	Impl     string
	Scenario testkit.TestID
	RunIndex int
	Epoch    string
	Duration time.Duration
}

// Seconds flattens samples into float64 seconds for the statistics layer.
func Seconds(samples []TimingSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Duration.Seconds()
	}
	return out
}

// DiscardWarmup drops the first n samples. Returns the input slice when n
// is zero or negative; returns nil when fewer than n samples exist.
func DiscardWarmup[T any](samples []T, n int) []T {
	if n <= 0 {
		return samples
	}
	if len(samples) <= n {
		return nil
	}
	return samples[n:]
}
