package sampling

import (
	"fmt"
	"time"
)

// Config bounds one measurement session for one implementation/scenario
// pair.
type Config struct {
	// MinSamples is the floor of post-warm-up samples before convergence
	// may stop the session.
	MinSamples int

	// MaxSamples caps post-warm-up samples regardless of convergence.
	MaxSamples int

	// WarmupSamples are collected and discarded before statistics start.
	WarmupSamples int

	// TargetRelMargin is the relative CI half-width below which the mean
	// is considered stable.
	TargetRelMargin float64

	// CoVThreshold is the coefficient-of-variation ceiling for accepting
	// early convergence at MinSamples.
	CoVThreshold float64

	// TimeBudget caps the wall-clock cost of the session. Zero means
	// unbounded (the sample caps still apply).
	TimeBudget time.Duration
}

// DefaultConfig returns measurement bounds that converge quickly on quiet
// machines and give up deterministically on noisy ones.
func DefaultConfig() Config {
	return Config{
		MinSamples:      10,
		MaxSamples:      200,
		WarmupSamples:   3,
		TargetRelMargin: 0.05,
		CoVThreshold:    0.20,
		TimeBudget:      2 * time.Minute,
	}
}

// Validate rejects configurations that cannot terminate or cannot converge.
func (c Config) Validate() error {
	if c.MinSamples < 2 {
		return fmt.Errorf("min samples must be at least 2, got %d", c.MinSamples)
	}
	if c.MaxSamples < c.MinSamples {
		return fmt.Errorf("max samples (%d) must be >= min samples (%d)", c.MaxSamples, c.MinSamples)
	}
	if c.WarmupSamples < 0 {
		return fmt.Errorf("warmup samples must be >= 0, got %d", c.WarmupSamples)
	}
	if c.TargetRelMargin <= 0 {
		return fmt.Errorf("target relative margin must be > 0, got %g", c.TargetRelMargin)
	}
	return nil
}

// Decision is the stopping rule's verdict after each sample.
type Decision int

const (
	// Continue means the session should take another sample.
	Continue Decision = iota
	// StopConverged means the mean estimate is stable within the target
	// margin.
	StopConverged
	// StopBudget means a sample or time budget is exhausted before
	// convergence. The caller classifies this as measurement instability
	// if the margin was never reached.
	StopBudget
)

// Decide is the adaptive stopping rule as a pure function: given the
// post-warm-up durations so far and the elapsed wall-clock time, decide
// whether to keep sampling. Deterministic for identical inputs.
func Decide(durations []float64, cfg Config, elapsed time.Duration) Decision {
	n := len(durations)

	if n >= cfg.MaxSamples {
		if converged(durations, cfg) {
			return StopConverged
		}
		return StopBudget
	}
	if cfg.TimeBudget > 0 && elapsed >= cfg.TimeBudget {
		if n >= cfg.MinSamples && converged(durations, cfg) {
			return StopConverged
		}
		return StopBudget
	}
	if n < cfg.MinSamples {
		return Continue
	}
	if converged(durations, cfg) {
		return StopConverged
	}
	return Continue
}

// converged reports whether the running mean is stable: relative CI margin
// under target, and variance acceptable.
func converged(durations []float64, cfg Config) bool {
	if len(durations) < 2 {
		return false
	}
	if RelativeMargin(durations) > cfg.TargetRelMargin {
		return false
	}
	if cfg.CoVThreshold > 0 && CoV(durations) > cfg.CoVThreshold {
		return false
	}
	return true
}
