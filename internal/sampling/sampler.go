package sampling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/perfsmith/internal/testkit"
)

// InstabilityError means the sampler exhausted its budget before the
// confidence margin was reached. The candidate is marked inconclusive and
// excluded from ranking, but not rejected.
type InstabilityError struct {
	Impl      string
	Scenario  testkit.TestID
	Samples   int
	RelMargin float64
}

// Error implements the error interface.
func (e *InstabilityError) Error() string {
	return fmt.Sprintf("measurement unstable for %s on %s: margin %.3f after %d samples",
		e.Impl, e.Scenario, e.RelMargin, e.Samples)
}

// IsInstability reports whether err is (or wraps) an *InstabilityError.
func IsInstability(err error) bool {
	var ie *InstabilityError
	return errors.As(err, &ie)
}

// Sampler collects timing distributions by running scenarios repeatedly
// through a test harness adapter.
type Sampler struct {
	adapter testkit.Adapter
	cfg     Config
	epoch   string
	timeout time.Duration // per-run wall-clock cap
	logger  *slog.Logger
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithTimeout caps each individual run. Defaults to one minute.
func WithTimeout(d time.Duration) SamplerOption {
	return func(s *Sampler) {
		s.timeout = d
	}
}

// WithLogger sets the sampler's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) SamplerOption {
	return func(s *Sampler) {
		s.logger = logger
	}
}

// New creates a Sampler over the given adapter. The epoch tags every
// sample so journaled samples group by measurement session.
func New(adapter testkit.Adapter, cfg Config, epoch string, opts ...SamplerOption) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sampler config: %w", err)
	}

	s := &Sampler{
		adapter: adapter,
		cfg:     cfg,
		epoch:   epoch,
		timeout: time.Minute,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Measure runs one scenario repeatedly against one implementation until
// the adaptive stopping rule halts. Returns every post-warm-up sample.
//
// On budget exhaustion without convergence the collected samples are
// returned alongside an *InstabilityError. Runs that time out or error
// abort measurement entirely: their durations would poison the
// distribution.
func (s *Sampler) Measure(ctx context.Context, impl string, scenario testkit.TestID) ([]TimingSample, error) {
	start := time.Now()
	var all []TimingSample

	for runIndex := 0; ; runIndex++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcomes, err := s.adapter.Run(ctx, impl, []testkit.TestID{scenario}, s.timeout)
		if err != nil {
			return nil, fmt.Errorf("measure %s on %s: %w", impl, scenario, err)
		}
		if len(outcomes) != 1 {
			return nil, fmt.Errorf("measure %s on %s: expected 1 outcome, got %d", impl, scenario, len(outcomes))
		}

		outcome := outcomes[0]
		if outcome.Verdict == testkit.VerdictTimeout || outcome.Verdict == testkit.VerdictError {
			return nil, fmt.Errorf("measure %s on %s: run %d finished with verdict %s",
				impl, scenario, runIndex, outcome.Verdict)
		}

		all = append(all, TimingSample{
			Impl:     impl,
			Scenario: scenario,
			RunIndex: runIndex,
			Epoch:    s.epoch,
			Duration: outcome.Duration,
		})

		kept := DiscardWarmup(all, s.cfg.WarmupSamples)
		decision := Decide(Seconds(kept), s.cfg, time.Since(start))

		switch decision {
		case StopConverged:
			s.logger.Debug("measurement converged",
				"impl", impl, "scenario", scenario,
				"samples", len(kept), "margin", RelativeMargin(Seconds(kept)),
			)
			return kept, nil

		case StopBudget:
			margin := RelativeMargin(Seconds(kept))
			s.logger.Warn("measurement budget exhausted before convergence",
				"impl", impl, "scenario", scenario,
				"samples", len(kept), "margin", margin,
			)
			return kept, &InstabilityError{
				Impl:      impl,
				Scenario:  scenario,
				Samples:   len(kept),
				RelMargin: margin,
			}
		}
	}
}
