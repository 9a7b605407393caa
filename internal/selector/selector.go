package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/perfsmith/internal/sampling"
)

// Config holds the statistical decision parameters.
type Config struct {
	// Confidence is the level a candidate must beat to count as faster,
	// e.g. 0.95.
	Confidence float64
}

// DefaultConfig returns the standard 95% confidence requirement.
func DefaultConfig() Config {
	return Config{Confidence: 0.95}
}

// Validate rejects confidence levels outside (0, 1).
func (c Config) Validate() error {
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("confidence must be in (0, 1), got %g", c.Confidence)
	}
	return nil
}

// Select decides one equivalence-passed candidate's verdict from its
// timing samples and the original's. Pure and deterministic: identical
// samples always produce the identical verdict.
func Select(candidate string, candSamples, origSamples []sampling.TimingSample, cfg Config) Verdict {
	candSecs := sampling.Seconds(candSamples)
	origSecs := sampling.Seconds(origSamples)

	candMean := sampling.Mean(candSecs)
	origMean := sampling.Mean(origSecs)

	v := Verdict{
		Candidate:  candidate,
		Confidence: cfg.Confidence,
		PValue:     1.0,
		Variance:   sampling.Variance(candSecs),
	}
	if candMean > 0 {
		v.Speedup = origMean / candMean
	}

	if len(candSecs) < 2 || len(origSecs) < 2 {
		v.Kind = KindInconclusive
		v.Reason = "not enough samples for comparison"
		return v
	}

	v.PValue = RankSumP(candSecs, origSecs)
	alpha := 1 - cfg.Confidence

	if v.PValue < alpha && v.Speedup > 1 {
		v.Kind = KindEquivalentFaster
	} else {
		v.Kind = KindEquivalentNotFaster
	}
	return v
}

// Rank orders verdicts for a target: effect size (speedup) descending,
// ties broken by lower variance, then by earlier candidate identifier.
// Deterministic and reproducible: identical inputs always produce the
// identical order. Non-equivalent and inconclusive verdicts sort after
// every equivalent one, in identifier order, so reports stay stable.
func Rank(verdicts []Verdict) []Verdict {
	out := make([]Verdict, len(verdicts))
	copy(out, verdicts)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]

		ra, rb := rankClass(a.Kind), rankClass(b.Kind)
		if ra != rb {
			return ra < rb
		}
		if ra != 0 {
			// Within non-ranked classes only the identifier orders.
			return strings.Compare(a.Candidate, b.Candidate) < 0
		}

		if a.Speedup != b.Speedup {
			return a.Speedup > b.Speedup
		}
		if a.Variance != b.Variance {
			return a.Variance < b.Variance
		}
		return strings.Compare(a.Candidate, b.Candidate) < 0
	})

	return out
}

// rankClass buckets verdict kinds: equivalent ones rank, the rest trail.
func rankClass(k Kind) int {
	switch k {
	case KindEquivalentFaster, KindEquivalentNotFaster:
		return 0
	case KindInconclusive:
		return 1
	default:
		return 2
	}
}

// Winner returns the top-ranked committable verdict, or false when no
// candidate reached significance ("no improvement found").
func Winner(verdicts []Verdict) (Verdict, bool) {
	for _, v := range Rank(verdicts) {
		if v.Improved() {
			return v, true
		}
	}
	return Verdict{}, false
}
