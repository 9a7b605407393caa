// Package selector turns equivalence verdicts and timing distributions
// into a ranked decision per candidate.
//
// A candidate is "faster" only when a one-sided Mann-Whitney rank-sum test
// shows its timing distribution significantly below the original's at the
// configured confidence level. Ties and overlapping distributions yield
// equivalent-but-not-faster. If no candidate reaches significance the
// target's result is "no improvement found", an expected terminal
// outcome rather than an error.
package selector

// Kind is the terminal classification of one candidate.
type Kind string

const (
	// KindEquivalentFaster means behavior preserved and significantly
	// faster than the original.
	KindEquivalentFaster Kind = "equivalent-and-faster"

	// KindEquivalentNotFaster means behavior preserved but the speedup
	// did not reach significance.
	KindEquivalentNotFaster Kind = "equivalent-but-not-faster"

	// KindNonEquivalent means the candidate diverged from original
	// behavior on at least one test.
	KindNonEquivalent Kind = "non-equivalent"

	// KindInconclusive means measurement could not reach the confidence
	// margin within budget. Excluded from ranking, not rejected.
	KindInconclusive Kind = "inconclusive"
)

// Verdict is the terminal decision for one candidate.
type Verdict struct {
	// Candidate is the stable candidate identifier.
	Candidate string

	Kind Kind

	// Speedup is the effect size: original mean divided by candidate
	// mean. 2.0 means twice as fast. Zero when not measured.
	Speedup float64

	// Confidence is the level the significance test was run at.
	Confidence float64

	// PValue is the one-sided p-value of the rank-sum comparison.
	// 1.0 when not measured.
	PValue float64

	// Variance is the candidate's sample variance in seconds², the first
	// ranking tie-breaker.
	Variance float64

	// Reason is a human-readable explanation for reports, set for
	// non-equivalent and inconclusive verdicts.
	Reason string
}

// Improved reports whether this verdict makes the candidate committable.
func (v Verdict) Improved() bool {
	return v.Kind == KindEquivalentFaster
}
