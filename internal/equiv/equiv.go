// Package equiv decides whether a candidate implementation preserves the
// original's observable behavior under the target's test subset.
//
// The bar is behavior preservation, not correctness improvement: a
// candidate that reproduces every original failure identically is
// equivalent for those tests. The only disqualifying event is a candidate
// diverging from the original: failing where the original passed,
// producing a different captured value, or timing out.
//
// Everything here is a pure function over TestOutcomes, so the session can
// drive short-circuit execution (stop running tests at the first mismatch)
// while tests exercise the same logic with synthetic outcomes.
package equiv

import (
	"fmt"

	"github.com/roach88/perfsmith/internal/capture"
	"github.com/roach88/perfsmith/internal/testkit"
)

// MismatchError describes the first divergence between original and
// candidate behavior on one test.
type MismatchError struct {
	Test     testkit.TestID
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("behavior mismatch on %s: expected %s, got %s", e.Test, e.Expected, e.Actual)
}

// Result is the outcome of comparing a candidate's outcomes against the
// original's.
type Result struct {
	// Equivalent is true when every compared test preserved behavior.
	Equivalent bool

	// Checked is the number of tests compared before stopping.
	Checked int

	// Mismatch is the first divergence found, nil when Equivalent.
	Mismatch *MismatchError
}

// CompareOutcome compares one candidate outcome against the original's
// outcome for the same test. Returns nil when behavior is preserved.
//
// Rules:
//   - Original passed: candidate must pass AND captured summaries must be
//     structurally equal under the tolerance.
//   - Original failed/errored/timed out: candidate must produce the same
//     verdict kind. Captured summaries of failures are not compared,
//     since failure messages routinely embed addresses and line numbers.
func CompareOutcome(orig, cand testkit.TestOutcome, tol capture.Tolerance) error {
	if orig.Test != cand.Test {
		return fmt.Errorf("outcome mismatch: comparing %s against %s", orig.Test, cand.Test)
	}

	if orig.Verdict != testkit.VerdictPass {
		if cand.Verdict != orig.Verdict {
			return &MismatchError{
				Test:     orig.Test,
				Expected: fmt.Sprintf("verdict %s (reproducing original)", orig.Verdict),
				Actual:   fmt.Sprintf("verdict %s", cand.Verdict),
			}
		}
		return nil
	}

	if cand.Verdict != testkit.VerdictPass {
		actual := fmt.Sprintf("verdict %s", cand.Verdict)
		if cand.Summary != "" {
			actual = fmt.Sprintf("verdict %s (%s)", cand.Verdict, cand.Summary)
		}
		return &MismatchError{
			Test:     orig.Test,
			Expected: "verdict pass",
			Actual:   actual,
		}
	}

	if !capture.Equal(orig.Captured, cand.Captured, tol) {
		return &MismatchError{
			Test:     orig.Test,
			Expected: fmt.Sprintf("captured value %s", renderCaptured(orig.Captured)),
			Actual:   fmt.Sprintf("captured value %s", renderCaptured(cand.Captured)),
		}
	}

	return nil
}

// Check compares candidate outcomes against original outcomes in the
// candidate's order, stopping at the first mismatch. Tests the candidate
// never ran (because the session short-circuited) simply do not appear in
// cand.
//
// A candidate outcome for a test the original never ran is itself a
// divergence: the comparison oracle has nothing to compare against.
func Check(orig, cand []testkit.TestOutcome, tol capture.Tolerance) Result {
	byTest := make(map[testkit.TestID]testkit.TestOutcome, len(orig))
	for _, o := range orig {
		byTest[o.Test] = o
	}

	for i, c := range cand {
		o, ok := byTest[c.Test]
		if !ok {
			return Result{
				Checked: i + 1,
				Mismatch: &MismatchError{
					Test:     c.Test,
					Expected: "a test present in the original baseline",
					Actual:   "no baseline outcome recorded",
				},
			}
		}
		if err := CompareOutcome(o, c, tol); err != nil {
			mismatch, isMismatch := err.(*MismatchError)
			if !isMismatch {
				mismatch = &MismatchError{Test: c.Test, Expected: "comparable outcomes", Actual: err.Error()}
			}
			return Result{Checked: i + 1, Mismatch: mismatch}
		}
	}

	return Result{Equivalent: true, Checked: len(cand)}
}

// renderCaptured formats a captured value for mismatch messages, truncated
// to keep reports readable.
func renderCaptured(v capture.Value) string {
	const maxLen = 120

	data, err := capture.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	s := string(data)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
