package session

import (
	"time"

	"github.com/roach88/perfsmith/internal/selector"
	"github.com/roach88/perfsmith/internal/testkit"
)

// CandidateStatus is the lifecycle status of one candidate. Transitions
// are strictly forward; the only back-edge-like move is into rejected,
// which is reachable from any non-terminal status.
type CandidateStatus string

const (
	StatusPending           CandidateStatus = "pending"
	StatusEquivalenceFailed CandidateStatus = "equivalence-failed"
	StatusEquivalencePassed CandidateStatus = "equivalence-passed"
	StatusMeasured          CandidateStatus = "measured"
	StatusAccepted          CandidateStatus = "accepted"
	StatusRejected          CandidateStatus = "rejected"
)

// forwardTransitions maps each status to the statuses it may advance to.
var forwardTransitions = map[CandidateStatus][]CandidateStatus{
	StatusPending:           {StatusEquivalenceFailed, StatusEquivalencePassed, StatusRejected},
	StatusEquivalenceFailed: {StatusRejected},
	StatusEquivalencePassed: {StatusMeasured, StatusRejected},
	StatusMeasured:          {StatusAccepted, StatusRejected},
	StatusAccepted:          {},
	StatusRejected:          {},
}

// CanTransition reports whether the status may advance to the given one.
func (s CandidateStatus) CanTransition(to CandidateStatus) bool {
	for _, next := range forwardTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s CandidateStatus) Terminal() bool {
	return len(forwardTransitions[s]) == 0
}

// Candidate is one proposed alternative implementation of a target's
// function. Source is the full replacement content of the target file.
type Candidate struct {
	// ID is the stable candidate identifier, e.g. "cand-01". Used as the
	// final ranking tie-breaker, so it must be unique per target.
	ID string

	// Source is the candidate file content that replaces the target file
	// in a scratch workspace during evaluation, and on disk on commit.
	Source []byte

	Status CandidateStatus

	// Reason explains equivalence-failed, rejected, and inconclusive
	// candidates in reports.
	Reason string
}

// advance moves the candidate to the given status, panicking on an
// illegal transition. Status flow bugs are programming errors, not
// runtime conditions, so they fail loudly.
func (c *Candidate) advance(to CandidateStatus) {
	if !c.Status.CanTransition(to) {
		panic("illegal candidate transition: " + string(c.Status) + " -> " + string(to))
	}
	c.Status = to
}

// State is the session state machine position for one target.
type State string

const (
	StateCreated              State = "Created"
	StateDiscoveringTests     State = "DiscoveringTests"
	StateEvaluatingCandidates State = "EvaluatingCandidates"
	StateMeasuring            State = "Measuring"
	StateSelecting            State = "Selecting"
	StateCommitted            State = "Committed"
	StateNoImprovement        State = "NoImprovement"
	StateAborted              State = "Aborted"
)

// Terminal reports whether the state ends the target's evaluation.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateNoImprovement || s == StateAborted
}

// CandidateResult is the per-candidate line of a target report.
type CandidateResult struct {
	ID     string
	Status CandidateStatus
	Reason string
}

// ScenarioRuntime annotates one test scenario with the best observed
// runtime of the original and of the accepted candidate.
type ScenarioRuntime struct {
	Test          testkit.TestID
	OriginalBest  time.Duration
	CandidateBest time.Duration
}

// TargetReport is the terminal summary for one target: which state the
// session ended in, why, and what happened to every candidate.
type TargetReport struct {
	Target testkit.Target
	Epoch  string
	State  State

	// AbortReason is set when State is Aborted.
	AbortReason string

	// Accepted is the committed candidate's ID, empty otherwise.
	Accepted string

	// Speedup is the accepted candidate's effect size, zero otherwise.
	Speedup float64

	// Verdicts are in ranked order.
	Verdicts []selector.Verdict

	Candidates []CandidateResult

	// Scenarios carry per-test runtime annotations when a candidate was
	// accepted.
	Scenarios []ScenarioRuntime
}
