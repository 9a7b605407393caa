package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/perfsmith/internal/selector"
	"github.com/roach88/perfsmith/internal/session"
	"github.com/roach88/perfsmith/internal/testkit"
)

// Reports reads terminal target reports back from the journal, oldest
// session first (epochs are UUIDv7, so a string sort is a time sort).
// A non-empty target filter restricts to that function's reports.
//
// Only journaled fields are reconstructed: the target's function name is
// known, its file locations are not part of the journal.
func (s *Store) Reports(ctx context.Context, target string) ([]session.TargetReport, error) {
	query := `
		SELECT epoch, target, state, abort_reason, accepted, speedup
		FROM reports
	`
	args := []any{}
	if target != "" {
		query += " WHERE target = ?"
		args = append(args, target)
	}
	query += " ORDER BY epoch, target"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}
	defer rows.Close()

	var reports []session.TargetReport
	for rows.Next() {
		var rep session.TargetReport
		var fn, state string
		if err := rows.Scan(&rep.Epoch, &fn, &state, &rep.AbortReason, &rep.Accepted, &rep.Speedup); err != nil {
			return nil, fmt.Errorf("read reports: scan: %w", err)
		}
		rep.Target = testkit.Target{Function: fn}
		rep.State = session.State(state)
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}

	for i := range reports {
		if err := s.fillReport(ctx, &reports[i]); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// fillReport attaches verdicts, candidate statuses, and scenario runtimes
// to one report row.
func (s *Store) fillReport(ctx context.Context, rep *session.TargetReport) error {
	verdicts, err := s.readVerdicts(ctx, rep.Epoch, rep.Target.Function)
	if err != nil {
		return err
	}
	// Ranking is a pure function of the verdicts, so re-ranking on read
	// reproduces the session's order exactly.
	rep.Verdicts = selector.Rank(verdicts)

	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate, status, reason
		FROM candidates
		WHERE epoch = ? AND target = ?
		ORDER BY candidate
	`, rep.Epoch, rep.Target.Function)
	if err != nil {
		return fmt.Errorf("read candidates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c session.CandidateResult
		var status string
		if err := rows.Scan(&c.ID, &status, &c.Reason); err != nil {
			return fmt.Errorf("read candidates: scan: %w", err)
		}
		c.Status = session.CandidateStatus(status)
		rep.Candidates = append(rep.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read candidates: %w", err)
	}

	scenarios, err := s.readScenarios(ctx, rep.Epoch, rep.Target.Function)
	if err != nil {
		return err
	}
	rep.Scenarios = scenarios
	return nil
}

func (s *Store) readVerdicts(ctx context.Context, epoch, target string) ([]selector.Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate, kind, speedup, confidence, p_value, variance, reason
		FROM verdicts
		WHERE epoch = ? AND target = ?
		ORDER BY candidate
	`, epoch, target)
	if err != nil {
		return nil, fmt.Errorf("read verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []selector.Verdict
	for rows.Next() {
		var v selector.Verdict
		var kind string
		if err := rows.Scan(&v.Candidate, &kind, &v.Speedup, &v.Confidence, &v.PValue, &v.Variance, &v.Reason); err != nil {
			return nil, fmt.Errorf("read verdicts: scan: %w", err)
		}
		v.Kind = selector.Kind(kind)
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read verdicts: %w", err)
	}
	return verdicts, nil
}

func (s *Store) readScenarios(ctx context.Context, epoch, target string) ([]session.ScenarioRuntime, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT test, original_best_ns, candidate_best_ns
		FROM scenarios
		WHERE epoch = ? AND target = ?
		ORDER BY test
	`, epoch, target)
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []session.ScenarioRuntime
	for rows.Next() {
		var sc session.ScenarioRuntime
		var test string
		var origNS, candNS int64
		if err := rows.Scan(&test, &origNS, &candNS); err != nil {
			return nil, fmt.Errorf("read scenarios: scan: %w", err)
		}
		sc.Test = testkit.TestID(test)
		sc.OriginalBest = time.Duration(origNS)
		sc.CandidateBest = time.Duration(candNS)
		scenarios = append(scenarios, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}
	return scenarios, nil
}

// Outcomes reads the journaled outcomes for one session and target, in
// insertion order. Used by tests and diagnostics.
func (s *Store) Outcomes(ctx context.Context, epoch, target string) ([]testkit.TestOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT test, impl, verdict, summary, duration_ns
		FROM outcomes
		WHERE epoch = ? AND target = ?
		ORDER BY id
	`, epoch, target)
	if err != nil {
		return nil, fmt.Errorf("read outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []testkit.TestOutcome
	for rows.Next() {
		var o testkit.TestOutcome
		var test, verdict string
		var durNS int64
		if err := rows.Scan(&test, &o.Impl, &verdict, &o.Summary, &durNS); err != nil {
			return nil, fmt.Errorf("read outcomes: scan: %w", err)
		}
		o.Test = testkit.TestID(test)
		o.Verdict = testkit.Verdict(verdict)
		o.Duration = time.Duration(durNS)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read outcomes: %w", err)
	}
	return outcomes, nil
}
