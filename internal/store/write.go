package store

import (
	"context"
	"fmt"

	"github.com/roach88/perfsmith/internal/capture"
	"github.com/roach88/perfsmith/internal/sampling"
	"github.com/roach88/perfsmith/internal/selector"
	"github.com/roach88/perfsmith/internal/session"
	"github.com/roach88/perfsmith/internal/testkit"
)

// Store implements session.Recorder.
var _ session.Recorder = (*Store)(nil)

// RecordOutcome inserts one test outcome. The captured value is stored as
// canonical JSON so re-reads compare byte-identical.
func (s *Store) RecordOutcome(ctx context.Context, epoch, target string, o testkit.TestOutcome) error {
	captured := "null"
	if o.Captured != nil {
		data, err := capture.MarshalCanonical(o.Captured)
		if err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		captured = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(epoch, target, test, impl, verdict, captured, summary, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		epoch,
		target,
		string(o.Test),
		o.Impl,
		string(o.Verdict),
		captured,
		o.Summary,
		o.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// RecordSample inserts one timing sample. The epoch comes from the sample
// itself, stamped by the sampler.
func (s *Store) RecordSample(ctx context.Context, target string, smp sampling.TimingSample) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO samples
		(epoch, target, impl, scenario, run_index, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		smp.Epoch,
		target,
		smp.Impl,
		string(smp.Scenario),
		smp.RunIndex,
		smp.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("record sample: %w", err)
	}
	return nil
}

// RecordVerdict upserts the terminal verdict for one candidate.
// Uses ON CONFLICT DO NOTHING for idempotency - a verdict is written once.
func (s *Store) RecordVerdict(ctx context.Context, epoch, target string, v selector.Verdict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdicts
		(epoch, target, candidate, kind, speedup, confidence, p_value, variance, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(epoch, target, candidate) DO NOTHING
	`,
		epoch,
		target,
		v.Candidate,
		string(v.Kind),
		v.Speedup,
		v.Confidence,
		v.PValue,
		v.Variance,
		v.Reason,
	)
	if err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}
	return nil
}

// RecordReport writes the terminal target report atomically: the report
// row, per-candidate statuses, and per-scenario runtime annotations all
// land in one transaction or not at all.
func (s *Store) RecordReport(ctx context.Context, rep session.TargetReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record report: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports
		(epoch, target, state, abort_reason, accepted, speedup)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(epoch, target) DO NOTHING
	`,
		rep.Epoch,
		rep.Target.Function,
		string(rep.State),
		rep.AbortReason,
		rep.Accepted,
		rep.Speedup,
	)
	if err != nil {
		return fmt.Errorf("record report: insert report: %w", err)
	}

	for _, cand := range rep.Candidates {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO candidates
			(epoch, target, candidate, status, reason)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(epoch, target, candidate) DO NOTHING
		`,
			rep.Epoch,
			rep.Target.Function,
			cand.ID,
			string(cand.Status),
			cand.Reason,
		)
		if err != nil {
			return fmt.Errorf("record report: insert candidate %s: %w", cand.ID, err)
		}
	}

	for _, sc := range rep.Scenarios {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scenarios
			(epoch, target, test, original_best_ns, candidate_best_ns)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(epoch, target, test) DO NOTHING
		`,
			rep.Epoch,
			rep.Target.Function,
			string(sc.Test),
			sc.OriginalBest.Nanoseconds(),
			sc.CandidateBest.Nanoseconds(),
		)
		if err != nil {
			return fmt.Errorf("record report: insert scenario %s: %w", sc.Test, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record report: commit: %w", err)
	}
	return nil
}
