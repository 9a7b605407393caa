package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/perfsmith/internal/capture"
	"github.com/roach88/perfsmith/internal/sampling"
	"github.com/roach88/perfsmith/internal/selector"
	"github.com/roach88/perfsmith/internal/testkit"
)

const originalSource = "package cart\n\nfunc Total() int { return slow() }\n"

// fakeAdapter scripts per-implementation outcomes. The same instance is
// handed out for every workspace, so tests can count runs across the
// whole session.
type fakeAdapter struct {
	mu            sync.Mutex
	outcomes      map[string]map[testkit.TestID]testkit.TestOutcome
	runErr        map[string]error
	discovered    []testkit.TestID
	discoverErr   error
	runCalls      map[string]int
	flakyBaseline bool
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		outcomes: make(map[string]map[testkit.TestID]testkit.TestOutcome),
		runErr:   make(map[string]error),
		runCalls: make(map[string]int),
	}
}

// script makes every listed test pass for impl with the given captured value.
func (f *fakeAdapter) script(impl string, captured capture.Value, tests ...testkit.TestID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.outcomes[impl]
	if m == nil {
		m = make(map[testkit.TestID]testkit.TestOutcome)
		f.outcomes[impl] = m
	}
	for _, test := range tests {
		m[test] = testkit.TestOutcome{
			Test:     test,
			Impl:     impl,
			Verdict:  testkit.VerdictPass,
			Captured: captured,
			Duration: time.Millisecond,
		}
	}
}

func (f *fakeAdapter) scriptVerdict(impl string, test testkit.TestID, verdict testkit.Verdict) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes[impl] == nil {
		f.outcomes[impl] = make(map[testkit.TestID]testkit.TestOutcome)
	}
	f.outcomes[impl][test] = testkit.TestOutcome{
		Test: test, Impl: impl, Verdict: verdict, Captured: capture.Null{}, Summary: "assertion failed",
	}
}

func (f *fakeAdapter) Discover(ctx context.Context, target testkit.Target) ([]testkit.TestID, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.discovered, nil
}

func (f *fakeAdapter) Run(ctx context.Context, impl string, tests []testkit.TestID, timeout time.Duration) ([]testkit.TestOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.runCalls[impl]++
	if err := f.runErr[impl]; err != nil {
		return nil, err
	}

	out := make([]testkit.TestOutcome, 0, len(tests))
	for _, test := range tests {
		o, ok := f.outcomes[impl][test]
		if !ok {
			o = testkit.TestOutcome{Test: test, Impl: impl, Verdict: testkit.VerdictError, Captured: capture.Null{}}
		}
		if f.flakyBaseline && impl == "original" && f.runCalls[impl] > 1 {
			o.Captured = capture.Str("flaky-second-run")
		}
		out = append(out, o)
	}
	return out, nil
}

// measureStub replaces the live sampler with scripted distributions.
type measureStub struct {
	mu        sync.Mutex
	durations map[string][]time.Duration
	errs      map[string]error
	measured  []string
}

func newMeasureStub() *measureStub {
	return &measureStub{
		durations: make(map[string][]time.Duration),
		errs:      make(map[string]error),
	}
}

func (m *measureStub) fn(ctx context.Context, adapter testkit.Adapter, epoch, impl string, tests []testkit.TestID) ([]sampling.TimingSample, error) {
	m.mu.Lock()
	m.measured = append(m.measured, impl)
	durs := m.durations[impl]
	err := m.errs[impl]
	m.mu.Unlock()

	var out []sampling.TimingSample
	for _, test := range tests {
		for i, d := range durs {
			out = append(out, sampling.TimingSample{
				Impl: impl, Scenario: test, RunIndex: i, Epoch: epoch, Duration: d,
			})
		}
	}
	return out, err
}

func (m *measureStub) didMeasure(impl string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, seen := range m.measured {
		if seen == impl {
			return true
		}
	}
	return false
}

// dist builds a deterministic distribution alternating around base.
func dist(base, jitter time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = base + jitter
		} else {
			out[i] = base - jitter
		}
	}
	return out
}

type fixture struct {
	dir        string
	target     testkit.Target
	adapter    *fakeAdapter
	measure    *measureStub
	controller *Controller
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cart.go"), []byte(originalSource), 0o644))

	adapter := newFakeAdapter()
	factory := func(root string) (testkit.Adapter, error) { return adapter, nil }

	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithParallelism(2),
	}, opts...)

	ctrl, err := New(factory, NewFixedGenerator("epoch-01", "epoch-02"), opts...)
	require.NoError(t, err)

	measure := newMeasureStub()
	ctrl.measure = measure.fn

	return &fixture{
		dir:     dir,
		adapter: adapter,
		measure: measure,
		controller: ctrl,
		target: testkit.Target{
			Function:   "cart.Total",
			File:       "cart.go",
			ModuleRoot: dir,
			TestsRoot:  "tests",
			Tests:      []testkit.TestID{"TestA", "TestB", "TestC"},
		},
	}
}

func (f *fixture) fileContent(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, "cart.go"))
	require.NoError(t, err)
	return string(data)
}

func statusOf(rep TargetReport, id string) CandidateStatus {
	for _, c := range rep.Candidates {
		if c.ID == id {
			return c.Status
		}
	}
	return ""
}

func TestRun_CommitsFasterEquivalentCandidate(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")
	f.measure.durations["original"] = dist(20*time.Millisecond, time.Millisecond, 20)
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, time.Millisecond, 20)

	fastSource := []byte("package cart\n\nfunc Total() int { return fast() }\n")
	rep, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: fastSource},
	})
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, rep.State)
	assert.Equal(t, "cand-x", rep.Accepted)
	assert.InDelta(t, 2.0, rep.Speedup, 0.1)
	assert.Equal(t, StatusAccepted, statusOf(rep, "cand-x"))
	assert.Equal(t, string(fastSource), f.fileContent(t), "commit replaces the target file")

	require.Len(t, rep.Scenarios, 3, "every scenario gets a runtime annotation")
	for _, sc := range rep.Scenarios {
		assert.Greater(t, sc.OriginalBest, sc.CandidateBest)
	}
}

func TestRun_EquivalenceFailureShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-y", capture.Int(42), "TestA", "TestC")
	f.adapter.scriptVerdict("cand-y", "TestB", testkit.VerdictFail)

	rep, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-y", Source: []byte("package cart\n")},
	})
	require.NoError(t, err)

	assert.Equal(t, StateNoImprovement, rep.State)
	assert.Equal(t, StatusEquivalenceFailed, statusOf(rep, "cand-y"))
	assert.False(t, f.measure.didMeasure("cand-y"), "no timing sample before equivalence passes")
	assert.Equal(t, 2, f.adapter.runCalls["cand-y"], "tests after the first mismatch must not run")
	assert.Equal(t, originalSource, f.fileContent(t))
}

func TestRun_NoImprovementWithinNoise(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")
	f.measure.durations["original"] = dist(10*time.Millisecond, 2*time.Millisecond, 20)
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, 2*time.Millisecond, 20)

	rep, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.NoError(t, err)

	assert.Equal(t, StateNoImprovement, rep.State)
	assert.Empty(t, rep.Accepted)
	assert.Equal(t, StatusMeasured, statusOf(rep, "cand-x"), "measured but not committed stays measured")
	assert.Equal(t, originalSource, f.fileContent(t), "no improvement never touches the tree")
}

func TestRun_DiscoveryFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.target.Tests = nil
	f.adapter.discoverErr = &testkit.DiscoveryError{
		Framework: "gotest", Root: "tests", Reason: "collection failed",
	}

	rep, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.Error(t, err)

	assert.Equal(t, StateAborted, rep.State)
	assert.True(t, IsAbort(err))
	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, CodeDiscoveryFailed, abortErr.Code)
	assert.Equal(t, originalSource, f.fileContent(t))
}

func TestRun_EmptyTestSubsetAborts(t *testing.T) {
	f := newFixture(t)
	f.target.Tests = nil
	f.adapter.discovered = nil

	_, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.Error(t, err)

	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, CodeEmptyTestSubset, abortErr.Code)
}

func TestRun_CommitConflictAborts(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")
	f.measure.durations["original"] = dist(20*time.Millisecond, time.Millisecond, 20)
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, time.Millisecond, 20)

	// The recorded hash belongs to a version of the file that is no
	// longer on disk: someone edited the target mid-session.
	f.target.SourceHash = capture.SourceHash([]byte("stale version"))

	rep, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.Error(t, err)

	assert.Equal(t, StateAborted, rep.State)
	assert.True(t, IsCommitConflict(err))
	assert.Equal(t, originalSource, f.fileContent(t), "conflict writes nothing")
}

func TestRun_PerCandidateFailureIsolated(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.runErr["cand-broken"] = errors.New("harness exploded")
	f.measure.durations["original"] = dist(20*time.Millisecond, time.Millisecond, 20)
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, time.Millisecond, 20)

	fastSource := []byte("package cart\n\nfunc Total() int { return fast() }\n")
	rep, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-broken", Source: []byte("package cart\n")},
		{ID: "cand-x", Source: fastSource},
	})
	require.NoError(t, err)

	assert.Equal(t, StateCommitted, rep.State)
	assert.Equal(t, "cand-x", rep.Accepted)
	assert.Equal(t, StatusRejected, statusOf(rep, "cand-broken"))
}

func TestRun_MeasurementInstabilityIsInconclusive(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")
	f.measure.durations["original"] = dist(20*time.Millisecond, time.Millisecond, 20)
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, time.Millisecond, 20)
	f.measure.errs["cand-x"] = &sampling.InstabilityError{Impl: "cand-x", Scenario: "TestA", Samples: 200, RelMargin: 0.4}

	rep, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.NoError(t, err)

	assert.Equal(t, StateNoImprovement, rep.State)
	assert.Equal(t, StatusEquivalencePassed, statusOf(rep, "cand-x"),
		"inconclusive is excluded from ranking but not rejected")
	require.Len(t, rep.Verdicts, 1)
	assert.Equal(t, "inconclusive", string(rep.Verdicts[0].Kind))
}

func TestRun_CancellationAbortsWithoutCommit(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := f.controller.Run(ctx, f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.Error(t, err)

	assert.Equal(t, StateAborted, rep.State)
	assert.ErrorIs(t, err, context.Canceled)
	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, CodeCancelled, abortErr.Code)
	assert.Equal(t, originalSource, f.fileContent(t))
}

func TestRun_UnstableBaselineAborts(t *testing.T) {
	f := newFixture(t, WithBaselineVerification())
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.flakyBaseline = true

	_, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.Error(t, err)

	var abortErr *AbortError
	require.ErrorAs(t, err, &abortErr)
	assert.Equal(t, CodeUnstableBaseline, abortErr.Code)
}

func TestRun_RecommitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")
	f.measure.durations["original"] = dist(20*time.Millisecond, time.Millisecond, 20)
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, time.Millisecond, 20)

	fastSource := []byte("package cart\n\nfunc Total() int { return fast() }\n")
	cands := []Candidate{{ID: "cand-x", Source: fastSource}}

	rep, err := f.controller.Run(context.Background(), f.target, cands)
	require.NoError(t, err)
	require.Equal(t, StateCommitted, rep.State)

	// Second run against the new original: the candidate is now the same
	// code, so its distribution matches and no improvement remains.
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, time.Millisecond, 20)
	f.measure.durations["original"] = dist(10*time.Millisecond, time.Millisecond, 20)

	rep2, err := f.controller.Run(context.Background(), f.target, cands)
	require.NoError(t, err)
	assert.Equal(t, StateNoImprovement, rep2.State, "no infinite optimization loop")
	assert.Equal(t, string(fastSource), f.fileContent(t))
}

func TestNew_Validation(t *testing.T) {
	factory := func(root string) (testkit.Adapter, error) { return newFakeAdapter(), nil }

	_, err := New(nil, UUIDv7Generator{})
	assert.Error(t, err)

	_, err = New(factory, nil)
	assert.Error(t, err)

	_, err = New(factory, UUIDv7Generator{}, WithParallelism(0))
	assert.Error(t, err)
}

func TestRun_JournalReceivesEvents(t *testing.T) {
	f := newFixture(t)
	rec := &memRecorder{}
	f.controller.journal = rec

	f.adapter.script("original", capture.Int(42), "TestA", "TestB", "TestC")
	f.adapter.script("cand-x", capture.Int(42), "TestA", "TestB", "TestC")
	f.measure.durations["original"] = dist(20*time.Millisecond, time.Millisecond, 20)
	f.measure.durations["cand-x"] = dist(10*time.Millisecond, time.Millisecond, 20)

	_, err := f.controller.Run(context.Background(), f.target, []Candidate{
		{ID: "cand-x", Source: []byte("package cart\n")},
	})
	require.NoError(t, err)

	assert.NotZero(t, rec.outcomes, "baseline and candidate outcomes journaled")
	assert.NotZero(t, rec.samples)
	assert.Equal(t, 1, rec.verdicts)
	require.Len(t, rec.reports, 1)
	assert.Equal(t, "epoch-01", rec.reports[0].Epoch)
}

// memRecorder counts journal writes.
type memRecorder struct {
	mu       sync.Mutex
	outcomes int
	samples  int
	verdicts int
	reports  []TargetReport
}

func (r *memRecorder) RecordOutcome(ctx context.Context, epoch, target string, o testkit.TestOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes++
	return nil
}

func (r *memRecorder) RecordSample(ctx context.Context, target string, s sampling.TimingSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
	return nil
}

func (r *memRecorder) RecordVerdict(ctx context.Context, epoch, target string, v selector.Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts++
	return nil
}

func (r *memRecorder) RecordReport(ctx context.Context, rep TargetReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}
