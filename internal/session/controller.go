// Package session orchestrates one optimization session per target.
//
// The controller drives the per-target state machine
//
//	Created -> DiscoveringTests -> EvaluatingCandidates -> Measuring
//	        -> Selecting -> {Committed, NoImprovement, Aborted}
//
// Candidates evaluate in parallel workers, each against its own scratch
// workspace; workers communicate results back over channels, never shared
// memory. The caller-visible source tree is mutated exactly once, on the
// Committed transition, after every worker has finished and the target
// file's hash still matches the one recorded at session start.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/perfsmith/internal/capture"
	"github.com/roach88/perfsmith/internal/equiv"
	"github.com/roach88/perfsmith/internal/sampling"
	"github.com/roach88/perfsmith/internal/scratch"
	"github.com/roach88/perfsmith/internal/selector"
	"github.com/roach88/perfsmith/internal/testkit"
)

// DefaultParallelism is the default number of concurrent candidate workers.
const DefaultParallelism = 4

// DefaultTestTimeout is the default per-test wall-clock timeout.
const DefaultTestTimeout = 30 * time.Second

// AdapterFactory builds a harness adapter rooted at a workspace copy.
// Called once per scratch workspace.
type AdapterFactory func(moduleRoot string) (testkit.Adapter, error)

// Recorder persists session events to the journal. Implemented by
// store.Store; a nil recorder disables journaling.
type Recorder interface {
	RecordOutcome(ctx context.Context, epoch, target string, o testkit.TestOutcome) error
	RecordSample(ctx context.Context, target string, s sampling.TimingSample) error
	RecordVerdict(ctx context.Context, epoch, target string, v selector.Verdict) error
	RecordReport(ctx context.Context, rep TargetReport) error
}

// measureFunc collects timing samples for one implementation across the
// target's test scenarios. Injectable so controller tests run with
// synthetic distributions instead of a live sampler.
type measureFunc func(ctx context.Context, adapter testkit.Adapter, epoch, impl string, tests []testkit.TestID) ([]sampling.TimingSample, error)

// Controller evaluates candidate implementations for targets.
type Controller struct {
	adapters AdapterFactory
	epochs   EpochGenerator
	logger   *slog.Logger
	journal  Recorder

	tol            capture.Tolerance
	sampleCfg      sampling.Config
	selectCfg      selector.Config
	testTimeout    time.Duration
	parallelism    int
	verifyBaseline bool

	measure measureFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithTolerance sets the structural-equality tolerance used during
// equivalence comparison (volatile field paths, float epsilon).
func WithTolerance(tol capture.Tolerance) Option {
	return func(c *Controller) { c.tol = tol }
}

// WithSamplingConfig sets the performance sampler's stopping rule.
func WithSamplingConfig(cfg sampling.Config) Option {
	return func(c *Controller) { c.sampleCfg = cfg }
}

// WithSelectorConfig sets the statistical decision parameters.
func WithSelectorConfig(cfg selector.Config) Option {
	return func(c *Controller) { c.selectCfg = cfg }
}

// WithTestTimeout sets the per-test wall-clock timeout.
func WithTestTimeout(d time.Duration) Option {
	return func(c *Controller) { c.testTimeout = d }
}

// WithParallelism sets the number of concurrent candidate workers.
func WithParallelism(n int) Option {
	return func(c *Controller) { c.parallelism = n }
}

// WithJournal sets the session journal recorder.
func WithJournal(r Recorder) Option {
	return func(c *Controller) { c.journal = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithBaselineVerification enables a second baseline run whose outcomes
// must reproduce the first. A flaky original aborts the target instead of
// poisoning every candidate comparison.
func WithBaselineVerification() Option {
	return func(c *Controller) { c.verifyBaseline = true }
}

// New creates a Controller. The adapter factory is called once per
// scratch workspace; the epoch generator stamps every journal row of one
// target evaluation with the same token.
func New(adapters AdapterFactory, epochs EpochGenerator, opts ...Option) (*Controller, error) {
	if adapters == nil {
		return nil, fmt.Errorf("session: adapter factory is required")
	}
	if epochs == nil {
		return nil, fmt.Errorf("session: epoch generator is required")
	}

	c := &Controller{
		adapters:    adapters,
		epochs:      epochs,
		logger:      slog.Default(),
		sampleCfg:   sampling.DefaultConfig(),
		selectCfg:   selector.DefaultConfig(),
		testTimeout: DefaultTestTimeout,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.sampleCfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if err := c.selectCfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if c.parallelism < 1 {
		return nil, fmt.Errorf("session: parallelism must be at least 1, got %d", c.parallelism)
	}

	c.measure = c.sampleWithHarness
	return c, nil
}

// evaluation is the mutable per-target working set. All fields are owned
// by Run's goroutine; workers hand results back over channels.
type evaluation struct {
	mu           sync.Mutex
	target       testkit.Target
	epoch        string
	tests        []testkit.TestID
	origOutcomes map[testkit.TestID]testkit.TestOutcome
	origSamples  []sampling.TimingSample
	origUnstable bool
	candidates   []*Candidate
	samples      map[string][]sampling.TimingSample
	inconclusive map[string]string // candidate ID -> reason
}

// Run evaluates every candidate for one target and returns its terminal
// report. The error is non-nil only when the target aborted; Committed
// and NoImprovement are successful terminal states.
//
// Cancellation of ctx propagates cooperatively to every running worker
// and guarantees no partial commit.
func (c *Controller) Run(ctx context.Context, target testkit.Target, candidates []Candidate) (TargetReport, error) {
	ev := &evaluation{
		target:       target,
		epoch:        c.epochs.Generate(),
		candidates:   make([]*Candidate, len(candidates)),
		samples:      make(map[string][]sampling.TimingSample),
		inconclusive: make(map[string]string),
	}
	for i := range candidates {
		cand := candidates[i]
		if cand.Status == "" {
			cand.Status = StatusPending
		}
		ev.candidates[i] = &cand
	}

	logger := c.logger.With("target", target.Function, "epoch", ev.epoch)
	logger.Info("session starting", "candidates", len(ev.candidates))

	rep, err := c.run(ctx, ev, logger)
	c.recordReport(ctx, rep, logger)
	return rep, err
}

func (c *Controller) run(ctx context.Context, ev *evaluation, logger *slog.Logger) (TargetReport, error) {
	state := StateCreated

	// Discovery and baseline run in their own scratch copy so even the
	// original never executes against the caller-visible tree.
	state = StateDiscoveringTests
	base, err := scratch.New(ev.target.ModuleRoot)
	if err != nil {
		return c.abort(ev, state, CodeDiscoveryFailed, "create baseline workspace", err)
	}
	defer base.Cleanup()

	if ev.target.SourceHash == "" {
		src, err := base.ReadFile(ev.target.File)
		if err != nil {
			return c.abort(ev, state, CodeDiscoveryFailed, "read target file", err)
		}
		ev.target.SourceHash = capture.SourceHash(src)
	}

	baseAdapter, err := c.adapters(base.Root())
	if err != nil {
		return c.abort(ev, state, CodeDiscoveryFailed, "build harness adapter", err)
	}

	if err := c.discover(ctx, ev, baseAdapter); err != nil {
		if abortErr, ok := err.(*AbortError); ok {
			return c.abortWith(ev, state, abortErr)
		}
		return c.abort(ev, state, CodeDiscoveryFailed, "discover tests", err)
	}
	logger.Info("tests discovered", "count", len(ev.tests))

	if err := c.baseline(ctx, ev, baseAdapter); err != nil {
		if ctx.Err() != nil {
			return c.abort(ev, state, CodeCancelled, "session cancelled", ctx.Err())
		}
		if abortErr, ok := err.(*AbortError); ok {
			return c.abortWith(ev, state, abortErr)
		}
		return c.abort(ev, state, CodeBaselineFailed, "original baseline run", err)
	}

	state = StateEvaluatingCandidates
	if err := c.forEachCandidate(ctx, ev.candidates, func(ctx context.Context, cand *Candidate) error {
		return c.evaluateCandidate(ctx, ev, cand, logger)
	}); err != nil {
		return c.abort(ev, state, CodeCancelled, "session cancelled", err)
	}

	state = StateMeasuring
	if err := c.measureOriginal(ctx, ev, baseAdapter, logger); err != nil {
		if ctx.Err() != nil {
			return c.abort(ev, state, CodeCancelled, "session cancelled", ctx.Err())
		}
		return c.abort(ev, state, CodeBaselineFailed, "original measurement", err)
	}

	if err := c.forEachCandidate(ctx, ev.candidates, func(ctx context.Context, cand *Candidate) error {
		return c.measureCandidate(ctx, ev, cand, logger)
	}); err != nil {
		return c.abort(ev, state, CodeCancelled, "session cancelled", err)
	}

	state = StateSelecting
	verdicts := c.selectVerdicts(ctx, ev)
	winner, found := selector.Winner(verdicts)

	if !found {
		logger.Info("no improvement found", "verdicts", len(verdicts))
		return c.finish(ev, StateNoImprovement, verdicts, nil), nil
	}

	if err := ctx.Err(); err != nil {
		return c.abort(ev, state, CodeCancelled, "session cancelled", err)
	}

	// Commit boundary: the single mutation of the caller-visible tree.
	if err := c.commit(ev, winner); err != nil {
		if abortErr, ok := err.(*AbortError); ok {
			return c.abortWith(ev, state, abortErr)
		}
		return c.abort(ev, state, CodeCommitConflict, "commit", err)
	}

	logger.Info("candidate committed",
		"candidate", winner.Candidate,
		"speedup", winner.Speedup,
		"p_value", winner.PValue,
	)
	return c.finish(ev, StateCommitted, verdicts, &winner), nil
}

// discover resolves the target's test subset, honoring a pre-supplied
// list and failing the target when nothing exercises the function.
func (c *Controller) discover(ctx context.Context, ev *evaluation, adapter testkit.Adapter) error {
	tests := ev.target.Tests
	if len(tests) == 0 {
		discovered, err := adapter.Discover(ctx, ev.target)
		if err != nil {
			return err
		}
		tests = discovered
	}
	if len(tests) == 0 {
		return &AbortError{
			Code:    CodeEmptyTestSubset,
			Message: "no tests exercise the target, nothing to verify against",
			Target:  ev.target.Function,
		}
	}
	ev.tests = tests
	ev.target.Tests = tests
	return nil
}

// baseline runs the original implementation once (twice under baseline
// verification) and records its outcomes as the comparison oracle.
func (c *Controller) baseline(ctx context.Context, ev *evaluation, adapter testkit.Adapter) error {
	outcomes, err := adapter.Run(ctx, "original", ev.tests, c.testTimeout)
	if err != nil {
		return err
	}

	ev.origOutcomes = make(map[testkit.TestID]testkit.TestOutcome, len(outcomes))
	for _, o := range outcomes {
		ev.origOutcomes[o.Test] = o
		c.recordOutcome(ctx, ev, o)
	}

	if !c.verifyBaseline {
		return nil
	}

	second, err := adapter.Run(ctx, "original", ev.tests, c.testTimeout)
	if err != nil {
		return err
	}
	res := equiv.Check(outcomes, second, c.tol)
	if !res.Equivalent {
		return &AbortError{
			Code:    CodeUnstableBaseline,
			Message: "original outcomes did not reproduce: " + res.Mismatch.Error(),
			Target:  ev.target.Function,
		}
	}
	return nil
}

// evaluateCandidate runs the candidate's tests one at a time in baseline
// order, comparing after each and stopping at the first divergence, so a
// failing candidate costs as little execution as possible.
func (c *Controller) evaluateCandidate(ctx context.Context, ev *evaluation, cand *Candidate, logger *slog.Logger) error {
	ws, adapter, err := c.candidateWorkspace(ev, cand)
	if err != nil {
		cand.advance(StatusRejected)
		cand.Reason = err.Error()
		logger.Warn("candidate workspace failed", "candidate", cand.ID, "error", err)
		return nil
	}
	defer ws.Cleanup()

	for _, test := range ev.tests {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcomes, err := adapter.Run(ctx, cand.ID, []testkit.TestID{test}, c.testTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Per-candidate failure isolation: a broken run rejects this
			// candidate and the session continues with its siblings.
			cand.advance(StatusRejected)
			cand.Reason = fmt.Sprintf("run failed on %s: %v", test, err)
			logger.Warn("candidate run failed", "candidate", cand.ID, "test", test, "error", err)
			return nil
		}

		for _, o := range outcomes {
			c.recordOutcome(ctx, ev, o)
		}

		if cmpErr := equiv.CompareOutcome(ev.origOutcomes[test], outcomes[0], c.tol); cmpErr != nil {
			cand.advance(StatusEquivalenceFailed)
			cand.Reason = cmpErr.Error()
			logger.Info("candidate diverged", "candidate", cand.ID, "test", test)
			return nil
		}
	}

	cand.advance(StatusEquivalencePassed)
	logger.Info("candidate equivalent", "candidate", cand.ID, "tests", len(ev.tests))
	return nil
}

// measureOriginal collects the original's timing distribution on the
// baseline workspace. Instability of the original makes every comparison
// meaningless, so it marks the whole target's measurements inconclusive
// rather than any one candidate.
func (c *Controller) measureOriginal(ctx context.Context, ev *evaluation, adapter testkit.Adapter, logger *slog.Logger) error {
	if !ev.anyPassed() {
		return nil
	}

	samples, err := c.measure(ctx, adapter, ev.epoch, "original", ev.tests)
	if err != nil {
		if sampling.IsInstability(err) {
			ev.origUnstable = true
			logger.Warn("original measurement unstable", "error", err)
		} else {
			return err
		}
	}
	ev.origSamples = samples
	for _, s := range samples {
		c.recordSample(ctx, ev, s)
	}
	return nil
}

// measureCandidate samples one equivalence-passed candidate in a fresh
// workspace. Instability leaves the candidate inconclusive; any other
// failure rejects it and the session continues.
func (c *Controller) measureCandidate(ctx context.Context, ev *evaluation, cand *Candidate, logger *slog.Logger) error {
	if cand.Status != StatusEquivalencePassed || ev.origUnstable {
		return nil
	}

	ws, adapter, err := c.candidateWorkspace(ev, cand)
	if err != nil {
		cand.advance(StatusRejected)
		cand.Reason = err.Error()
		return nil
	}
	defer ws.Cleanup()

	samples, err := c.measure(ctx, adapter, ev.epoch, cand.ID, ev.tests)
	for _, s := range samples {
		c.recordSample(ctx, ev, s)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if sampling.IsInstability(err) {
			ev.setInconclusive(cand.ID, err.Error())
			logger.Info("candidate measurement unstable", "candidate", cand.ID)
			return nil
		}
		cand.advance(StatusRejected)
		cand.Reason = fmt.Sprintf("measurement failed: %v", err)
		logger.Warn("candidate measurement failed", "candidate", cand.ID, "error", err)
		return nil
	}

	ev.setSamples(cand.ID, samples)
	cand.advance(StatusMeasured)
	return nil
}

// selectVerdicts derives one verdict per candidate and records each.
func (c *Controller) selectVerdicts(ctx context.Context, ev *evaluation) []selector.Verdict {
	verdicts := make([]selector.Verdict, 0, len(ev.candidates))

	for _, cand := range ev.candidates {
		var v selector.Verdict
		switch {
		case cand.Status == StatusEquivalenceFailed:
			v = selector.Verdict{Candidate: cand.ID, Kind: selector.KindNonEquivalent, PValue: 1.0, Reason: cand.Reason}
		case cand.Status == StatusRejected:
			v = selector.Verdict{Candidate: cand.ID, Kind: selector.KindInconclusive, PValue: 1.0, Reason: cand.Reason}
		case ev.origUnstable:
			v = selector.Verdict{Candidate: cand.ID, Kind: selector.KindInconclusive, PValue: 1.0, Reason: "original measurement unstable"}
		case cand.Status == StatusEquivalencePassed:
			v = selector.Verdict{Candidate: cand.ID, Kind: selector.KindInconclusive, PValue: 1.0, Reason: ev.inconclusive[cand.ID]}
		default:
			v = selector.Select(cand.ID, ev.samples[cand.ID], ev.origSamples, c.selectCfg)
		}
		verdicts = append(verdicts, v)
		c.recordVerdict(ctx, ev, v)
	}
	return verdicts
}

// commit replaces the target file with the winner's source, atomically,
// after re-checking that the file has not changed since session start.
func (c *Controller) commit(ev *evaluation, winner selector.Verdict) error {
	cand := ev.candidateByID(winner.Candidate)
	if cand == nil {
		return fmt.Errorf("winner %s not among candidates", winner.Candidate)
	}

	path := filepath.Join(ev.target.ModuleRoot, filepath.FromSlash(ev.target.File))
	current, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read target for commit: %w", err)
	}
	if got := capture.SourceHash(current); got != ev.target.SourceHash {
		return NewCommitConflictError(ev.target.Function, ev.target.SourceHash, got)
	}

	if err := atomicWrite(path, cand.Source); err != nil {
		return fmt.Errorf("write accepted candidate: %w", err)
	}

	cand.advance(StatusAccepted)
	for _, other := range ev.candidates {
		if other.ID != cand.ID && other.Status.CanTransition(StatusRejected) {
			other.advance(StatusRejected)
		}
	}
	return nil
}

// finish assembles the terminal report for a successful end state.
func (c *Controller) finish(ev *evaluation, state State, verdicts []selector.Verdict, winner *selector.Verdict) TargetReport {
	rep := TargetReport{
		Target:     ev.target,
		Epoch:      ev.epoch,
		State:      state,
		Verdicts:   selector.Rank(verdicts),
		Candidates: ev.results(),
	}
	if winner != nil {
		rep.Accepted = winner.Candidate
		rep.Speedup = winner.Speedup
		rep.Scenarios = scenarioRuntimes(ev.origSamples, ev.samples[winner.Candidate])
	}
	return rep
}

// abort assembles the Aborted report and the abort error.
func (c *Controller) abort(ev *evaluation, state State, code AbortCode, msg string, cause error) (TargetReport, error) {
	return c.abortWith(ev, state, &AbortError{
		Code:    code,
		Message: msg,
		Target:  ev.target.Function,
		Err:     cause,
	})
}

func (c *Controller) abortWith(ev *evaluation, state State, abortErr *AbortError) (TargetReport, error) {
	rep := TargetReport{
		Target:      ev.target,
		Epoch:       ev.epoch,
		State:       StateAborted,
		AbortReason: abortErr.Error(),
		Candidates:  ev.results(),
	}
	c.logger.Error("target aborted",
		"target", ev.target.Function,
		"during", string(state),
		"code", string(abortErr.Code),
		"error", abortErr.Err,
	)
	return rep, abortErr
}

// candidateWorkspace builds a fresh scratch copy with the candidate's
// source overlaid and an adapter rooted at it.
func (c *Controller) candidateWorkspace(ev *evaluation, cand *Candidate) (*scratch.Workspace, testkit.Adapter, error) {
	ws, err := scratch.New(ev.target.ModuleRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("create workspace: %w", err)
	}
	if err := ws.ApplySource(ev.target.File, cand.Source); err != nil {
		ws.Cleanup()
		return nil, nil, err
	}
	adapter, err := c.adapters(ws.Root())
	if err != nil {
		ws.Cleanup()
		return nil, nil, fmt.Errorf("build adapter: %w", err)
	}
	return ws, adapter, nil
}

// forEachCandidate fans candidates out to parallel workers. The returned
// error is non-nil only for cancellation; per-candidate failures are
// absorbed by the worker functions themselves.
func (c *Controller) forEachCandidate(ctx context.Context, cands []*Candidate, fn func(context.Context, *Candidate) error) error {
	workers := c.parallelism
	if workers > len(cands) {
		workers = len(cands)
	}
	if workers == 0 {
		return ctx.Err()
	}

	work := make(chan *Candidate)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range work {
				if err := fn(ctx, cand); err != nil {
					once.Do(func() { firstErr = err })
				}
			}
		}()
	}

	for _, cand := range cands {
		work <- cand
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// sampleWithHarness is the production measure function: one sampler per
// implementation, measuring every test scenario in order.
func (c *Controller) sampleWithHarness(ctx context.Context, adapter testkit.Adapter, epoch, impl string, tests []testkit.TestID) ([]sampling.TimingSample, error) {
	sampler, err := sampling.New(adapter, c.sampleCfg, epoch,
		sampling.WithTimeout(c.testTimeout),
		sampling.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}

	var all []sampling.TimingSample
	for _, test := range tests {
		samples, err := sampler.Measure(ctx, impl, test)
		all = append(all, samples...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func (c *Controller) recordOutcome(ctx context.Context, ev *evaluation, o testkit.TestOutcome) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordOutcome(ctx, ev.epoch, ev.target.Function, o); err != nil {
		c.logger.Warn("journal outcome write failed", "error", err)
	}
}

func (c *Controller) recordSample(ctx context.Context, ev *evaluation, s sampling.TimingSample) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordSample(ctx, ev.target.Function, s); err != nil {
		c.logger.Warn("journal sample write failed", "error", err)
	}
}

func (c *Controller) recordVerdict(ctx context.Context, ev *evaluation, v selector.Verdict) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordVerdict(ctx, ev.epoch, ev.target.Function, v); err != nil {
		c.logger.Warn("journal verdict write failed", "error", err)
	}
}

func (c *Controller) recordReport(ctx context.Context, rep TargetReport, logger *slog.Logger) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordReport(ctx, rep); err != nil {
		logger.Warn("journal report write failed", "error", err)
	}
}

func (ev *evaluation) anyPassed() bool {
	for _, cand := range ev.candidates {
		if cand.Status == StatusEquivalencePassed {
			return true
		}
	}
	return false
}

// setSamples and setInconclusive are called from worker goroutines, so
// map writes are serialized.
func (ev *evaluation) setSamples(id string, samples []sampling.TimingSample) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.samples[id] = samples
}

func (ev *evaluation) setInconclusive(id, reason string) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.inconclusive[id] = reason
}

func (ev *evaluation) candidateByID(id string) *Candidate {
	for _, cand := range ev.candidates {
		if cand.ID == id {
			return cand
		}
	}
	return nil
}

func (ev *evaluation) results() []CandidateResult {
	out := make([]CandidateResult, len(ev.candidates))
	for i, cand := range ev.candidates {
		out[i] = CandidateResult{ID: cand.ID, Status: cand.Status, Reason: cand.Reason}
	}
	return out
}

// scenarioRuntimes derives per-test best runtimes for report annotations.
func scenarioRuntimes(orig, cand []sampling.TimingSample) []ScenarioRuntime {
	best := func(samples []sampling.TimingSample) map[testkit.TestID]time.Duration {
		m := make(map[testkit.TestID]time.Duration)
		for _, s := range samples {
			if cur, ok := m[s.Scenario]; !ok || s.Duration < cur {
				m[s.Scenario] = s.Duration
			}
		}
		return m
	}

	origBest := best(orig)
	candBest := best(cand)

	seen := make(map[testkit.TestID]bool)
	var order []testkit.TestID
	for _, s := range orig {
		if !seen[s.Scenario] {
			seen[s.Scenario] = true
			order = append(order, s.Scenario)
		}
	}

	out := make([]ScenarioRuntime, 0, len(order))
	for _, test := range order {
		out = append(out, ScenarioRuntime{
			Test:          test,
			OriginalBest:  origBest[test],
			CandidateBest: candBest[test],
		})
	}
	return out
}

// atomicWrite replaces path's content via a temp file and rename in the
// same directory, preserving the original file's permissions.
func atomicWrite(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".perfsmith-commit-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
