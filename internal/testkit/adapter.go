package testkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/roach88/perfsmith/internal/capture"
)

// CommandAdapter drives a test framework through subprocess invocations
// rooted in one workspace directory. One adapter is bound to exactly one
// implementation's workspace; concurrent candidate evaluations each get
// their own adapter over their own scratch copy.
type CommandAdapter struct {
	fw        Framework
	dir       string // workspace root all commands run from
	testsRoot string
	env       []string
	logger    *slog.Logger
}

// AdapterOption configures a CommandAdapter.
type AdapterOption func(*CommandAdapter)

// WithLogger sets the adapter's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) AdapterOption {
	return func(a *CommandAdapter) {
		a.logger = logger
	}
}

// WithExtraEnv appends environment entries ("KEY=value") to every
// subprocess. The determinism variables are always present; extras come
// after and may override them (used by sampling runs, where wall clocks
// must stay real).
func WithExtraEnv(env ...string) AdapterOption {
	return func(a *CommandAdapter) {
		a.env = append(a.env, env...)
	}
}

// NewCommandAdapter creates an adapter for the named framework, executing
// in dir with tests under testsRoot (relative to dir). dir must be a
// scratch workspace: the adapter assumes it owns nothing outside it and
// mutates nothing inside it.
func NewCommandAdapter(framework, dir, testsRoot string, opts ...AdapterOption) (*CommandAdapter, error) {
	fw, err := LookupFramework(framework)
	if err != nil {
		return nil, err
	}

	a := &CommandAdapter{
		fw:        fw,
		dir:       dir,
		testsRoot: testsRoot,
		logger:    slog.Default(),
		env: []string{
			EnvFixedEpoch + "=" + FixedEpoch,
			EnvRandSeed + "=" + RandSeed,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Discover enumerates every test under the target's tests root.
// Results are sorted for deterministic downstream iteration.
func (a *CommandAdapter) Discover(ctx context.Context, target Target) ([]TestID, error) {
	if _, err := os.Stat(a.path(target.TestsRoot)); err != nil {
		return nil, &DiscoveryError{
			Framework: a.fw.Name,
			Root:      target.TestsRoot,
			Reason:    "tests root unreadable",
			Err:       err,
		}
	}

	argv := a.fw.DiscoverArgv(target.TestsRoot)
	a.logger.Debug("discovering tests", "framework", a.fw.Name, "argv", argv, "dir", a.dir)

	out, err := a.execute(ctx, argv)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The framework binary itself is unusable.
			return nil, &DiscoveryError{
				Framework: a.fw.Name,
				Root:      target.TestsRoot,
				Reason:    "collection command failed to start",
				Err:       err,
			}
		}
		// Non-zero exit during collection is a framework collection error.
		return nil, &DiscoveryError{
			Framework: a.fw.Name,
			Root:      target.TestsRoot,
			Reason:    fmt.Sprintf("collection error: %s", firstLine(out)),
			Err:       err,
		}
	}

	ids := a.fw.ParseDiscovery(out)
	sortTestIDs(ids)

	a.logger.Debug("tests discovered", "framework", a.fw.Name, "count", len(ids))
	return ids, nil
}

// Run executes each test sequentially against this adapter's workspace,
// enforcing the per-test timeout. Tests run one process per test: ordering-
// sensitive side effects stay ordered, and a timeout kills only the one
// test's process.
func (a *CommandAdapter) Run(ctx context.Context, impl string, tests []TestID, timeout time.Duration) ([]TestOutcome, error) {
	outcomes := make([]TestOutcome, 0, len(tests))

	for _, test := range tests {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, err := a.runOne(ctx, impl, test, timeout)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// runOne executes a single test and classifies its result.
func (a *CommandAdapter) runOne(parent context.Context, impl string, test TestID, timeout time.Duration) (TestOutcome, error) {
	ctx := parent
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	argv := a.fw.RunArgv(a.testsRoot, test)
	start := time.Now()
	out, err := a.execute(ctx, argv)
	elapsed := time.Since(start)

	// Timeout wins over every other classification: the process was killed,
	// so its exit status and partial output are meaningless.
	if ctx.Err() == context.DeadlineExceeded && parent.Err() == nil {
		a.logger.Warn("test timed out", "test", test, "impl", impl, "timeout", timeout)
		return TestOutcome{
			Test:     test,
			Impl:     impl,
			Verdict:  VerdictTimeout,
			Captured: capture.Null{},
			Summary:  fmt.Sprintf("exceeded per-test timeout %s", timeout),
			Duration: elapsed,
		}, nil
	}
	if parent.Err() != nil {
		return TestOutcome{}, parent.Err()
	}

	// Prefer the shim's marker line: it carries the captured summary and a
	// more precise duration.
	shimOutcomes, parseErr := scanResultLines(out, impl)
	if parseErr != nil {
		return TestOutcome{}, fmt.Errorf("run %s: %w", test, parseErr)
	}
	for _, outcome := range shimOutcomes {
		if outcome.Test == test {
			if outcome.Duration == 0 {
				outcome.Duration = elapsed
			}
			return outcome, nil
		}
	}

	// No marker line: fall back to exit-status classification.
	verdict := VerdictPass
	summary := ""
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			verdict = VerdictFail
			summary = firstLine(out)
		} else {
			return TestOutcome{}, fmt.Errorf("run %s: %w", test, err)
		}
	}

	return TestOutcome{
		Test:     test,
		Impl:     impl,
		Verdict:  verdict,
		Captured: capture.Null{},
		Summary:  summary,
		Duration: elapsed,
	}, nil
}

// execute runs argv in the workspace with the adapter environment,
// returning combined output. Deadlines arrive through ctx.
func (a *CommandAdapter) execute(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = a.dir
	cmd.Env = append(os.Environ(), a.env...)
	cmd.WaitDelay = 5 * time.Second // SIGKILL stragglers that ignore context cancellation
	return cmd.CombinedOutput()
}

// path resolves a workspace-relative path.
func (a *CommandAdapter) path(rel string) string {
	if rel == "" || rel == "." {
		return a.dir
	}
	return a.dir + string(os.PathSeparator) + rel
}

// firstLine trims output to its first non-empty line for error summaries.
func firstLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
