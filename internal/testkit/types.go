package testkit

import (
	"context"
	"time"

	"github.com/roach88/perfsmith/internal/capture"
)

// TestID uniquely identifies one test within a framework's namespace,
// e.g. "TestCartTotal" (gotest) or "tests/test_cart.py::test_total" (pytest).
type TestID string

// Verdict classifies the result of running one test.
type Verdict string

const (
	// VerdictPass means the test completed and its assertions held.
	VerdictPass Verdict = "pass"
	// VerdictFail means the test completed and an assertion failed.
	VerdictFail Verdict = "fail"
	// VerdictError means the test could not complete (crash, collection
	// error, unhandled exception outside an assertion).
	VerdictError Verdict = "error"
	// VerdictTimeout means the per-test wall-clock timeout elapsed.
	// Downgraded from a thrown failure so evaluation continues.
	VerdictTimeout Verdict = "timeout"
)

// Target identifies one function under optimization together with the
// locations the adapter needs. Immutable once a session starts.
type Target struct {
	// Function is the qualified name, e.g. "cart.Total" or "pricing.Quote".
	Function string

	// File is the defining source file, relative to ModuleRoot.
	File string

	// ModuleRoot is the project root that scratch workspaces copy.
	ModuleRoot string

	// TestsRoot is the test tree given to the framework, relative to
	// ModuleRoot.
	TestsRoot string

	// Tests is the set of test identifiers exercising the function.
	// Empty means "discover at session start".
	Tests []TestID

	// SourceHash is the content hash of File at target creation, checked
	// again before commit (capture.SourceHash).
	SourceHash string
}

// TestOutcome is the result of running one test against one implementation.
type TestOutcome struct {
	Test     TestID
	Impl     string
	Verdict  Verdict
	Captured capture.Value // return value / exception summary, Null{} when the shim reported nothing
	Summary  string        // short failure/exception text for reports
	Duration time.Duration
}

// Adapter is the boundary to the external test framework.
//
// Discover enumerates every test reachable from the target; it fails with a
// *DiscoveryError if the test root is unreadable or the framework reports a
// collection error. Run executes each listed test sequentially against the
// adapter's implementation, enforcing the per-test timeout; a test that
// exceeds it yields a VerdictTimeout outcome rather than blocking the
// caller. Run returns an error only for adapter-level faults (unusable
// framework, workspace gone); per-test problems become outcomes.
type Adapter interface {
	Discover(ctx context.Context, target Target) ([]TestID, error)
	Run(ctx context.Context, impl string, tests []TestID, timeout time.Duration) ([]TestOutcome, error)
}
