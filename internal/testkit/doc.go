// Package testkit wraps external test frameworks behind a uniform adapter.
//
// The evaluation engine never talks to a framework's native invocation
// conventions directly. It asks an Adapter to:
//
//   - Discover the tests reachable from a target function
//   - Run a subset of those tests against one implementation, with a
//     per-test wall-clock timeout, reporting one TestOutcome per test
//
// # Framework shims
//
// Frameworks are an enumerated set (see SupportedFrameworks). Each entry
// knows how to build discovery and run command lines and how to parse the
// framework's output. Captured return-value summaries arrive on marker
// lines the framework shim prints to stdout:
//
//	PERFSMITH_RESULT {"test":"TestFoo","verdict":"pass","value":{...},"duration_ns":51300}
//
// A run without a marker line still yields an outcome: the process exit
// status decides pass/fail, and the captured summary is null. Equivalence
// checking is strictly stronger when shims are installed, but degraded
// verdict-only comparison remains sound.
//
// # Determinism environment
//
// Before equivalence runs the adapter exports a fixed epoch and random seed
// (EnvFixedEpoch, EnvRandSeed) so shims can pin clocks, UUIDs, and RNGs.
// Without this, time-derived captured values would never compare equal
// between the original and a candidate.
//
// The adapter executes inside a scratch workspace and never mutates the
// caller-visible source tree.
package testkit
