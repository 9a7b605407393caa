package testkit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/roach88/perfsmith/internal/capture"
)

// Environment exported to framework shims before equivalence runs.
// Shims use these to pin clocks, UUIDs, and RNG seeds so that time-derived
// captured values compare equal across original and candidate.
const (
	EnvFixedEpoch = "PERFSMITH_FIXED_EPOCH"
	EnvRandSeed   = "PERFSMITH_RAND_SEED"

	// FixedEpoch is 2021-01-01 00:00:00 UTC, seconds.
	FixedEpoch = "1609459200"
	// RandSeed is the deterministic seed shims feed their RNGs.
	RandSeed = "42"
)

// resultMarker prefixes the JSON result lines shims print to stdout.
const resultMarker = "PERFSMITH_RESULT "

// Framework describes how to drive one supported test framework.
// Instances are immutable registry entries; look them up with
// LookupFramework.
type Framework struct {
	// Name is the framework identifier accepted on the CLI.
	Name string

	// DiscoverArgv builds the collection command, run from the workspace
	// root, that lists tests under testsRoot.
	DiscoverArgv func(testsRoot string) []string

	// RunArgv builds the command that executes exactly one test.
	RunArgv func(testsRoot string, test TestID) []string

	// ParseDiscovery extracts test identifiers from the collection
	// command's combined output. Order is not trusted; the adapter sorts.
	ParseDiscovery func(output []byte) []TestID
}

// frameworks is the enumerated registry. Declaration order is the order
// SupportedFrameworks reports.
var frameworks = []Framework{
	{
		Name: "gotest",
		DiscoverArgv: func(testsRoot string) []string {
			return []string{"go", "test", "-list", ".*", "./" + strings.TrimPrefix(testsRoot, "./") + "/..."}
		},
		RunArgv: func(testsRoot string, test TestID) []string {
			return []string{
				"go", "test",
				"-run", "^" + regexp.QuoteMeta(string(test)) + "$",
				"-count=1",
				"./" + strings.TrimPrefix(testsRoot, "./") + "/...",
			}
		},
		ParseDiscovery: parseGoTestList,
	},
	{
		Name: "pytest",
		DiscoverArgv: func(testsRoot string) []string {
			return []string{"python", "-m", "pytest", "--collect-only", "-q", testsRoot}
		},
		RunArgv: func(testsRoot string, test TestID) []string {
			return []string{"python", "-m", "pytest", "-q", string(test)}
		},
		ParseDiscovery: parsePytestCollect,
	},
}

// LookupFramework returns the registry entry for name.
func LookupFramework(name string) (Framework, error) {
	for _, fw := range frameworks {
		if fw.Name == name {
			return fw, nil
		}
	}
	return Framework{}, &UnknownFrameworkError{Name: name}
}

// SupportedFrameworks lists the accepted framework identifiers in
// declaration order.
func SupportedFrameworks() []string {
	names := make([]string, len(frameworks))
	for i, fw := range frameworks {
		names[i] = fw.Name
	}
	return names
}

// parseGoTestList extracts test names from `go test -list` output.
// The listing mixes test names with "ok <pkg>" summary lines; only Test*
// identifiers are kept.
func parseGoTestList(output []byte) []TestID {
	var ids []TestID
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.Contains(line, " ") {
			continue
		}
		if strings.HasPrefix(line, "Test") {
			ids = append(ids, TestID(line))
		}
	}
	return ids
}

// parsePytestCollect extracts node IDs from `pytest --collect-only -q`.
// Node IDs contain "::"; trailing summary lines do not.
func parsePytestCollect(output []byte) []TestID {
	var ids []TestID
	sc := bufio.NewScanner(bytes.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.Contains(line, "::") {
			ids = append(ids, TestID(line))
		}
	}
	return ids
}

// resultLine is the wire form of a shim marker line.
type resultLine struct {
	Test       string          `json:"test"`
	Verdict    string          `json:"verdict"`
	Value      json.RawMessage `json:"value,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationNS int64           `json:"duration_ns,omitempty"`
}

// ParseResultLine parses one shim marker line into a TestOutcome.
// Returns ok=false when the line is not a marker line.
func ParseResultLine(line, impl string) (TestOutcome, bool, error) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), resultMarker)
	if !found {
		return TestOutcome{}, false, nil
	}

	var rl resultLine
	if err := json.Unmarshal([]byte(rest), &rl); err != nil {
		return TestOutcome{}, true, fmt.Errorf("malformed result line: %w", err)
	}

	verdict := Verdict(rl.Verdict)
	switch verdict {
	case VerdictPass, VerdictFail, VerdictError, VerdictTimeout:
	default:
		return TestOutcome{}, true, fmt.Errorf("result line for %q has unknown verdict %q", rl.Test, rl.Verdict)
	}

	var captured capture.Value = capture.Null{}
	if len(rl.Value) > 0 {
		v, err := capture.DecodeJSON(rl.Value)
		if err != nil {
			return TestOutcome{}, true, fmt.Errorf("result line for %q: %w", rl.Test, err)
		}
		captured = v
	}

	return TestOutcome{
		Test:     TestID(rl.Test),
		Impl:     impl,
		Verdict:  verdict,
		Captured: captured,
		Summary:  rl.Error,
		Duration: time.Duration(rl.DurationNS),
	}, true, nil
}

// scanResultLines extracts every marker-line outcome from combined output.
func scanResultLines(output []byte, impl string) ([]TestOutcome, error) {
	var outcomes []TestOutcome
	sc := bufio.NewScanner(bytes.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024) // captured values can be large
	for sc.Scan() {
		outcome, ok, err := ParseResultLine(sc.Text(), impl)
		if err != nil {
			return nil, err
		}
		if ok {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes, sc.Err()
}

// sortTestIDs orders identifiers deterministically.
func sortTestIDs(ids []TestID) {
	slices.SortFunc(ids, func(a, b TestID) int {
		return strings.Compare(string(a), string(b))
	})
}
