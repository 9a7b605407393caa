package session

import (
	"errors"
	"fmt"
)

// AbortError represents an unrecoverable failure for one target. An
// aborted target never partially applies a candidate; in an "all" run
// sibling targets proceed unaffected.
//
// Abort causes:
//   - Discovery failed: test collection errored or the tests root is gone
//   - Empty test subset: no tests exercise the target, nothing to verify
//   - Unstable baseline: the original's own outcomes did not reproduce
//   - Commit conflict: the target file changed on disk mid-session
type AbortError struct {
	// Code identifies the abort category.
	Code AbortCode

	// Message is a human-readable description.
	Message string

	// Target is the qualified function name of the affected target.
	Target string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, when one exists.
	Err error
}

// AbortCode categorizes session aborts.
type AbortCode string

const (
	// CodeDiscoveryFailed indicates test collection failed for the target.
	CodeDiscoveryFailed AbortCode = "DISCOVERY_FAILED"

	// CodeBaselineFailed indicates the original implementation's run
	// could not complete, so there is no oracle to compare against.
	CodeBaselineFailed AbortCode = "BASELINE_FAILED"

	// CodeEmptyTestSubset indicates no tests exercise the target.
	CodeEmptyTestSubset AbortCode = "EMPTY_TEST_SUBSET"

	// CodeUnstableBaseline indicates the original's outcomes changed
	// between verification runs.
	CodeUnstableBaseline AbortCode = "UNSTABLE_BASELINE"

	// CodeCommitConflict indicates the target source changed on disk
	// since the session started.
	CodeCommitConflict AbortCode = "COMMIT_CONFLICT"

	// CodeCancelled indicates cooperative cancellation stopped the
	// session before a terminal state was reached.
	CodeCancelled AbortCode = "CANCELLED"
)

// Error implements the error interface.
func (e *AbortError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s: %s (target=%s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsCommitConflict returns true if the error is a commit conflict abort.
// Uses errors.As to handle wrapped errors.
func IsCommitConflict(err error) bool {
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae.Code == CodeCommitConflict
	}
	return false
}

// IsAbort returns true for any session abort, wrapped or not.
func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

// NewCommitConflictError creates an AbortError for a changed target file.
func NewCommitConflictError(target, wantHash, gotHash string) *AbortError {
	return &AbortError{
		Code:    CodeCommitConflict,
		Message: "target source changed on disk since session start",
		Target:  target,
		Details: map[string]string{
			"expected_hash": wantHash,
			"actual_hash":   gotHash,
		},
	}
}
