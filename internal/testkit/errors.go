package testkit

import (
	"errors"
	"fmt"
)

// DiscoveryError means test collection failed for a target. Fatal for that
// target only: sibling targets in an "all" run are unaffected.
type DiscoveryError struct {
	// Framework is the framework identifier ("gotest", "pytest").
	Framework string

	// Root is the tests root that was being collected.
	Root string

	// Reason is a human-readable description.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("test discovery failed (%s, root=%s): %s: %v", e.Framework, e.Root, e.Reason, e.Err)
	}
	return fmt.Sprintf("test discovery failed (%s, root=%s): %s", e.Framework, e.Root, e.Reason)
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsDiscoveryError reports whether err is (or wraps) a *DiscoveryError.
func IsDiscoveryError(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}

// UnknownFrameworkError is returned when the configured framework
// identifier is not in the supported set.
type UnknownFrameworkError struct {
	Name string
}

func (e *UnknownFrameworkError) Error() string {
	return fmt.Sprintf("unknown test framework %q (supported: %v)", e.Name, SupportedFrameworks())
}
