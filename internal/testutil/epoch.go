// Package testutil holds deterministic helpers shared across package
// tests: a fixed epoch generator and a resettable monotonic clock.
package testutil

// FixedEpochGenerator generates the same epoch token every time.
//
// This enables deterministic journal contents and golden report
// comparison: the same session with the same FixedEpochGenerator
// produces byte-identical journal rows.
//
// Unlike session.FixedGenerator which returns tokens in sequence, this
// generator always returns the same token. Useful when every target in a
// test run should share one epoch.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedEpochGenerator struct {
	token string
}

// NewFixedEpochGenerator creates a fixed epoch token generator.
// An empty token defaults to "test-epoch-default".
func NewFixedEpochGenerator(token string) *FixedEpochGenerator {
	if token == "" {
		token = "test-epoch-default"
	}
	return &FixedEpochGenerator{token: token}
}

// Generate returns the fixed epoch token.
// Implements session.EpochGenerator.
func (g *FixedEpochGenerator) Generate() string {
	return g.token
}
