package session

import (
	"sync"

	"github.com/google/uuid"
)

// EpochGenerator generates unique session-epoch tokens. Every sample and
// outcome recorded during one target evaluation carries the same epoch,
// so journal rows group per session and stale rows are distinguishable.
//
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type EpochGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 epoch tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, making tokens
// sortable by creation time, which keeps journal rows in session order
// under a plain string sort.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined epoch tokens for testing.
// Enables deterministic journal contents and golden report comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics when all tokens have been consumed, to catch test
// misconfiguration fast.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
