package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashing.
// Version suffix enables future algorithm migration.
const (
	DomainCapture = "perfsmith/capture/v1"
	DomainSource  = "perfsmith/source/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes a content hash of a captured value via its canonical
// encoding. Two values that are structurally identical always hash equal.
func Hash(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("capture hash: %w", err)
	}
	return hashWithDomain(DomainCapture, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustHash(v Value) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}

// SourceHash computes the content hash of an implementation's source bytes.
// The session controller records this at target creation and re-checks it
// before commit: a mismatch means the file changed on disk mid-session.
func SourceHash(source []byte) string {
	return hashWithDomain(DomainSource, source)
}
