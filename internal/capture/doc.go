// Package capture models the runtime values captured from test executions.
//
// Every test run against an implementation (the original or a candidate)
// produces a captured summary: the return value or exception shape observed
// by the framework shim, decoded into the constrained Value model defined
// here. Equivalence checking compares these summaries structurally.
//
// # Canonical encoding
//
// Values serialize to canonical JSON (object keys sorted by UTF-16 code
// units, NFC-normalized strings, no HTML escaping) so that the same captured
// value always produces the same bytes and therefore the same hash. Unlike
// strict RFC 8785, floats are permitted: captured return values routinely
// carry measured or computed floating-point data, and they are formatted
// with shortest round-trip representation.
//
// # Tolerant equality
//
// Equal compares two values under a Tolerance: configured volatile field
// paths (object identities, timestamps, handles) are masked before
// comparison, and floats compare within an epsilon.
package capture
