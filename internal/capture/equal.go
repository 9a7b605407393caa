package capture

import (
	"math"
	"strconv"
	"strings"
)

// Masked replaces values at volatile paths before comparison and in stored
// summaries. Using a visible marker (rather than deleting the field) keeps
// the object shape comparable: a candidate that drops the field entirely
// still mismatches.
const Masked = Str("<volatile>")

// Tolerance configures what structural equality forgives.
//
// The zero value is exact comparison: no volatile fields, floats compare
// bit-for-bit equal.
type Tolerance struct {
	// VolatileFields lists dot-separated paths whose values are masked
	// before comparison, e.g. "result.created_at" or "items.*.id".
	// A "*" segment matches any object key or array index.
	VolatileFields []string

	// FloatEpsilon is the maximum absolute difference under which two
	// floats compare equal. Zero means exact comparison.
	FloatEpsilon float64
}

// Equal reports whether two captured values are structurally equal under
// the tolerance. Int and Float never compare equal to each other: a
// candidate that changes a return type from int to float changed behavior.
func Equal(a, b Value, tol Tolerance) bool {
	return equalValue(Mask(a, tol.VolatileFields), Mask(b, tol.VolatileFields), tol.FloatEpsilon)
}

func equalValue(a, b Value, eps float64) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		if !ok {
			return false
		}
		if eps == 0 {
			return av == bv
		}
		return math.Abs(float64(av)-float64(bv)) <= eps
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalValue(av[i], bv[i], eps) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !equalValue(v, other, eps) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Mask returns a copy of v with every value at a volatile path replaced by
// the Masked marker. Paths that match nothing are ignored. The input value
// is never mutated.
func Mask(v Value, paths []string) Value {
	if len(paths) == 0 {
		return v
	}
	split := make([][]string, len(paths))
	for i, p := range paths {
		split[i] = strings.Split(p, ".")
	}
	return maskValue(v, split)
}

func maskValue(v Value, paths [][]string) Value {
	// A path consumed to its end masks this value entirely.
	for _, p := range paths {
		if len(p) == 0 {
			return Masked
		}
	}

	switch val := v.(type) {
	case Object:
		out := make(Object, len(val))
		for k, elem := range val {
			out[k] = maskValue(elem, descend(paths, k))
		}
		return out
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = maskValue(elem, descend(paths, indexKey(i)))
		}
		return out
	default:
		return v
	}
}

// descend returns the tails of paths whose head matches key (or "*").
func descend(paths [][]string, key string) [][]string {
	var out [][]string
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		if p[0] == key || p[0] == "*" {
			out = append(out, p[1:])
		}
	}
	return out
}

// indexKey addresses array indices as decimal path segments: "items.0.id".
func indexKey(i int) string {
	return strconv.Itoa(i)
}
