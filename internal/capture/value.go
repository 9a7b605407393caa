package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a sealed interface over the constrained captured-value types.
// Only Null, Str, Int, Float, Bool, Array, and Object implement it.
type Value interface {
	capturedValue() // Sealed - only these types implement it
}

// Null represents a JSON null in a captured summary.
// An explicit type keeps every captured value inside the sealed interface.
type Null struct{}

func (Null) capturedValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Str represents a captured string value.
type Str string

func (Str) capturedValue() {}

// Int represents a captured integer value. Always int64.
type Int int64

func (Int) capturedValue() {}

// Float represents a captured floating-point value.
//
// Floats are first-class here, unlike content-addressed identifiers where
// they would break determinism: captured return values are compared with an
// epsilon (see Equal), never used as map keys.
type Float float64

func (Float) capturedValue() {}

// Bool represents a captured boolean value.
type Bool bool

func (Bool) capturedValue() {}

// Array represents an ordered sequence of captured values.
type Array []Value

func (Array) capturedValue() {}

// Object represents a map of string keys to captured values.
// Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) capturedValue() {}

// FromAny converts a decoded JSON value (as produced by encoding/json with
// UseNumber) into a Value. Accepts nil, string, bool, json.Number, float64,
// int, int64, []any, map[string]any, and already-converted Values.
//
// json.Number is preferred at decode boundaries: integral numbers stay Int
// instead of collapsing to float64 and losing precision past 2^53.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Str(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		if i, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return Int(i), nil
		}
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q: %w", string(val), err)
		}
		return Float(f), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported captured type: %T", v)
	}
}

// MustFromAny is like FromAny but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFromAny(v any) Value {
	val, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return val
}

// DecodeJSON decodes raw JSON bytes into a Value, preserving integer
// precision via json.Number.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode captured JSON: %w", err)
	}
	return FromAny(raw)
}
