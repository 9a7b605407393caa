package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual_Exact(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal ints", Int(5), Int(5), true},
		{"unequal ints", Int(5), Int(6), false},
		{"int vs float never equal", Int(5), Float(5.0), false},
		{"equal strings", Str("x"), Str("x"), true},
		{"null vs null", Null{}, Null{}, true},
		{"null vs zero", Null{}, Int(0), false},
		{"equal nested", Object{"a": Array{Int(1)}}, Object{"a": Array{Int(1)}}, true},
		{"array length mismatch", Array{Int(1)}, Array{Int(1), Int(2)}, false},
		{"missing key", Object{"a": Int(1)}, Object{"b": Int(1)}, false},
		{"extra key", Object{"a": Int(1)}, Object{"a": Int(1), "b": Int(2)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b, Tolerance{}))
		})
	}
}

func TestEqual_FloatEpsilon(t *testing.T) {
	tol := Tolerance{FloatEpsilon: 1e-9}

	assert.True(t, Equal(Float(1.0), Float(1.0+1e-10), tol))
	assert.False(t, Equal(Float(1.0), Float(1.0+1e-6), tol))

	// Zero epsilon means exact.
	assert.False(t, Equal(Float(1.0), Float(1.0+1e-10), Tolerance{}))
}

func TestEqual_VolatileFields(t *testing.T) {
	tol := Tolerance{VolatileFields: []string{"result.created_at"}}

	a := Object{"result": Object{"id": Int(1), "created_at": Str("2026-01-01T00:00:00Z")}}
	b := Object{"result": Object{"id": Int(1), "created_at": Str("2026-01-02T09:30:00Z")}}

	assert.True(t, Equal(a, b, tol), "volatile timestamp should be masked")

	// Non-volatile differences still fail.
	c := Object{"result": Object{"id": Int(2), "created_at": Str("2026-01-01T00:00:00Z")}}
	assert.False(t, Equal(a, c, tol))
}

func TestEqual_VolatileWildcard(t *testing.T) {
	tol := Tolerance{VolatileFields: []string{"items.*.handle"}}

	a := Object{"items": Array{
		Object{"name": Str("x"), "handle": Str("0x1f")},
		Object{"name": Str("y"), "handle": Str("0x2a")},
	}}
	b := Object{"items": Array{
		Object{"name": Str("x"), "handle": Str("0xff")},
		Object{"name": Str("y"), "handle": Str("0xee")},
	}}

	assert.True(t, Equal(a, b, tol))
}

func TestEqual_VolatileShapePreserved(t *testing.T) {
	// Masking keeps the field present: dropping it entirely is a mismatch.
	tol := Tolerance{VolatileFields: []string{"result.ts"}}

	a := Object{"result": Object{"id": Int(1), "ts": Int(100)}}
	b := Object{"result": Object{"id": Int(1)}}

	assert.False(t, Equal(a, b, tol))
}

func TestMask_DoesNotMutateInput(t *testing.T) {
	v := Object{"a": Object{"ts": Int(1)}}
	_ = Mask(v, []string{"a.ts"})
	assert.Equal(t, Int(1), v["a"].(Object)["ts"])
}

func TestMask_IndexPaths(t *testing.T) {
	v := Array{Int(1), Int(2), Int(3)}
	got := Mask(v, []string{"1"})
	assert.Equal(t, Array{Int(1), Masked, Int(3)}, got)
}

func TestFromAny_Numbers(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"i": 9007199254740993, "f": 0.5}`))
	assert.NoError(t, err)

	obj := v.(Object)
	assert.Equal(t, Int(9007199254740993), obj["i"], "large integers must not round through float64")
	assert.Equal(t, Float(0.5), obj["f"])
}
