package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Primitives(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Null{}, "null"},
		{"string", Str("hello"), `"hello"`},
		{"int", Int(42), "42"},
		{"negative int", Int(-7), "-7"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"float", Float(1.5), "1.5"},
		{"integral float", Float(2.0), "2"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_KeyOrdering(t *testing.T) {
	obj := Object{
		"b":   Int(2),
		"a":   Int(1),
		"aa":  Int(3),
		"A":   Int(0),
		"_az": Int(4),
	}

	got, err := MarshalCanonical(obj)
	require.NoError(t, err)

	// UTF-16 code unit order: uppercase before underscore before lowercase.
	assert.Equal(t, `{"A":0,"_az":4,"a":1,"aa":3,"b":2}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(Str("<a> & </a>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a> & </a>"`, string(got))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "é" as combining sequence (e + U+0301) must equal precomposed U+00E9.
	decomposed := Str("e\u0301")
	precomposed := Str("\u00e9")

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(precomposed)
	require.NoError(t, err)

	assert.Equal(t, string(b), string(a), "NFC normalization should unify both forms")
}

func TestMarshalCanonical_NestedDeterministic(t *testing.T) {
	v := Object{
		"outer": Object{"z": Bool(true), "a": Array{Int(1), Str("x"), Null{}}},
		"n":     Float(0.25),
	}

	first, err := MarshalCanonical(v)
	require.NoError(t, err)

	// Identical value marshals identically across calls (map iteration
	// order must not leak into the output).
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(v)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Float(nan()))
	assert.Error(t, err)
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestHash_StableAndDistinct(t *testing.T) {
	a := Object{"result": Int(5), "case": Str("ok")}
	b := Object{"case": Str("ok"), "result": Int(5)}
	c := Object{"result": Int(6), "case": Str("ok")}

	ha := MustHash(a)
	hb := MustHash(b)
	hc := MustHash(c)

	assert.Equal(t, ha, hb, "key order must not affect the hash")
	assert.NotEqual(t, ha, hc, "different values must hash differently")
	assert.Len(t, ha, 64, "hex-encoded SHA-256")
}

func TestSourceHash_DomainSeparated(t *testing.T) {
	src := []byte(`{"result":5}`)
	captured := MustHash(MustFromAny(map[string]any{"result": 5}))
	assert.NotEqual(t, captured, SourceHash(src))
}
