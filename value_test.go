package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_VoidNullDistinct(t *testing.T) {
	assert.NotEqual(t, TheVoid.Kind(), TheNull.Kind())
	assert.False(t, TheVoid.Truthy())
	assert.True(t, TheNull.Truthy())
}

func TestValue_Truthy(t *testing.T) {
	tests := []struct {
		name     string
		v        Value
		expected bool
	}{
		{"void is falsy", TheVoid, false},
		{"null is truthy", TheNull, true},
		{"zero int is falsy", Int(0), false},
		{"nonzero int is truthy", Int(1), true},
		{"empty string is falsy", NewString(""), false},
		{"nonempty string is truthy", NewString("a"), true},
		{"empty list is falsy", NewList(), false},
		{"nonempty list is truthy", NewList(Int(1)), true},
		{"empty dict is falsy", NewDict(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.v.Truthy())
		})
	}
}

func TestString_NFCNormalization(t *testing.T) {
	// "é" as decomposed (e + combining acute) must normalize to the
	// same String as the precomposed form.
	decomposed := NewString("é")
	precomposed := NewString("é")
	assert.Equal(t, precomposed, decomposed)
}

func TestDict_InsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("b", Int(2))
	d.Set("a", Int(1))
	d.Set("b", Int(3)) // update, shouldn't move position
	assert.Equal(t, []string{"b", "a"}, d.Keys())
	v, ok := d.Get("b")
	assert.True(t, ok)
	assert.Equal(t, Int(3), v)
	_, ok = d.Get("missing")
	assert.False(t, ok)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(TheVoid, TheVoid))
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Int(2)))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.True(t, Equal(NewString("ab"), NewString("ab")))
	assert.True(t, Equal(NewList(Int(1), Int(2)), NewList(Int(1), Int(2))))
	assert.False(t, Equal(NewList(Int(1)), NewList(Int(1), Int(2))))

	d1, d2 := NewDict(), NewDict()
	d1.Set("x", Int(1))
	d2.Set("x", Int(1))
	assert.True(t, Equal(d1, d2))
	d2.Set("y", Int(2))
	assert.False(t, Equal(d1, d2))
}

func TestParseletRef_GenericsDefault(t *testing.T) {
	p := &Parselet{Name: "digit"}
	ref := NewParseletRef(p, Int(1))
	assert.Equal(t, p, ref.Def)
	assert.Equal(t, []Value{Int(1)}, ref.Generics)
}

func TestToken_StringForms(t *testing.T) {
	assert.Equal(t, "Char", NewAnyToken().String())
	assert.Contains(t, NewTouchToken("x").String(), "touch")
	assert.Contains(t, NewMatchToken("x").String(), "match")
}
