package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharset_AddAndHas(t *testing.T) {
	cs := NewCharset()
	cs.Add('a')
	cs.AddRange('0', '9')
	assert.True(t, cs.Has('a'))
	assert.True(t, cs.Has('5'))
	assert.False(t, cs.Has('b'))
}

func TestCharset_MergeAdjacentRanges(t *testing.T) {
	cs := NewCharset()
	cs.AddRange('a', 'c')
	cs.AddRange('d', 'f') // adjacent, should merge into one range
	assert.True(t, cs.Has('a'))
	assert.True(t, cs.Has('d'))
	assert.True(t, cs.Has('f'))
	assert.False(t, cs.Has('g'))
}

func TestCharset_Negate(t *testing.T) {
	cs := NewCharsetFromString("abc")
	cs.Negate()
	assert.False(t, cs.Has('a'))
	assert.True(t, cs.Has('z'))
}

func TestCharset_Merge(t *testing.T) {
	a := NewCharsetFromString("ab")
	b := NewCharsetFromRanges(interval{Lo: '0', Hi: '9'})
	m := Merge(a, b)
	assert.True(t, m.Has('a'))
	assert.True(t, m.Has('5'))
	assert.False(t, m.Has('z'))
}

func TestCharset_AnyMatchesEverything(t *testing.T) {
	assert.True(t, anyCharset.Has('x'))
	assert.True(t, anyCharset.Has(0x1F600))
}
