package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemReader_PeekAndAdvance(t *testing.T) {
	r := NewMemReaderString("ab")
	b, err := r.PeekByte()
	assert.NoError(t, err)
	assert.Equal(t, byte('a'), b)

	ru, size, err := r.ReadRune()
	assert.NoError(t, err)
	assert.Equal(t, 'a', ru)
	assert.Equal(t, 1, size)
	assert.Equal(t, 1, r.Offset())
}

func TestMemReader_MultibyteRune(t *testing.T) {
	r := NewMemReaderString("é")
	ru, size, err := r.PeekRune()
	assert.NoError(t, err)
	assert.Equal(t, 'é', ru)
	assert.True(t, size >= 1)
}

func TestMemReader_SeekAndSlice(t *testing.T) {
	r := NewMemReaderString("hello world")
	assert.NoError(t, r.Seek(6))
	s, err := r.Slice(6, 11)
	assert.NoError(t, err)
	assert.Equal(t, "world", s)
}

func TestMemReader_SeekOutOfRange(t *testing.T) {
	r := NewMemReaderString("hi")
	assert.Error(t, r.Seek(100))
	assert.Error(t, r.Seek(-1))
}

func TestMemReader_EOF(t *testing.T) {
	r := NewMemReaderString("")
	_, err := r.PeekByte()
	assert.Error(t, err)
	_, _, err = r.PeekRune()
	assert.Error(t, err)
}

func TestMemReader_NFCNormalizesInput(t *testing.T) {
	decomposed := "é" // e + combining acute
	r := NewMemReader([]byte(decomposed))
	assert.Less(t, r.Len(), len(decomposed))
}

func TestLineIndex_LocationAt(t *testing.T) {
	idx := NewLineIndex([]byte("ab\ncd\nef"))
	loc := idx.LocationAt(0)
	assert.Equal(t, 1, loc.Line)
	assert.Equal(t, 1, loc.Column)

	loc = idx.LocationAt(3)
	assert.Equal(t, 2, loc.Line)
	assert.Equal(t, 1, loc.Column)

	loc = idx.LocationAt(7)
	assert.Equal(t, 3, loc.Line)
	assert.Equal(t, 2, loc.Column)
}

func TestSpan_String(t *testing.T) {
	sp := NewSpan(Location{Line: 1, Column: 1}, Location{Line: 1, Column: 3})
	assert.Equal(t, "1:1..3", sp.String())

	sp2 := NewSpan(Location{Line: 1, Column: 1, Offset: 0}, Location{Line: 2, Column: 1, Offset: 4})
	assert.Equal(t, "1:1..2:1", sp2.String())
	assert.Equal(t, 4, sp2.Len())
}
