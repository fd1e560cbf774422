package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestThread() *Thread {
	return NewThread(NewProgram(), NewMemReaderString(""), NewConfig())
}

func TestBuiltinChrOrd(t *testing.T) {
	th := newTestThread()
	v, err := builtinChr(th, []Value{Int('A')})
	assert.NoError(t, err)
	assert.Equal(t, NewString("A"), v)

	v, err = builtinOrd(th, []Value{NewString("A")})
	assert.NoError(t, err)
	assert.Equal(t, Int('A'), v)
}

func TestBuiltinInt(t *testing.T) {
	th := newTestThread()
	v, err := builtinInt(th, []Value{NewString(" 42 ")})
	assert.NoError(t, err)
	assert.Equal(t, Int(42), v)

	v, err = builtinInt(th, []Value{Float(3.9)})
	assert.NoError(t, err)
	assert.Equal(t, Int(3), v)

	v, err = builtinInt(th, []Value{Bool(true)})
	assert.NoError(t, err)
	assert.Equal(t, Int(1), v)

	_, err = builtinInt(th, []Value{NewString("nope")})
	assert.Error(t, err)
}

func TestBuiltinStrJoin(t *testing.T) {
	th := newTestThread()
	v, err := builtinStrJoin(th, []Value{NewList(NewString("a"), NewString("b"), NewString("c")), NewString("-")})
	assert.NoError(t, err)
	assert.Equal(t, NewString("a-b-c"), v)
}

func TestBuiltinSubstr(t *testing.T) {
	th := newTestThread()
	v, err := builtinSubstr(th, []Value{NewString("hello"), Int(1), Int(3)})
	assert.NoError(t, err)
	assert.Equal(t, NewString("el"), v)

	v, err = builtinSubstr(th, []Value{NewString("hello"), Int(2)})
	assert.NoError(t, err)
	assert.Equal(t, NewString("llo"), v)
}

func TestBuiltinAst(t *testing.T) {
	th := newTestThread()
	v, err := builtinAst(th, []Value{NewString("leaf"), Int(7)})
	assert.NoError(t, err)
	d, ok := v.(*Dict)
	assert.True(t, ok)
	emit, _ := d.Get("emit")
	assert.Equal(t, NewString("leaf"), emit)
	val, _ := d.Get("value")
	assert.Equal(t, Int(7), val)
}

func TestBuiltinAst_ListBecomesChildren(t *testing.T) {
	th := newTestThread()
	v, err := builtinAst(th, []Value{NewString("seq"), NewList(Int(1), Int(2))})
	assert.NoError(t, err)
	d := v.(*Dict)
	children, ok := d.Get("children")
	assert.True(t, ok)
	assert.Equal(t, NewList(Int(1), Int(2)), children)
}

func TestBuiltinError(t *testing.T) {
	th := newTestThread()
	_, err := builtinError(th, []Value{NewString("boom")})
	assert.Error(t, err)
	pe, ok := err.(ParseError)
	assert.True(t, ok)
	assert.Equal(t, "boom", pe.Message)
}

func TestBuiltinCharChars(t *testing.T) {
	th := newTestThread()
	v, err := builtinChar(th, []Value{NewString("x")})
	assert.NoError(t, err)
	tok, ok := v.(*Token)
	assert.True(t, ok)
	assert.Equal(t, TokenLiteralMatch, tok.TKind)

	v, err = builtinChars(th, []Value{NewString("abc")})
	assert.NoError(t, err)
	tok, ok = v.(*Token)
	assert.True(t, ok)
	assert.Equal(t, TokenClass, tok.TKind)
	assert.True(t, tok.Class.Has('b'))
	assert.False(t, tok.Class.Has('z'))
}

func TestDefaultBuiltins_RegistersAll(t *testing.T) {
	reg := DefaultBuiltins()
	for _, name := range []string{"ast", "error", "chr", "ord", "int", "str_join", "substr", "Char", "Chars"} {
		_, ok := reg[name]
		assert.True(t, ok, "missing builtin %q", name)
	}
}
