package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func binary(op string, a, b *Node) *Node {
	return NewNode(op).AddChildren(a, b)
}

func intLit(v int64) *Node {
	return NewNode("value_int").WithValue(Int(v))
}

func TestVM_ArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 = 7
	expr := binary("op_binary_add", intLit(1), binary("op_binary_mul", intLit(2), intLit(3)))
	root := NewNode("main").AddChild(expr)

	v, err := RunString(root, "", NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, Int(7), v)
}

func TestVM_EOLEquivalence(t *testing.T) {
	// EOL: ';' | '\r\n' | '\r' | '\n', longest alternatives first so
	// '\r\n' is not swallowed by a lone '\r'.
	eolBody := NewNode("block").AddChildren(
		tokenTouch(";"),
		tokenTouch("\r\n"),
		tokenTouch("\r"),
		tokenTouch("\n"),
	)
	eol := constantNode("EOL", valueParselet("", eolBody))
	root := NewNode("main").AddChildren(eol, callNode("EOL"))

	prog, err := CompileProgram(root, NewConfig(), nil)
	assert.NoError(t, err)

	for _, input := range []string{";", "\r\n", "\r", "\n"} {
		reader := NewMemReaderString(input)
		th := NewThread(prog, reader, NewConfig())
		_, err := th.Match()
		assert.NoError(t, err, "input %q should match", input)
		assert.Equal(t, len(input), th.curReader().Offset(), "input %q should be fully consumed", input)
	}
}

func TestVM_GreedyKleeneGivesBackIntoContinuation(t *testing.T) {
	// 'a'* "ab" on "aaab" (spec.md §8 scenario 3): the closure commits
	// all three 'a's first, but "ab" then has only "b" left to match
	// against and fails, so the closure gives one 'a' back and retries
	// — two 'a's followed by the literal "ab" matches the full input.
	seq := NewNode("sequence").AddChildren(
		NewNode("op_mod_kle").AddChild(tokenMatch("a")),
		tokenMatch("ab"),
	)
	root := NewNode("main").AddChild(seq)

	prog, err := CompileProgram(root, NewConfig(), nil)
	assert.NoError(t, err)

	input := "aaab"
	reader := NewMemReaderString(input)
	th := NewThread(prog, reader, NewConfig())
	_, err = th.Match()
	assert.NoError(t, err)
	assert.Equal(t, len(input), th.curReader().Offset(), "kleene give-back should let the full input match")
}

func TestVM_DirectLeftRecursion(t *testing.T) {
	// E: E '+' N | N
	// N: [0-9]
	eBody := NewNode("block").AddChildren(
		NewNode("sequence").AddChildren(
			callNode("E"),
			tokenTouch("+"),
			callNode("N"),
		),
		callNode("N"),
	)
	nBody := ccl("0123456789")

	eConst := constantNode("E", valueParselet("", eBody))
	nConst := constantNode("N", valueParselet("", nBody))
	root := NewNode("main").AddChildren(eConst, nConst, callNode("E"))

	prog, err := CompileProgram(root, NewConfig(), nil)
	assert.NoError(t, err)

	input := "1+2+3"
	reader := NewMemReaderString(input)
	th := NewThread(prog, reader, NewConfig())
	_, err = th.Match()
	assert.NoError(t, err)
	assert.Equal(t, len(input), th.curReader().Offset())
}

func TestVM_PushCaptureAggregatesSubstringThroughParselet(t *testing.T) {
	// N: push(sev=1) [0-9]+ -- a real (non-emit) parselet whose only
	// capture is a weak, severity-1 push must aggregate to the matched
	// substring on accept (spec.md §4.4 rule 4), not fall through to
	// Void the way a capture-free body's implicit accept would.
	digits := NewNode("op_mod_pos").AddChild(ccl("0123456789"))
	nBody := NewNode("op_push").WithValue(Int(1)).AddChild(digits)
	nConst := constantNode("N", valueParselet("", nBody))
	root := NewNode("main").AddChildren(nConst, callNode("N"))

	v, err := RunString(root, "123", NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, NewString("123"), v)
}

func TestVM_MultiplePushCapturesAggregateIntoList(t *testing.T) {
	// Pair: push 'a' push 'b' -- two severity-3 (default) push
	// captures in one parselet body aggregate into a List on accept
	// (spec.md §4.4 rule 2), not whatever the body's trailing
	// expression happened to leave on the value stack.
	pairBody := NewNode("sequence").AddChildren(
		NewNode("op_push").AddChild(tokenMatch("a")),
		NewNode("op_push").AddChild(tokenMatch("b")),
	)
	pairConst := constantNode("Pair", valueParselet("", pairBody))
	root := NewNode("main").AddChildren(pairConst, callNode("Pair"))

	v, err := RunString(root, "ab", NewConfig())
	assert.NoError(t, err)
	list, ok := v.(*List)
	assert.True(t, ok, "expected a *List, got %T", v)
	if ok {
		assert.Equal(t, []Value{NewString("a"), NewString("b")}, list.Items)
	}
}

func TestVM_LookaheadPeekDoesNotConsume(t *testing.T) {
	seq := NewNode("sequence").AddChildren(
		NewNode("op_mod_peek").AddChild(tokenMatch("x")),
		tokenMatch("x"),
	)
	root := NewNode("main").AddChild(seq)

	v, err := RunString(root, "x", NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, NewString("x"), v)
}

func TestVM_ExpectBypassesBacktracking(t *testing.T) {
	seq := NewNode("sequence").AddChildren(
		tokenMatch("a"),
		NewNode("op_mod_expect").AddChild(tokenMatch("b")),
	)
	root := NewNode("main").AddChild(seq)

	_, err := RunString(root, "ac", NewConfig())
	assert.Error(t, err)
	_, ok := err.(ParseError)
	assert.True(t, ok, "expect-failure should surface as a ParseError, not a silent reject")
}
