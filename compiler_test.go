package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func callNode(name string) *Node {
	return NewNode("call").AddChild(identifierNode(name))
}

func constantNode(name string, value *Node) *Node {
	return NewNode("constant").WithValue(NewString(name)).AddChild(value)
}

func valueParselet(emitTag string, body *Node) *Node {
	n := NewNode("value_parselet")
	if emitTag != "" {
		n.Value = NewString(emitTag)
	}
	n.AddChild(body)
	return n
}

func TestCompile_SimpleMainAccepts(t *testing.T) {
	root := NewNode("main").AddChild(NewNode("value_int").WithValue(Int(42)))
	prog, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.NoError(t, err)
	v, err := Match(prog, []byte(""), NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, Int(42), v)
}

func TestCompile_RequiresMainEmit(t *testing.T) {
	root := NewNode("block")
	_, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.Error(t, err)
}

func TestCompile_NamedParseletWithEmitTag(t *testing.T) {
	leaf := constantNode("leaf", valueParselet("leaf", ccl("0123456789")))
	root := NewNode("main").AddChildren(leaf, callNode("leaf"))

	prog, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.NoError(t, err)

	p, ok := prog.Lookup("leaf")
	assert.True(t, ok)
	assert.Equal(t, "leaf", p.Emit)

	foundEmitAst := false
	for _, instr := range p.Body {
		if _, ok := instr.(EmitAst); ok {
			foundEmitAst = true
		}
	}
	assert.True(t, foundEmitAst, "leaf parselet should emit an EmitAst instruction")
}

func TestCompile_ArgWithDefault(t *testing.T) {
	arg := NewNode("arg").WithValue(NewString("n")).AddChild(NewNode("value_int").WithValue(Int(0)))
	body := identifierNode("n")
	greet := constantNode("greet", NewNode("value_parselet").AddChildren(arg, body))
	root := NewNode("main").AddChildren(greet, NewNode("value_void"))

	prog, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.NoError(t, err)

	p, ok := prog.Lookup("greet")
	assert.True(t, ok)
	assert.Len(t, p.Args, 1)
	assert.Equal(t, "n", p.Args[0].Name)
	assert.GreaterOrEqual(t, p.Args[0].DefaultIdx, 0)
}

func TestCompile_LeftRecursiveBlockOpcode(t *testing.T) {
	// E: E '+' N | N
	// N: [0-9]
	eBody := NewNode("block").AddChildren(
		NewNode("sequence").AddChildren(
			callNode("E"),
			tokenMatch("+"),
			callNode("N"),
		),
		callNode("N"),
	)
	nBody := ccl("0123456789")

	eConst := constantNode("E", valueParselet("", eBody))
	nConst := constantNode("N", valueParselet("", nBody))
	root := NewNode("main").AddChildren(eConst, nConst, callNode("E"))

	prog, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.NoError(t, err)

	e, ok := prog.Lookup("E")
	assert.True(t, ok)
	assert.True(t, e.Consuming)
	assert.True(t, e.LeftRec)

	var block *Block
	for _, instr := range e.Body {
		if b, ok := instr.(Block); ok {
			block = &b
		}
	}
	assert.NotNil(t, block)
	assert.Len(t, block.Alts, 2)

	n, ok := prog.Lookup("N")
	assert.True(t, ok)
	assert.True(t, n.Consuming)
	assert.False(t, n.LeftRec)
}

func TestCompile_BreakOutsideLoop(t *testing.T) {
	root := NewNode("main").AddChild(NewNode("op_break"))
	_, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "outside a loop")
}

func TestCompile_AssignToNonIdentifier(t *testing.T) {
	assign := NewNode("op_assign").AddChildren(
		NewNode("value_int").WithValue(Int(1)),
		NewNode("value_int").WithValue(Int(2)),
	)
	root := NewNode("main").AddChild(assign)
	_, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "non-lvalue")
}

func TestCompile_UnresolvedIdentifier(t *testing.T) {
	root := NewNode("main").AddChild(identifierNode("doesNotExist"))
	_, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved identifier")
}

func TestCompile_AssignDeclaresGlobalAndIdentifierLoadsIt(t *testing.T) {
	assign := NewNode("op_assign").AddChildren(
		identifierNode("x"),
		NewNode("value_int").WithValue(Int(9)),
	)
	root := NewNode("main").AddChildren(assign, identifierNode("x"))
	prog, err := Compile(root, NewConfig(), DefaultBuiltins())
	assert.NoError(t, err)

	v, err := Match(prog, []byte(""), NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, Int(9), v)
}
