package tokay

import (
	"testing"

	"github.com/renstrom/dedent"
	"github.com/stretchr/testify/assert"
)

func TestCompileProgram_NilArgsUseDefaults(t *testing.T) {
	root := NewNode("main").AddChild(intLit(5))
	prog, err := CompileProgram(root, nil, nil)
	assert.NoError(t, err)
	assert.NotNil(t, prog.Main())
}

func TestRunString_CompilesAndMatchesInOneCall(t *testing.T) {
	root := NewNode("main").AddChild(binary("op_binary_add", intLit(2), intLit(3)))
	v, err := RunString(root, "", NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, Int(5), v)
}

func TestRunBytes_MatchesMultiLineFixture(t *testing.T) {
	// A line is any run of non-newline characters up to an EOL.
	line := NewNode("value_parselet").AddChild(
		NewNode("op_mod_pos").AddChild(
			NewNode("ccl_neg").AddChild(NewNode("char").WithValue(NewString("\n"))),
		),
	)
	lineConst := constantNode("Line", line)

	body := NewNode("sequence").AddChildren(
		callNode("Line"),
		NewNode("op_mod_pos").AddChild(
			NewNode("sequence").AddChildren(tokenTouch("\n"), callNode("Line")),
		),
	)
	root := NewNode("main").AddChildren(lineConst, body)

	fixture := dedent.Dedent(`
		first
		second
		third`)
	fixture = fixture[1:] // dedent keeps the leading newline from the backtick literal

	v, err := RunBytes(root, []byte(fixture), NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, TheVoid, v)
}

func TestMatch_ReusesCompiledProgramAcrossInputs(t *testing.T) {
	root := NewNode("main").AddChild(NewNode("ccl").AddChild(NewNode("char").WithValue(NewString("a"))))
	prog, err := CompileProgram(root, nil, nil)
	assert.NoError(t, err)

	v1, err := Match(prog, []byte("a"), NewConfig())
	assert.NoError(t, err)
	assert.Equal(t, NewString("a"), v1)

	_, err = Match(prog, []byte("b"), NewConfig())
	assert.Error(t, err)
}
