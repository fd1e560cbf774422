package tokay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func identifierNode(name string) *Node {
	return NewNode("identifier").WithValue(NewString(name))
}

func ccl(chars string) *Node {
	n := NewNode("ccl")
	for _, r := range chars {
		n.AddChild(NewNode("char").WithValue(NewString(string(r))))
	}
	return n
}

func tokenMatch(lit string) *Node {
	return NewNode("value_token_match").WithValue(NewString(lit))
}

func tokenTouch(lit string) *Node {
	return NewNode("value_token_touch").WithValue(NewString(lit))
}

func TestClassifier_SimpleConsumingLeaf(t *testing.T) {
	digit := ccl("0123456789")
	digit.Emit = "value_token_ccl"
	bodies := map[string]*Node{"digit": digit}
	result := NewClassifier(bodies).Classify()
	assert.True(t, result["digit"].Consuming)
	assert.False(t, result["digit"].LeftRec)
}

func TestClassifier_DirectLeftRecursion(t *testing.T) {
	// E: E '+' N | N
	// N: [0-9]
	eBody := NewNode("block").AddChildren(
		NewNode("sequence").AddChildren(
			identifierNode("E"),
			tokenMatch("+"),
			identifierNode("N"),
		),
		identifierNode("N"),
	)
	nBody := ccl("0123456789")
	nBody.Emit = "value_token_ccl"

	bodies := map[string]*Node{"E": eBody, "N": nBody}
	result := NewClassifier(bodies).Classify()

	assert.True(t, result["E"].Consuming)
	assert.True(t, result["E"].LeftRec)
	assert.True(t, result["N"].Consuming)
	assert.False(t, result["N"].LeftRec)
}

func TestClassifier_SelfCallNotInFirstPositionIsNotLeftRecursive(t *testing.T) {
	// P: '(' P ')'
	pBody := NewNode("sequence").AddChildren(
		tokenTouch("("),
		identifierNode("P"),
		tokenTouch(")"),
	)
	bodies := map[string]*Node{"P": pBody}
	result := NewClassifier(bodies).Classify()

	assert.True(t, result["P"].Consuming)
	assert.False(t, result["P"].LeftRec)
}

func TestClassifier_LookaheadNeverConsumes(t *testing.T) {
	peek := NewNode("op_mod_peek").AddChild(tokenMatch("x"))
	bodies := map[string]*Node{"peekx": peek}
	result := NewClassifier(bodies).Classify()
	assert.False(t, result["peekx"].Consuming)
}

func TestClassifier_KleeneNeverProvablyConsumes(t *testing.T) {
	kle := NewNode("op_mod_kle").AddChild(tokenMatch("x"))
	bodies := map[string]*Node{"star": kle}
	result := NewClassifier(bodies).Classify()
	assert.False(t, result["star"].Consuming)
}

func TestClassifier_PositiveClosureInheritsBody(t *testing.T) {
	pos := NewNode("op_mod_pos").AddChild(tokenMatch("x"))
	bodies := map[string]*Node{"plus": pos}
	result := NewClassifier(bodies).Classify()
	assert.True(t, result["plus"].Consuming)
}

func TestClassifier_ExpectClassifiesLikeItsBody(t *testing.T) {
	exp := NewNode("op_mod_expect").AddChild(tokenMatch("x"))
	bodies := map[string]*Node{"expectx": exp}
	result := NewClassifier(bodies).Classify()
	assert.True(t, result["expectx"].Consuming)
}

func TestClassifier_NonConsumingReferenceCycleTerminates(t *testing.T) {
	// A: B; B: C; C: B -- a first-position reference cycle among rules
	// other than the one being classified. None of these ever consume,
	// so this would recurse forever without a bound on how far
	// reachesSelfFirst follows a callee into another parselet's body.
	bodies := map[string]*Node{
		"A": identifierNode("B"),
		"B": identifierNode("C"),
		"C": identifierNode("B"),
	}
	result := NewClassifier(bodies).Classify()
	assert.False(t, result["A"].LeftRec)
	assert.False(t, result["B"].LeftRec)
	assert.False(t, result["C"].LeftRec)
}

func TestClassifier_IndirectLeftRecursionIsNotDetected(t *testing.T) {
	// A: B; B: A -- indirect left recursion is an explicit non-goal
	// (spec.md §1): neither rule calls itself directly, so neither
	// should come back flagged, even though the pair is mutually
	// left-recursive in the fuller PEG sense.
	bodies := map[string]*Node{
		"A": identifierNode("B"),
		"B": identifierNode("A"),
	}
	result := NewClassifier(bodies).Classify()
	assert.False(t, result["A"].LeftRec)
	assert.False(t, result["B"].LeftRec)
}
