package tokay

// classifyResult holds the two flags the Classifier computes per
// parselet (spec.md §4.1): whether it is provably consuming, and
// whether it is directly left-recursive.
type classifyResult struct {
	Consuming bool
	LeftRec   bool
}

// Classifier runs the fixed-point consuming analysis, and direct
// left-recursion detection, over the AST bodies of a set of named
// parselets (the `value_parselet` nodes collected by the compiler's
// first pass, before lowering). Grounded on oracle.go's worklist
// shape (`visited`/`worklist`, popping until empty, re-queuing
// neighbors whose classification may have changed) — generalized
// here from oracle.go's runtime-state exploration to a static,
// iterate-to-fixed-point dataflow pass over AST nodes, per spec.md
// §4.1's instruction to terminate "when no flag changes".
type Classifier struct {
	// bodies maps a parselet name to its `value_parselet` body node.
	bodies map[string]*Node
	result map[string]*classifyResult
}

func NewClassifier(bodies map[string]*Node) *Classifier {
	c := &Classifier{bodies: bodies, result: map[string]*classifyResult{}}
	for name := range bodies {
		c.result[name] = &classifyResult{}
	}
	return c
}

// Classify runs the fixed-point loop and returns, per parselet name,
// whether it is consuming and whether it is directly left-recursive.
func (c *Classifier) Classify() map[string]*classifyResult {
	for {
		changed := false
		for name, body := range c.bodies {
			r := c.result[name]
			consuming := c.nodeConsuming(body, true)
			if consuming != r.Consuming {
				r.Consuming = consuming
				changed = true
			}
			leftRec := c.reachesSelfFirst(name, body, true)
			if leftRec != r.LeftRec {
				r.LeftRec = leftRec
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return c.result
}

// nodeConsuming classifies one AST node under the current executable
// flag (false inside a peek/not lookahead, where nothing can ever
// consume observably). It implements spec.md §4.1's per-shape rules.
func (c *Classifier) nodeConsuming(n *Node, executable bool) bool {
	if n == nil || !executable {
		return false
	}
	switch n.Emit {
	case "value_token_any", "value_token_ccl", "value_token_match", "ccl", "char", "range":
		return true
	case "value_token_touch":
		// A touch still advances the reader; it is consuming exactly
		// like a match, it just never contributes to capture severity.
		return true
	case "identifier", "call":
		if callee, ok := c.calleeName(n); ok {
			if r, ok := c.result[callee]; ok {
				return r.Consuming
			}
		}
		return false
	case "sequence", "body", "main":
		for _, child := range n.Children {
			if c.nodeConsuming(child, true) {
				return true
			}
		}
		return false
	case "block":
		if len(n.Children) == 0 {
			return false
		}
		for _, alt := range n.Children {
			if !c.nodeConsuming(alt, true) {
				return false
			}
		}
		return true
	case "op_mod_pos":
		return c.nodeConsuming(n.Lone(), true)
	case "op_mod_kle", "op_mod_opt":
		return false
	case "op_mod_peek", "op_mod_not":
		return false
	case "op_mod_expect":
		// Open question in spec.md §9: this implementation classifies
		// `expect E` the same as `E`, since an Expect that is reached
		// at all is executed exactly like its body — only its failure
		// handling differs, which consuming analysis doesn't care
		// about. Recorded in DESIGN.md.
		return c.nodeConsuming(n.Lone(), true)
	case "value_parselet":
		return c.nodeConsuming(n.Lone(), true)
	default:
		// Anything else (control flow, arithmetic, literals, accept,
		// reject...) never itself consumes from a reader.
		for _, child := range n.Children {
			if c.nodeConsuming(child, true) {
				return true
			}
		}
		return false
	}
}

// calleeName extracts the statically-known target name of an
// `identifier`/`call` node, if any (dynamic callees are not resolved
// by the classifier and conservatively treated as non-consuming, per
// spec.md §4.1's "ambiguous classification conservatively defaults to
// non-consuming").
func (c *Classifier) calleeName(n *Node) (string, bool) {
	if n.Emit == "identifier" {
		if s, ok := n.Value.(String); ok {
			return string(s), true
		}
		return "", false
	}
	if n.Emit == "call" && len(n.Children) > 0 {
		return c.calleeName(n.Children[0])
	}
	return "", false
}

// reachesSelfFirst reports whether parselet `name`, from node n, can
// reach a call to itself occupying the first positional, executable
// action — i.e. direct left recursion (spec.md §4.1's "Left-recursion
// detection"). `first` tracks whether n is still in first position.
//
// This only ever matches a call naming `name` itself. It deliberately
// does not follow a callee into another parselet's body: indirect left
// recursion (A calls B calls A) is an explicit non-goal (spec.md §1),
// and chasing other bodies here would both misreport indirect cycles
// as direct and, without a visited set, recurse forever around a
// non-consuming reference cycle among unrelated rules (e.g. A: B; B: C;
// C: B) that have nothing to do with `name`.
func (c *Classifier) reachesSelfFirst(name string, n *Node, first bool) bool {
	if n == nil || !first {
		return false
	}
	switch n.Emit {
	case "identifier", "call":
		callee, ok := c.calleeName(n)
		return ok && callee == name
	case "sequence", "body", "main":
		for _, child := range n.Children {
			if c.reachesSelfFirst(name, child, true) {
				return true
			}
			if c.nodeConsuming(child, true) {
				// Once a consuming element has definitely executed,
				// nothing after it is in "first position" anymore for
				// the purpose of left-recursion detection.
				break
			}
			// A non-consuming element that didn't lead to recursion
			// still leaves "first position" open for the next one.
		}
		return false
	case "block":
		for _, alt := range n.Children {
			if c.reachesSelfFirst(name, alt, true) {
				return true
			}
		}
		return false
	case "op_mod_opt", "op_mod_kle", "op_mod_pos", "op_mod_expect":
		return c.reachesSelfFirst(name, n.Lone(), true)
	case "op_mod_peek", "op_mod_not":
		return false
	case "value_parselet":
		return c.reachesSelfFirst(name, n.Lone(), true)
	default:
		return false
	}
}
