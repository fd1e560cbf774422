package tokay

import (
	"fmt"
)

// labelID names a not-yet-resolved jump target within one parselet's
// code vector, backpatched once its address is known. Grounded on
// the teacher's `ILabel` in `grammar_compiler.go`, generalized from a
// single global label table (the teacher only ever jumps within one
// flat program) to one label namespace per parselet.
type labelID int

// patch is one outstanding forward/backward reference: the
// instruction at idx should be rebuilt once label resolves, by
// calling build with the (already relative) jump offset.
type patch struct {
	idx   int
	label labelID
	build func(offset int) Instruction
}

// parseletBuilder accumulates one Parselet's code, constants, and
// locals while the compiler walks its body. Grounded on the
// teacher's flat `compiler` struct (`cursor`, `code`, `strings`,
// `stringsMap`, `definitionLabels`, `openAddrs`), split one-per-
// parselet here to support nesting.
type parseletBuilder struct {
	name      string
	generics  []Generic
	args      []Arg
	localIdx  map[string]int
	localCnt  int
	constIdx  map[string]int
	constants []Value
	code      []Instruction
	patches   []patch
	labels    map[labelID]int
	nextLabel labelID
	emitTag   string
	parent    *parseletBuilder
}

func newParseletBuilder(name string, parent *parseletBuilder) *parseletBuilder {
	return &parseletBuilder{
		name:     name,
		localIdx: map[string]int{},
		constIdx: map[string]int{},
		labels:   map[labelID]int{},
		parent:   parent,
	}
}

func (pb *parseletBuilder) emit(i Instruction) int {
	pb.code = append(pb.code, i)
	return len(pb.code) - 1
}

func (pb *parseletBuilder) newLabel() labelID {
	pb.nextLabel++
	return pb.nextLabel
}

// placeLabel marks l as resolving to the current end of the code
// vector; resolve patches the instructions waiting on it.
func (pb *parseletBuilder) placeLabel(l labelID) {
	pb.labels[l] = len(pb.code)
}

// emitJump appends a placeholder jump instruction targeting l and
// records it for backpatching once l (and every instruction emitted
// between now and then) is known.
func (pb *parseletBuilder) emitJump(l labelID, build func(offset int) Instruction) int {
	idx := pb.emit(build(0))
	pb.patches = append(pb.patches, patch{idx: idx, label: l, build: build})
	return idx
}

// resolve backpatches every pending jump now that all labels in this
// parselet have been placed.
func (pb *parseletBuilder) resolve() error {
	for _, p := range pb.patches {
		target, ok := pb.labels[p.label]
		if !ok {
			return fmt.Errorf("tokay: internal error: label %d never placed in %q", p.label, pb.name)
		}
		offset := target - (p.idx + 1)
		pb.code[p.idx] = p.build(offset)
	}
	return nil
}

func (pb *parseletBuilder) addConst(name string, v Value) int {
	if i, ok := pb.constIdx[name]; ok {
		return i
	}
	i := len(pb.constants)
	pb.constants = append(pb.constants, v)
	if name != "" {
		pb.constIdx[name] = i
	}
	return i
}

func (pb *parseletBuilder) addAnonConst(v Value) int {
	i := len(pb.constants)
	pb.constants = append(pb.constants, v)
	return i
}

func (pb *parseletBuilder) local(name string) (int, bool) {
	i, ok := pb.localIdx[name]
	return i, ok
}

func (pb *parseletBuilder) declareLocal(name string) int {
	if i, ok := pb.localIdx[name]; ok {
		return i
	}
	i := pb.localCnt
	pb.localIdx[name] = i
	pb.localCnt++
	return i
}

// Compiler lowers a `main`-rooted AST into a Program. Grounded on
// `grammar_compiler.go`'s `Compile` entry point and two-pass shape
// (collect definitions, then compile bodies, then backpatch call
// sites) — dispatch is a switch over Node.Emit instead of the
// teacher's Accept(Visitor), since the AST here is dict-shaped rather
// than a typed node hierarchy (spec.md §4.2).
type Compiler struct {
	config  *Config
	program *Program
	scopes  scopeStack

	// globals maps a root-scope assignment target to its slot in the
	// main parselet's locals array, reachable cross-frame via
	// LoadGlobal/StoreGlobal (spec.md §5 "Globals ... live in the
	// root parselet's frame").
	globals    map[string]int
	globalDefs *parseletBuilder

	// named holds every top-level `constant` binding (by name), a
	// `value_parselet` or any other value node, resolved in two passes so
	// mutually-recursive parselets (`E` calling `N` calling `E`) can
	// reference each other regardless of declaration order.
	named map[string]*Node

	classified map[string]*classifyResult

	builtins map[string]*Builtin

	errs []error
}

// Compile lowers root (expected emit == "main") into a Program.
func Compile(root *Node, cfg *Config, builtins map[string]*Builtin) (*Program, error) {
	if root.Emit != "main" {
		return nil, NewCompileError(root.Span, "root node must be emit=main, got %q", root.Emit)
	}
	c := &Compiler{
		config:   cfg,
		program:  NewProgram(),
		globals:  map[string]int{},
		named:    map[string]*Node{},
		builtins: builtins,
	}
	c.globalDefs = newParseletBuilder("main", nil)

	// Pass 1: collect every named `constant` binding so forward
	// references resolve regardless of source order.
	var mainBody []*Node
	for _, child := range root.Children {
		if child.Emit == "constant" {
			name, valueNode := constantParts(child)
			if name == "" {
				c.fail(child.Span, "constant binding without a name")
				continue
			}
			if _, dup := c.named[name]; dup {
				c.fail(child.Span, "duplicate constant %q", name)
				continue
			}
			c.named[name] = valueNode
		} else {
			mainBody = append(mainBody, child)
		}
	}

	// Run the fixed-point classifier over every named parselet body
	// before lowering (spec.md §4.1 runs ahead of §4.2's lowering).
	bodies := map[string]*Node{}
	for name, n := range c.named {
		if n.Emit == "value_parselet" {
			bodies[name] = n.Lone()
		}
	}
	c.classified = NewClassifier(bodies).Classify()

	// Reserve a Program slot per named parselet up front so Call
	// opcodes emitted while compiling one body can already reference
	// another not-yet-compiled one.
	reserved := map[string]int{}
	for name := range c.named {
		idx := c.program.Add(&Parselet{Name: name})
		reserved[name] = idx
	}

	// Pass 2: compile each named parselet's body into its reserved slot.
	for name, valueNode := range c.named {
		idx := reserved[name]
		p, err := c.compileNamedParselet(name, valueNode)
		if err != nil {
			c.errs = append(c.errs, err)
			continue
		}
		p.ID = idx
		c.program.Parselets[idx] = p
	}

	// The implicit root parselet: its body is whatever non-constant
	// children `main` has, its locals array backs global storage.
	mainPB := c.globalDefs
	c.scopes.push(&scope{kind: scopeParselet, pb: mainPB})
	if err := c.compileSequenceBody(mainPB, mainBody); err != nil {
		c.errs = append(c.errs, err)
	}
	mainPB.emit(Accept{})
	c.scopes.pop()
	if err := mainPB.resolve(); err != nil {
		c.errs = append(c.errs, err)
	}

	mainIdx := c.program.Add(&Parselet{
		Name:      "main",
		Locals:    mainPB.localCnt,
		Constants: mainPB.constants,
		Body:      mainPB.code,
		Consuming: true,
	})
	c.program.MainIdx = mainIdx

	if err := c.resolveLateLoads(); err != nil {
		c.errs = append(c.errs, err)
	}

	if len(c.errs) > 0 {
		return nil, c.errs[0]
	}
	return c.program, nil
}

func constantParts(n *Node) (string, *Node) {
	if s, ok := n.Value.(String); ok {
		return string(s), n.Lone()
	}
	if len(n.Children) == 2 {
		if s, ok := n.Children[0].Value.(String); ok {
			return string(s), n.Children[1]
		}
	}
	return "", nil
}

func (c *Compiler) fail(span Span, format string, args ...any) {
	c.errs = append(c.errs, NewCompileError(span, format, args...))
}

func (c *Compiler) compileNamedParselet(name string, n *Node) (*Parselet, error) {
	if n.Emit != "value_parselet" {
		// A bare constant value (not wrapped in value_parselet) is
		// still addressed like a zero-arg parselet, so Call stays the
		// one uniform invocation mechanism the ISA needs.
		pb := newParseletBuilder(name, nil)
		if err := c.compileExpr(pb, n); err != nil {
			return nil, err
		}
		pb.emit(Accept{})
		if err := pb.resolve(); err != nil {
			return nil, err
		}
		r := c.classified[name]
		return &Parselet{
			Name:      name,
			Locals:    pb.localCnt,
			Constants: pb.constants,
			Body:      pb.code,
			Consuming: r != nil && r.Consuming,
			LeftRec:   r != nil && r.LeftRec,
		}, nil
	}
	return c.compileParselet(name, n)
}

// compileParselet lowers a `value_parselet` node: its optional `gen`
// and `arg` children become generics/formal arguments, and its `body`
// child becomes the code vector (spec.md §4.2).
func (c *Compiler) compileParselet(name string, n *Node) (*Parselet, error) {
	pb := newParseletBuilder(name, c.scopes.currentParselet())
	var bodyNode *Node
	for _, child := range n.Children {
		switch child.Emit {
		case "gen":
			g := Generic{DefaultIdx: -1}
			if s, ok := child.Value.(String); ok {
				g.Name = string(s)
			}
			if def := child.Lone(); def != nil {
				idx, err := c.compileConstExpr(pb, def)
				if err != nil {
					return nil, err
				}
				g.DefaultIdx = idx
			}
			pb.generics = append(pb.generics, g)
			pb.declareLocal(g.Name)
		case "arg":
			a := Arg{DefaultIdx: -1}
			if s, ok := child.Value.(String); ok {
				a.Name = string(s)
			}
			if def := child.Lone(); def != nil {
				idx, err := c.compileConstExpr(pb, def)
				if err != nil {
					return nil, err
				}
				a.DefaultIdx = idx
			}
			pb.args = append(pb.args, a)
			pb.declareLocal(a.Name)
		case "body":
			bodyNode = child
		default:
			bodyNode = child
		}
	}
	if s, ok := n.Value.(String); ok {
		pb.emitTag = string(s)
	}

	c.scopes.push(&scope{kind: scopeParselet, pb: pb})
	if bodyNode != nil {
		if err := c.compileExpr(pb, bodyNode); err != nil {
			c.scopes.pop()
			return nil, err
		}
	} else {
		pb.emit(PushVoid{})
	}
	c.scopes.pop()

	if pb.emitTag != "" {
		idx := pb.addAnonConst(NewString(pb.emitTag))
		pb.emit(EmitAst{ConstIdx: idx})
	}
	pb.emit(Accept{})
	if err := pb.resolve(); err != nil {
		return nil, err
	}

	r := c.classified[name]
	return &Parselet{
		Name:      name,
		Generics:  pb.generics,
		Args:      pb.args,
		Locals:    pb.localCnt,
		Constants: pb.constants,
		Body:      pb.code,
		Consuming: r != nil && r.Consuming,
		LeftRec:   r != nil && r.LeftRec,
		Emit:      pb.emitTag,
	}, nil
}

// compileConstExpr compiles a small expression used only as a
// default-value slot and returns its index in pb's constants pool as
// a deferred "compiled sub-program" — represented here directly as a
// nested zero-arg Parselet reference so default evaluation reuses the
// same Call machinery as everything else.
func (c *Compiler) compileConstExpr(pb *parseletBuilder, n *Node) (int, error) {
	sub := newParseletBuilder(pb.name+"$default", pb)
	if err := c.compileExpr(sub, n); err != nil {
		return -1, err
	}
	sub.emit(Accept{})
	if err := sub.resolve(); err != nil {
		return -1, err
	}
	p := &Parselet{Name: sub.name, Constants: sub.constants, Body: sub.code}
	c.program.Add(p)
	return pb.addAnonConst(NewParseletRef(p)), nil
}

// compileSequenceBody compiles a flat list of statements as a
// sequence body (used for main's top-level body, which spec.md treats
// as an ordinary `sequence`/`body` for lowering purposes).
func (c *Compiler) compileSequenceBody(pb *parseletBuilder, nodes []*Node) error {
	if len(nodes) == 0 {
		pb.emit(PushVoid{})
		return nil
	}
	for i, n := range nodes {
		if err := c.compileExpr(pb, n); err != nil {
			return err
		}
		if i < len(nodes)-1 {
			pb.emit(Pop{})
		}
	}
	return nil
}

// compileExpr is the switch-on-emit dispatcher spec.md §4.2 calls for
// in place of the teacher's Accept(Visitor) double dispatch.
func (c *Compiler) compileExpr(pb *parseletBuilder, n *Node) error {
	if n == nil {
		pb.emit(PushVoid{})
		return nil
	}
	switch n.Emit {
	case "main", "block":
		return c.compileBlock(pb, n)
	case "body", "sequence":
		return c.compileSequence(pb, n)
	case "constant":
		// Nested constant bindings inside a parselet body: bind into
		// this parselet's own constants pool and fall through with Void.
		name, valueNode := constantParts(n)
		if name == "" {
			return NewCompileError(n.Span, "constant binding without a name")
		}
		idx, err := c.compileConstExpr(pb, valueNode)
		if err != nil {
			return err
		}
		pb.constIdx[name] = idx
		pb.emit(PushVoid{})
		return nil
	case "value_parselet":
		p, err := c.compileParselet(pb.name+"$anon", n)
		if err != nil {
			return err
		}
		idx := c.program.Add(p)
		pb.emit(Push{ConstIdx: pb.addAnonConst(NewParseletRef(p))})
		_ = idx
		return nil
	case "value_generic":
		return c.compileGenericBind(pb, n)
	case "identifier":
		return c.compileIdentifier(pb, n)
	case "value_int":
		pb.emit(Push{ConstIdx: pb.addAnonConst(n.Value)})
		return nil
	case "value_float":
		pb.emit(Push{ConstIdx: pb.addAnonConst(n.Value)})
		return nil
	case "value_string":
		pb.emit(Push{ConstIdx: pb.addAnonConst(n.Value)})
		return nil
	case "value_bool":
		if b, ok := n.Value.(Bool); ok && bool(b) {
			pb.emit(PushTrue{})
		} else {
			pb.emit(PushFalse{})
		}
		return nil
	case "value_null":
		pb.emit(PushNull{})
		return nil
	case "value_void":
		pb.emit(PushVoid{})
		return nil
	case "value_token_any", "anys":
		pb.emit(TokenMatch{TokenIdx: pb.addAnonConst(NewAnyToken())})
		return nil
	case "value_token_touch":
		return c.compileTokenLiteral(pb, n, TokenTouch)
	case "value_token_match":
		return c.compileTokenLiteral(pb, n, TokenLiteralMatch)
	case "value_token_ccl", "ccls":
		return c.compileTokenClass(pb, n)
	case "ccl", "ccl_neg", "range", "char":
		cs, err := c.compileCharset(n)
		if err != nil {
			return err
		}
		pb.emit(TokenMatch{TokenIdx: pb.addAnonConst(NewClassToken(cs))})
		return nil
	case "op_binary_add", "op_binary_sub", "op_binary_mul", "op_binary_div",
		"op_binary_idiv", "op_binary_mod":
		return c.compileBinary(pb, n)
	case "op_unary_neg":
		if err := c.compileExpr(pb, n.Lone()); err != nil {
			return err
		}
		pb.emit(Neg{})
		return nil
	case "op_unary_not":
		if err := c.compileExpr(pb, n.Lone()); err != nil {
			return err
		}
		pb.emit(Not{})
		return nil
	case "cmp_eq", "cmp_neq", "cmp_lt", "cmp_lte", "cmp_gt", "cmp_gte":
		return c.compileCompare(pb, n)
	case "op_logical_and":
		return c.compileLogical(pb, n, true)
	case "op_logical_or":
		return c.compileLogical(pb, n, false)
	case "op_mod_pos":
		return c.compileRepeat(pb, n, func(l int) Instruction { return PosClosure{Len: l} })
	case "op_mod_kle":
		return c.compileRepeat(pb, n, func(l int) Instruction { return KleClosure{Len: l} })
	case "op_mod_opt":
		return c.compileRepeat(pb, n, func(l int) Instruction { return Optional{Len: l} })
	case "op_mod_peek":
		return c.compileRepeat(pb, n, func(l int) Instruction { return Peek{Len: l} })
	case "op_mod_not":
		return c.compileRepeat(pb, n, func(l int) Instruction { return NotOp{Len: l} })
	case "op_mod_expect":
		return c.compileRepeat(pb, n, func(l int) Instruction { return Expect{Len: l} })
	case "op_if":
		return c.compileIf(pb, n)
	case "op_for", "op_loop":
		return c.compileLoop(pb, n)
	case "op_accept":
		explicit := n.Lone() != nil
		if explicit {
			if err := c.compileExpr(pb, n.Lone()); err != nil {
				return err
			}
		} else {
			pb.emit(PushVoid{})
		}
		pb.emit(Accept{Explicit: explicit})
		return nil
	case "op_reject":
		pb.emit(Reject{})
		return nil
	case "op_repeat":
		pb.emit(TailRepeat{})
		return nil
	case "op_next":
		pb.emit(Next{})
		return nil
	case "op_break":
		return c.compileBreakContinue(pb, n, true)
	case "op_continue":
		return c.compileBreakContinue(pb, n, false)
	case "op_exit":
		code := 0
		if child := n.Lone(); child != nil {
			if iv, ok := child.Value.(Int); ok {
				code = int(iv)
			}
		}
		pb.emit(Exit{Code: code})
		return nil
	case "op_push":
		return c.compileCapture(pb, n)
	case "op_assign":
		return c.compileAssign(pb, n)
	case "call":
		return c.compileCall(pb, n)
	default:
		return NewCompileError(n.Span, "unrecognized emit tag %q", n.Emit)
	}
}

// ---- blocks / sequences ----

// compileBlock lowers a `block` (alternation) node. Each alternative
// tries in order against the same starting offset/stack depths; the
// first to succeed wins and the rest are skipped. A plain Jump cannot
// express "skip past every remaining alternative" here, because the
// VM executes each modifier's body as a Len-bounded sub-range of the
// instruction stream and a Jump target escaping that range would fall
// outside it (see DESIGN.md) — so this emits the dedicated Block
// opcode instead, with the VM itself looping over alternatives and
// restoring state between failed attempts.
func (c *Compiler) compileBlock(pb *parseletBuilder, n *Node) error {
	if len(n.Children) == 0 {
		pb.emit(PushVoid{})
		return nil
	}
	if len(n.Children) == 1 {
		return c.compileExpr(pb, n.Children[0])
	}
	idx := pb.emit(Block{})
	alts := make([]int, 0, len(n.Children))
	for _, alt := range n.Children {
		start := len(pb.code)
		if err := c.compileExpr(pb, alt); err != nil {
			return err
		}
		alts = append(alts, len(pb.code)-start)
	}
	pb.code[idx] = Block{Alts: alts}
	return nil
}

func (c *Compiler) compileSequence(pb *parseletBuilder, n *Node) error {
	return c.compileSequenceBody(pb, n.Children)
}

// ---- identifiers ----

func (c *Compiler) compileIdentifier(pb *parseletBuilder, n *Node) error {
	name, _ := n.Value.(String)
	return c.loadName(pb, string(name), n.Span)
}

func (c *Compiler) loadName(pb *parseletBuilder, name string, span Span) error {
	if i, ok := pb.local(name); ok {
		pb.emit(LoadLocal{Idx: i})
		return nil
	}
	// Lexical capture by value from an enclosing parselet's constants.
	for anc := pb.parent; anc != nil; anc = anc.parent {
		if i, ok := anc.constIdx[name]; ok {
			idx := pb.addConst(name, anc.constants[i])
			pb.emit(LoadConst{Idx: idx})
			return nil
		}
	}
	if i, ok := pb.constIdx[name]; ok {
		pb.emit(LoadConst{Idx: i})
		return nil
	}
	if p, ok := c.program.Lookup(name); ok {
		pb.emit(Push{ConstIdx: pb.addAnonConst(NewParseletRef(p))})
		return nil
	}
	if i, ok := c.globals[name]; ok {
		pb.emit(LoadGlobal{Idx: i})
		return nil
	}
	if b, ok := c.builtins[name]; ok {
		pb.emit(Push{ConstIdx: pb.addAnonConst(NewBuiltinRef(b))})
		return nil
	}
	// Unresolved: still might be a forward-declared global (a
	// top-level assignment appearing later in source; named parselets
	// are all reserved before any body compiles, so Lookup already
	// finds them). Emit a deferred load, resolved in resolveLateLoads once the
	// whole program has been compiled (spec.md §4.2).
	pb.emit(LateLoad{Name: name})
	return nil
}

func (c *Compiler) resolveLateLoads() error {
	resolveOne := func(target *Parselet) error {
		addConst := func(v Value) int {
			target.Constants = append(target.Constants, v)
			return len(target.Constants) - 1
		}
		for i, instr := range target.Body {
			ll, ok := instr.(LateLoad)
			if !ok {
				continue
			}
			if p, ok := c.program.Lookup(ll.Name); ok {
				target.Body[i] = Push{ConstIdx: addConst(NewParseletRef(p))}
				continue
			}
			if i2, ok := c.globals[ll.Name]; ok {
				target.Body[i] = LoadGlobal{Idx: i2}
				continue
			}
			if b, ok := c.builtins[ll.Name]; ok {
				target.Body[i] = Push{ConstIdx: addConst(NewBuiltinRef(b))}
				continue
			}
			return NewCompileError(Span{}, "unresolved identifier %q", ll.Name)
		}
		return nil
	}
	for _, p := range c.program.Parselets {
		if err := resolveOne(p); err != nil {
			return err
		}
	}
	return nil
}

// ---- arithmetic / comparison / logic ----

func (c *Compiler) compileBinary(pb *parseletBuilder, n *Node) error {
	if len(n.Children) != 2 {
		return NewCompileError(n.Span, "%s requires exactly two children", n.Emit)
	}
	if err := c.compileExpr(pb, n.Children[0]); err != nil {
		return err
	}
	if err := c.compileExpr(pb, n.Children[1]); err != nil {
		return err
	}
	switch n.Emit {
	case "op_binary_add":
		pb.emit(Add{})
	case "op_binary_sub":
		pb.emit(Sub{})
	case "op_binary_mul":
		pb.emit(Mul{})
	case "op_binary_div":
		pb.emit(Div{})
	case "op_binary_idiv":
		pb.emit(IDiv{})
	case "op_binary_mod":
		pb.emit(Mod{})
	}
	return nil
}

func (c *Compiler) compileCompare(pb *parseletBuilder, n *Node) error {
	if len(n.Children) != 2 {
		return NewCompileError(n.Span, "%s requires exactly two children", n.Emit)
	}
	if err := c.compileExpr(pb, n.Children[0]); err != nil {
		return err
	}
	if err := c.compileExpr(pb, n.Children[1]); err != nil {
		return err
	}
	switch n.Emit {
	case "cmp_eq":
		pb.emit(Eq{})
	case "cmp_neq":
		pb.emit(Neq{})
	case "cmp_lt":
		pb.emit(Lt{})
	case "cmp_lte":
		pb.emit(Lte{})
	case "cmp_gt":
		pb.emit(Gt{})
	case "cmp_gte":
		pb.emit(Gte{})
	}
	return nil
}

// compileLogical implements short-circuit `and`/`or` via conditional
// jumps (spec.md §4.2).
func (c *Compiler) compileLogical(pb *parseletBuilder, n *Node, isAnd bool) error {
	if len(n.Children) != 2 {
		return NewCompileError(n.Span, "%s requires exactly two children", n.Emit)
	}
	if err := c.compileExpr(pb, n.Children[0]); err != nil {
		return err
	}
	end := pb.newLabel()
	pb.emit(Copy{})
	if isAnd {
		pb.emitJump(end, func(off int) Instruction { return JumpIfFalse{Offset: off} })
	} else {
		pb.emitJump(end, func(off int) Instruction { return JumpIfTrue{Offset: off} })
	}
	pb.emit(Pop{})
	if err := c.compileExpr(pb, n.Children[1]); err != nil {
		return err
	}
	pb.placeLabel(end)
	return nil
}

// ---- repetition / lookahead modifiers ----

func (c *Compiler) compileRepeat(pb *parseletBuilder, n *Node, build func(int) Instruction) error {
	body := n.Lone()
	if body == nil && len(n.Children) > 0 {
		body = n.Children[0]
	}
	idx := pb.emit(build(0))
	start := len(pb.code)
	if err := c.compileExpr(pb, body); err != nil {
		return err
	}
	length := len(pb.code) - start
	pb.code[idx] = build(length)
	return nil
}

// ---- control flow ----

func (c *Compiler) compileIf(pb *parseletBuilder, n *Node) error {
	if len(n.Children) < 2 {
		return NewCompileError(n.Span, "op_if requires a condition and a then-branch")
	}
	cond, then := n.Children[0], n.Children[1]
	var els *Node
	if len(n.Children) > 2 {
		els = n.Children[2]
	}
	if err := c.compileExpr(pb, cond); err != nil {
		return err
	}
	elseL := pb.newLabel()
	endL := pb.newLabel()
	pb.emitJump(elseL, func(off int) Instruction { return JumpIfFalse{Offset: off} })
	if err := c.compileExpr(pb, then); err != nil {
		return err
	}
	pb.emitJump(endL, func(off int) Instruction { return Jump{Offset: off} })
	pb.placeLabel(elseL)
	if els != nil {
		if err := c.compileExpr(pb, els); err != nil {
			return err
		}
	} else {
		pb.emit(PushVoid{})
	}
	pb.placeLabel(endL)
	return nil
}

func (c *Compiler) compileLoop(pb *parseletBuilder, n *Node) error {
	body := n.Lone()
	if body == nil && len(n.Children) > 0 {
		body = n.Children[len(n.Children)-1]
	}
	startL := pb.newLabel()
	breakL := pb.newLabel()
	pb.placeLabel(startL)
	c.scopes.push(&scope{kind: scopeLoop, breakL: breakL, contL: startL})
	if err := c.compileExpr(pb, body); err != nil {
		c.scopes.pop()
		return err
	}
	c.scopes.pop()
	pb.emit(Pop{})
	pb.emitJump(startL, func(off int) Instruction { return Jump{Offset: off} })
	pb.placeLabel(breakL)
	pb.emit(PushVoid{})
	return nil
}

func (c *Compiler) compileBreakContinue(pb *parseletBuilder, n *Node, isBreak bool) error {
	loop := c.scopes.currentLoop()
	if loop == nil {
		word := "continue"
		if isBreak {
			word = "break"
		}
		return NewCompileError(n.Span, "%s outside a loop", word)
	}
	if isBreak {
		pb.emit(Break{})
		pb.emitJump(loop.breakL, func(off int) Instruction { return Jump{Offset: off} })
	} else {
		pb.emit(Continue{})
		pb.emitJump(loop.contL, func(off int) Instruction { return Jump{Offset: off} })
	}
	return nil
}

// ---- captures ----

func (c *Compiler) compileCapture(pb *parseletBuilder, n *Node) error {
	severity := 3
	alias := -1
	if s, ok := n.Value.(Int); ok {
		severity = int(s)
	}
	var valueNode *Node
	for _, child := range n.Children {
		if child.Emit == "alias" {
			if s, ok := child.Value.(String); ok {
				alias = pb.addAnonConst(NewString(string(s)))
			}
			continue
		}
		valueNode = child
	}
	if valueNode != nil {
		if err := c.compileExpr(pb, valueNode); err != nil {
			return err
		}
	} else {
		pb.emit(PushVoid{})
	}
	pb.emit(PushCapture{Severity: severity, AliasIdx: alias})
	return nil
}

// ---- assignment ----

func (c *Compiler) compileAssign(pb *parseletBuilder, n *Node) error {
	if len(n.Children) != 2 {
		return NewCompileError(n.Span, "op_assign requires a target and a value")
	}
	target, value := n.Children[0], n.Children[1]
	if target.Emit != "identifier" {
		return NewCompileError(n.Span, "assignment to non-lvalue")
	}
	name, _ := target.Value.(String)
	if err := c.compileExpr(pb, value); err != nil {
		return err
	}
	pb.emit(Copy{})
	if i, ok := pb.local(string(name)); ok {
		pb.emit(StoreLocal{Idx: i})
		return nil
	}
	if pb == c.globalDefs {
		// A top-level assignment declares (or updates) a global.
		i, ok := c.globals[string(name)]
		if !ok {
			i = pb.declareLocal(string(name))
			c.globals[string(name)] = i
		}
		pb.emit(StoreGlobal{Idx: i})
		return nil
	}
	i := pb.declareLocal(string(name))
	pb.emit(StoreLocal{Idx: i})
	return nil
}

// ---- calls ----

func (c *Compiler) compileCall(pb *parseletBuilder, n *Node) error {
	if len(n.Children) == 0 {
		return NewCompileError(n.Span, "call requires a callee")
	}
	callee := n.Children[0]
	args := n.Children[1:]

	if callee.Emit == "identifier" {
		if name, ok := callee.Value.(String); ok {
			if p, ok := c.program.Lookup(string(name)); ok {
				for _, a := range args {
					if err := c.compileCallArg(pb, a); err != nil {
						return err
					}
				}
				pb.emit(Call{ParseletIdx: p.ID, Arity: len(args)})
				return nil
			}
		}
	}

	if err := c.compileExpr(pb, callee); err != nil {
		return err
	}
	for _, a := range args {
		if err := c.compileCallArg(pb, a); err != nil {
			return err
		}
	}
	pb.emit(CallDynamic{Arity: len(args)})
	return nil
}

func (c *Compiler) compileCallArg(pb *parseletBuilder, n *Node) error {
	switch n.Emit {
	case "callarg_named":
		return c.compileExpr(pb, n.Lone())
	case "callarg":
		return c.compileExpr(pb, n.Lone())
	default:
		return c.compileExpr(pb, n)
	}
}

// ---- generics ----

func (c *Compiler) compileGenericBind(pb *parseletBuilder, n *Node) error {
	if len(n.Children) == 0 {
		return NewCompileError(n.Span, "value_generic requires a template reference")
	}
	tmpl := n.Children[0]
	if err := c.compileExpr(pb, tmpl); err != nil {
		return err
	}
	for _, a := range n.Children[1:] {
		if err := c.compileExpr(pb, a); err != nil {
			return err
		}
	}
	pb.emit(CallDynamic{Arity: len(n.Children) - 1})
	return nil
}

// ---- tokens / charsets ----

func (c *Compiler) compileTokenLiteral(pb *parseletBuilder, n *Node, kind TokenKind) error {
	lit, _ := n.Value.(String)
	var tok *Token
	if kind == TokenTouch {
		tok = NewTouchToken(string(lit))
	} else {
		tok = NewMatchToken(string(lit))
	}
	idx := pb.addAnonConst(tok)
	pb.emit(TokenMatch{TokenIdx: idx})
	return nil
}

func (c *Compiler) compileTokenClass(pb *parseletBuilder, n *Node) error {
	target := n
	if lone := n.Lone(); lone != nil {
		target = lone
	}
	cs, err := c.compileCharset(target)
	if err != nil {
		return err
	}
	idx := pb.addAnonConst(NewClassToken(cs))
	pb.emit(TokenMatch{TokenIdx: idx})
	return nil
}

// compileCharset lowers ccl/ccl_neg/range/char nodes into a single
// compressed Charset (spec.md §4.2's "ccl / ccl_neg / range / char").
func (c *Compiler) compileCharset(n *Node) (*Charset, error) {
	cs := NewCharset()
	switch n.Emit {
	case "char":
		if s, ok := n.Value.(String); ok && len(s) > 0 {
			r := []rune(string(s))[0]
			cs.Add(r)
		}
	case "range":
		if len(n.Children) == 2 {
			lo, _ := n.Children[0].Value.(String)
			hi, _ := n.Children[1].Value.(String)
			if len(lo) > 0 && len(hi) > 0 {
				cs.AddRange([]rune(string(lo))[0], []rune(string(hi))[0])
			}
		}
	case "ccl", "ccl_neg":
		for _, child := range n.Children {
			sub, err := c.compileCharset(child)
			if err != nil {
				return nil, err
			}
			cs = Merge(cs, sub)
		}
		if n.Emit == "ccl_neg" {
			cs.Negate()
		}
	default:
		return nil, NewCompileError(n.Span, "not a charset node: %q", n.Emit)
	}
	return cs, nil
}
