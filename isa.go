package tokay

import "fmt"

// Instruction is one opcode in a Parselet's body. The ISA is
// implemented as a slice of interface values, one concrete struct
// per opcode (spec.md §6), grounded on the teacher's `vm_instructions.go`
// idiom of one struct-per-opcode implementing a shared interface —
// generalized here from the teacher's byte-packed, `SizeInBytes`-aware
// encoding (needed for its multi-backend codegen) to a plain in-memory
// slice, since a Program is only ever interpreted by this VM and never
// serialized to a wire format or handed to another codegen backend.
type Instruction interface {
	// Opcode names the instruction for disassembly and tracing.
	Opcode() string
	String() string
}

// Instructions is a Parselet body: a linear opcode vector.
type Instructions []Instruction

// ---- Value ----

type Push struct{ ConstIdx int }
type PushVoid struct{}
type PushTrue struct{}
type PushFalse struct{}
type PushNull struct{}
type Pop struct{}
type Copy struct{}
type Swap struct{}

// ---- Locals / capture / constants ----

type LoadLocal struct{ Idx int }
type StoreLocal struct{ Idx int }
type LoadGlobal struct{ Idx int }
type StoreGlobal struct{ Idx int }
type LoadCapture struct{ Idx int }
type LoadCaptureByName struct{ ConstIdx int }
type LoadConst struct{ Idx int }
type LoadBuiltin struct{ Idx int }

// LateLoad is emitted for an identifier the compiler could not
// resolve during its first pass; resolved against globals once the
// whole program has been compiled (spec.md §4.2's "deferred" lookup).
type LateLoad struct{ Name string }

// ---- Arithmetic / logic ----

type Add struct{}
type Sub struct{}
type Mul struct{}
type Div struct{}
type IDiv struct{}
type Mod struct{}
type Neg struct{}
type Not struct{}
type Eq struct{}
type Neq struct{}
type Lt struct{}
type Lte struct{}
type Gt struct{}
type Gte struct{}
type And struct{}
type Or struct{}

// ---- Control ----

type Jump struct{ Offset int }
type JumpIfTrue struct{ Offset int }
type JumpIfFalse struct{ Offset int }
type JumpIfVoid struct{ Offset int }

// ---- Grammar ----

// Call invokes parselet Idx in the program's parselet table with
// Arity values already pushed onto the value stack in declared order.
type Call struct {
	ParseletIdx int
	Arity       int
}

// CallDynamic invokes whatever Parselet/Builtin value sits Arity+1
// slots below the top of the value stack (a `call` on a computed
// callee, e.g. through a local holding a ParseletRef).
type CallDynamic struct{ Arity int }

// TokenMatch matches the Token value held in the constants pool at
// Idx against the reader at the current offset.
type TokenMatch struct{ TokenIdx int }

// Peek/Not/Expect/Repeat/PosClosure/KleClosure/Optional are the
// lookahead and repetition modifiers. Len counts the instructions of
// the sub-expression body that immediately follows the modifier in
// the instruction stream (spec.md §6's "Lengths after modifier
// opcodes" note) — chosen here over a Jump/Snapshot macro expansion
// because it keeps each modifier a single dispatch point the VM can
// snapshot/restore around without extra bookkeeping opcodes.
type Peek struct{ Len int }
type NotOp struct{ Len int }
type Expect struct{ Len int }

// Repeat is named for ISA fidelity with spec.md §6 but is never
// emitted by the compiler: the compiler always lowers `+`/`*`/`?` to
// PosClosure/KleClosure/Optional, so this exists only so a future
// emitter can address a generic "repeat the body Len instructions
// until it stops advancing" form without adding a new opcode.
type Repeat struct{ Len int }
type PosClosure struct{ Len int }
type KleClosure struct{ Len int }
type Optional struct{ Len int }

// Block lowers a `block` (alternation) node: Alts holds the
// instruction length of each alternative, laid out contiguously right
// after this opcode. Not one of spec.md §6's named opcodes — it is
// the encoding this implementation picked for the "either encoding is
// valid so long as semantics match §4.4" note, chosen because
// alternation's "stop at the first success" control flow is exactly
// the one modifier shape a flat Jump-table can't express without a
// bytecode jump that escapes the enclosing sub-expression's Len
// window — see DESIGN.md.
type Block struct{ Alts []int }

// CaptureMark records the reader offset a capture's tracked
// sub-expression started at, so the following PushCapture can compute
// a {start, end} span for the Capture struct (spec.md §3).
type CaptureMark struct{}

// ---- Result / scope ----

// Accept pops the current parselet's frame as success. Explicit is set
// when the source gave accept an argument (spec.md §4.4 "accept [v]");
// the popped value then wins outright. When Explicit is false — the
// implicit end-of-body accept every parselet gets, or a bare `accept`
// statement — the frame's own captures are aggregated (spec.md §4.4's
// severity rules) and used instead whenever any were recorded, falling
// back to the popped value only when the frame captured nothing at all
// (the plain-expression case, e.g. arithmetic with no grammar captures).
type Accept struct{ Explicit bool }
type Reject struct{}
type Next struct{}

// PushCapture closes the current slot as a capture with the given
// severity (spec.md §3 "Capture") and optional alias constant.
type PushCapture struct {
	Severity int
	AliasIdx int // -1 if unaliased
}

type Break struct{}
type Continue struct{}
type Exit struct{ Code int }

// TailRepeat re-executes the current parselet from its start offset
// (spec.md §4.4's `repeat` control statement) — distinct from the
// Repeat modifier above, which repeats a sub-expression, not the
// whole call.
type TailRepeat struct{}

// EmitAst wraps the aggregated capture value of the enclosing
// parselet into a node Dict {emit, children, ...} tagged with the
// name at ConstIdx (spec.md §4.4's "If the parselet carries an emit
// tag").
type EmitAst struct{ ConstIdx int }

type Return struct{}

// ---- Opcode()/String() ----

func (Push) Opcode() string              { return "Push" }
func (PushVoid) Opcode() string          { return "PushVoid" }
func (PushTrue) Opcode() string          { return "PushTrue" }
func (PushFalse) Opcode() string         { return "PushFalse" }
func (PushNull) Opcode() string          { return "PushNull" }
func (Pop) Opcode() string               { return "Pop" }
func (Copy) Opcode() string              { return "Copy" }
func (Swap) Opcode() string              { return "Swap" }
func (LoadLocal) Opcode() string         { return "LoadLocal" }
func (StoreLocal) Opcode() string        { return "StoreLocal" }
func (LoadGlobal) Opcode() string        { return "LoadGlobal" }
func (StoreGlobal) Opcode() string       { return "StoreGlobal" }
func (LoadCapture) Opcode() string       { return "LoadCapture" }
func (LoadCaptureByName) Opcode() string { return "LoadCaptureByName" }
func (LoadConst) Opcode() string         { return "LoadConst" }
func (LoadBuiltin) Opcode() string       { return "LoadBuiltin" }
func (LateLoad) Opcode() string          { return "LateLoad" }
func (Add) Opcode() string               { return "Add" }
func (Sub) Opcode() string               { return "Sub" }
func (Mul) Opcode() string               { return "Mul" }
func (Div) Opcode() string               { return "Div" }
func (IDiv) Opcode() string              { return "IDiv" }
func (Mod) Opcode() string               { return "Mod" }
func (Neg) Opcode() string               { return "Neg" }
func (Not) Opcode() string               { return "Not" }
func (Eq) Opcode() string                { return "Eq" }
func (Neq) Opcode() string               { return "Neq" }
func (Lt) Opcode() string                { return "Lt" }
func (Lte) Opcode() string               { return "Lte" }
func (Gt) Opcode() string                { return "Gt" }
func (Gte) Opcode() string               { return "Gte" }
func (And) Opcode() string               { return "And" }
func (Or) Opcode() string                { return "Or" }
func (Jump) Opcode() string              { return "Jump" }
func (JumpIfTrue) Opcode() string        { return "JumpIfTrue" }
func (JumpIfFalse) Opcode() string       { return "JumpIfFalse" }
func (JumpIfVoid) Opcode() string        { return "JumpIfVoid" }
func (Call) Opcode() string              { return "Call" }
func (CallDynamic) Opcode() string       { return "CallDynamic" }
func (TokenMatch) Opcode() string        { return "TokenMatch" }
func (Peek) Opcode() string              { return "Peek" }
func (NotOp) Opcode() string             { return "Not" }
func (Expect) Opcode() string            { return "Expect" }
func (Repeat) Opcode() string            { return "Repeat" }
func (PosClosure) Opcode() string        { return "PosClosure" }
func (KleClosure) Opcode() string        { return "KleClosure" }
func (Optional) Opcode() string          { return "Optional" }
func (Accept) Opcode() string            { return "Accept" }
func (Reject) Opcode() string            { return "Reject" }
func (Next) Opcode() string              { return "Next" }
func (PushCapture) Opcode() string       { return "PushCapture" }
func (Break) Opcode() string             { return "Break" }
func (Continue) Opcode() string          { return "Continue" }
func (Exit) Opcode() string              { return "Exit" }
func (EmitAst) Opcode() string           { return "EmitAst" }
func (Return) Opcode() string            { return "Return" }
func (Block) Opcode() string             { return "Block" }
func (CaptureMark) Opcode() string       { return "CaptureMark" }
func (TailRepeat) Opcode() string        { return "TailRepeat" }

func (i Push) String() string        { return fmt.Sprintf("Push %d", i.ConstIdx) }
func (PushVoid) String() string      { return "PushVoid" }
func (PushTrue) String() string      { return "PushTrue" }
func (PushFalse) String() string     { return "PushFalse" }
func (PushNull) String() string      { return "PushNull" }
func (Pop) String() string           { return "Pop" }
func (Copy) String() string          { return "Copy" }
func (Swap) String() string          { return "Swap" }
func (i LoadLocal) String() string   { return fmt.Sprintf("LoadLocal %d", i.Idx) }
func (i StoreLocal) String() string  { return fmt.Sprintf("StoreLocal %d", i.Idx) }
func (i LoadGlobal) String() string  { return fmt.Sprintf("LoadGlobal %d", i.Idx) }
func (i StoreGlobal) String() string { return fmt.Sprintf("StoreGlobal %d", i.Idx) }
func (i LoadCapture) String() string { return fmt.Sprintf("LoadCapture %d", i.Idx) }
func (i LoadCaptureByName) String() string {
	return fmt.Sprintf("LoadCaptureByName %d", i.ConstIdx)
}
func (i LoadConst) String() string   { return fmt.Sprintf("LoadConst %d", i.Idx) }
func (i LoadBuiltin) String() string { return fmt.Sprintf("LoadBuiltin %d", i.Idx) }
func (i LateLoad) String() string    { return fmt.Sprintf("LateLoad %q", i.Name) }
func (Add) String() string           { return "Add" }
func (Sub) String() string           { return "Sub" }
func (Mul) String() string           { return "Mul" }
func (Div) String() string           { return "Div" }
func (IDiv) String() string          { return "IDiv" }
func (Mod) String() string           { return "Mod" }
func (Neg) String() string           { return "Neg" }
func (Not) String() string           { return "Not" }
func (Eq) String() string            { return "Eq" }
func (Neq) String() string           { return "Neq" }
func (Lt) String() string            { return "Lt" }
func (Lte) String() string           { return "Lte" }
func (Gt) String() string            { return "Gt" }
func (Gte) String() string           { return "Gte" }
func (And) String() string           { return "And" }
func (Or) String() string            { return "Or" }
func (i Jump) String() string        { return fmt.Sprintf("Jump %+d", i.Offset) }
func (i JumpIfTrue) String() string  { return fmt.Sprintf("JumpIfTrue %+d", i.Offset) }
func (i JumpIfFalse) String() string { return fmt.Sprintf("JumpIfFalse %+d", i.Offset) }
func (i JumpIfVoid) String() string  { return fmt.Sprintf("JumpIfVoid %+d", i.Offset) }
func (i Call) String() string        { return fmt.Sprintf("Call %d, %d", i.ParseletIdx, i.Arity) }
func (i CallDynamic) String() string { return fmt.Sprintf("CallDynamic %d", i.Arity) }
func (i TokenMatch) String() string  { return fmt.Sprintf("TokenMatch %d", i.TokenIdx) }
func (i Peek) String() string        { return fmt.Sprintf("Peek %d", i.Len) }
func (i NotOp) String() string       { return fmt.Sprintf("Not %d", i.Len) }
func (i Expect) String() string      { return fmt.Sprintf("Expect %d", i.Len) }
func (i Repeat) String() string      { return fmt.Sprintf("Repeat %d", i.Len) }
func (i PosClosure) String() string  { return fmt.Sprintf("PosClosure %d", i.Len) }
func (i KleClosure) String() string  { return fmt.Sprintf("KleClosure %d", i.Len) }
func (i Optional) String() string    { return fmt.Sprintf("Optional %d", i.Len) }
func (i Accept) String() string {
	if i.Explicit {
		return "Accept explicit"
	}
	return "Accept"
}
func (Reject) String() string { return "Reject" }
func (Next) String() string   { return "Next" }
func (i PushCapture) String() string {
	if i.AliasIdx < 0 {
		return fmt.Sprintf("PushCapture sev=%d", i.Severity)
	}
	return fmt.Sprintf("PushCapture sev=%d alias=%d", i.Severity, i.AliasIdx)
}
func (Break) String() string     { return "Break" }
func (Continue) String() string  { return "Continue" }
func (i Exit) String() string    { return fmt.Sprintf("Exit %d", i.Code) }
func (i EmitAst) String() string { return fmt.Sprintf("EmitAst %d", i.ConstIdx) }
func (Return) String() string    { return "Return" }
func (i Block) String() string {
	return fmt.Sprintf("Block %v", i.Alts)
}
func (CaptureMark) String() string { return "CaptureMark" }
func (TailRepeat) String() string  { return "TailRepeat" }
