package tokay

import (
	"fmt"
	"strings"
)

// Thread is one execution of a compiled Program against a bound
// reader set (spec.md §3 "Thread"). Generalizes the teacher's
// `virtualMachine` from a single flat greedy-PEG dispatch loop over
// one Input to a multi-stack interpreter carrying a value stack, a
// frame stack, a capture stack, and a thread-local memoization Cache
// (spec.md §4.3) — needed because a Tokay parselet is also an
// ordinary scripting function with locals and arithmetic, not only a
// grammar rule.
type Thread struct {
	program *Program

	readers []Reader
	reader  int // index of the active reader in readers

	values   []Value
	frames   []*Frame
	captures []Capture

	cache *Cache

	config *Config
	abort  bool
}

// NewThread binds program to a single reader. The unexported readers
// field holds the reader set (spec.md §3); this package offers no
// method to add further readers, so a Thread always has exactly one.
func NewThread(program *Program, reader Reader, cfg *Config) *Thread {
	return &Thread{
		program: program,
		readers: []Reader{reader},
		cache:   NewCache(),
		config:  cfg,
	}
}

// Abort requests cooperative cancellation, honored at the next call
// boundary (spec.md §5).
func (th *Thread) Abort() { th.abort = true }

func (th *Thread) curReader() Reader { return th.readers[th.reader] }

func (th *Thread) spanAt(offset int) Span {
	loc := th.curReader().Location(offset)
	return Span{Start: loc, End: loc}
}

// ---- control signals ----
//
// Accept/Exit/TailRepeat/Next all need to unwind past however many
// nested modifier scopes (Peek/Expect/.../Block alternatives) the
// recursive exec() happens to be sitting inside when they fire. Each
// rides the ordinary Go error return out of exec() as a distinct type
// so no intermediate modifier needs to know about it explicitly — a
// modifier only ever special-cases rejectSignal (see errors.go) and
// passes any other error straight through.

type acceptSignal struct{ value Value }

func (acceptSignal) Error() string { return "tokay: accept" }

type exitSignal struct{ Code int }

func (exitSignal) Error() string { return "tokay: exit" }

// repeatSignal implements spec.md §4.4's `repeat` control statement:
// re-execute the current parselet from its start offset.
type repeatSignal struct{}

func (repeatSignal) Error() string { return "tokay: repeat" }

// nextSignal implements `next`: advance one character and re-enter the
// nearest enclosing loop/alternation. The character is already
// consumed by the time this is returned (see the Next case in exec).
type nextSignal struct{}

func (nextSignal) Error() string { return "tokay: next" }

// ---- value/snapshot helpers ----

func (th *Thread) push(v Value) { th.values = append(th.values, v) }

func (th *Thread) pop() Value {
	n := len(th.values) - 1
	v := th.values[n]
	th.values = th.values[:n]
	return v
}

func (th *Thread) top() Value { return th.values[len(th.values)-1] }

func (th *Thread) popN(n int) []Value {
	if n == 0 {
		return nil
	}
	start := len(th.values) - n
	out := append([]Value(nil), th.values[start:]...)
	th.values = th.values[:start]
	return out
}

func (th *Thread) takeSnapshot() snapshot {
	return snapshot{
		offset:       th.curReader().Offset(),
		valueDepth:   len(th.values),
		captureDepth: len(th.captures),
	}
}

func (th *Thread) restore(s snapshot) {
	th.curReader().Seek(s.offset)
	th.values = th.values[:s.valueDepth]
	th.captures = th.captures[:s.captureDepth]
}

func (th *Thread) rootFrame(f *Frame) *Frame {
	if f.Root == nil {
		return f
	}
	return f.Root
}

// ---- entry point ----

// Match runs the program's main parselet against the bound reader and
// returns its aggregated result (spec.md §4.4).
func (th *Thread) Match() (Value, error) {
	main := th.program.Main()
	if main == nil {
		return nil, NewRuntimeError(0, "program has no main parselet")
	}
	v, err := th.invoke(main, nil, nil)
	if err == nil {
		return v, nil
	}
	switch e := err.(type) {
	case exitSignal:
		if e.Code != 0 {
			return nil, NewRuntimeError(th.curReader().Offset(), "exit(%d)", e.Code)
		}
		return TheVoid, nil
	case nextSignal:
		return nil, NewRuntimeError(th.curReader().Offset(), "next used outside of a loop or alternation")
	}
	if isReject(err) {
		return nil, ParseError{Message: "no match", Span: th.spanAt(th.curReader().Offset())}
	}
	return nil, err
}

// ---- packrat dispatch ----

// invoke runs p with the given generics/args, applying spec.md §4.3's
// memoization and left-recursion seed-growing protocol when p is
// consuming. Non-consuming parselets go straight to call: reusing
// cached results across offsets buys nothing when a parselet never
// advances the reader, and would only complicate the key.
func (th *Thread) invoke(p *Parselet, generics, args []Value) (Value, error) {
	if th.abort {
		return nil, Aborted
	}
	if !p.Consuming {
		return th.call(p, generics, args)
	}

	readerIdx := th.reader
	offset := th.curReader().Offset()
	key := memoKey{parseletID: p.ID, readerID: readerIdx, offset: offset}

	// A Hit returns instantly; an InProgress entry is the seed a
	// recursive self-call during left-recursion growth must see — both
	// cases are handled identically here, since either way the entry
	// already names the outcome this call should report.
	if entry := th.cache.Lookup(key); entry != nil {
		if entry.reject {
			return nil, rejectSignal{Message: fmt.Sprintf("%s failed (memoized)", p.Name), Parselet: p.Name, Span: th.spanAt(offset)}
		}
		th.curReader().Seek(entry.end)
		return entry.value, nil
	}

	if !p.LeftRec {
		th.cache.BeginSeed(key)
		v, err := th.call(p, generics, args)
		if err != nil {
			if isReject(err) {
				th.cache.Finalize(key, true, offset, nil, 0)
			} else {
				th.cache.Remove(key)
			}
			return nil, err
		}
		th.cache.Finalize(key, false, th.curReader().Offset(), v, 0)
		return v, nil
	}

	// Direct left recursion (spec.md §4.3): install a rejecting seed so
	// the first, innermost recursive self-call fails immediately,
	// letting the non-recursive alternative(s) establish a base case.
	// Then keep re-trying from the same start offset, growing the seed
	// each time a re-try consumes more than the best result so far, and
	// stop once a re-try fails to advance further.
	th.cache.BeginSeed(key)
	v, err := th.call(p, generics, args)
	if err != nil {
		if !isReject(err) {
			th.cache.Remove(key)
			return nil, err
		}
		th.cache.Finalize(key, true, offset, nil, 0)
		return nil, err
	}
	best, bestEnd := v, th.curReader().Offset()
	th.cache.GrowSeed(key, bestEnd, best, 0)
	for {
		th.curReader().Seek(offset)
		v2, err2 := th.call(p, generics, args)
		if err2 != nil || th.curReader().Offset() <= bestEnd {
			break
		}
		best, bestEnd = v2, th.curReader().Offset()
		th.cache.GrowSeed(key, bestEnd, best, 0)
	}
	th.cache.Finalize(key, false, bestEnd, best, 0)
	th.curReader().Seek(bestEnd)
	return best, nil
}

// call runs one activation of p to completion: it owns the frame push/
// pop and interprets the three ways a body can end (falling off the
// end, an explicit accept/reject, or a tail repeat).
func (th *Thread) call(p *Parselet, generics, args []Value) (Value, error) {
	if th.abort {
		return nil, Aborted
	}

	var root *Frame
	if n := len(th.frames); n > 0 {
		root = th.rootFrame(th.frames[n-1])
	}
	f := newFrame(p, th.curReader().Offset(), len(th.captures), th.reader, root)
	if err := th.bindParams(f, p, generics, args); err != nil {
		return nil, err
	}

	th.frames = append(th.frames, f)
	_, err := th.exec(f, 0, len(p.Body))
	th.frames = th.frames[:len(th.frames)-1]

	if err == nil {
		// Every compiled parselet body ends with an explicit Accept, so
		// this is only reached by a pathologically empty body; treat it
		// as accepting the aggregated captures, matching spec.md §4.4's
		// "aggregated captures if omitted".
		val, aggErr := aggregateCaptures(th.captures[f.CaptureBase:], f.StartOffset, th.curReader().Offset(), th.curReader())
		th.captures = th.captures[:f.CaptureBase]
		if aggErr != nil {
			return nil, aggErr
		}
		return val, nil
	}

	switch e := err.(type) {
	case acceptSignal:
		th.captures = th.captures[:f.CaptureBase]
		return e.value, nil
	case repeatSignal:
		th.curReader().Seek(f.StartOffset)
		th.captures = th.captures[:f.CaptureBase]
		return th.call(p, generics, args)
	default:
		if isReject(err) {
			th.captures = th.captures[:f.CaptureBase]
		}
		return nil, err
	}
}

// bindParams fills f.Locals[0:len(Generics)+len(Args)] from the
// supplied values, falling back to each parameter's default-value
// sub-parselet (compiler.go's compileConstExpr) when the caller
// supplied fewer values than declared.
func (th *Thread) bindParams(f *Frame, p *Parselet, generics, args []Value) error {
	for i, g := range p.Generics {
		if i < len(generics) {
			f.Locals[i] = generics[i]
		} else if g.DefaultIdx >= 0 {
			v, err := th.evalDefault(p, g.DefaultIdx)
			if err != nil {
				return err
			}
			f.Locals[i] = v
		}
	}
	base := len(p.Generics)
	for i, a := range p.Args {
		idx := base + i
		if i < len(args) {
			f.Locals[idx] = args[i]
		} else if a.DefaultIdx >= 0 {
			v, err := th.evalDefault(p, a.DefaultIdx)
			if err != nil {
				return err
			}
			f.Locals[idx] = v
		}
	}
	return nil
}

func (th *Thread) evalDefault(parent *Parselet, idx int) (Value, error) {
	ref, ok := parent.Constants[idx].(*ParseletRef)
	if !ok {
		return nil, NewRuntimeError(th.curReader().Offset(), "default value slot %d is not a parselet", idx)
	}
	return th.call(ref.Def, ref.Generics, nil)
}

// ---- dispatch loop ----

// exec runs the instructions of f.Parselet.Body in [ip, end) until it
// either runs off the end of its own range (returns (end, nil)) or an
// instruction returns a control signal/error. ip/end both index the
// SAME flat Body slice regardless of nesting depth, so Jump offsets —
// computed once, at compile time, against that flat addressing — stay
// valid no matter how many modifier scopes deep the current call is;
// only a control-flow shape that needs to escape its own enclosing Len
// window (alternation) gets its own opcode (Block) instead of a Jump,
// see isa.go and compiler.go's compileBlock.
func (th *Thread) exec(f *Frame, ip, end int) (int, error) {
	body := f.Parselet.Body
	for ip < end {
		if traceLevel > 0 {
			traceOpcode(th, f, ip, body[ip])
		}
		switch in := body[ip].(type) {
		case Push:
			th.push(f.Parselet.Constants[in.ConstIdx])
			ip++
		case PushVoid:
			th.push(TheVoid)
			ip++
		case PushTrue:
			th.push(Bool(true))
			ip++
		case PushFalse:
			th.push(Bool(false))
			ip++
		case PushNull:
			th.push(TheNull)
			ip++
		case Pop:
			th.pop()
			ip++
		case Copy:
			th.push(th.top())
			ip++
		case Swap:
			n := len(th.values)
			th.values[n-1], th.values[n-2] = th.values[n-2], th.values[n-1]
			ip++

		case LoadLocal:
			th.push(f.Locals[in.Idx])
			ip++
		case StoreLocal:
			f.Locals[in.Idx] = th.pop()
			ip++
		case LoadGlobal:
			th.push(th.rootFrame(f).Locals[in.Idx])
			ip++
		case StoreGlobal:
			th.rootFrame(f).Locals[in.Idx] = th.pop()
			ip++
		case LoadCapture:
			th.push(th.loadCapture(f, in.Idx))
			ip++
		case LoadCaptureByName:
			name, _ := f.Parselet.Constants[in.ConstIdx].(String)
			th.push(th.loadCaptureByName(f, string(name)))
			ip++
		case LoadConst:
			th.push(f.Parselet.Constants[in.Idx])
			ip++
		case LoadBuiltin:
			th.push(f.Parselet.Constants[in.Idx])
			ip++
		case LateLoad:
			return ip, NewRuntimeError(th.curReader().Offset(), "unresolved identifier %q reached the VM", in.Name)

		case Add, Sub, Mul, Div, IDiv, Mod:
			if err := th.arith(body[ip]); err != nil {
				return ip, err
			}
			ip++
		case Neg:
			switch v := th.pop().(type) {
			case Int:
				th.push(-v)
			case Float:
				th.push(-v)
			default:
				return ip, NewRuntimeError(th.curReader().Offset(), "unary - requires a numeric operand, got %s", v.Type())
			}
			ip++
		case Not:
			v := th.pop()
			th.push(Bool(!v.Truthy()))
			ip++
		case Eq:
			b, a := th.pop(), th.pop()
			th.push(Bool(Equal(a, b)))
			ip++
		case Neq:
			b, a := th.pop(), th.pop()
			th.push(Bool(!Equal(a, b)))
			ip++
		case Lt, Lte, Gt, Gte:
			if err := th.compare(body[ip]); err != nil {
				return ip, err
			}
			ip++
		case And:
			b, a := th.pop(), th.pop()
			th.push(Bool(a.Truthy() && b.Truthy()))
			ip++
		case Or:
			b, a := th.pop(), th.pop()
			th.push(Bool(a.Truthy() || b.Truthy()))
			ip++

		case Jump:
			ip = ip + 1 + in.Offset
		case JumpIfTrue:
			if th.top().Truthy() {
				ip = ip + 1 + in.Offset
			} else {
				ip++
			}
		case JumpIfFalse:
			if !th.top().Truthy() {
				ip = ip + 1 + in.Offset
			} else {
				ip++
			}
		case JumpIfVoid:
			if _, isVoid := th.top().(Void); isVoid {
				ip = ip + 1 + in.Offset
			} else {
				ip++
			}

		case Call:
			if err := th.doCall(in.ParseletIdx, in.Arity); err != nil {
				return ip, err
			}
			ip++
		case CallDynamic:
			if err := th.doCallDynamic(in.Arity); err != nil {
				return ip, err
			}
			ip++
		case TokenMatch:
			if err := th.doTokenMatch(f, in.TokenIdx); err != nil {
				return ip, err
			}
			ip++

		case Peek:
			if err := th.doPeek(f, ip, in.Len); err != nil {
				return ip, err
			}
			ip += 1 + in.Len
		case NotOp:
			if err := th.doNot(f, ip, in.Len); err != nil {
				return ip, err
			}
			ip += 1 + in.Len
		case Expect:
			if err := th.doExpect(f, ip, in.Len); err != nil {
				return ip, err
			}
			ip += 1 + in.Len
		case Repeat:
			// Never emitted by the compiler (see isa.go); handled the
			// same as PosClosure so the opcode still does something
			// sensible if a future emitter addresses it directly.
			return th.doPosClosure(f, ip, in.Len, end)
		case PosClosure:
			return th.doPosClosure(f, ip, in.Len, end)
		case KleClosure:
			return th.doKleClosure(f, ip, in.Len, end)
		case Optional:
			if err := th.doOptional(f, ip, in.Len); err != nil {
				return ip, err
			}
			ip += 1 + in.Len
		case Block:
			nip, err := th.doBlock(f, ip, in.Alts)
			if err != nil {
				return ip, err
			}
			ip = nip
		case CaptureMark:
			f.Marks = append(f.Marks, th.curReader().Offset())
			ip++

		case Accept:
			v := th.pop()
			if !in.Explicit {
				if agg, ok, err := th.aggregateIfCaptured(f); err != nil {
					return ip, err
				} else if ok {
					v = agg
				}
			}
			return ip, acceptSignal{value: v}
		case Reject:
			return ip, rejectSignal{Message: fmt.Sprintf("%s rejected", f.Parselet.Name), Parselet: f.Parselet.Name, Span: th.spanAt(th.curReader().Offset())}
		case Next:
			r := th.curReader()
			_, size, rerr := r.PeekRune()
			if rerr != nil {
				return ip, rejectSignal{Message: "next: end of input", Parselet: f.Parselet.Name, Span: th.spanAt(r.Offset())}
			}
			r.Advance(size)
			return ip, nextSignal{}
		case PushCapture:
			th.doPushCapture(f, in)
			ip++
		case Break:
			ip++ // marker only; the Jump emitted right after does the work
		case Continue:
			ip++
		case Exit:
			return ip, exitSignal{Code: in.Code}
		case EmitAst:
			if err := th.doEmitAst(f, in); err != nil {
				return ip, err
			}
			ip++
		case Return:
			v := th.pop()
			if agg, ok, err := th.aggregateIfCaptured(f); err != nil {
				return ip, err
			} else if ok {
				v = agg
			}
			return ip, acceptSignal{value: v}
		case TailRepeat:
			return ip, repeatSignal{}

		default:
			return ip, NewRuntimeError(th.curReader().Offset(), "unhandled opcode %s", body[ip].Opcode())
		}
	}
	return ip, nil
}

// ---- calls ----

func (th *Thread) doCall(parseletIdx, arity int) error {
	if th.abort {
		return Aborted
	}
	p := th.program.Parselets[parseletIdx]
	args := th.popN(arity)
	v, err := th.invoke(p, nil, args)
	if err != nil {
		return err
	}
	th.push(v)
	return nil
}

// doCallDynamic invokes whatever Parselet/Builtin value sits below the
// popped arguments. A callee that already carries bound generics
// (produced by an earlier `value_generic` bind) uses those; otherwise
// the leading popped values fill the callee's generic slots before the
// rest become ordinary arguments (spec.md §4.2's generic templates).
func (th *Thread) doCallDynamic(arity int) error {
	if th.abort {
		return Aborted
	}
	args := th.popN(arity)
	callee := th.pop()
	switch c := callee.(type) {
	case *ParseletRef:
		generics := c.Generics
		callArgs := args
		if len(generics) == 0 && len(c.Def.Generics) > 0 {
			n := len(c.Def.Generics)
			if n > len(args) {
				n = len(args)
			}
			generics = args[:n]
			callArgs = args[n:]
		}
		v, err := th.invoke(c.Def, generics, callArgs)
		if err != nil {
			return err
		}
		th.push(v)
		return nil
	case *BuiltinRef:
		v, err := c.Def.Fn(th, args)
		if err != nil {
			return err
		}
		th.push(v)
		return nil
	default:
		return NewRuntimeError(th.curReader().Offset(), "value of type %s is not callable", callee.Type())
	}
}

// ---- terminal matching ----

// doTokenMatch always pushes exactly one value on success, even for
// TokenTouch (which pushes Void) — compileCapture always expects its
// value-node's compileExpr to leave one value on the stack.
func (th *Thread) doTokenMatch(f *Frame, idx int) error {
	tok, _ := f.Parselet.Constants[idx].(*Token)
	r := th.curReader()
	offset := r.Offset()
	switch tok.TKind {
	case TokenAny:
		ru, size, err := r.PeekRune()
		if err != nil {
			return rejectSignal{Message: "unexpected end of input", Parselet: f.Parselet.Name, Span: th.spanAt(offset)}
		}
		r.Advance(size)
		th.push(NewString(string(ru)))
		return nil
	case TokenClass:
		ru, size, err := r.PeekRune()
		if err != nil || !tok.Class.Has(ru) {
			return rejectSignal{Message: fmt.Sprintf("expected %s", tok.Class), Parselet: f.Parselet.Name, Span: th.spanAt(offset)}
		}
		r.Advance(size)
		th.push(NewString(string(ru)))
		return nil
	default: // TokenTouch, TokenLiteralMatch
		lit := tok.Literal
		s, err := r.Slice(offset, offset+len(lit))
		if err != nil || s != lit {
			return rejectSignal{Message: fmt.Sprintf("expected %q", lit), Parselet: f.Parselet.Name, Span: th.spanAt(offset)}
		}
		r.Advance(len(lit))
		if tok.TKind == TokenTouch {
			th.push(TheVoid)
		} else {
			th.push(NewString(lit))
		}
		return nil
	}
}

// ---- modifiers ----

func (th *Thread) doPeek(f *Frame, ip, length int) error {
	snap := th.takeSnapshot()
	_, err := th.exec(f, ip+1, ip+1+length)
	th.restore(snap)
	if err != nil {
		return err
	}
	th.push(TheVoid)
	return nil
}

func (th *Thread) doNot(f *Frame, ip, length int) error {
	snap := th.takeSnapshot()
	_, err := th.exec(f, ip+1, ip+1+length)
	th.restore(snap)
	if err == nil {
		return rejectSignal{Message: fmt.Sprintf("%s: not-predicate matched", f.Parselet.Name), Parselet: f.Parselet.Name, Span: th.spanAt(snap.offset)}
	}
	if isReject(err) {
		th.push(TheVoid)
		return nil
	}
	return err
}

// doExpect runs the body without a snapshot (a success keeps its
// consumption) but converts an ordinary reject into a ParseError,
// which bypasses backtracking entirely (spec.md §4.4/§7).
func (th *Thread) doExpect(f *Frame, ip, length int) error {
	_, err := th.exec(f, ip+1, ip+1+length)
	if err == nil {
		return nil
	}
	if isReject(err) {
		return ParseError{Message: fmt.Sprintf("expected match in %s", f.Parselet.Name), Parselet: f.Parselet.Name, Span: th.spanAt(th.curReader().Offset())}
	}
	return err
}

// doPosClosure and doKleClosure both implement spec.md §8 scenario 3:
// a closure greedily commits every repetition it can, but if the rest
// of the enclosing range then fails to match, it gives back one
// repetition at a time and retries the remainder from there, down to
// its minimum rep count (one for `+`, zero for `*`). This is why they
// take `end` and own running the continuation themselves instead of
// returning to exec's loop to let it step past them — a PEG closure
// commits forward, but unlike the teacher's single-pass repetition it
// is not ALLOWED to leave the rest of the sequence permanently
// stranded without a character to match against (see DESIGN.md).
func (th *Thread) doPosClosure(f *Frame, ip, length, end int) (int, error) {
	cont := ip + 1 + length
	var snaps []snapshot
	for {
		snap := th.takeSnapshot()
		_, err := th.exec(f, ip+1, ip+1+length)
		if err != nil {
			if _, ok := err.(nextSignal); ok {
				continue
			}
			if isReject(err) {
				th.restore(snap)
				break
			}
			return ip, err
		}
		if th.curReader().Offset() == snap.offset {
			th.restore(snap)
			break // zero-width match: stop to avoid looping forever
		}
		snaps = append(snaps, th.takeSnapshot())
	}
	if len(snaps) == 0 {
		return ip, rejectSignal{Message: fmt.Sprintf("%s: + requires at least one match", f.Parselet.Name), Parselet: f.Parselet.Name, Span: th.spanAt(th.curReader().Offset())}
	}
	return th.giveBack(snaps, f, cont, end)
}

func (th *Thread) doKleClosure(f *Frame, ip, length, end int) (int, error) {
	cont := ip + 1 + length
	snaps := []snapshot{th.takeSnapshot()}
	for {
		snap := th.takeSnapshot()
		_, err := th.exec(f, ip+1, ip+1+length)
		if err != nil {
			if _, ok := err.(nextSignal); ok {
				continue
			}
			if isReject(err) {
				th.restore(snap)
				break
			}
			return ip, err
		}
		if th.curReader().Offset() == snap.offset {
			th.restore(snap)
			break
		}
		snaps = append(snaps, th.takeSnapshot())
	}
	return th.giveBack(snaps, f, cont, end)
}

// giveBack tries the rest of the enclosing range ([cont, end)) starting
// from the greediest snapshot (most repetitions committed) down to the
// stingiest one in snaps, restoring the reader/value/capture state
// before each attempt. It returns the first attempt that doesn't
// reject; if none succeed, it returns the last (stingiest) rejection,
// same as if the closure itself had simply failed to match at all.
func (th *Thread) giveBack(snaps []snapshot, f *Frame, cont, end int) (int, error) {
	var lastErr error
	for i := len(snaps) - 1; i >= 0; i-- {
		th.restore(snaps[i])
		th.push(TheVoid)
		nip, err := th.exec(f, cont, end)
		if err == nil || !isReject(err) {
			return nip, err
		}
		lastErr = err
	}
	return cont, lastErr
}

func (th *Thread) doOptional(f *Frame, ip, length int) error {
	snap := th.takeSnapshot()
	_, err := th.exec(f, ip+1, ip+1+length)
	if err != nil {
		if !isReject(err) {
			return err
		}
		th.restore(snap)
	}
	th.push(TheVoid)
	return nil
}

// doBlock tries each alternative in turn at the same starting state,
// restoring between failures, and on the first success skips straight
// past every remaining alternative — the one shape a Jump embedded in
// a Len-bounded recursive sub-range could not express (see isa.go).
func (th *Thread) doBlock(f *Frame, ip int, alts []int) (int, error) {
	total := 0
	for _, l := range alts {
		total += l
	}
	altStart := ip + 1
	var lastErr error
	for i := 0; i < len(alts); i++ {
		length := alts[i]
		snap := th.takeSnapshot()
		_, err := th.exec(f, altStart, altStart+length)
		if err == nil {
			return ip + 1 + total, nil
		}
		if _, ok := err.(nextSignal); ok {
			altStart = ip + 1
			i = -1
			continue
		}
		if !isReject(err) {
			return ip, err
		}
		th.restore(snap)
		lastErr = err
		altStart += length
	}
	return ip, lastErr
}

// ---- captures / ast ----

func (th *Thread) doPushCapture(f *Frame, in PushCapture) {
	v := th.pop()
	var capVal Value
	if in.Severity >= 2 {
		capVal = v
	}
	alias := ""
	if in.AliasIdx >= 0 {
		if s, ok := f.Parselet.Constants[in.AliasIdx].(String); ok {
			alias = string(s)
		}
	}
	start := f.StartOffset
	if n := len(f.Marks); n > 0 {
		start = f.Marks[n-1]
		f.Marks = f.Marks[:n-1]
	}
	th.captures = append(th.captures, Capture{
		Start:    start,
		End:      th.curReader().Offset(),
		Value:    capVal,
		Severity: in.Severity,
		Alias:    alias,
	})
	th.push(TheVoid)
}

// loadCapture/loadCaptureByName expose this frame's own captures
// (since f.CaptureBase) to the LoadCapture/LoadCaptureByName opcodes.
// The compiler does not emit either opcode.
func (th *Thread) loadCapture(f *Frame, idx int) Value {
	i := f.CaptureBase + idx
	if i < 0 || i >= len(th.captures) {
		return TheVoid
	}
	c := th.captures[i]
	if c.Value != nil {
		return c.Value
	}
	s, err := th.curReader().Slice(c.Start, c.End)
	if err != nil {
		return TheVoid
	}
	return NewString(s)
}

func (th *Thread) loadCaptureByName(f *Frame, name string) Value {
	for i := len(th.captures) - 1; i >= f.CaptureBase; i-- {
		if th.captures[i].Alias == name {
			c := th.captures[i]
			if c.Value != nil {
				return c.Value
			}
			s, err := th.curReader().Slice(c.Start, c.End)
			if err != nil {
				return TheVoid
			}
			return NewString(s)
		}
	}
	return TheVoid
}

// aggregateIfCaptured runs spec.md §4.4's capture aggregation for f's
// own captures (those at or above f.CaptureBase) and reports ok=false
// when the frame recorded none at all, so the caller keeps whatever
// plain expression value it already had (spec.md §8 scenario 1's
// arithmetic has no captures and must fall through to its last
// expression's value, not an empty-span substring).
func (th *Thread) aggregateIfCaptured(f *Frame) (Value, bool, error) {
	if len(th.captures) <= f.CaptureBase {
		return nil, false, nil
	}
	v, err := aggregateCaptures(th.captures[f.CaptureBase:], f.StartOffset, th.curReader().Offset(), th.curReader())
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// doEmitAst wraps this frame's aggregated captures into a dict-shaped
// AST node {emit, value} or {emit, children} (spec.md §4.4's "If the
// parselet carries an emit tag"), discarding the body's own trailing
// expression value.
func (th *Thread) doEmitAst(f *Frame, in EmitAst) error {
	th.pop()
	name, _ := f.Parselet.Constants[in.ConstIdx].(String)
	val, err := aggregateCaptures(th.captures[f.CaptureBase:], f.StartOffset, th.curReader().Offset(), th.curReader())
	if err != nil {
		return err
	}
	d := NewDict()
	d.Set("emit", NewString(string(name)))
	if list, ok := val.(*List); ok {
		d.Set("children", list)
	} else {
		d.Set("value", val)
	}
	// The grammar's captures are now folded into d; truncate them so the
	// implicit Accept that follows doesn't re-aggregate and override it.
	th.captures = th.captures[:f.CaptureBase]
	th.push(d)
	return nil
}

// ---- arithmetic / comparison ----

func asInt(v Value) (int64, bool) {
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Float:
		return int64(n), true
	}
	return 0, false
}

func asFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

// asRepeatCount is the right-hand operand of string `*` int repetition
// (spec.md §4.4); a negative count clamps to zero, same as an empty
// repeat rather than a runtime error.
func asRepeatCount(v Value) (int, bool) {
	i, ok := v.(Int)
	if !ok {
		return 0, false
	}
	if i < 0 {
		return 0, true
	}
	return int(i), true
}

// mergeDicts implements dict `+` (spec.md §4.4 "list/dict have their
// own arithmetic"): a new dict with a's entries first, then b's,
// b's value winning on a shared key.
func mergeDicts(a, b *Dict) *Dict {
	d := NewDict()
	for _, k := range a.keys {
		v, _ := a.Get(k)
		d.Set(k, v)
	}
	for _, k := range b.keys {
		v, _ := b.Get(k)
		d.Set(k, v)
	}
	return d
}

func (th *Thread) numeric2(a, b Value, fi func(x, y int64) Value, ff func(x, y float64) Value) error {
	if ai, ok := a.(Int); ok {
		if bi, ok := b.(Int); ok {
			th.push(fi(int64(ai), int64(bi)))
			return nil
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return NewRuntimeError(th.curReader().Offset(), "arithmetic requires numeric operands, got %s and %s", a.Type(), b.Type())
	}
	th.push(ff(af, bf))
	return nil
}

func (th *Thread) arith(instr Instruction) error {
	b, a := th.pop(), th.pop()
	switch instr.(type) {
	case Add:
		if as, ok := a.(String); ok {
			if bs, ok2 := b.(String); ok2 {
				th.push(NewString(string(as) + string(bs)))
				return nil
			}
		}
		if al, ok := a.(*List); ok {
			if bl, ok2 := b.(*List); ok2 {
				items := make([]Value, 0, len(al.Items)+len(bl.Items))
				items = append(items, al.Items...)
				items = append(items, bl.Items...)
				th.push(NewList(items...))
				return nil
			}
		}
		if ad, ok := a.(*Dict); ok {
			if bd, ok2 := b.(*Dict); ok2 {
				th.push(mergeDicts(ad, bd))
				return nil
			}
		}
		return th.numeric2(a, b, func(x, y int64) Value { return Int(x + y) }, func(x, y float64) Value { return Float(x + y) })
	case Sub:
		return th.numeric2(a, b, func(x, y int64) Value { return Int(x - y) }, func(x, y float64) Value { return Float(x - y) })
	case Mul:
		if as, ok := a.(String); ok {
			if n, ok2 := asRepeatCount(b); ok2 {
				th.push(NewString(strings.Repeat(string(as), n)))
				return nil
			}
		}
		if bs, ok := b.(String); ok {
			if n, ok2 := asRepeatCount(a); ok2 {
				th.push(NewString(strings.Repeat(string(bs), n)))
				return nil
			}
		}
		return th.numeric2(a, b, func(x, y int64) Value { return Int(x * y) }, func(x, y float64) Value { return Float(x * y) })
	case Div:
		af, aok := asFloat(a)
		bf, bok := asFloat(b)
		if !aok || !bok {
			return NewRuntimeError(th.curReader().Offset(), "/ requires numeric operands")
		}
		if bf == 0 {
			return NewRuntimeError(th.curReader().Offset(), "division by zero")
		}
		th.push(Float(af / bf))
		return nil
	case IDiv:
		ai, aok := asInt(a)
		bi, bok := asInt(b)
		if !aok || !bok {
			return NewRuntimeError(th.curReader().Offset(), "// requires numeric operands")
		}
		if bi == 0 {
			return NewRuntimeError(th.curReader().Offset(), "division by zero")
		}
		th.push(Int(ai / bi))
		return nil
	case Mod:
		ai, aok := asInt(a)
		bi, bok := asInt(b)
		if !aok || !bok {
			return NewRuntimeError(th.curReader().Offset(), "%% requires numeric operands")
		}
		if bi == 0 {
			return NewRuntimeError(th.curReader().Offset(), "division by zero")
		}
		th.push(Int(ai % bi))
		return nil
	}
	return nil
}

func (th *Thread) compare(instr Instruction) error {
	b, a := th.pop(), th.pop()
	if as, ok := a.(String); ok {
		if bs, ok2 := b.(String); ok2 {
			th.push(Bool(stringCompare(instr, as, bs)))
			return nil
		}
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if !aok || !bok {
		return NewRuntimeError(th.curReader().Offset(), "comparison requires numeric or string operands, got %s and %s", a.Type(), b.Type())
	}
	var r bool
	switch instr.(type) {
	case Lt:
		r = af < bf
	case Lte:
		r = af <= bf
	case Gt:
		r = af > bf
	case Gte:
		r = af >= bf
	}
	th.push(Bool(r))
	return nil
}

func stringCompare(instr Instruction, a, b String) bool {
	switch instr.(type) {
	case Lt:
		return a < b
	case Lte:
		return a <= b
	case Gt:
		return a > b
	case Gte:
		return a >= b
	}
	return false
}
