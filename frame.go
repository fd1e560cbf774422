package tokay

// Frame is one activation record on the VM's frame stack: one per
// active parselet call (spec.md §3 "Thread state"). Generalizes the
// teacher's backtracking/call frame types in `vm_stack.go` with a
// locals array (langlang parselets never had locals — the
// distinguishing, scripting half of Tokay) and a link to the root
// frame so LoadGlobal/StoreGlobal can reach it from any call depth.
type Frame struct {
	Parselet    *Parselet
	IP          int
	StartOffset int
	CaptureBase int
	Locals      []Value
	ReaderIdx   int
	Root        *Frame // the thread's outermost frame; nil for the root itself
	// MemoKey, Memoizable and Growing are never set or read by the VM;
	// invoke (vm.go) keeps the memo key in a local and drives the
	// left-recursion seed (spec.md §4.3) through the Cache itself.
	MemoKey    memoKey
	Memoizable bool
	Growing    bool
	// Marks is the stack CaptureMark pushes onto and PushCapture pops
	// from to recover a capture's start offset, when the compiler chose
	// to bracket it explicitly; empty unless a body uses CaptureMark.
	Marks []int
}

func newFrame(p *Parselet, startOffset, captureBase, readerIdx int, root *Frame) *Frame {
	f := &Frame{
		Parselet:    p,
		StartOffset: startOffset,
		CaptureBase: captureBase,
		Locals:      make([]Value, p.Locals),
		ReaderIdx:   readerIdx,
		Root:        root,
	}
	for i := range f.Locals {
		f.Locals[i] = TheVoid
	}
	return f
}

// snapshot captures everything a reject must restore (spec.md §4.4
// "Snapshot"): reader offset, value/capture stack depths. Locals are
// frame-private and never need restoring across a reject within the
// same frame, per spec.md's own note — only the surrounding
// depths/offset do.
type snapshot struct {
	offset       int
	valueDepth   int
	captureDepth int
}
