package tokay

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// ParseError is raised by an `expect`-wrapped reject or an explicit
// `error(...)` builtin call (spec.md §7). It bypasses backtracking
// entirely — a snapshot restore never reverts it — and propagates to
// the thread boundary: neither an enclosing `expect` nor an
// alternation catches it. Grounded on the teacher's `ParsingError` in the pre-rewrite
// `errors.go`, renamed to disambiguate from the VM-internal reject
// signal below.
type ParseError struct {
	Message  string
	Parselet string
	Span     Span
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s @ %s", e.Message, e.Span)
}

// rejectSignal is the internal, non-error control-flow value a
// parselet call uses to report an ordinary backtracking failure to
// its caller. It never crosses the Go `error` boundary the host sees;
// it is captured and resolved entirely inside vm.go. Grounded on the
// teacher's `backtrackingError`, which played the same "caught by the
// nearest Choice" role for its simpler greedy-PEG VM.
type rejectSignal struct {
	Message  string
	Parselet string
	Span     Span
}

func (e rejectSignal) Error() string {
	return fmt.Sprintf("reject: %s @ %s", e.Message, e.Span)
}

// CompileError reports a problem found while lowering the AST, before
// any execution begins (spec.md §7): unresolved identifier, malformed
// AST, duplicate constant, break/continue outside a loop, assignment
// to a non-lvalue. Call arity is not checked.
type CompileError struct {
	Message string
	Span    Span
}

func (e CompileError) Error() string {
	return fmt.Sprintf("compile error: %s @ %s", e.Message, e.Span)
}

// NewCompileError wraps msg with a stack trace via pkg/errors so a
// panic recovered further up (e.g. the CLI host) can still print
// where compilation actually failed.
func NewCompileError(span Span, format string, args ...any) error {
	return errors.WithStack(CompileError{Message: fmt.Sprintf(format, args...), Span: span})
}

// RuntimeError reports a problem during VM execution that is not an
// ordinary grammar reject: type mismatch in arithmetic, division by
// zero, builtin failure, an unresolved late load, or a nonzero exit.
// It terminates the thread (spec.md §7). Call depth is not limited,
// and a cooperative abort is reported as Aborted, not RuntimeError.
type RuntimeError struct {
	Message string
	Offset  int
}

func (e RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %s @ offset %d", e.Message, e.Offset)
}

func NewRuntimeError(offset int, format string, args ...any) error {
	return errors.WithStack(RuntimeError{Message: fmt.Sprintf(format, args...), Offset: offset})
}

// Aborted is returned by Thread.Match when the host cancels execution
// cooperatively via Thread.Abort (spec.md §5).
var Aborted = errors.New("tokay: execution aborted")

func isReject(err error) bool {
	_, ok := err.(rejectSignal)
	return ok
}

func isParseError(err error) bool {
	var pe ParseError
	return stderrors.As(err, &pe)
}
