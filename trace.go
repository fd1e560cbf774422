package tokay

import (
	"fmt"
	"os"
	"strconv"
)

// traceLevel mirrors spec.md §6's TOKAY_PARSER_DEBUG environment
// variable (0-6), read once at process start. Turns the teacher's
// commented-out `dbg` closure in its old vm.go dispatch loop into a
// real, always-compiled feature instead of a source comment someone
// has to uncomment to use.
var traceLevel = parseTraceLevel(os.Getenv("TOKAY_PARSER_DEBUG"))

func parseTraceLevel(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	if n > 6 {
		n = 6
	}
	return n
}

// traceOpcode writes one line per dispatched instruction at level ≥1,
// additionally reporting stack depths at level ≥3 and full frame
// locals at level ≥5.
func traceOpcode(th *Thread, f *Frame, ip int, instr Instruction) {
	if traceLevel < 1 {
		return
	}
	name := f.Parselet.Name
	if name == "" {
		name = fmt.Sprintf("#%d", f.Parselet.ID)
	}
	fmt.Fprintf(os.Stderr, "[%s@%d] %04d  %s\n", name, th.curReader().Offset(), ip, instr.String())

	if traceLevel >= 3 {
		fmt.Fprintf(os.Stderr, "    values=%d frames=%d captures=%d\n", len(th.values), len(th.frames), len(th.captures))
	}
	if traceLevel >= 5 {
		fmt.Fprintf(os.Stderr, "    locals=%v\n", f.Locals)
	}
}
