package tokay

// Compile/Thread.Match are the two calls every host needs; this file
// collects them into the small set of top-level entry points a CLI or
// embedder actually calls, mirroring the shape of the teacher's
// pre-rewrite api.go (`GrammarFromBytes`/`GrammarFromFile` as thin
// wrappers around a lower-level pipeline function). The surface
// parser that turns Tokay source text into the `*Node` AST `Compile`
// consumes is an external collaborator the engine never implements
// (it is supplied as a literal data tree, or written by a host using
// this package) — see DESIGN.md.

// CompileProgram lowers root into a runnable Program, wiring in the
// default builtin table unless the caller supplies its own.
func CompileProgram(root *Node, cfg *Config, builtins map[string]*Builtin) (*Program, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if builtins == nil {
		builtins = DefaultBuiltins()
	}
	return Compile(root, cfg, builtins)
}

// RunString compiles root and matches it against input in one call,
// the common case for a host that doesn't need to reuse a Program
// across multiple inputs.
func RunString(root *Node, input string, cfg *Config) (Value, error) {
	program, err := CompileProgram(root, cfg, nil)
	if err != nil {
		return nil, err
	}
	reader := NewMemReaderString(input)
	th := NewThread(program, reader, cfg)
	return th.Match()
}

// RunBytes is RunString for already-read byte input.
func RunBytes(root *Node, input []byte, cfg *Config) (Value, error) {
	program, err := CompileProgram(root, cfg, nil)
	if err != nil {
		return nil, err
	}
	reader := NewMemReader(input)
	th := NewThread(program, reader, cfg)
	return th.Match()
}

// Match runs an already-compiled Program against input, for hosts
// that compile once and parse many inputs (spec.md §5's "one Thread
// per input, Program shared read-only across Threads").
func Match(program *Program, input []byte, cfg *Config) (Value, error) {
	reader := NewMemReader(input)
	th := NewThread(program, reader, cfg)
	return th.Match()
}
