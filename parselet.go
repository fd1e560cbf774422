package tokay

// Generic describes one generic parameter of a parselet template:
// a name plus an optional index into the parselet's constants pool
// holding its default-value expression (compiled as a tiny
// sub-program evaluated lazily at bind time).
type Generic struct {
	Name       string
	DefaultIdx int // -1 if no default
}

// Arg describes one formal argument, same shape as Generic.
type Arg struct {
	Name       string
	DefaultIdx int // -1 if no default
}

// Parselet is a compiled grammar production / function (spec.md §3
// "Parselet (compiled)"). Immutable once `Compile` returns: the
// compiler builds it via a *parseletBuilder (compiler.go), and only
// resolveLateLoads rewrites its Body and Constants before Compile
// finishes, matching the teacher's convention that compiled
// `Bytecode` is read-only once `Compile` returns.
type Parselet struct {
	ID        int
	Name      string
	Generics  []Generic
	Args      []Arg
	Locals    int
	Constants []Value
	Body      Instructions
	Consuming bool
	LeftRec   bool
	// Emit, when non-empty, is the AST node tag this parselet wraps
	// its aggregated result into on success (spec.md §4.4).
	Emit string
}

// Parselet has no severity field: the running system only ever
// examines individual Capture severities (capture.go).

// FindArg returns the index of the named argument, or -1.
func (p *Parselet) FindArg(name string) int {
	for i, a := range p.Args {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// FindGeneric returns the index of the named generic parameter, or -1.
func (p *Parselet) FindGeneric(name string) int {
	for i, g := range p.Generics {
		if g.Name == name {
			return i
		}
	}
	return -1
}
