package tokay

import (
	"fmt"
	"strings"

	"github.com/tokay-lang/tokay/ascii"
)

// Program is the compiler's output: an ordered, immutable list of
// parselets with `main` at a known index (spec.md §4.2's "Contract").
// Generalizes the teacher's `Bytecode` container in `vm_program.go`
// from a single flat opcode stream to one stream per parselet, plus
// a name→index table for Call resolution.
type Program struct {
	Parselets []*Parselet
	MainIdx   int
	byName    map[string]int
}

func NewProgram() *Program {
	return &Program{MainIdx: -1, byName: map[string]int{}}
}

// Add registers p, assigning it the next id, and returns that id.
func (pr *Program) Add(p *Parselet) int {
	p.ID = len(pr.Parselets)
	pr.Parselets = append(pr.Parselets, p)
	if p.Name != "" {
		pr.byName[p.Name] = p.ID
	}
	return p.ID
}

// Lookup resolves a parselet by name, as used for global/late-bound
// identifier resolution in the compiler.
func (pr *Program) Lookup(name string) (*Parselet, bool) {
	i, ok := pr.byName[name]
	if !ok {
		return nil, false
	}
	return pr.Parselets[i], true
}

// Main returns the program's entry parselet.
func (pr *Program) Main() *Parselet {
	if pr.MainIdx < 0 || pr.MainIdx >= len(pr.Parselets) {
		return nil
	}
	return pr.Parselets[pr.MainIdx]
}

// PrettyString disassembles every parselet, generalizing the
// teacher's `vm_program.go` `prettyString` (which dumps one flat
// opcode stream with byte offsets) to Tokay's richer, per-parselet
// opcode set: arithmetic, locals, calls with arity, and generics.
func (pr *Program) PrettyString() string {
	theme := ascii.DefaultTheme
	var s strings.Builder
	for _, p := range pr.Parselets {
		writeParseletHeader(&s, theme, p, pr.MainIdx == p.ID)
		for i, instr := range p.Body {
			fmt.Fprintf(&s, "  %4d  %s\n", i, ascii.Color(theme.Operand, instr.String()))
		}
		s.WriteString("\n")
	}
	return s.String()
}

func writeParseletHeader(s *strings.Builder, theme ascii.Theme, p *Parselet, isMain bool) {
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("#%d", p.ID)
	}
	flags := ""
	if p.Consuming {
		flags += " consuming"
	}
	if p.LeftRec {
		flags += " left-recursive"
	}
	if isMain {
		flags += " main"
	}
	fmt.Fprintf(s, "%s%s:\n", ascii.Color(theme.Accent, name), ascii.Color(theme.Comment, flags))
}
