package tokay

import (
	"fmt"

	"github.com/tokay-lang/tokay/ascii"
)

// Node is the AST shape the compiler consumes: a dictionary with at
// least an Emit tag, plus optional literal Value and ordered
// Children. This mirrors spec.md §3's "AST node" exactly — a dict,
// not one Go type per grammar construct — so the compiler dispatches
// on Emit with a switch (compiler.go) instead of the teacher's
// Accept(Visitor) double dispatch over `grammar_ast.go`'s typed node
// hierarchy.
type Node struct {
	Emit     string
	Value    Value
	Children []*Node
	Span     Span
}

// NewNode builds a bare node with only an emit tag.
func NewNode(emit string) *Node {
	return &Node{Emit: emit}
}

// WithValue attaches a literal payload and returns the node, for
// constructor chaining.
func (n *Node) WithValue(v Value) *Node {
	n.Value = v
	return n
}

// WithSpan attaches a source span and returns the node.
func (n *Node) WithSpan(sp Span) *Node {
	n.Span = sp
	return n
}

// AddChild appends one child, in order.
func (n *Node) AddChild(c *Node) *Node {
	n.Children = append(n.Children, c)
	return n
}

// AddChildren appends several children, in order.
func (n *Node) AddChildren(cs ...*Node) *Node {
	n.Children = append(n.Children, cs...)
	return n
}

// Child returns the i-th child, or nil if out of range. Convenient
// for lowering rules that expect a known fixed arity (e.g. op_binary_*
// always has exactly two children).
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Lone returns the single child of a node whose Children slot is
// documented as "node | [node,...]" but is only ever populated with
// one element (e.g. value_parselet's `body`). Returns nil if there
// isn't exactly one child.
func (n *Node) Lone() *Node {
	if len(n.Children) != 1 {
		return nil
	}
	return n.Children[0]
}

// String renders the node's own emit/value, without its children —
// useful inside %v formatting and error messages.
func (n *Node) String() string {
	if n.Value != nil {
		return fmt.Sprintf("%s(%s)", n.Emit, n.Value.String())
	}
	return n.Emit
}

// nodeFormat is the per-node label the tree printer renders: the emit
// tag, the literal value if any, and the span, color-themed the way
// the teacher's grammar_ast_printer.go themes its own AST dump.
func nodeFormat(theme ascii.Theme) FormatFunc[*Node] {
	return func(_ string, n *Node) string {
		label := ascii.Color(theme.Operator, n.Emit)
		if n.Value != nil {
			label += " " + ascii.Color(theme.Literal, n.Value.String())
		}
		if n.Span != (Span{}) {
			label += " " + ascii.Color(theme.Span, n.Span.String())
		}
		return label
	}
}

// PrettyString renders the node and its descendants as a box-drawing
// tree, generalizing the teacher's grammar_ast_printer.go from its
// fixed node-type hierarchy to this dict-shaped AST.
func (n *Node) PrettyString() string {
	tp := newTreePrinter(nodeFormat(ascii.DefaultTheme))
	n.print(tp, true, true)
	return tp.output.String()
}

func (n *Node) print(tp *treePrinter[*Node], isRoot, isLast bool) {
	branch := "├── "
	if isLast {
		branch = "└── "
	}
	if isRoot {
		tp.pwritel(tp.format("", n))
	} else {
		tp.pwrite(branch)
		tp.writel(tp.format("", n))
	}

	pad := "│   "
	if isLast {
		pad = "    "
	}
	tp.indent(pad)
	for i, c := range n.Children {
		c.print(tp, false, i == len(n.Children)-1)
	}
	tp.unindent()
}
