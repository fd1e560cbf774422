package tokay

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ValueKind tags the variant of a Value, per spec.md §3. Void and
// Null are deliberately distinct tags: Void is "a parselet that
// matched but produced nothing", Null is the explicit, truthy `null`
// literal.
type ValueKind int

const (
	KindVoid ValueKind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindDict
	KindParselet
	KindToken
	KindBuiltin
)

var kindNames = map[ValueKind]string{
	KindVoid:     "void",
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "str",
	KindList:     "list",
	KindDict:     "dict",
	KindParselet: "parselet",
	KindToken:    "token",
	KindBuiltin:  "builtin",
}

func (k ValueKind) String() string { return kindNames[k] }

// Value is the tagged sum every stack slot, local, capture, and
// constant-pool entry holds. Call opcodes name parselets by integer
// id, while a ParseletRef value holds a *Parselet pointer; plain Go
// values/slices/maps are sufficient, since Go's garbage collector
// reclaims any cycles — there is no manual reference counting.
type Value interface {
	Kind() ValueKind
	Type() string
	// Truthy reports whether the value counts as true in `if`/`and`/
	// `or`. Per spec.md §3, Void is always falsy. The VM's boolean
	// opcodes call Truthy directly, with no special case for Null.
	Truthy() bool
	String() string
}

// ---- Void ----

type Void struct{}

var TheVoid = Void{}

func (Void) Kind() ValueKind { return KindVoid }
func (Void) Type() string    { return "void" }
func (Void) Truthy() bool    { return false }
func (Void) String() string  { return "void" }

// ---- Null ----

type Null struct{}

var TheNull = Null{}

func (Null) Kind() ValueKind { return KindNull }
func (Null) Type() string    { return "null" }
func (Null) Truthy() bool    { return true }
func (Null) String() string  { return "null" }

// ---- Bool ----

type Bool bool

func (Bool) Kind() ValueKind { return KindBool }
func (Bool) Type() string    { return "bool" }
func (b Bool) Truthy() bool  { return bool(b) }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// ---- Int ----

// Int holds a signed 64-bit integer. The spec allows either
// arbitrary precision or "at least 64-bit"; 64-bit ints are kept here
// to stay within plain Go machine arithmetic rather than pull in a
// bignum package no component in the example pack exercises (see
// DESIGN.md's Open Question log).
type Int int64

func (Int) Kind() ValueKind  { return KindInt }
func (Int) Type() string     { return "int" }
func (i Int) Truthy() bool   { return i != 0 }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// ---- Float ----

type Float float64

func (Float) Kind() ValueKind { return KindFloat }
func (Float) Type() string    { return "float" }
func (f Float) Truthy() bool  { return f != 0 }
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// ---- String ----

// String is an immutable-by-convention, NFC-normalized Unicode scalar
// sequence. Normalization happens once here so that every String
// value, wherever it originates (a captured span, `substr`,
// `str_join`, a literal in the constants pool), compares equal under
// plain Go `==`/string-comparison when the underlying text is the
// same Unicode content, regardless of the composed/decomposed form it
// arrived in.
type String string

func NewString(s string) String { return String(norm.NFC.String(s)) }

func (String) Kind() ValueKind { return KindString }
func (String) Type() string    { return "str" }
func (s String) Truthy() bool  { return s != "" }
func (s String) String() string {
	return string(s)
}

// Quoted returns the Go-quoted representation, used by pretty
// printers so embedded control characters and quotes are visible.
func (s String) Quoted() string { return strconv.Quote(string(s)) }

// ---- List ----

// List is an ordered, mutable sequence of values (severity-3 "push"
// captures accumulate into one, and it is also a general-purpose
// scripting value).
type List struct {
	Items []Value
}

func NewList(items ...Value) *List { return &List{Items: items} }

func (*List) Kind() ValueKind { return KindList }
func (*List) Type() string    { return "list" }
func (l *List) Truthy() bool  { return len(l.Items) > 0 }
func (l *List) String() string {
	var s strings.Builder
	s.WriteString("[")
	for i, it := range l.Items {
		if i > 0 {
			s.WriteString(", ")
		}
		s.WriteString(it.String())
	}
	s.WriteString("]")
	return s.String()
}

// ---- Dict ----

// Dict is an insertion-ordered mapping from string keys to values,
// produced by capture aggregation (spec.md §4.4) and by AST nodes.
type Dict struct {
	keys   []string
	index  map[string]int
	values []Value
}

func NewDict() *Dict {
	return &Dict{index: map[string]int{}}
}

func (*Dict) Kind() ValueKind { return KindDict }
func (*Dict) Type() string    { return "dict" }
func (d *Dict) Truthy() bool  { return len(d.keys) > 0 }

// Set inserts or updates key, preserving first-insertion order.
func (d *Dict) Set(key string, v Value) {
	if i, ok := d.index[key]; ok {
		d.values[i] = v
		return
	}
	d.index[key] = len(d.keys)
	d.keys = append(d.keys, key)
	d.values = append(d.values, v)
}

func (d *Dict) Get(key string) (Value, bool) {
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.values[i], true
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string { return d.keys }

// Len reports how many keys the dict holds.
func (d *Dict) Len() int { return len(d.keys) }

func (d *Dict) String() string {
	var s strings.Builder
	s.WriteString("{")
	for i, k := range d.keys {
		if i > 0 {
			s.WriteString(", ")
		}
		fmt.Fprintf(&s, "%s: %s", k, d.values[i].String())
	}
	s.WriteString("}")
	return s.String()
}

// ---- Parselet reference ----

// ParseletRef is a first-class reference to a compiled Parselet,
// optionally closed over bound generic arguments (produced by
// `value_generic`, spec.md §4.2).
type ParseletRef struct {
	Def      *Parselet
	Generics []Value
}

func NewParseletRef(p *Parselet, generics ...Value) *ParseletRef {
	return &ParseletRef{Def: p, Generics: generics}
}

func (*ParseletRef) Kind() ValueKind { return KindParselet }
func (*ParseletRef) Type() string    { return "parselet" }
func (*ParseletRef) Truthy() bool    { return true }
func (p *ParseletRef) String() string {
	if p.Def.Name != "" {
		return fmt.Sprintf("<parselet %s>", p.Def.Name)
	}
	return fmt.Sprintf("<parselet #%d>", p.Def.ID)
}

// ---- Token ----

// TokenKind distinguishes the primitive matchers a Token Value can
// carry: any-char, a compressed character class, a literal "touch"
// (consumes but never contributes to capture severity) and a literal
// "match" (consumes and, like any other capture, can surface a
// value). See the GLOSSARY entry "Touch vs Match".
type TokenKind int

const (
	TokenAny TokenKind = iota
	TokenClass
	TokenTouch
	TokenLiteralMatch
)

var tokenKindNames = map[TokenKind]string{
	TokenAny:          "any",
	TokenClass:        "class",
	TokenTouch:        "touch",
	TokenLiteralMatch: "match",
}

type Token struct {
	TKind   TokenKind
	Class   *Charset // set when TKind == TokenClass
	Literal string   // set when TKind is TokenTouch or TokenLiteralMatch
}

func NewAnyToken() *Token              { return &Token{TKind: TokenAny} }
func NewClassToken(cs *Charset) *Token { return &Token{TKind: TokenClass, Class: cs} }
func NewTouchToken(lit string) *Token  { return &Token{TKind: TokenTouch, Literal: lit} }
func NewMatchToken(lit string) *Token  { return &Token{TKind: TokenLiteralMatch, Literal: lit} }

func (*Token) Kind() ValueKind { return KindToken }
func (*Token) Type() string    { return "token" }
func (*Token) Truthy() bool    { return true }
func (t *Token) String() string {
	switch t.TKind {
	case TokenAny:
		return "Char"
	case TokenClass:
		return t.Class.String()
	case TokenTouch:
		return fmt.Sprintf("touch(%q)", t.Literal)
	default:
		return fmt.Sprintf("match(%q)", t.Literal)
	}
}

// ---- Builtin ----

// BuiltinRef is a first-class reference to a native function (builtins.go).
type BuiltinRef struct {
	Def *Builtin
}

func NewBuiltinRef(b *Builtin) *BuiltinRef { return &BuiltinRef{Def: b} }

func (*BuiltinRef) Kind() ValueKind { return KindBuiltin }
func (*BuiltinRef) Type() string    { return "builtin" }
func (*BuiltinRef) Truthy() bool    { return true }
func (b *BuiltinRef) String() string {
	return fmt.Sprintf("<builtin %s>", b.Def.Name)
}

// ---- Equality ----

// Equal implements the VM's `Eq`/`Neq` opcodes. Parselets, tokens, and
// builtins compare by identity; every other kind compares by value.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Void, Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av == b.(Int)
	case Float:
		return av == b.(Float)
	case String:
		return av == b.(String)
	case *List:
		bv := b.(*List)
		if len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *Dict:
		bv := b.(*Dict)
		if av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			bval, ok := bv.Get(k)
			if !ok {
				return false
			}
			aval, _ := av.Get(k)
			if !Equal(aval, bval) {
				return false
			}
		}
		return true
	case *ParseletRef:
		return av.Def == b.(*ParseletRef).Def
	case *Token:
		return av == b.(*Token)
	case *BuiltinRef:
		return av.Def == b.(*BuiltinRef).Def
	}
	return false
}
