package tokay

import (
	"strconv"
	"strings"
)

// Builtin is a native function the VM can call like any parselet, via
// CallDynamic (compiler.go's loadName wraps an unresolved global name
// in a BuiltinRef when it resolves to an entry in this table rather
// than a compiled parselet). Grounded on the shape of the pack's
// compiler "builtin function" registries (e.g. a name-keyed table of
// host closures with a fixed, variadic Go signature) — the teacher
// itself, a pure grammar-matching VM, has no host-callable builtins.
type Builtin struct {
	Name string
	Fn   func(th *Thread, args []Value) (Value, error)
}

// DefaultBuiltins returns the native function table spec.md's DOMAIN
// STACK section enumerates: explicit AST construction, error
// signaling, character/int conversions, and the small string helpers
// grammar action code commonly needs.
func DefaultBuiltins() map[string]*Builtin {
	reg := map[string]*Builtin{}
	add := func(name string, fn func(th *Thread, args []Value) (Value, error)) {
		reg[name] = &Builtin{Name: name, Fn: fn}
	}

	add("ast", builtinAst)
	add("error", builtinError)
	add("chr", builtinChr)
	add("ord", builtinOrd)
	add("int", builtinInt)
	add("str_join", builtinStrJoin)
	add("substr", builtinSubstr)
	add("Char", builtinChar)
	add("Chars", builtinChars)

	return reg
}

func arg(args []Value, i int) Value {
	if i < 0 || i >= len(args) {
		return TheVoid
	}
	return args[i]
}

// builtinAst builds a dict-shaped AST node {emit, value} (or
// {emit, children} when the second argument is a list) — the same
// shape the compiler's EmitAst opcode produces, so action code can
// construct nodes explicitly instead of relying on an emit tag.
func builtinAst(th *Thread, args []Value) (Value, error) {
	tag, ok := arg(args, 0).(String)
	if !ok {
		return nil, NewRuntimeError(th.curReader().Offset(), "ast() requires a string emit tag")
	}
	d := NewDict()
	d.Set("emit", tag)
	if len(args) > 1 {
		if list, ok := arg(args, 1).(*List); ok {
			d.Set("children", list)
		} else {
			d.Set("value", arg(args, 1))
		}
	}
	return d, nil
}

// builtinError raises a ParseError that bypasses backtracking, per
// spec.md §7's explicit error(...) builtin call.
func builtinError(th *Thread, args []Value) (Value, error) {
	msg := "error"
	if len(args) > 0 {
		msg = arg(args, 0).String()
	}
	offset := th.curReader().Offset()
	return nil, ParseError{Message: msg, Span: th.spanAt(offset)}
}

func builtinChr(th *Thread, args []Value) (Value, error) {
	i, ok := asInt(arg(args, 0))
	if !ok {
		return nil, NewRuntimeError(th.curReader().Offset(), "chr() requires an int")
	}
	return NewString(string(rune(i))), nil
}

func builtinOrd(th *Thread, args []Value) (Value, error) {
	s, ok := arg(args, 0).(String)
	if !ok || len(s) == 0 {
		return nil, NewRuntimeError(th.curReader().Offset(), "ord() requires a non-empty string")
	}
	r := []rune(string(s))[0]
	return Int(r), nil
}

func builtinInt(th *Thread, args []Value) (Value, error) {
	switch v := arg(args, 0).(type) {
	case Int:
		return v, nil
	case Float:
		return Int(v), nil
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return nil, NewRuntimeError(th.curReader().Offset(), "int(): %s", err)
		}
		return Int(n), nil
	case Bool:
		if v {
			return Int(1), nil
		}
		return Int(0), nil
	default:
		return nil, NewRuntimeError(th.curReader().Offset(), "int() cannot convert %s", v.Type())
	}
}

func builtinStrJoin(th *Thread, args []Value) (Value, error) {
	list, ok := arg(args, 0).(*List)
	if !ok {
		return nil, NewRuntimeError(th.curReader().Offset(), "str_join() requires a list")
	}
	sep := ""
	if s, ok := arg(args, 1).(String); ok {
		sep = string(s)
	}
	parts := make([]string, len(list.Items))
	for i, it := range list.Items {
		parts[i] = it.String()
	}
	return NewString(strings.Join(parts, sep)), nil
}

func builtinSubstr(th *Thread, args []Value) (Value, error) {
	s, ok := arg(args, 0).(String)
	if !ok {
		return nil, NewRuntimeError(th.curReader().Offset(), "substr() requires a string")
	}
	runes := []rune(string(s))
	start, _ := asInt(arg(args, 1))
	end := int64(len(runes))
	if len(args) > 2 {
		end, _ = asInt(arg(args, 2))
	}
	if start < 0 {
		start = 0
	}
	if end > int64(len(runes)) {
		end = int64(len(runes))
	}
	if start > end {
		start = end
	}
	return NewString(string(runes[start:end])), nil
}

// builtinChar/builtinChars construct Token values usable anywhere a
// token constant is expected, letting action code build character
// matchers dynamically (spec.md GLOSSARY "Token").
func builtinChar(th *Thread, args []Value) (Value, error) {
	s, ok := arg(args, 0).(String)
	if !ok || len(s) == 0 {
		return nil, NewRuntimeError(th.curReader().Offset(), "Char() requires a non-empty string")
	}
	r := []rune(string(s))[0]
	return NewMatchToken(string(r)), nil
}

func builtinChars(th *Thread, args []Value) (Value, error) {
	s, ok := arg(args, 0).(String)
	if !ok {
		return nil, NewRuntimeError(th.curReader().Offset(), "Chars() requires a string")
	}
	return NewClassToken(NewCharsetFromString(string(s))), nil
}
