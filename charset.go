package tokay

import (
	"sort"
	"strings"
)

// interval is an inclusive rune range [Lo, Hi].
type interval struct{ Lo, Hi rune }

// Charset is the compressed interval set a `ccl`/`ccl_neg`/`range`
// AST node lowers into (spec.md §4.2). Ranges are kept sorted and
// merged so `Has` can binary search in O(log n) instead of scanning
// every codepoint the way a naive bitmap would for the full Unicode
// plane; this is the Token-side analogue of the teacher's `charset`
// bitmap in `vm_charset.go`, generalized from bytes to the full rune
// range Tokay grammars can reference.
type Charset struct {
	ranges   []interval
	negated  bool
	capacity charsetHint
}

// charsetHint records the intent behind a charset (e.g. distinguishing
// `.` from a one-million-entry class); neither Has nor String consults
// it.
type charsetHint int

const (
	charsetHintNone charsetHint = iota
	charsetHintAny
)

func NewCharset() *Charset {
	return &Charset{}
}

// NewCharsetFromRanges builds a charset from a list of inclusive
// rune ranges, merging overlaps.
func NewCharsetFromRanges(rs ...interval) *Charset {
	cs := NewCharset()
	for _, r := range rs {
		cs.AddRange(r.Lo, r.Hi)
	}
	return cs
}

// NewCharsetFromString seeds a charset with every rune in s.
func NewCharsetFromString(s string) *Charset {
	cs := NewCharset()
	for _, r := range s {
		cs.Add(r)
	}
	return cs
}

func (cs *Charset) Add(r rune) { cs.AddRange(r, r) }

func (cs *Charset) AddRange(lo, hi rune) {
	if hi < lo {
		lo, hi = hi, lo
	}
	cs.ranges = append(cs.ranges, interval{Lo: lo, Hi: hi})
	cs.normalize()
}

// Negate flips the set: Has reports the complement from now on.
func (cs *Charset) Negate() { cs.negated = !cs.negated }

// normalize sorts ranges and merges adjacent/overlapping ones so Has
// can binary search a compact list.
func (cs *Charset) normalize() {
	sort.Slice(cs.ranges, func(i, j int) bool { return cs.ranges[i].Lo < cs.ranges[j].Lo })
	out := cs.ranges[:0]
	for _, r := range cs.ranges {
		if n := len(out); n > 0 && r.Lo <= out[n-1].Hi+1 {
			if r.Hi > out[n-1].Hi {
				out[n-1].Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	cs.ranges = out
}

// Has reports whether r belongs to the set, honoring negation.
func (cs *Charset) Has(r rune) bool {
	i := sort.Search(len(cs.ranges), func(i int) bool { return cs.ranges[i].Hi >= r })
	found := i < len(cs.ranges) && cs.ranges[i].Lo <= r
	if cs.negated {
		return !found
	}
	return found
}

// Merge returns the union of the ranges of two charsets. The result is
// never negated and the negation of a and b is ignored, so callers
// merge before negating.
func Merge(a, b *Charset) *Charset {
	out := NewCharset()
	out.ranges = append(out.ranges, a.ranges...)
	out.ranges = append(out.ranges, b.ranges...)
	out.normalize()
	return out
}

func (cs *Charset) String() string {
	var s strings.Builder
	s.WriteString("[")
	if cs.negated {
		s.WriteString("^")
	}
	for i, r := range cs.ranges {
		if i > 0 {
			s.WriteString(" ")
		}
		if r.Lo == r.Hi {
			s.WriteRune(r.Lo)
		} else {
			s.WriteRune(r.Lo)
			s.WriteString("-")
			s.WriteRune(r.Hi)
		}
	}
	s.WriteString("]")
	return s.String()
}

// anyCharset matches every rune. The `Char`/`Chars` builtins and the
// `any` token kind do not use it; they match without a Charset.
var anyCharset = &Charset{ranges: []interval{{Lo: 0, Hi: 0x10FFFF}}, capacity: charsetHintAny}
