package tokay

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Location identifies a single point within a Reader's input: a byte
// offset plus the 1-based line/column derived from it.
type Location struct {
	Line   int
	Column int
	Offset int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Span is a half-open [Start, End) range within a Reader's input. It
// annotates AST nodes, captures, and the diagnostics raised while
// compiling or running a Program.
type Span struct {
	Start Location
	End   Location
}

func NewSpan(start, end Location) Span {
	return Span{Start: start, End: end}
}

func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		if s.Start.Column == s.End.Column {
			return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
		}
		return fmt.Sprintf("%d:%d..%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%d:%d..%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End.Offset - s.Start.Offset }

// LineIndex allows fast conversion from byte offsets to line/column.
//
// It stores the start byte offset of each line (0-based). Given an
// offset, it finds the line by binary searching line starts (O(log
// lines)) and computes the column as (runes since lineStart + 1).
//
// Construction is O(n) over the input and is intended to be cached
// once per Reader.
type LineIndex struct {
	input     []byte
	lineStart []int
}

func NewLineIndex(input []byte) *LineIndex {
	// Always include line 1 starting at offset 0.
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

func (li *LineIndex) Span(start, end int) Span {
	return Span{Start: li.LocationAt(start), End: li.LocationAt(end)}
}

func (li *LineIndex) LocationAt(offset int) Location {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.input) {
		offset = len(li.input)
	}

	// Find first lineStart > offset, then step back one.
	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > offset
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	col := utf8.RuneCount(li.input[lineStart:offset]) + 1

	return Location{Line: lineIdx + 1, Column: col, Offset: offset}
}
