package tokay

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Reader is the random-access byte stream the VM consumes. It is
// supplied by the host (file, stdin, in-memory buffer); the engine
// only ever requires the contract below. A Thread may bind several
// readers (a "reader set", spec.md §3) but in the common case one
// Reader backs the whole parse.
type Reader interface {
	// PeekByte returns the byte under the cursor without advancing it.
	PeekByte() (byte, error)
	// ReadRune decodes and consumes one rune, advancing the cursor by
	// its UTF-8 size.
	ReadRune() (r rune, size int, err error)
	// PeekRune decodes the rune under the cursor without consuming it.
	PeekRune() (r rune, size int, err error)
	// Advance moves the cursor forward n bytes without decoding.
	Advance(n int)
	// Seek repositions the cursor to an absolute byte offset.
	Seek(offset int) error
	// Slice returns the bytes in [start, end) as a string.
	Slice(start, end int) (string, error)
	// Offset returns the current byte offset.
	Offset() int
	// Location converts a byte offset into its line/column.
	Location(offset int) Location
}

// MemReader is a Reader over an in-memory, NFC-normalized byte slice.
// Normalizing once at construction time means every String value cut
// from it (see value.go's NewString) is automatically in the
// canonical form the spec requires ("Unicode scalar sequence").
type MemReader struct {
	data []byte
	pos  int
	idx  *LineIndex
}

// NewMemReader builds a Reader over input, normalizing it to NFC.
func NewMemReader(input []byte) *MemReader {
	data := norm.NFC.Bytes(input)
	return &MemReader{data: data, idx: NewLineIndex(data)}
}

func NewMemReaderString(input string) *MemReader {
	return NewMemReader([]byte(input))
}

func (r *MemReader) PeekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	return r.data[r.pos], nil
}

func (r *MemReader) PeekRune() (rune, int, error) {
	if r.pos >= len(r.data) {
		return 0, 0, io.EOF
	}
	if b := r.data[r.pos]; b < utf8.RuneSelf {
		return rune(b), 1, nil
	}
	ru, size := utf8.DecodeRune(r.data[r.pos:])
	return ru, size, nil
}

func (r *MemReader) ReadRune() (rune, int, error) {
	ru, size, err := r.PeekRune()
	if err != nil {
		return 0, 0, err
	}
	r.pos += size
	return ru, size, nil
}

func (r *MemReader) Advance(n int) { r.pos += n }

func (r *MemReader) Seek(offset int) error {
	if offset < 0 || offset > len(r.data) {
		return io.ErrUnexpectedEOF
	}
	r.pos = offset
	return nil
}

func (r *MemReader) Slice(start, end int) (string, error) {
	if start < 0 || end > len(r.data) || start > end {
		return "", io.EOF
	}
	return string(r.data[start:end]), nil
}

func (r *MemReader) Offset() int { return r.pos }

func (r *MemReader) Location(offset int) Location { return r.idx.LocationAt(offset) }

// Len returns the total number of bytes in the reader's buffer.
func (r *MemReader) Len() int { return len(r.data) }
