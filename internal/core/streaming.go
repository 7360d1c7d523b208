package core

// streaming.go wraps a raw source stream so the loader sees clean UTF-8 text:
//
//   - CountingReader: tracks raw bytes consumed for progress logging
//   - BOMSkippingReader: drops the UTF-8 BOM (0xEF 0xBB 0xBF) written by Excel
//   - UTF8Reader: rejects invalid UTF-8 (strict) or replaces it (lenient)
//
// Use WrapSource to apply all three in the correct order.

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by a strict UTF8Reader on the first bad sequence.
var ErrInvalidUTF8 = errors.New("encoding error: file is not valid UTF-8")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const utf8ChunkSize = 32 * 1024

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader. The first call peeks at the head of the stream.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head, err := b.r.Peek(len(utf8BOM))
		if err != nil && err != io.EOF {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}

// UTF8Reader validates a byte stream as UTF-8 while it is read.
//
// In strict mode the first invalid sequence ends the stream with an error
// wrapping ErrInvalidUTF8; the valid prefix is still delivered. In lenient
// mode invalid bytes become U+FFFD. A multi-byte sequence split across two
// underlying reads is held back until the rest arrives.
type UTF8Reader struct {
	src     io.Reader
	lenient bool
	chunk   []byte
	carry   []byte // incomplete trailing sequence from the previous chunk
	out     []byte // checked bytes not yet handed to the caller
	offset  int64  // checked bytes so far
	err     error  // sticky
}

// NewUTF8Reader creates a strict (lenient=false) or replacing reader.
func NewUTF8Reader(r io.Reader, lenient bool) *UTF8Reader {
	return &UTF8Reader{
		src:     r,
		lenient: lenient,
		chunk:   make([]byte, utf8ChunkSize),
	}
}

// Read implements io.Reader.
func (u *UTF8Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(u.out) == 0 {
		if u.err != nil {
			return 0, u.err
		}
		u.fill()
	}
	n := copy(p, u.out)
	u.out = u.out[n:]
	return n, nil
}

func (u *UTF8Reader) fill() {
	n, err := u.src.Read(u.chunk)

	data := make([]byte, 0, len(u.carry)+n)
	data = append(data, u.carry...)
	data = append(data, u.chunk[:n]...)
	u.carry = nil

	if err == nil {
		if k := incompleteTail(data); k > 0 {
			u.carry = append(u.carry, data[len(data)-k:]...)
			data = data[:len(data)-k]
		}
	}

	checked, verr := u.check(data)
	u.out = checked
	switch {
	case verr != nil:
		u.err = verr
	case err != nil:
		u.err = err
	}
}

func (u *UTF8Reader) check(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		u.offset += int64(len(data))
		return data, nil
	}

	if !u.lenient {
		bad := firstInvalid(data)
		u.offset += int64(bad)
		return data[:bad], fmt.Errorf("%w (byte offset %d)", ErrInvalidUTF8, u.offset)
	}

	fixed := make([]byte, 0, len(data)+8)
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			fixed = utf8.AppendRune(fixed, utf8.RuneError)
		} else {
			fixed = append(fixed, data[:size]...)
		}
		u.offset += int64(size)
		data = data[size:]
	}
	return fixed, nil
}

// firstInvalid returns the index of the first byte that does not start a
// valid UTF-8 sequence.
func firstInvalid(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(data)
}

// incompleteTail returns how many trailing bytes form the start of a
// multi-byte sequence that is not complete yet.
func incompleteTail(data []byte) int {
	for k := 1; k < utf8.UTFMax && k <= len(data); k++ {
		tail := data[len(data)-k:]
		if utf8.RuneStart(tail[0]) {
			if utf8.FullRune(tail) {
				return 0
			}
			return k
		}
	}
	return 0
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // 0 if unknown
}

// NewCountingReader creates a counting reader with an optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, Total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if the total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// WrapSource applies byte counting, BOM skipping and UTF-8 checking.
//
// Counting sits closest to the source so it reports raw file bytes, which is
// what Total is measured in.
func WrapSource(r io.Reader, total int64, lenient bool) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, total)
	return NewUTF8Reader(NewBOMSkippingReader(counter), lenient), counter
}
