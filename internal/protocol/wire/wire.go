// Package wire provides bounds-checked big-endian primitives for body
// codecs. Every read checks the remaining length before slicing, so a
// corrupt count can never index past the buffer.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/igtl/internal/protocol"
)

// Reader consumes a byte slice front to back.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Need fails with protocol.ErrFormat unless n more bytes are available.
// n is unsigned and 64-bit so count*width products from the wire can be
// checked before they are converted to int.
func (r *Reader) Need(n uint64) error {
	if n > uint64(r.Len()) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", protocol.ErrFormat, n, r.off, r.Len())
	}
	return nil
}

// NeedN is Need for count elements of width bytes each.
func (r *Reader) NeedN(count uint64, width uint64) error {
	if width != 0 && count > math.MaxUint64/width {
		return fmt.Errorf("%w: element count %d overflows", protocol.ErrFormat, count)
	}
	return r.Need(count * width)
}

func (r *Reader) take(n int) ([]byte, error) {
	if err := r.Need(uint64(n)); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}

// Float32s reads n float32 values after checking the whole span fits.
func (r *Reader) Float32s(n uint64) ([]float32, error) {
	if err := r.NeedN(n, 4); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(r.buf[r.off:]))
		r.off += 4
	}
	return out, nil
}

// Uint32s reads n uint32 values after checking the whole span fits.
func (r *Reader) Uint32s(n uint64) ([]uint32, error) {
	if err := r.NeedN(n, 4); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(r.buf[r.off:])
		r.off += 4
	}
	return out, nil
}

// Bytes returns a copy of the next n bytes.
func (r *Reader) Bytes(n uint64) ([]byte, error) {
	if err := r.Need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += int(n)
	return out, nil
}

// Rest returns a copy of every unread byte.
func (r *Reader) Rest() []byte {
	out := make([]byte, r.Len())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}

// FixedString reads a NUL padded field of width bytes.
func (r *Reader) FixedString(width int) (string, error) {
	b, err := r.take(width)
	if err != nil {
		return "", err
	}
	return TrimNUL(b), nil
}

// CString reads bytes up to and including the next NUL.
func (r *Reader) CString() (string, error) {
	for i := r.off; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			s := string(r.buf[r.off:i])
			r.off = i + 1
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unterminated string at offset %d", protocol.ErrFormat, r.off)
}

// Skip advances n bytes.
func (r *Reader) Skip(n uint64) error {
	if err := r.Need(n); err != nil {
		return err
	}
	r.off += int(n)
	return nil
}

// Sub returns a reader over the next n bytes and advances past them.
func (r *Reader) Sub(n uint64) (*Reader, error) {
	if err := r.Need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return NewReader(b), nil
}

// Done fails with protocol.ErrFormat if unread bytes remain.
func (r *Reader) Done() error {
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", protocol.ErrFormat, r.Len())
	}
	return nil
}

// Writer fills a buffer sized up front. Codecs compute their exact size
// first, so an overflow means the size computation and the serializer
// disagree; it is reported rather than growing the buffer.
type Writer struct {
	buf []byte
	off int
	err error
}

func NewWriter(b []byte) *Writer {
	return &Writer{buf: b}
}

func (w *Writer) reserve(n int) []byte {
	if w.err != nil {
		return nil
	}
	if n > len(w.buf)-w.off {
		w.err = fmt.Errorf("%w: write of %d bytes at offset %d overflows %d byte buffer",
			protocol.ErrSizeMismatch, n, w.off, len(w.buf))
		return nil
	}
	b := w.buf[w.off : w.off+n]
	w.off += n
	return b
}

func (w *Writer) Uint8(v uint8) {
	if b := w.reserve(1); b != nil {
		b[0] = v
	}
}

func (w *Writer) Uint16(v uint16) {
	if b := w.reserve(2); b != nil {
		binary.BigEndian.PutUint16(b, v)
	}
}

func (w *Writer) Uint32(v uint32) {
	if b := w.reserve(4); b != nil {
		binary.BigEndian.PutUint32(b, v)
	}
}

func (w *Writer) Uint64(v uint64) {
	if b := w.reserve(8); b != nil {
		binary.BigEndian.PutUint64(b, v)
	}
}

func (w *Writer) Int64(v int64) {
	w.Uint64(uint64(v))
}

func (w *Writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

func (w *Writer) Float32s(vs []float32) {
	for _, v := range vs {
		w.Float32(v)
	}
}

func (w *Writer) Uint32s(vs []uint32) {
	for _, v := range vs {
		w.Uint32(v)
	}
}

func (w *Writer) Bytes(p []byte) {
	if b := w.reserve(len(p)); b != nil {
		copy(b, p)
	}
}

// FixedString writes s NUL padded, truncated to width bytes.
func (w *Writer) FixedString(s string, width int) {
	if b := w.reserve(width); b != nil {
		PutFixedString(b, s)
	}
}

// CString writes s followed by a NUL.
func (w *Writer) CString(s string) {
	w.Bytes([]byte(s))
	w.Uint8(0)
}

// Offset returns the number of bytes written so far.
func (w *Writer) Offset() int {
	return w.off
}

// Err returns the first overflow, or a short-write error if the buffer was
// not filled exactly.
func (w *Writer) Err() error {
	if w.err != nil {
		return w.err
	}
	if w.off != len(w.buf) {
		return fmt.Errorf("%w: wrote %d of %d bytes", protocol.ErrSizeMismatch, w.off, len(w.buf))
	}
	return nil
}

// PutFixedString copies s into b, truncating and zero padding.
func PutFixedString(b []byte, s string) {
	n := copy(b, s)
	clear(b[n:])
}

// TrimNUL returns b up to its first NUL byte.
func TrimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
