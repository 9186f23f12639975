// Package strict implements the strict binary encoding used on the Storm
// wire and inside every commitment.
//
// Integers are fixed width and little-endian. Variable-size fields carry a
// length prefix sized to their declared capacity: u16 for ordinary vectors,
// strings and sets, u24 for medium vectors (chunk data, container chunk lists).
// Sets are written sorted and without duplicates; readers reject anything else.
package strict

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// MaxLen16 is the capacity of a u16-prefixed field.
	MaxLen16 = 1<<16 - 1

	// MaxLen24 is the capacity of a u24-prefixed (medium) field.
	MaxLen24 = 1<<24 - 1
)

// Encoder is implemented by values with a strict serialization.
type Encoder interface {
	EncodeStrict(w *Writer)
}

// Decoder is implemented by values that can be decoded in place.
type Decoder interface {
	DecodeStrict(r *Reader)
}

// Writer appends strict-encoded fields to an io.Writer. The first error is
// sticky; later calls are no-ops and Err reports it.
type Writer struct {
	w   io.Writer
	n   int
	err error
	buf [8]byte
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.n }

// Fail records err unless an error is already recorded.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// Raw writes b without a length prefix.
func (w *Writer) Raw(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.n += n
	if err != nil {
		w.err = err
	}
}

// U8 writes one byte.
func (w *Writer) U8(v uint8) {
	w.buf[0] = v
	w.Raw(w.buf[:1])
}

// U16 writes v little-endian.
func (w *Writer) U16(v uint16) {
	binary.LittleEndian.PutUint16(w.buf[:2], v)
	w.Raw(w.buf[:2])
}

// U24 writes the low 24 bits of v. Values above MaxLen24 fail with ErrCapacity.
func (w *Writer) U24(v uint32) {
	if v > MaxLen24 {
		w.Fail(fmt.Errorf("%w: %d does not fit 24 bits", ErrCapacity, v))
		return
	}
	w.buf[0] = byte(v)
	w.buf[1] = byte(v >> 8)
	w.buf[2] = byte(v >> 16)
	w.Raw(w.buf[:3])
}

// U32 writes v little-endian.
func (w *Writer) U32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.Raw(w.buf[:4])
}

// U64 writes v little-endian.
func (w *Writer) U64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.Raw(w.buf[:8])
}

// Len16 writes a u16 element count.
func (w *Writer) Len16(n int) {
	if n < 0 || n > MaxLen16 {
		w.Fail(fmt.Errorf("%w: %d elements, max %d", ErrCapacity, n, MaxLen16))
		return
	}
	w.U16(uint16(n))
}

// Len24 writes a u24 element count.
func (w *Writer) Len24(n int) {
	if n < 0 || n > MaxLen24 {
		w.Fail(fmt.Errorf("%w: %d elements, max %d", ErrCapacity, n, MaxLen24))
		return
	}
	w.U24(uint32(n))
}

// Bytes16 writes a u16-prefixed byte vector.
func (w *Writer) Bytes16(b []byte) {
	w.Len16(len(b))
	w.Raw(b)
}

// Bytes24 writes a u24-prefixed (medium) byte vector.
func (w *Writer) Bytes24(b []byte) {
	w.Len24(len(b))
	w.Raw(b)
}

// String16 writes a u16-prefixed UTF-8 string.
func (w *Writer) String16(s string) {
	w.Bytes16([]byte(s))
}

// Reader decodes strict-encoded fields from a byte slice. Like Writer, the
// first error is sticky and subsequent reads return zero values.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader returns a Reader over data. data is not copied; decoded byte
// vectors are.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Fail records err unless an error is already recorded.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Finish returns the sticky error, or ErrTrailingData if input remains.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Remaining())
	}
	return nil
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, r.Remaining())
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// Raw reads n bytes and returns a copy. Empty vectors decode as nil.
func (r *Reader) Raw(n int) []byte {
	b := r.take(n)
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Array32 reads a fixed 32-byte field.
func (r *Reader) Array32() [32]byte {
	var out [32]byte
	if b := r.take(32); b != nil {
		copy(out[:], b)
	}
	return out
}

// U8 reads one byte. Like every read, it returns zero once the reader has
// failed.
func (r *Reader) U8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// U24 reads a little-endian 24-bit value.
func (r *Reader) U24() uint32 {
	b := r.take(3)
	if b == nil {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Count16 reads a u16 element count and checks that count elements of at
// least minElemSize bytes can still be present in the input.
func (r *Reader) Count16(minElemSize int) int {
	return r.checkCount(int(r.U16()), minElemSize)
}

// Count24 is the u24 variant of Count16.
func (r *Reader) Count24(minElemSize int) int {
	return r.checkCount(int(r.U24()), minElemSize)
}

func (r *Reader) checkCount(n, minElemSize int) int {
	if r.err != nil {
		return 0
	}
	if minElemSize > 0 && n > r.Remaining()/minElemSize {
		r.err = fmt.Errorf("%w: %d elements declared, %d bytes left", ErrTruncated, n, r.Remaining())
		return 0
	}
	return n
}

// Bytes16 reads a u16-prefixed byte vector.
func (r *Reader) Bytes16() []byte {
	n := int(r.U16())
	return r.Raw(n)
}

// Bytes24 reads a u24-prefixed byte vector.
func (r *Reader) Bytes24() []byte {
	n := int(r.U24())
	return r.Raw(n)
}

// String16 reads a u16-prefixed UTF-8 string.
func (r *Reader) String16() string {
	return string(r.Bytes16())
}

// Serialize returns the strict encoding of v.
func Serialize(v Encoder) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	v.EncodeStrict(w)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes data into v, rejecting trailing bytes.
func Deserialize(data []byte, v Decoder) error {
	r := NewReader(data)
	v.DecodeStrict(r)
	return r.Finish()
}
