// Package cser implements the canonical split-stream serialization used for
// persisted gateway records. Integers are stored in the fewest bytes possible,
// with the byte count kept in a separate bit stream; any non-minimal encoding is
// rejected on read so that every value has exactly one binary form.
package cser

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNonCanonicalEncoding = errors.New("non canonical encoding")
	ErrMalformedEncoding    = errors.New("malformed encoding")
	ErrTooLargeAlloc        = errors.New("too large allocation")
)

// MaxAlloc bounds variable-length byte slices read from untrusted input.
const MaxAlloc = 100 * 1024

// MaxBigIntBytes bounds the magnitude of a big.Int on both sides of the codec.
const MaxBigIntBytes = 512

// Writer accumulates a bit stream and a body stream.
type Writer struct {
	bits *bitWriter
	body []byte
}

// Reader consumes the streams produced by a Writer.
type Reader struct {
	bits *bitReader
	body *byteReader
}

func NewWriter() *Writer {
	return &Writer{
		bits: &bitWriter{buf: make([]byte, 0, 32)},
		body: make([]byte, 0, 256),
	}
}

func (w *Writer) writeUint(minSize int, bitsForSize int, v uint64) {
	size := 0
	for size < minSize || v != 0 {
		w.body = append(w.body, byte(v))
		size++
		v >>= 8
	}
	w.bits.write(bitsForSize, uint(size-minSize))
}

func (r *Reader) readUint(minSize int, bitsForSize int) uint64 {
	size := int(r.bits.read(bitsForSize)) + minSize
	buf := r.body.read(size)
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (8 * uint(i))
	}
	if size > 1 && buf[size-1] == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return v
}

func (w *Writer) U8(v uint8) { w.body = append(w.body, v) }

func (r *Reader) U8() uint8 { return r.body.readByte() }

func (w *Writer) U16(v uint16) { w.writeUint(1, 1, uint64(v)) }

func (r *Reader) U16() uint16 { return uint16(r.readUint(1, 1)) }

func (w *Writer) U32(v uint32) { w.writeUint(1, 2, uint64(v)) }

func (r *Reader) U32() uint32 { return uint32(r.readUint(1, 2)) }

func (w *Writer) U64(v uint64) { w.writeUint(1, 3, v) }

func (r *Reader) U64() uint64 { return r.readUint(1, 3) }

// U56 is used for lengths.
func (w *Writer) U56(v uint64) {
	const max = 1<<(8*7) - 1
	if v > max {
		panic("cser: value too big for U56")
	}
	w.writeUint(0, 3, v)
}

func (r *Reader) U56() uint64 { return r.readUint(0, 3) }

func (w *Writer) Bool(v bool) {
	var bit uint
	if v {
		bit = 1
	}
	w.bits.write(1, bit)
}

func (r *Reader) Bool() bool { return r.bits.read(1) != 0 }

func (w *Writer) FixedBytes(v []byte) { w.body = append(w.body, v...) }

func (r *Reader) FixedBytes(v []byte) { copy(v, r.body.read(len(v))) }

func (w *Writer) SliceBytes(v []byte) {
	w.U56(uint64(len(v)))
	w.FixedBytes(v)
}

func (r *Reader) SliceBytes(maxLen int) []byte {
	size := r.U56()
	if size > uint64(maxLen) {
		panic(ErrTooLargeAlloc)
	}
	buf := make([]byte, size)
	r.FixedBytes(buf)
	return buf
}

// SliceLen reads a collection length and checks it against maxLen.
func (r *Reader) SliceLen(maxLen int) int {
	size := r.U56()
	if size > uint64(maxLen) {
		panic(ErrTooLargeAlloc)
	}
	return int(size)
}

// BigInt stores the magnitude only; negative values are rejected. A magnitude
// the Reader would refuse panics with ErrTooLargeAlloc, which
// MarshalBinaryAdapter returns as an error.
func (w *Writer) BigInt(v *big.Int) {
	if v == nil || v.Sign() == 0 {
		w.SliceBytes(nil)
		return
	}
	if v.Sign() < 0 {
		panic("cser: negative big.Int")
	}
	buf := v.Bytes()
	if len(buf) > MaxBigIntBytes {
		panic(ErrTooLargeAlloc)
	}
	w.SliceBytes(buf)
}

func (r *Reader) BigInt() *big.Int {
	buf := r.SliceBytes(MaxBigIntBytes)
	if len(buf) > 0 && buf[0] == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return new(big.Int).SetBytes(buf)
}

func (w *Writer) Address(v common.Address) { w.FixedBytes(v.Bytes()) }

func (r *Reader) Address() (v common.Address) {
	r.FixedBytes(v[:])
	return v
}

func (w *Writer) Hash(v common.Hash) { w.FixedBytes(v.Bytes()) }

func (r *Reader) Hash() (v common.Hash) {
	r.FixedBytes(v[:])
	return v
}

type bitWriter struct {
	buf []byte
	off int
}

func (w *bitWriter) write(n int, v uint) {
	for n > 0 {
		if w.off == 0 {
			w.buf = append(w.buf, 0)
		}
		chunk := 8 - w.off
		if chunk > n {
			chunk = n
		}
		w.buf[len(w.buf)-1] |= byte((v & (1<<uint(chunk) - 1)) << uint(w.off))
		v >>= uint(chunk)
		n -= chunk
		w.off = (w.off + chunk) % 8
	}
}

type bitReader struct {
	buf []byte
	pos int
	off int
}

func (r *bitReader) read(n int) uint {
	var v uint
	shift := 0
	for n > 0 {
		chunk := 8 - r.off
		if chunk > n {
			chunk = n
		}
		b := (uint(r.buf[r.pos]) >> uint(r.off)) & (1<<uint(chunk) - 1)
		v |= b << uint(shift)
		shift += chunk
		n -= chunk
		r.off += chunk
		if r.off == 8 {
			r.off = 0
			r.pos++
		}
	}
	return v
}

func (r *bitReader) nonReadBytes() int { return len(r.buf) - r.pos }

func (r *bitReader) nonReadBits() int { return r.nonReadBytes()*8 - r.off }

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) read(n int) []byte {
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *byteReader) readByte() byte {
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *byteReader) empty() bool { return r.pos == len(r.buf) }
