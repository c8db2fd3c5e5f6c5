package cser

// Layout of a marshalled record:
//
//	[ body bytes ] [ bit stream bytes ] [ reversed varint(len(bit stream)) ]
//
// Small fields (flags, integer widths) live in the bit stream, everything else in
// the body. The size suffix is written backwards so a reader can find it by
// scanning from the end of the buffer.

// MarshalBinaryAdapter runs marshalCser against a fresh Writer and packs both
// streams into a single slice. A field too large to be read back is reported
// as ErrTooLargeAlloc.
func MarshalBinaryAdapter(marshalCser func(*Writer) error) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && e == ErrTooLargeAlloc {
				raw, err = nil, e
				return
			}
			panic(r)
		}
	}()
	w := NewWriter()
	if err := marshalCser(w); err != nil {
		return nil, err
	}
	return binaryFromCSER(w.bits.buf, w.body), nil
}

// UnmarshalBinaryAdapter splits raw into its streams and runs unmarshalCser.
// Any panic raised by a short read is reported as ErrMalformedEncoding, and
// leftover data is reported as ErrNonCanonicalEncoding.
func UnmarshalBinaryAdapter(raw []byte, unmarshalCser func(*Reader) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && (e == ErrNonCanonicalEncoding || e == ErrTooLargeAlloc) {
				err = e
				return
			}
			err = ErrMalformedEncoding
		}
	}()

	bitsBuf, body, err := binaryToCSER(raw)
	if err != nil {
		return err
	}
	r := &Reader{
		bits: &bitReader{buf: bitsBuf},
		body: &byteReader{buf: body},
	}
	if err := unmarshalCser(r); err != nil {
		return err
	}

	if r.bits.nonReadBytes() > 1 {
		return ErrNonCanonicalEncoding
	}
	if tail := r.bits.read(r.bits.nonReadBits()); tail != 0 {
		return ErrNonCanonicalEncoding
	}
	if !r.body.empty() {
		return ErrNonCanonicalEncoding
	}
	return nil
}

func binaryFromCSER(bitsBuf []byte, body []byte) []byte {
	out := make([]byte, 0, len(body)+len(bitsBuf)+4)
	out = append(out, body...)
	out = append(out, bitsBuf...)

	size := writeUint64Compact(make([]byte, 0, 4), uint64(len(bitsBuf)))
	return append(out, reversed(size)...)
}

func binaryToCSER(raw []byte) (bitsBuf []byte, body []byte, err error) {
	sizeBuf := &byteReader{buf: reversed(tail(raw, 9))}
	bitsSize := readUint64Compact(sizeBuf)

	raw = raw[:len(raw)-sizeBuf.pos]
	if uint64(len(raw)) < bitsSize {
		return nil, nil, ErrMalformedEncoding
	}
	split := uint64(len(raw)) - bitsSize
	return raw[split:], raw[:split], nil
}

// writeUint64Compact is a base-128 varint where the high bit marks the last byte.
func writeUint64Compact(buf []byte, v uint64) []byte {
	for {
		chunk := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, chunk|0x80)
		}
		buf = append(buf, chunk)
	}
}

func readUint64Compact(r *byteReader) uint64 {
	var v uint64
	for i := 0; ; i++ {
		chunk := r.readByte()
		word := uint64(chunk & 0x7f)
		stop := chunk&0x80 != 0
		if i > 0 && stop && word == 0 {
			panic(ErrNonCanonicalEncoding)
		}
		v |= word << (7 * uint(i))
		if stop {
			return v
		}
	}
}

func tail(b []byte, n int) []byte {
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
