// Package varint implements the unsigned LEB128-style variable-length
// integer encoding used throughout the on-disk index format: 7 payload
// bits per byte, little-endian, continuation bit in the high bit of each
// byte.
package varint

// MaxLen32 is the maximum number of bytes required to encode a uint32.
const MaxLen32 = 5

// MaxLen64 is the maximum number of bytes required to encode a uint64.
const MaxLen64 = 10

// AppendUvarint appends the varint encoding of v to dst and returns the
// extended slice.
func AppendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Uvarint decodes a varint from the front of buf, returning the value and
// the number of bytes consumed. It returns n == 0 if buf is too short and
// n < 0 if the varint overflows 64 bits.
func Uvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if i == MaxLen64 {
			return 0, -(i + 1)
		}
		if b < 0x80 {
			return v | uint64(b)<<shift, i + 1
		}
		v |= uint64(b&0x7f) << shift
		shift += 7
	}
	return 0, 0
}

// Len returns the number of bytes AppendUvarint would write for v.
func Len(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ZigZagMinDelta encodes a signed i64 value as an unsigned delta against a
// per-field minimum: value - min. Per spec, this is never negative by
// construction; callers must validate value >= min before calling (see
// docinfo.Builder.AddDoc, which returns ErrI64OutOfRange instead of
// silently wrapping).
func ZigZagMinDelta(value, min int64) uint64 {
	return uint64(value - min)
}

// FromMinDelta reverses ZigZagMinDelta.
func FromMinDelta(delta uint64, min int64) int64 {
	return min + int64(delta)
}
