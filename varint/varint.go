// Package varint implements the unsigned little-endian base-128 variable
// length integer encoding used throughout FTDC's delta matrix.
//
// Each byte contributes its low 7 bits to the running value at shift 7*i;
// the high bit is the continuation flag. A value is at most 10 bytes
// (ceil(64/7) = 10); an 11th continuation byte is a decode error, as is a
// byte stream that ends while the current byte still has its continuation
// bit set. Zero encodes as the single byte 0x00.
package varint

import "github.com/ftdc-go/ftdc/errs"

// MaxLen is the maximum number of bytes a valid varint can occupy.
const MaxLen = 10

// Decode reads a single unsigned varint from the front of data.
//
// Returns the decoded value and the number of bytes consumed. An empty
// input, a stream that runs out before the continuation bit clears, or a
// value that would require an 11th byte are all decode errors.
func Decode(data []byte) (uint64, int, error) {
	var value uint64

	for i := 0; i < MaxLen; i++ {
		if i >= len(data) {
			return 0, 0, errs.NewDecodeError(errs.ErrTruncated, i, "varint ended before continuation bit cleared")
		}

		b := data[i]
		value |= uint64(b&0x7f) << uint(7*i)

		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}

	return 0, 0, errs.NewDecodeError(errs.ErrCorrupt, MaxLen, "varint exceeds 10 bytes")
}

// Encode appends the base-128 encoding of v to buf and returns the
// extended slice.
//
// v must be a valid uint64; there is no caller-facing way to pass a
// negative or out-of-range value since the parameter type is unsigned.
func Encode(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}

	return append(buf, byte(v))
}

// Len returns the number of bytes Encode(nil, v) would produce, without
// allocating.
func Len(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}

	return n
}
