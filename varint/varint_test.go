package varint_test

import (
	"testing"

	"github.com/ftdc-go/ftdc/errs"
	"github.com/ftdc-go/ftdc/varint"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		v      uint64
		length int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{300, 2},
		{16384, 3},
		{1<<32 - 1, 5},
		{1<<64 - 1, 10},
	}

	for _, c := range cases {
		encoded := varint.Encode(nil, c.v)
		require.Len(t, encoded, c.length)
		require.Equal(t, c.length, varint.Len(c.v))

		decoded, n, err := varint.Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, c.v, decoded)
		require.Equal(t, c.length, n)
	}
}

func TestDecodeZero(t *testing.T) {
	v, n, err := varint.Decode([]byte{0x00})
	require.NoError(t, err)
	require.Equal(t, uint64(0), v)
	require.Equal(t, 1, n)
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := varint.Decode([]byte{0x80, 0x80})
	require.ErrorIs(t, err, errs.ErrTruncated)
}

func TestDecodeEmpty(t *testing.T) {
	_, _, err := varint.Decode(nil)
	require.ErrorIs(t, err, errs.ErrTruncated)
}

func TestDecodeTooLong(t *testing.T) {
	// 11 continuation bytes: exceeds MaxLen.
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}

	_, _, err := varint.Decode(buf)
	require.ErrorIs(t, err, errs.ErrCorrupt)
}

func TestDecodeConsumesOnlyItsOwnBytes(t *testing.T) {
	// encode 5, then trailing garbage; Decode must only consume 1 byte.
	buf := varint.Encode(nil, 5)
	buf = append(buf, 0xFF, 0xFF)

	v, n, err := varint.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(5), v)
	require.Equal(t, 1, n)
}
