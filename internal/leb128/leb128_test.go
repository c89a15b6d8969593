package leb128

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInt32(t *testing.T) {
	for _, c := range []struct {
		input    int32
		expected []byte
	}{
		{input: -165675008, expected: []byte{0x80, 0x80, 0x80, 0xb1, 0x7f}},
		{input: -624485, expected: []byte{0x9b, 0xf1, 0x59}},
		{input: -4, expected: []byte{0x7c}},
		{input: -1, expected: []byte{0x7f}},
		{input: 0, expected: []byte{0x00}},
		{input: 1, expected: []byte{0x01}},
		{input: 624485, expected: []byte{0xe5, 0x8e, 0x26}},
		{input: math.MaxInt32, expected: []byte{0xff, 0xff, 0xff, 0xff, 0x7}},
	} {
		require.Equal(t, c.expected, EncodeInt32(c.input))
		decoded, n, err := DecodeInt32(bytes.NewReader(c.expected))
		require.NoError(t, err)
		require.Equal(t, c.input, decoded)
		require.Equal(t, uint64(len(c.expected)), n)
	}
}

func TestEncodeDecodeInt64(t *testing.T) {
	for _, c := range []struct {
		input    int64
		expected []byte
	}{
		{input: -624485, expected: []byte{0x9b, 0xf1, 0x59}},
		{input: 0, expected: []byte{0x00}},
		{input: math.MaxInt64, expected: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x0}},
		{input: math.MinInt64, expected: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x7f}},
	} {
		require.Equal(t, c.expected, EncodeInt64(c.input))
		decoded, _, err := DecodeInt64(bytes.NewReader(c.expected))
		require.NoError(t, err)
		require.Equal(t, c.input, decoded)
	}
}

func TestEncodeDecodeUint32(t *testing.T) {
	for _, c := range []struct {
		input    uint32
		expected []byte
	}{
		{input: 0, expected: []byte{0x00}},
		{input: 1, expected: []byte{0x01}},
		{input: 624485, expected: []byte{0xe5, 0x8e, 0x26}},
		{input: math.MaxUint32, expected: []byte{0xff, 0xff, 0xff, 0xff, 0xf}},
	} {
		require.Equal(t, c.expected, EncodeUint32(c.input))
		decoded, _, err := DecodeUint32(bytes.NewReader(c.expected))
		require.NoError(t, err)
		require.Equal(t, c.input, decoded)
	}
}

func TestDecodeOverlong(t *testing.T) {
	// six bytes (five continuation bytes) is one too many for a 32-bit value.
	overlong := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}
	_, _, err := DecodeUint32(bytes.NewReader(overlong))
	require.ErrorIs(t, err, ErrOverflow)

	_, _, err = DecodeInt32(bytes.NewReader(overlong))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestDecodeUnexpectedEOF(t *testing.T) {
	truncated := []byte{0x80, 0x80}
	_, _, err := DecodeUint32(bytes.NewReader(truncated))
	require.Error(t, err)
}
