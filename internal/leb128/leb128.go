// Package leb128 implements the variable-length integer encoding used
// throughout the WebAssembly binary format, per the DWARF LEB128 rules.
package leb128

import (
	"errors"
	"io"
)

// ErrOverflow is returned when a varint uses more bytes than its target
// width allows (5 bytes for 32-bit values, 10 bytes for 64-bit values).
var ErrOverflow = errors.New("leb128: overflow")

// DecodeUint32 reads an unsigned LEB128 value into a uint32, returning the
// value and the number of bytes consumed.
func DecodeUint32(r io.ByteReader) (uint32, uint64, error) {
	v, n, err := decodeUnsigned(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 reads an unsigned LEB128 value into a uint64, returning the
// value and the number of bytes consumed.
func DecodeUint64(r io.ByteReader) (uint64, uint64, error) {
	return decodeUnsigned(r, 64)
}

// DecodeInt32 reads a signed LEB128 value into an int32, returning the value
// and the number of bytes consumed.
func DecodeInt32(r io.ByteReader) (int32, uint64, error) {
	v, n, err := decodeSigned(r, 32)
	return int32(v), n, err
}

// DecodeInt64 reads a signed LEB128 value into an int64, returning the value
// and the number of bytes consumed.
func DecodeInt64(r io.ByteReader) (int64, uint64, error) {
	return decodeSigned(r, 64)
}

func decodeUnsigned(r io.ByteReader, width int) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	maxBytes := (width + 6) / 7 // 5 for 32, 10 for 64
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				return 0, n, io.ErrUnexpectedEOF
			}
			return 0, n, err
		}
		n++
		if int(n) > maxBytes {
			return 0, n, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, n, nil
}

func decodeSigned(r io.ByteReader, width int) (int64, uint64, error) {
	var result int64
	var shift uint
	var n uint64
	var b byte
	var err error
	maxBytes := (width + 6) / 7
	for {
		b, err = r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				return 0, n, io.ErrUnexpectedEOF
			}
			return 0, n, err
		}
		n++
		if int(n) > maxBytes {
			return 0, n, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	// Sign-extend if the sign bit of the last group is set and there are
	// remaining high bits in the target width.
	if shift < uint(width) && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, n, nil
}

// EncodeUint32 encodes v as unsigned LEB128.
func EncodeUint32(v uint32) []byte { return EncodeUint64(uint64(v)) }

// EncodeUint64 encodes v as unsigned LEB128.
func EncodeUint64(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 encodes v as signed LEB128.
func EncodeInt32(v int32) []byte { return EncodeInt64(int64(v)) }

// EncodeInt64 encodes v as signed LEB128.
func EncodeInt64(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, b)
			return out
		}
		out = append(out, b|0x80)
	}
}
