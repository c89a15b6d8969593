// Package binary decodes the WebAssembly binary format into an
// internal/wasm.Module.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-format%E2%91%A0
package binary

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/DanielCarmingham/WasmNet/internal/leb128"
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
)

// reader tracks the current byte offset alongside a *bytes.Reader so
// DecodeError can report where a failure occurred.
type reader struct {
	r        *bytes.Reader
	offset   uint64
	features Features
}

func newReader(b []byte) *reader {
	return &reader{r: bytes.NewReader(b)}
}

func (r *reader) byteOffset() uint64 { return r.offset }

func (r *reader) readByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, err
	}
	r.offset++
	return b, nil
}

func (r *reader) readBytes(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(r.r, buf)
	r.offset += uint64(read)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *reader) remaining() int { return r.r.Len() }

func (r *reader) u32() (uint32, error) {
	v, n, err := leb128.DecodeUint32(r.r)
	r.offset += n
	if err != nil {
		return 0, wrapLEBErr(err)
	}
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	v, n, err := leb128.DecodeUint64(r.r)
	r.offset += n
	if err != nil {
		return 0, wrapLEBErr(err)
	}
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, n, err := leb128.DecodeInt32(r.r)
	r.offset += n
	if err != nil {
		return 0, wrapLEBErr(err)
	}
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, n, err := leb128.DecodeInt64(r.r)
	r.offset += n
	if err != nil {
		return 0, wrapLEBErr(err)
	}
	return v, nil
}

// s33 decodes a signed 33-bit LEB128, the encoding the binary format uses
// for a block type immediate: negative one-byte values select the empty
// type or a single ValueType, non-negative values index the type section.
func (r *reader) s33() (int64, error) {
	v, n, err := leb128.DecodeInt64(r.r) // 33 bits fits comfortably in the 64-bit decoder
	r.offset += n
	if err != nil {
		return 0, wrapLEBErr(err)
	}
	return v, nil
}

func wrapLEBErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (r *reader) f32Bits() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (r *reader) f64Bits() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", wasm.NewDecodeError(wasm.DecodeErrorBadUTF8, r.offset, "import/export/name field is not valid UTF-8")
	}
	return string(b), nil
}

func (r *reader) valueType() (wasm.ValueType, error) {
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case byte(wasm.ValueTypeI32), byte(wasm.ValueTypeI64), byte(wasm.ValueTypeF32), byte(wasm.ValueTypeF64), byte(wasm.ValueTypeFuncRef):
		return wasm.ValueType(b), nil
	default:
		return 0, wasm.NewDecodeError(wasm.DecodeErrorBadValueType, r.offset-1, "")
	}
}

func (r *reader) limits() (min uint32, max *uint32, err error) {
	flag, err := r.readByte()
	if err != nil {
		return 0, nil, err
	}
	if flag > 1 {
		return 0, nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset-1, "bad limits flag")
	}
	min, err = r.u32()
	if err != nil {
		return 0, nil, err
	}
	if flag == 1 {
		m, err := r.u32()
		if err != nil {
			return 0, nil, err
		}
		max = &m
	}
	return min, max, nil
}
