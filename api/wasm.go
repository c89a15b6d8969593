// Package api includes constants and interfaces shared by this module's
// embedders (host code that instantiates and calls into WebAssembly) and its
// internal implementation.
package api

import (
	"context"
	"fmt"
	"math"
)

// ExternType classifies imports and exports by which section of the binary
// format describes them.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

const (
	ExternTypeFuncName   = "func"
	ExternTypeTableName  = "table"
	ExternTypeMemoryName = "memory"
	ExternTypeGlobalName = "global"
)

// ExternTypeName returns the text format name of the given ExternType.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return ExternTypeFuncName
	case ExternTypeTable:
		return ExternTypeTableName
	case ExternTypeMemory:
		return ExternTypeMemoryName
	case ExternTypeGlobal:
		return ExternTypeGlobalName
	}
	return fmt.Sprintf("%#x", et)
}

// ValueType describes a numeric type used by function parameters, results,
// locals and globals. This is the raw Wasm binary type tag, so a value of
// this type can always be written straight back into the binary format.
//
// Values of this type travel on the operand stack and in locals/globals as a
// raw uint64. Use the EncodeXxx/DecodeXxx helpers below to convert between
// the wire representation and a native Go type:
//
//   - ValueTypeI32 / ValueTypeI64 — the uint64 already holds the integer.
//   - ValueTypeF32 — EncodeF32 / DecodeF32 from/to float32.
//   - ValueTypeF64 — EncodeF64 / DecodeF64 from/to float64.
//   - ValueTypeFuncRef — either ReferenceNull or a module-scoped function index.
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit IEEE-754 floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit IEEE-754 floating point number.
	ValueTypeF64 ValueType = 0x7c
	// ValueTypeFuncRef is a nullable reference to a function.
	ValueTypeFuncRef ValueType = 0x70
)

// ValueTypeName returns the WebAssembly text format name of t, or "unknown"
// if t isn't a defined ValueType.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncRef:
		return "funcref"
	}
	return "unknown"
}

// ReferenceNull is the encoded value of a null function reference.
const ReferenceNull uint64 = math.MaxUint64

// Module is an instantiated WebAssembly module: the result of Runtime.Instantiate.
//
// Note: This is an interface for decoupling; all implementations live in this module.
type Module interface {
	fmt.Stringer

	// Name is the name this module was instantiated with.
	Name() string

	// Memory returns the memory defined by this module, or nil if it has none.
	Memory() Memory

	// ExportedFunction returns a function exported from this module, or nil.
	ExportedFunction(name string) Function

	// ExportedMemory returns a memory exported from this module, or nil.
	ExportedMemory(name string) Memory

	// ExportedGlobal returns a global exported from this module, or nil.
	ExportedGlobal(name string) Global

	// Close releases the resources owned by this module's Store entry,
	// making its name available for reuse.
	Close(context.Context) error
}

// Function is a WebAssembly function exported from an instantiated Module.
type Function interface {
	// ParamTypes are the value types accepted by this function.
	ParamTypes() []ValueType

	// ResultTypes are the value types returned by this function (0 or 1).
	ResultTypes() []ValueType

	// Call invokes the function. Arguments and the single possible result
	// are raw uint64s per ValueType's encoding rules.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Global is a WebAssembly global exported from an instantiated Module.
type Global interface {
	fmt.Stringer

	// Type describes the numeric type of the global.
	Type() ValueType

	// Get returns the current value of this global.
	Get() uint64
}

// MutableGlobal is a Global whose value can be updated at runtime.
type MutableGlobal interface {
	Global

	// Set updates the value of this global. Implementations must reject
	// this if the global was declared immutable.
	Set(v uint64)
}

// Memory allows host access to a module's linear memory.
//
// All values are little-endian, per the WebAssembly binary format.
type Memory interface {
	// Size returns the current size in bytes. Always a multiple of the
	// 65536-byte page size.
	Size() uint32

	// Grow increases memory by delta pages (65536 bytes each), returning
	// the previous size in pages and true, or (0, false) if the delta
	// would exceed the memory's max.
	Grow(delta uint32) (previousPages uint32, ok bool)

	// ReadByte reads a single byte at offset, or returns false if out of range.
	ReadByte(offset uint32) (byte, bool)

	// ReadUint32Le reads a little-endian uint32 at offset, or returns false if out of range.
	ReadUint32Le(offset uint32) (uint32, bool)

	// ReadUint64Le reads a little-endian uint64 at offset, or returns false if out of range.
	ReadUint64Le(offset uint32) (uint64, bool)

	// Read returns a byteCount-length slice of memory starting at offset, or
	// returns false if out of range. The slice aliases the underlying
	// memory: writes to the slice are writes to module memory.
	Read(offset, byteCount uint32) ([]byte, bool)

	// WriteByte writes a single byte at offset, or returns false if out of range.
	WriteByte(offset uint32, v byte) bool

	// WriteUint32Le writes v little-endian at offset, or returns false if out of range.
	WriteUint32Le(offset, v uint32) bool

	// WriteUint64Le writes v little-endian at offset, or returns false if out of range.
	WriteUint64Le(offset uint32, v uint64) bool

	// Write copies v into memory starting at offset, or returns false if out of range.
	Write(offset uint32, v []byte) bool
}

// GoFunction is a host function that operates directly on the raw operand
// stack, without the reflection-based adaptation HostFunctionBuilder.WithFunc
// performs. stack is sized to max(len(params), len(results)); GoFunction reads
// its parameters from stack[0:len(params)] and must overwrite stack[0:len(results)]
// with its results before returning.
type GoFunction interface {
	Call(ctx context.Context, stack []uint64)
}

// GoFunc adapts a function literal to GoFunction.
type GoFunc func(ctx context.Context, stack []uint64)

// Call implements GoFunction.Call.
func (f GoFunc) Call(ctx context.Context, stack []uint64) { f(ctx, stack) }

// EncodeI32 encodes input as a uint64 for use as a parameter or result with ValueTypeI32.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes input as a uint64 for use as a parameter or result with ValueTypeI64.
func EncodeI64(input int64) uint64 { return uint64(input) }

// EncodeF32 encodes input as a uint64 for use as a parameter or result with ValueTypeF32.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// DecodeF32 decodes a uint64 parameter or result with ValueTypeF32 into a float32.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// EncodeF64 encodes input as a uint64 for use as a parameter or result with ValueTypeF64.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF64 decodes a uint64 parameter or result with ValueTypeF64 into a float64.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }
