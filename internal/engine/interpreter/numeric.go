package interpreter

import (
	"math"
	"math/bits"

	"github.com/DanielCarmingham/WasmNet/internal/moremath"
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/DanielCarmingham/WasmNet/internal/wasmruntime"
)

// evalNumeric handles every comparison, arithmetic and conversion opcode.
// It returns ok=false for anything it doesn't recognize, so the caller can
// fall through to the memory-instruction handler.
func (ce *callEngine) evalNumeric(op wasm.Opcode) (ctrlSignal, bool) {
	switch op {
	// i32 comparisons
	case wasm.OpcodeI32Eqz:
		ce.pushBool(ce.popU32() == 0)
	case wasm.OpcodeI32Eq:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a == b)
	case wasm.OpcodeI32Ne:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a != b)
	case wasm.OpcodeI32LtS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a < b)
	case wasm.OpcodeI32LtU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a < b)
	case wasm.OpcodeI32GtS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a > b)
	case wasm.OpcodeI32GtU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a > b)
	case wasm.OpcodeI32LeS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a <= b)
	case wasm.OpcodeI32LeU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a <= b)
	case wasm.OpcodeI32GeS:
		b, a := ce.popI32(), ce.popI32()
		ce.pushBool(a >= b)
	case wasm.OpcodeI32GeU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushBool(a >= b)

	// i64 comparisons
	case wasm.OpcodeI64Eqz:
		ce.pushBool(ce.popI64() == 0)
	case wasm.OpcodeI64Eq:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a == b)
	case wasm.OpcodeI64Ne:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a != b)
	case wasm.OpcodeI64LtS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a < b)
	case wasm.OpcodeI64LtU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a < b)
	case wasm.OpcodeI64GtS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a > b)
	case wasm.OpcodeI64GtU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a > b)
	case wasm.OpcodeI64LeS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a <= b)
	case wasm.OpcodeI64LeU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a <= b)
	case wasm.OpcodeI64GeS:
		b, a := ce.popI64(), ce.popI64()
		ce.pushBool(a >= b)
	case wasm.OpcodeI64GeU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushBool(a >= b)

	// f32/f64 comparisons
	case wasm.OpcodeF32Eq:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a == b)
	case wasm.OpcodeF32Ne:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a != b)
	case wasm.OpcodeF32Lt:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a < b)
	case wasm.OpcodeF32Gt:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a > b)
	case wasm.OpcodeF32Le:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a <= b)
	case wasm.OpcodeF32Ge:
		b, a := ce.popF32(), ce.popF32()
		ce.pushBool(a >= b)
	case wasm.OpcodeF64Eq:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a == b)
	case wasm.OpcodeF64Ne:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a != b)
	case wasm.OpcodeF64Lt:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a < b)
	case wasm.OpcodeF64Gt:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a > b)
	case wasm.OpcodeF64Le:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a <= b)
	case wasm.OpcodeF64Ge:
		b, a := ce.popF64(), ce.popF64()
		ce.pushBool(a >= b)

	// i32 arithmetic
	case wasm.OpcodeI32Clz:
		ce.pushI32(int32(bits.LeadingZeros32(ce.popU32())))
	case wasm.OpcodeI32Ctz:
		ce.pushI32(int32(bits.TrailingZeros32(ce.popU32())))
	case wasm.OpcodeI32Popcnt:
		ce.pushI32(int32(bits.OnesCount32(ce.popU32())))
	case wasm.OpcodeI32Add:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a + b)
	case wasm.OpcodeI32Sub:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a - b)
	case wasm.OpcodeI32Mul:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a * b)
	case wasm.OpcodeI32DivS:
		b, a := ce.popI32(), ce.popI32()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			panic(wasmruntime.ErrIntegerOverflow)
		}
		ce.pushI32(a / b)
	case wasm.OpcodeI32DivU:
		b, a := ce.popU32(), ce.popU32()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		ce.pushU32(a / b)
	case wasm.OpcodeI32RemS:
		b, a := ce.popI32(), ce.popI32()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			ce.pushI32(0)
		} else {
			ce.pushI32(a % b)
		}
	case wasm.OpcodeI32RemU:
		b, a := ce.popU32(), ce.popU32()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		ce.pushU32(a % b)
	case wasm.OpcodeI32And:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a & b)
	case wasm.OpcodeI32Or:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a | b)
	case wasm.OpcodeI32Xor:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a ^ b)
	case wasm.OpcodeI32Shl:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a << (b % 32))
	case wasm.OpcodeI32ShrS:
		b, a := ce.popU32(), ce.popI32()
		ce.pushI32(a >> (b % 32))
	case wasm.OpcodeI32ShrU:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(a >> (b % 32))
	case wasm.OpcodeI32Rotl:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(bits.RotateLeft32(a, int(b)))
	case wasm.OpcodeI32Rotr:
		b, a := ce.popU32(), ce.popU32()
		ce.pushU32(bits.RotateLeft32(a, -int(b)))

	// i64 arithmetic
	case wasm.OpcodeI64Clz:
		ce.pushI64(int64(bits.LeadingZeros64(ce.popU64())))
	case wasm.OpcodeI64Ctz:
		ce.pushI64(int64(bits.TrailingZeros64(ce.popU64())))
	case wasm.OpcodeI64Popcnt:
		ce.pushI64(int64(bits.OnesCount64(ce.popU64())))
	case wasm.OpcodeI64Add:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a + b)
	case wasm.OpcodeI64Sub:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a - b)
	case wasm.OpcodeI64Mul:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a * b)
	case wasm.OpcodeI64DivS:
		b, a := ce.popI64(), ce.popI64()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			panic(wasmruntime.ErrIntegerOverflow)
		}
		ce.pushI64(a / b)
	case wasm.OpcodeI64DivU:
		b, a := ce.popU64(), ce.popU64()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		ce.pushU64(a / b)
	case wasm.OpcodeI64RemS:
		b, a := ce.popI64(), ce.popI64()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			ce.pushI64(0)
		} else {
			ce.pushI64(a % b)
		}
	case wasm.OpcodeI64RemU:
		b, a := ce.popU64(), ce.popU64()
		if b == 0 {
			panic(wasmruntime.ErrDivideByZero)
		}
		ce.pushU64(a % b)
	case wasm.OpcodeI64And:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a & b)
	case wasm.OpcodeI64Or:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a | b)
	case wasm.OpcodeI64Xor:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a ^ b)
	case wasm.OpcodeI64Shl:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a << (b % 64))
	case wasm.OpcodeI64ShrS:
		b, a := ce.popU64(), ce.popI64()
		ce.pushI64(a >> (b % 64))
	case wasm.OpcodeI64ShrU:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(a >> (b % 64))
	case wasm.OpcodeI64Rotl:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(bits.RotateLeft64(a, int(b)))
	case wasm.OpcodeI64Rotr:
		b, a := ce.popU64(), ce.popU64()
		ce.pushU64(bits.RotateLeft64(a, -int(b)))

	// f32 arithmetic
	case wasm.OpcodeF32Abs:
		ce.pushF32(float32(math.Abs(float64(ce.popF32()))))
	case wasm.OpcodeF32Neg:
		ce.pushF32(-ce.popF32())
	case wasm.OpcodeF32Ceil:
		ce.pushF32(float32(math.Ceil(float64(ce.popF32()))))
	case wasm.OpcodeF32Floor:
		ce.pushF32(float32(math.Floor(float64(ce.popF32()))))
	case wasm.OpcodeF32Trunc:
		ce.pushF32(float32(math.Trunc(float64(ce.popF32()))))
	case wasm.OpcodeF32Nearest:
		ce.pushF32(moremath.WasmCompatNearestF32(ce.popF32()))
	case wasm.OpcodeF32Sqrt:
		ce.pushF32(float32(math.Sqrt(float64(ce.popF32()))))
	case wasm.OpcodeF32Add:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a + b)
	case wasm.OpcodeF32Sub:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a - b)
	case wasm.OpcodeF32Mul:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a * b)
	case wasm.OpcodeF32Div:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(a / b)
	case wasm.OpcodeF32Min:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(float32(moremath.WasmCompatMin(float64(a), float64(b))))
	case wasm.OpcodeF32Max:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(float32(moremath.WasmCompatMax(float64(a), float64(b))))
	case wasm.OpcodeF32Copysign:
		b, a := ce.popF32(), ce.popF32()
		ce.pushF32(float32(math.Copysign(float64(a), float64(b))))

	// f64 arithmetic
	case wasm.OpcodeF64Abs:
		ce.pushF64(math.Abs(ce.popF64()))
	case wasm.OpcodeF64Neg:
		ce.pushF64(-ce.popF64())
	case wasm.OpcodeF64Ceil:
		ce.pushF64(math.Ceil(ce.popF64()))
	case wasm.OpcodeF64Floor:
		ce.pushF64(math.Floor(ce.popF64()))
	case wasm.OpcodeF64Trunc:
		ce.pushF64(math.Trunc(ce.popF64()))
	case wasm.OpcodeF64Nearest:
		ce.pushF64(moremath.WasmCompatNearestF64(ce.popF64()))
	case wasm.OpcodeF64Sqrt:
		ce.pushF64(math.Sqrt(ce.popF64()))
	case wasm.OpcodeF64Add:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a + b)
	case wasm.OpcodeF64Sub:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a - b)
	case wasm.OpcodeF64Mul:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a * b)
	case wasm.OpcodeF64Div:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(a / b)
	case wasm.OpcodeF64Min:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(moremath.WasmCompatMin(a, b))
	case wasm.OpcodeF64Max:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(moremath.WasmCompatMax(a, b))
	case wasm.OpcodeF64Copysign:
		b, a := ce.popF64(), ce.popF64()
		ce.pushF64(math.Copysign(a, b))

	// conversions
	case wasm.OpcodeI32WrapI64:
		ce.pushI32(int32(ce.popI64()))
	case wasm.OpcodeI64ExtendI32S:
		ce.pushI64(int64(ce.popI32()))
	case wasm.OpcodeI64ExtendI32U:
		ce.pushI64(int64(ce.popU32()))
	case wasm.OpcodeF32DemoteF64:
		ce.pushF32(float32(ce.popF64()))
	case wasm.OpcodeF64PromoteF32:
		ce.pushF64(float64(ce.popF32()))
	case wasm.OpcodeF32ConvertI32S:
		ce.pushF32(float32(ce.popI32()))
	case wasm.OpcodeF32ConvertI32U:
		ce.pushF32(float32(ce.popU32()))
	case wasm.OpcodeF32ConvertI64S:
		ce.pushF32(float32(ce.popI64()))
	case wasm.OpcodeF32ConvertI64U:
		ce.pushF32(float32(ce.popU64()))
	case wasm.OpcodeF64ConvertI32S:
		ce.pushF64(float64(ce.popI32()))
	case wasm.OpcodeF64ConvertI32U:
		ce.pushF64(float64(ce.popU32()))
	case wasm.OpcodeF64ConvertI64S:
		ce.pushF64(float64(ce.popI64()))
	case wasm.OpcodeF64ConvertI64U:
		ce.pushF64(float64(ce.popU64()))
	case wasm.OpcodeI32ReinterpretF32:
		ce.pushI32(int32(uint32(ce.pop())))
	case wasm.OpcodeI64ReinterpretF64:
		ce.pushI64(int64(ce.pop()))
	case wasm.OpcodeF32ReinterpretI32:
		ce.push(uint64(ce.popU32()))
	case wasm.OpcodeF64ReinterpretI64:
		ce.push(ce.popU64())

	case wasm.OpcodeI32TruncF32S:
		ce.pushI32(truncToI32(float64(ce.popF32()), math.MinInt32, math.MaxInt32))
	case wasm.OpcodeI32TruncF32U:
		ce.pushU32(truncToU32(float64(ce.popF32())))
	case wasm.OpcodeI32TruncF64S:
		ce.pushI32(truncToI32(ce.popF64(), math.MinInt32, math.MaxInt32))
	case wasm.OpcodeI32TruncF64U:
		ce.pushU32(truncToU32(ce.popF64()))
	case wasm.OpcodeI64TruncF32S:
		ce.pushI64(truncToI64(float64(ce.popF32())))
	case wasm.OpcodeI64TruncF32U:
		ce.pushU64(truncToU64(float64(ce.popF32())))
	case wasm.OpcodeI64TruncF64S:
		ce.pushI64(truncToI64(ce.popF64()))
	case wasm.OpcodeI64TruncF64U:
		ce.pushU64(truncToU64(ce.popF64()))

	case wasm.OpcodeI32Extend8S:
		ce.pushI32(int32(int8(ce.popU32())))
	case wasm.OpcodeI32Extend16S:
		ce.pushI32(int32(int16(ce.popU32())))
	case wasm.OpcodeI64Extend8S:
		ce.pushI64(int64(int8(ce.popU64())))
	case wasm.OpcodeI64Extend16S:
		ce.pushI64(int64(int16(ce.popU64())))
	case wasm.OpcodeI64Extend32S:
		ce.pushI64(int64(int32(ce.popU64())))

	case wasm.OpcodeI32TruncSatF32S:
		ce.pushI32(truncSatToI32(float64(ce.popF32())))
	case wasm.OpcodeI32TruncSatF32U:
		ce.pushU32(truncSatToU32(float64(ce.popF32())))
	case wasm.OpcodeI32TruncSatF64S:
		ce.pushI32(truncSatToI32(ce.popF64()))
	case wasm.OpcodeI32TruncSatF64U:
		ce.pushU32(truncSatToU32(ce.popF64()))
	case wasm.OpcodeI64TruncSatF32S:
		ce.pushI64(truncSatToI64(float64(ce.popF32())))
	case wasm.OpcodeI64TruncSatF32U:
		ce.pushU64(truncSatToU64(float64(ce.popF32())))
	case wasm.OpcodeI64TruncSatF64S:
		ce.pushI64(truncSatToI64(ce.popF64()))
	case wasm.OpcodeI64TruncSatF64U:
		ce.pushU64(truncSatToU64(ce.popF64()))

	default:
		return ctrlSignal{}, false
	}
	return ctrlSignal{}, true
}

func truncToI32(v float64, lo, hi int64) int32 {
	checkTruncSource(v)
	t := math.Trunc(v)
	if t < float64(lo) || t > float64(hi) {
		panic(wasmruntime.ErrIntegerOverflow)
	}
	return int32(t)
}

func truncToU32(v float64) uint32 {
	checkTruncSource(v)
	t := math.Trunc(v)
	if t < 0 || t > math.MaxUint32 {
		panic(wasmruntime.ErrIntegerOverflow)
	}
	return uint32(t)
}

func truncToI64(v float64) int64 {
	checkTruncSource(v)
	t := math.Trunc(v)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		panic(wasmruntime.ErrIntegerOverflow)
	}
	return int64(t)
}

func truncToU64(v float64) uint64 {
	checkTruncSource(v)
	t := math.Trunc(v)
	if t < 0 || t >= math.MaxUint64 {
		panic(wasmruntime.ErrIntegerOverflow)
	}
	return uint64(t)
}

func checkTruncSource(v float64) {
	if math.IsNaN(v) {
		panic(wasmruntime.ErrInvalidConversionToInteger)
	}
	if math.IsInf(v, 0) {
		panic(wasmruntime.ErrIntegerOverflow)
	}
}

func truncSatToI32(v float64) int32 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if t < math.MinInt32 {
		return math.MinInt32
	}
	if t > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(t)
}

func truncSatToU32(v float64) uint32 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	t := math.Trunc(v)
	if t > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(t)
}

func truncSatToI64(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if t < math.MinInt64 {
		return math.MinInt64
	}
	if t >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(t)
}

func truncSatToU64(v float64) uint64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	t := math.Trunc(v)
	if t >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(t)
}
