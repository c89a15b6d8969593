package wasm

import (
	"fmt"

	"github.com/DanielCarmingham/WasmNet/api"
)

// ConstExprContext supplies the runtime state a constant expression may
// reference: the imported globals already resolved by the time this
// expression runs. A global.get in a constant expression can only name an
// imported global; nothing module-defined is visible yet, since globals
// initialize in declaration order from nothing but imports.
type ConstExprContext struct {
	ImportedGlobals []*GlobalInstance
}

// EvalConstExpr evaluates a constant expression — a global's initializer,
// or an element/data segment's offset — to a single uint64 value. Constant
// expressions never branch and never touch the operand stack beyond a
// single running accumulator, so this needs none of the control-flow
// machinery the main interpreter carries.
func EvalConstExpr(expr []Instruction, ctx ConstExprContext) (uint64, error) {
	if len(expr) == 0 {
		return 0, fmt.Errorf("wasm: empty constant expression")
	}
	// The binary format permits only a single instruction (other than the
	// implicit end) in a constant expression under the MVP + bulk-memory +
	// reference-types subset this engine supports.
	instr := expr[0]
	switch instr.Opcode {
	case OpcodeI32Const:
		return uint64(uint32(instr.I32)), nil
	case OpcodeI64Const:
		return uint64(instr.I64), nil
	case OpcodeF32Const:
		return uint64(instr.F32), nil
	case OpcodeF64Const:
		return instr.F64, nil
	case OpcodeGlobalGet:
		idx := instr.Index
		if int(idx) >= len(ctx.ImportedGlobals) {
			return 0, fmt.Errorf("wasm: constant expression references out-of-range global %d", idx)
		}
		return ctx.ImportedGlobals[idx].Get(), nil
	case OpcodeRefNull:
		return api.ReferenceNull, nil
	case OpcodeRefFunc:
		return uint64(instr.Index), nil
	default:
		return 0, fmt.Errorf("wasm: opcode %#x is not valid in a constant expression", instr.Opcode)
	}
}
