package binary

import (
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
)

// decodeExpr decodes a top-level expression (a function body, a global
// initializer, or a segment's offset expression): a flat instruction
// sequence terminated by 0x0B, with any nested block/loop/if materializing
// its own nested sequence. The structured control flow is kept as a tree;
// branches are resolved against it at execution time rather than being
// flattened to jump offsets here.
func decodeExpr(r *reader, types []wasm.FunctionType) ([]wasm.Instruction, error) {
	body, hasElse, err := decodeInstrSeq(r, types, false)
	if err != nil {
		return nil, err
	}
	if hasElse {
		return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset, "unexpected else outside if")
	}
	return body, nil
}

// decodeInstrSeq decodes instructions until a terminating 0x0B (end), or,
// when allowElse is true, a 0x05 (else) — in which case hasElse is true and
// the reader is positioned just after the 0x05 for the caller to decode the
// else arm.
func decodeInstrSeq(r *reader, types []wasm.FunctionType, allowElse bool) (seq []wasm.Instruction, hasElse bool, err error) {
	for {
		op, err := r.readByte()
		if err != nil {
			return nil, false, err
		}
		switch op {
		case byte(wasm.OpcodeEnd):
			return seq, false, nil
		case byte(wasm.OpcodeElse):
			if allowElse {
				return seq, true, nil
			}
			return nil, false, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset-1, "unexpected else")
		}
		instr, err := decodeInstr(r, types, wasm.Opcode(op))
		if err != nil {
			return nil, false, err
		}
		seq = append(seq, instr)
	}
}

func decodeBlockType(r *reader, types []wasm.FunctionType) (wasm.BlockType, error) {
	v, err := r.s33()
	if err != nil {
		return wasm.BlockType{}, err
	}
	if v == -0x40 {
		return wasm.BlockType{}, nil
	}
	if v < 0 {
		return wasm.BlockType{HasResult: true, ResultType: wasm.ValueType(v & 0x7f)}, nil
	}
	idx := int(v)
	if idx < 0 || idx >= len(types) {
		return wasm.BlockType{}, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset, "block type references out-of-range function type")
	}
	ft := types[idx]
	if len(ft.Params) != 0 {
		return wasm.BlockType{}, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset, "blocks with parameters are unsupported")
	}
	if len(ft.Results) == 0 {
		return wasm.BlockType{}, nil
	}
	return wasm.BlockType{HasResult: true, ResultType: ft.Results[0]}, nil
}

func decodeInstr(r *reader, types []wasm.FunctionType, op wasm.Opcode) (wasm.Instruction, error) {
	switch op {
	case wasm.OpcodeBlock, wasm.OpcodeLoop:
		bt, err := decodeBlockType(r, types)
		if err != nil {
			return wasm.Instruction{}, err
		}
		then, _, err := decodeInstrSeq(r, types, false)
		if err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Block: &wasm.ControlBlock{Type: bt, Then: then}}, nil

	case wasm.OpcodeIf:
		bt, err := decodeBlockType(r, types)
		if err != nil {
			return wasm.Instruction{}, err
		}
		then, hasElse, err := decodeInstrSeq(r, types, true)
		if err != nil {
			return wasm.Instruction{}, err
		}
		var elseSeq []wasm.Instruction
		if hasElse {
			elseSeq, _, err = decodeInstrSeq(r, types, false)
			if err != nil {
				return wasm.Instruction{}, err
			}
		}
		return wasm.Instruction{Opcode: op, Block: &wasm.ControlBlock{Type: bt, Then: then, Else: elseSeq}}, nil

	case wasm.OpcodeBr, wasm.OpcodeBrIf:
		idx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: idx}, err

	case wasm.OpcodeBrTable:
		n, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		labels := make([]wasm.Index, n)
		for i := range labels {
			if labels[i], err = r.u32(); err != nil {
				return wasm.Instruction{}, err
			}
		}
		def, err := r.u32()
		return wasm.Instruction{Opcode: op, Labels: labels, Default: def}, err

	case wasm.OpcodeCall:
		idx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: idx}, err

	case wasm.OpcodeCallIndirect:
		typeIdx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		tableIdx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: typeIdx, Index2: tableIdx}, err

	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
		wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		idx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: idx}, err

	case wasm.OpcodeTableGet, wasm.OpcodeTableSet, wasm.OpcodeRefFunc:
		if !r.features.ReferenceTypes {
			return wasm.Instruction{}, wasm.NewDecodeError(wasm.DecodeErrorDisabledFeature, r.offset-1, "reference types are disabled")
		}
		idx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: idx}, err

	case wasm.OpcodeRefNull, wasm.OpcodeRefIsNull:
		if !r.features.ReferenceTypes {
			return wasm.Instruction{}, wasm.NewDecodeError(wasm.DecodeErrorDisabledFeature, r.offset-1, "reference types are disabled")
		}
		if op == wasm.OpcodeRefNull {
			if _, err := r.readByte(); err != nil { // reftype, always funcref here
				return wasm.Instruction{}, err
			}
		}
		return wasm.Instruction{Opcode: op}, nil

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		if _, err := r.readByte(); err != nil { // reserved memory index, always 0
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op}, nil

	case wasm.OpcodeI32Load, wasm.OpcodeI64Load, wasm.OpcodeF32Load, wasm.OpcodeF64Load,
		wasm.OpcodeI32Load8S, wasm.OpcodeI32Load8U, wasm.OpcodeI32Load16S, wasm.OpcodeI32Load16U,
		wasm.OpcodeI64Load8S, wasm.OpcodeI64Load8U, wasm.OpcodeI64Load16S, wasm.OpcodeI64Load16U,
		wasm.OpcodeI64Load32S, wasm.OpcodeI64Load32U,
		wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		align, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		offset, err := r.u32()
		return wasm.Instruction{Opcode: op, MemArg: wasm.MemArg{Align: align, Offset: offset}}, err

	case wasm.OpcodeI32Const:
		v, err := r.i32()
		return wasm.Instruction{Opcode: op, I32: v}, err
	case wasm.OpcodeI64Const:
		v, err := r.i64()
		return wasm.Instruction{Opcode: op, I64: v}, err
	case wasm.OpcodeF32Const:
		v, err := r.f32Bits()
		return wasm.Instruction{Opcode: op, F32: v}, err
	case wasm.OpcodeF64Const:
		v, err := r.f64Bits()
		return wasm.Instruction{Opcode: op, F64: v}, err

	case 0xfc:
		sub, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		if sub > 14 {
			return wasm.Instruction{}, wasm.NewDecodeError(wasm.DecodeErrorBadOpcode, r.offset, "")
		}
		if sub >= 8 && !r.features.BulkMemoryOperations {
			return wasm.Instruction{}, wasm.NewDecodeError(wasm.DecodeErrorDisabledFeature, r.offset, "bulk memory operations are disabled")
		}
		return decodeMiscInstr(r, wasm.OpcodeMiscPrefix+wasm.Opcode(sub))

	default:
		if !isNoImmediateOpcode(op) {
			return wasm.Instruction{}, wasm.NewDecodeError(wasm.DecodeErrorBadOpcode, r.offset-1, "")
		}
		return wasm.Instruction{Opcode: op}, nil
	}
}

// isNoImmediateOpcode reports whether op is a defined single-byte opcode
// carrying no immediate operands: the numeric, parametric and bare control
// instructions that don't need their own decode case above.
func isNoImmediateOpcode(op wasm.Opcode) bool {
	switch op {
	case wasm.OpcodeUnreachable, wasm.OpcodeNop, wasm.OpcodeReturn,
		wasm.OpcodeDrop, wasm.OpcodeSelect:
		return true
	}
	return op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeI64Extend32S
}

func decodeMiscInstr(r *reader, op wasm.Opcode) (wasm.Instruction, error) {
	switch op {
	case wasm.OpcodeMemoryInit:
		dataIdx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		if _, err := r.readByte(); err != nil { // reserved memory index
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op, Index: dataIdx}, nil
	case wasm.OpcodeDataDrop:
		idx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: idx}, err
	case wasm.OpcodeMemoryCopy:
		if _, err := r.readByte(); err != nil {
			return wasm.Instruction{}, err
		}
		if _, err := r.readByte(); err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op}, nil
	case wasm.OpcodeMemoryFill:
		if _, err := r.readByte(); err != nil {
			return wasm.Instruction{}, err
		}
		return wasm.Instruction{Opcode: op}, nil
	case wasm.OpcodeTableInit:
		elemIdx, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		tableIdx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: elemIdx, Index2: tableIdx}, err
	case wasm.OpcodeElemDrop:
		idx, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: idx}, err
	case wasm.OpcodeTableCopy:
		dstTable, err := r.u32()
		if err != nil {
			return wasm.Instruction{}, err
		}
		srcTable, err := r.u32()
		return wasm.Instruction{Opcode: op, Index: dstTable, Index2: srcTable}, err
	default:
		// Truncation-saturation conversions take no immediate.
		return wasm.Instruction{Opcode: op}, nil
	}
}
