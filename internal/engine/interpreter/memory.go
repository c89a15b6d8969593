package interpreter

import (
	"math"

	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/DanielCarmingham/WasmNet/internal/wasmruntime"
)

// evalMemory handles every load/store and bulk-memory/table instruction. ok
// is false for anything it doesn't recognize.
func (ce *callEngine) evalMemory(frame *callFrame, instr *wasm.Instruction) (ctrlSignal, bool) {
	mem := func() *wasm.MemoryInstance { return frame.fn.Module.Memories[0] }

	switch instr.Opcode {
	case wasm.OpcodeI32Load:
		ce.pushU32(loadU32(mem(), ce.effAddr(instr)))
	case wasm.OpcodeI64Load:
		ce.pushU64(loadU64(mem(), ce.effAddr(instr)))
	case wasm.OpcodeF32Load:
		ce.push(uint64(loadU32(mem(), ce.effAddr(instr))))
	case wasm.OpcodeF64Load:
		ce.push(loadU64(mem(), ce.effAddr(instr)))
	case wasm.OpcodeI32Load8S:
		ce.pushI32(int32(int8(loadByte(mem(), ce.effAddr(instr)))))
	case wasm.OpcodeI32Load8U:
		ce.pushU32(uint32(loadByte(mem(), ce.effAddr(instr))))
	case wasm.OpcodeI32Load16S:
		ce.pushI32(int32(int16(loadU16(mem(), ce.effAddr(instr)))))
	case wasm.OpcodeI32Load16U:
		ce.pushU32(uint32(loadU16(mem(), ce.effAddr(instr))))
	case wasm.OpcodeI64Load8S:
		ce.pushI64(int64(int8(loadByte(mem(), ce.effAddr(instr)))))
	case wasm.OpcodeI64Load8U:
		ce.pushU64(uint64(loadByte(mem(), ce.effAddr(instr))))
	case wasm.OpcodeI64Load16S:
		ce.pushI64(int64(int16(loadU16(mem(), ce.effAddr(instr)))))
	case wasm.OpcodeI64Load16U:
		ce.pushU64(uint64(loadU16(mem(), ce.effAddr(instr))))
	case wasm.OpcodeI64Load32S:
		ce.pushI64(int64(int32(loadU32(mem(), ce.effAddr(instr)))))
	case wasm.OpcodeI64Load32U:
		ce.pushU64(uint64(loadU32(mem(), ce.effAddr(instr))))

	case wasm.OpcodeI32Store:
		v := ce.popU32()
		storeU32(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeI64Store:
		v := ce.popU64()
		storeU64(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeF32Store:
		v := uint32(ce.pop())
		storeU32(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeF64Store:
		v := ce.pop()
		storeU64(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeI32Store8:
		v := byte(ce.popU32())
		storeByte(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeI32Store16:
		v := uint16(ce.popU32())
		storeU16(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeI64Store8:
		v := byte(ce.popU64())
		storeByte(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeI64Store16:
		v := uint16(ce.popU64())
		storeU16(mem(), ce.effAddr(instr), v)
	case wasm.OpcodeI64Store32:
		v := uint32(ce.popU64())
		storeU32(mem(), ce.effAddr(instr), v)

	case wasm.OpcodeMemorySize:
		ce.pushU32(mem().PageSize())
	case wasm.OpcodeMemoryGrow:
		ce.pushU32(mem().Grow(ce.popU32()))

	case wasm.OpcodeMemoryInit:
		di := &frame.fn.Module.DataInstances[instr.Index]
		length := ce.popU32()
		src := ce.popU32()
		dest := ce.popU32()
		bytes := di.Bytes
		if di.Dropped {
			bytes = nil
		}
		if !mem().InitData(bytes, dest, src, length) {
			panic(wasmruntime.ErrOutOfBoundsMemory)
		}
	case wasm.OpcodeDataDrop:
		frame.fn.Module.DataInstances[instr.Index].Dropped = true
	case wasm.OpcodeMemoryCopy:
		length := ce.popU32()
		src := ce.popU32()
		dest := ce.popU32()
		if !mem().CopyWithinMemory(dest, src, length) {
			panic(wasmruntime.ErrOutOfBoundsMemory)
		}
	case wasm.OpcodeMemoryFill:
		length := ce.popU32()
		v := byte(ce.popU32())
		dest := ce.popU32()
		if !mem().Fill(dest, v, length) {
			panic(wasmruntime.ErrOutOfBoundsMemory)
		}

	case wasm.OpcodeTableInit:
		ei := &frame.fn.Module.ElemInstances[instr.Index]
		tbl := frame.fn.Module.Tables[instr.Index2]
		length := ce.popU32()
		src := ce.popU32()
		dest := ce.popU32()
		refs := ei.Refs
		if ei.Dropped {
			refs = nil
		}
		if !tbl.Init(refs, dest, src, length) {
			panic(wasmruntime.ErrOutOfBoundsTable)
		}
	case wasm.OpcodeElemDrop:
		frame.fn.Module.ElemInstances[instr.Index].Dropped = true
	case wasm.OpcodeTableCopy:
		length := ce.popU32()
		src := ce.popU32()
		dest := ce.popU32()
		dst := frame.fn.Module.Tables[instr.Index]
		srcTbl := frame.fn.Module.Tables[instr.Index2]
		refs := make([]wasm.Reference, srcTbl.Len())
		for i := range refs {
			refs[i], _ = srcTbl.Get(uint32(i))
		}
		if !dst.Init(refs, dest, src, length) {
			panic(wasmruntime.ErrOutOfBoundsTable)
		}

	default:
		return ctrlSignal{}, false
	}
	return ctrlSignal{}, true
}

// effAddr computes a load/store's effective address (dynamic operand +
// static offset), popping the dynamic operand off the stack. Both operands
// are widened to u64 before adding, so a base near 2^32-1 plus a large
// static offset traps as out-of-bounds instead of silently wrapping back
// into the valid range.
func (ce *callEngine) effAddr(instr *wasm.Instruction) uint64 {
	base := ce.popU32()
	return uint64(base) + uint64(instr.MemArg.Offset)
}

func checkAddr(m *wasm.MemoryInstance, addr uint64, size uint64) uint32 {
	if addr+size > uint64(len(m.Buffer)) || addr > math.MaxUint32 {
		panic(wasmruntime.ErrOutOfBoundsMemory)
	}
	return uint32(addr)
}

func loadByte(m *wasm.MemoryInstance, addr uint64) byte {
	v, _ := m.ReadByte(checkAddr(m, addr, 1))
	return v
}

func loadU16(m *wasm.MemoryInstance, addr uint64) uint16 {
	a := checkAddr(m, addr, 2)
	lo, _ := m.ReadByte(a)
	hi, _ := m.ReadByte(a + 1)
	return uint16(lo) | uint16(hi)<<8
}

func loadU32(m *wasm.MemoryInstance, addr uint64) uint32 {
	v, _ := m.ReadUint32Le(checkAddr(m, addr, 4))
	return v
}

func loadU64(m *wasm.MemoryInstance, addr uint64) uint64 {
	v, _ := m.ReadUint64Le(checkAddr(m, addr, 8))
	return v
}

func storeByte(m *wasm.MemoryInstance, addr uint64, v byte) {
	m.WriteByte(checkAddr(m, addr, 1), v)
}

func storeU16(m *wasm.MemoryInstance, addr uint64, v uint16) {
	a := checkAddr(m, addr, 2)
	m.WriteByte(a, byte(v))
	m.WriteByte(a+1, byte(v>>8))
}

func storeU32(m *wasm.MemoryInstance, addr uint64, v uint32) {
	m.WriteUint32Le(checkAddr(m, addr, 4), v)
}

func storeU64(m *wasm.MemoryInstance, addr uint64, v uint64) {
	m.WriteUint64Le(checkAddr(m, addr, 8), v)
}
