package interpreter

import (
	"errors"
	"math"
	"testing"

	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/DanielCarmingham/WasmNet/internal/wasmruntime"
	"github.com/stretchr/testify/require"
)

func wasmFunc(params, results []wasm.ValueType, locals []wasm.ValueType, body []wasm.Instruction, mod *wasm.ModuleInstance) *wasm.FunctionInstance {
	return &wasm.FunctionInstance{
		Kind:       wasm.FunctionKindWasm,
		Type:       &wasm.FunctionType{Params: params, Results: results},
		Body:       body,
		LocalTypes: locals,
		Module:     mod,
	}
}

func TestInterpreterAdd(t *testing.T) {
	fn := wasmFunc(
		[]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		[]wasm.ValueType{wasm.ValueTypeI32},
		nil,
		[]wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Index: 0},
			{Opcode: wasm.OpcodeLocalGet, Index: 1},
			{Opcode: wasm.OpcodeI32Add},
		},
		&wasm.ModuleInstance{},
	)
	e := NewEngine()
	results, err := e.Call(fn, []uint64{7, 35})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestInterpreterDivideByZeroTraps(t *testing.T) {
	fn := wasmFunc(
		[]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		[]wasm.ValueType{wasm.ValueTypeI32},
		nil,
		[]wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Index: 0},
			{Opcode: wasm.OpcodeLocalGet, Index: 1},
			{Opcode: wasm.OpcodeI32DivS},
		},
		&wasm.ModuleInstance{},
	)
	e := NewEngine()
	_, err := e.Call(fn, []uint64{1, 0})
	require.Error(t, err)
	require.ErrorIs(t, err, wasmruntime.ErrDivideByZero)
}

func TestInterpreterSignedDivisionOverflowTraps(t *testing.T) {
	fn := wasmFunc(
		[]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		[]wasm.ValueType{wasm.ValueTypeI32},
		nil,
		[]wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Index: 0},
			{Opcode: wasm.OpcodeLocalGet, Index: 1},
			{Opcode: wasm.OpcodeI32DivS},
		},
		&wasm.ModuleInstance{},
	)
	e := NewEngine()
	minInt32 := int32(math.MinInt32)
	_, err := e.Call(fn, []uint64{uint64(uint32(minInt32)), uint64(uint32(0xffffffff))})
	require.Error(t, err)
	require.ErrorIs(t, err, wasmruntime.ErrIntegerOverflow)
}

func TestInterpreterReinterpretRoundTrip(t *testing.T) {
	// f32.reinterpret(i32.reinterpret(x)) must be the identity for every bit
	// pattern, NaN payloads included.
	fn := wasmFunc(
		[]wasm.ValueType{wasm.ValueTypeF32},
		[]wasm.ValueType{wasm.ValueTypeF32},
		nil,
		[]wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Index: 0},
			{Opcode: wasm.OpcodeI32ReinterpretF32},
			{Opcode: wasm.OpcodeF32ReinterpretI32},
		},
		&wasm.ModuleInstance{},
	)
	e := NewEngine()
	for _, bits := range []uint64{0, 0x7fc00001, 0xffc00000, 0x7f800000, 1} {
		results, err := e.Call(fn, []uint64{bits})
		require.NoError(t, err)
		require.Equal(t, bits, results[0])
	}
}

func TestInterpreterStackOverflowTraps(t *testing.T) {
	mod := &wasm.ModuleInstance{}
	recursive := wasmFunc(nil, nil, nil, []wasm.Instruction{
		{Opcode: wasm.OpcodeCall, Index: 0},
	}, mod)
	mod.Functions = []*wasm.FunctionInstance{recursive}

	e := NewEngine()
	_, err := e.Call(recursive, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, wasmruntime.ErrStackOverflow)
}

func TestInterpreterF32MinNaN(t *testing.T) {
	fn := wasmFunc(
		[]wasm.ValueType{wasm.ValueTypeF32, wasm.ValueTypeF32},
		[]wasm.ValueType{wasm.ValueTypeF32},
		nil,
		[]wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Index: 0},
			{Opcode: wasm.OpcodeLocalGet, Index: 1},
			{Opcode: wasm.OpcodeF32Min},
		},
		&wasm.ModuleInstance{},
	)
	e := NewEngine()
	nanBits := uint64(math.Float32bits(float32(math.NaN())))
	oneBits := uint64(math.Float32bits(1.0))
	results, err := e.Call(fn, []uint64{nanBits, oneBits})
	require.NoError(t, err)
	require.True(t, math.IsNaN(float64(math.Float32frombits(uint32(results[0])))))
}

func TestInterpreterMemoryStoreLoadRoundTripAndOOB(t *testing.T) {
	mod := &wasm.ModuleInstance{Memories: []*wasm.MemoryInstance{wasm.NewMemoryInstance(1, nil)}}
	storeFn := wasmFunc(
		[]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		nil, nil,
		[]wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Index: 0},
			{Opcode: wasm.OpcodeLocalGet, Index: 1},
			{Opcode: wasm.OpcodeI32Store},
		},
		mod,
	)
	loadFn := wasmFunc(
		[]wasm.ValueType{wasm.ValueTypeI32},
		[]wasm.ValueType{wasm.ValueTypeI32}, nil,
		[]wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Index: 0},
			{Opcode: wasm.OpcodeI32Load},
		},
		mod,
	)
	e := NewEngine()
	_, err := e.Call(storeFn, []uint64{8, 0xcafebabe})
	require.NoError(t, err)
	results, err := e.Call(loadFn, []uint64{8})
	require.NoError(t, err)
	require.Equal(t, uint64(0xcafebabe), results[0])

	_, err = e.Call(loadFn, []uint64{uint64(len(mod.Memories[0].Buffer))})
	require.Error(t, err)
	require.ErrorIs(t, err, wasmruntime.ErrOutOfBoundsMemory)
}

func TestInterpreterHostImportCallCounting(t *testing.T) {
	calls := 0
	host := &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}},
		GoFunc: func(stack []uint64) {
			calls++
		},
		HostName: "env.count",
	}
	mod := &wasm.ModuleInstance{Functions: []*wasm.FunctionInstance{host}}
	caller := wasmFunc(nil, nil, nil, []wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, I32: 1},
		{Opcode: wasm.OpcodeCall, Index: 0},
		{Opcode: wasm.OpcodeI32Const, I32: 2},
		{Opcode: wasm.OpcodeCall, Index: 0},
	}, mod)
	mod.Functions = append(mod.Functions, caller)

	e := NewEngine()
	_, err := e.Call(caller, nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestInterpreterHostPanicBecomesHostTrap(t *testing.T) {
	hostErr := errors.New("backend unavailable")
	host := &wasm.FunctionInstance{
		Kind:     wasm.FunctionKindHost,
		Type:     &wasm.FunctionType{},
		GoFunc:   func([]uint64) { panic(hostErr) },
		HostName: "env.fail",
	}
	mod := &wasm.ModuleInstance{Functions: []*wasm.FunctionInstance{host}}
	caller := wasmFunc(nil, nil, nil, []wasm.Instruction{
		{Opcode: wasm.OpcodeCall, Index: 0},
	}, mod)

	e := NewEngine()
	_, err := e.Call(caller, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, hostErr)

	var trap *wasmruntime.Trap
	require.ErrorAs(t, err, &trap)
	require.Equal(t, wasmruntime.TrapKindHost, trap.Kind)
}

func TestInterpreterIndirectCallTypeMismatch(t *testing.T) {
	target := wasmFunc([]wasm.ValueType{wasm.ValueTypeI64}, []wasm.ValueType{wasm.ValueTypeI64}, nil, []wasm.Instruction{
		{Opcode: wasm.OpcodeLocalGet, Index: 0},
	}, nil)

	tbl := wasm.NewTableInstance(1, nil)
	tbl.Set(0, 0)

	mod := &wasm.ModuleInstance{
		Types:     []wasm.FunctionType{{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		Functions: []*wasm.FunctionInstance{target},
		Tables:    []*wasm.TableInstance{tbl},
	}
	target.Module = mod

	caller := wasmFunc(nil, nil, nil, []wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, I32: 99},
		{Opcode: wasm.OpcodeI32Const, I32: 0},
		{Opcode: wasm.OpcodeCallIndirect, Index: 0, Index2: 0},
	}, mod)

	e := NewEngine()
	_, err := e.Call(caller, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, wasmruntime.ErrIndirectCallTypeMismatch)
}

func TestInterpreterBranchOutOfLoop(t *testing.T) {
	// Counts from 0 to 3 via a loop with a conditional branch out.
	body := []wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, I32: 0}, // i=0, local 0 holds accumulator via local.set below
		{Opcode: wasm.OpcodeLocalSet, Index: 0},
		{Opcode: wasm.OpcodeBlock, Block: &wasm.ControlBlock{
			Then: []wasm.Instruction{
				{Opcode: wasm.OpcodeLoop, Block: &wasm.ControlBlock{
					Then: []wasm.Instruction{
						{Opcode: wasm.OpcodeLocalGet, Index: 0},
						{Opcode: wasm.OpcodeI32Const, I32: 1},
						{Opcode: wasm.OpcodeI32Add},
						{Opcode: wasm.OpcodeLocalSet, Index: 0},

						{Opcode: wasm.OpcodeLocalGet, Index: 0},
						{Opcode: wasm.OpcodeI32Const, I32: 3},
						{Opcode: wasm.OpcodeI32GeS},
						{Opcode: wasm.OpcodeBrIf, Index: 1}, // branch out of the block

						{Opcode: wasm.OpcodeBr, Index: 0}, // continue loop
					},
				}},
			},
		}},
		{Opcode: wasm.OpcodeLocalGet, Index: 0},
	}
	fn := wasmFunc(nil, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32}, body, &wasm.ModuleInstance{})
	e := NewEngine()
	results, err := e.Call(fn, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{3}, results)
}
