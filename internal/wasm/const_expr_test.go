package wasm

import (
	"testing"

	"github.com/DanielCarmingham/WasmNet/api"
	"github.com/stretchr/testify/require"
)

func TestEvalConstExprConsts(t *testing.T) {
	v, err := EvalConstExpr([]Instruction{{Opcode: OpcodeI32Const, I32: -5}}, ConstExprContext{})
	require.NoError(t, err)
	negFive := int32(-5)
	require.Equal(t, uint64(uint32(negFive)), v)

	v, err = EvalConstExpr([]Instruction{{Opcode: OpcodeI64Const, I64: 123456789012}}, ConstExprContext{})
	require.NoError(t, err)
	require.Equal(t, uint64(123456789012), v)
}

func TestEvalConstExprGlobalGet(t *testing.T) {
	g := &GlobalInstance{Type: &GlobalType{ValType: ValueTypeI32, Mutable: false}, Val: 77}
	v, err := EvalConstExpr([]Instruction{{Opcode: OpcodeGlobalGet, Index: 0}}, ConstExprContext{ImportedGlobals: []*GlobalInstance{g}})
	require.NoError(t, err)
	require.Equal(t, uint64(77), v)
}

func TestEvalConstExprRefNull(t *testing.T) {
	v, err := EvalConstExpr([]Instruction{{Opcode: OpcodeRefNull}}, ConstExprContext{})
	require.NoError(t, err)
	require.Equal(t, api.ReferenceNull, v)
}

func TestEvalConstExprRejectsNonConst(t *testing.T) {
	_, err := EvalConstExpr([]Instruction{{Opcode: OpcodeI32Add}}, ConstExprContext{})
	require.Error(t, err)
}
