package binary

import (
	"testing"

	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/stretchr/testify/require"
)

// addModule is a hand-assembled binary exporting a single function "add"
// with signature (i32,i32)->i32 whose body is local.get 0; local.get 1;
// i32.add; end.
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version

	// type section
	0x01, 0x07,
	0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,

	// function section
	0x03, 0x02,
	0x01, 0x00,

	// export section
	0x07, 0x07,
	0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,

	// code section
	0x0a, 0x09,
	0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func TestDecodeModuleAdd(t *testing.T) {
	m, err := DecodeModule(addModule, NewFeatures())
	require.NoError(t, err)

	require.Len(t, m.TypeSection, 1)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.TypeSection[0].Params)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.TypeSection[0].Results)

	require.Equal(t, []wasm.Index{0}, m.FunctionSection)
	require.Len(t, m.ExportSection, 1)
	require.Equal(t, "add", m.ExportSection[0].Name)
	require.Equal(t, wasm.ExternKindFunc, m.ExportSection[0].Kind)

	require.Len(t, m.CodeSection, 1)
	body := m.CodeSection[0].Body
	require.Len(t, body, 3)
	require.Equal(t, wasm.OpcodeLocalGet, body[0].Opcode)
	require.Equal(t, wasm.Index(0), body[0].Index)
	require.Equal(t, wasm.OpcodeLocalGet, body[1].Opcode)
	require.Equal(t, wasm.Index(1), body[1].Index)
	require.Equal(t, wasm.OpcodeI32Add, body[2].Opcode)
}

func TestDecodeModuleBadMagic(t *testing.T) {
	bad := append([]byte{}, addModule...)
	bad[0] = 0xff
	_, err := DecodeModule(bad, NewFeatures())
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, wasm.DecodeErrorBadMagic, decErr.Kind)
}

func TestDecodeModuleTruncated(t *testing.T) {
	_, err := DecodeModule(addModule[:len(addModule)-3], NewFeatures())
	require.Error(t, err)
}

func TestDecodeModuleDataCountBeforeCode(t *testing.T) {
	// The data-count section (id 12) is ordered between the element and code
	// sections, not after them, despite its id.
	b := []byte{
		0x00, 0x61, 0x73, 0x6d,
		0x01, 0x00, 0x00, 0x00,

		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		// data count: 1
		0x0c, 0x01, 0x01,
		// code: one empty body
		0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
		// data: one passive segment, no bytes
		0x0b, 0x03, 0x01, 0x01, 0x00,
	}
	m, err := DecodeModule(b, NewFeatures())
	require.NoError(t, err)
	require.NotNil(t, m.DataCountSection)
	require.Equal(t, uint32(1), *m.DataCountSection)
	require.Len(t, m.DataSection, 1)
	require.True(t, m.DataSection[0].Passive)
}

func TestDecodeModuleBadOpcode(t *testing.T) {
	b := []byte{
		0x00, 0x61, 0x73, 0x6d,
		0x01, 0x00, 0x00, 0x00,

		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		// code: body containing the undefined opcode 0x27
		0x0a, 0x05, 0x01, 0x03, 0x00, 0x27, 0x0b,
	}
	_, err := DecodeModule(b, NewFeatures())
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, wasm.DecodeErrorBadOpcode, decErr.Kind)
}

func TestDecodeModuleNestedBlock(t *testing.T) {
	// type: ()->() ; function: [0] ; code: block(empty) { nop } end ; end
	b := []byte{
		0x00, 0x61, 0x73, 0x6d,
		0x01, 0x00, 0x00, 0x00,

		0x01, 0x04,
		0x01, 0x60, 0x00, 0x00,

		0x03, 0x02,
		0x01, 0x00,

		0x0a, 0x08,
		0x01, 0x06, 0x00, 0x02, 0x40, 0x01, 0x0b, 0x0b,
	}
	m, err := DecodeModule(b, NewFeatures())
	require.NoError(t, err)
	require.Len(t, m.CodeSection[0].Body, 1)
	blk := m.CodeSection[0].Body[0]
	require.Equal(t, wasm.OpcodeBlock, blk.Opcode)
	require.False(t, blk.Block.Type.HasResult)
	require.Len(t, blk.Block.Then, 1)
	require.Equal(t, wasm.OpcodeNop, blk.Block.Then[0].Opcode)
}
