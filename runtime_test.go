package wasmnet

import (
	"context"
	"testing"

	"github.com/DanielCarmingham/WasmNet/api"
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/DanielCarmingham/WasmNet/internal/wasmruntime"
	"github.com/stretchr/testify/require"
)

// addBinary exports "add" (i32,i32)->i32: local.get 0; local.get 1; i32.add.
var addBinary = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func TestRuntimeInstantiateAndInvoke(t *testing.T) {
	r := NewRuntime()
	defer r.Close(context.Background())

	mod, err := r.Instantiate("calc", addBinary)
	require.NoError(t, err)

	add := mod.ExportedFunction("add")
	require.NotNil(t, add)
	require.Equal(t, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, add.ParamTypes())

	results, err := add.Call(context.Background(), 2, 3)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, results)
}

func TestRuntimeInvokeWrongArity(t *testing.T) {
	r := NewRuntime()
	defer r.Close(context.Background())

	mod, err := r.Instantiate("calc", addBinary)
	require.NoError(t, err)

	_, err = mod.ExportedFunction("add").Call(context.Background(), 2)
	require.Error(t, err)
}

// loggerBinary imports env.log (i32)->() and exports "run" ()->(), whose body
// calls env.log with 0, 1 and 2 from a loop.
var loggerBinary = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

	// types: (i32)->(), ()->()
	0x01, 0x08, 0x02, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x00, 0x00,
	// import env.log: func type 0
	0x02, 0x0b, 0x01, 0x03, 0x65, 0x6e, 0x76, 0x03, 0x6c, 0x6f, 0x67, 0x00, 0x00,
	// function: [type 1]
	0x03, 0x02, 0x01, 0x01,
	// export "run" func 1
	0x07, 0x07, 0x01, 0x03, 0x72, 0x75, 0x6e, 0x00, 0x01,
	// code: 1 local i32; block { loop { if i>=3 br 1; log(i); i++; br 0 } }
	0x0a, 0x20, 0x01, 0x1e, 0x01, 0x01, 0x7f,
	0x02, 0x40,
	0x03, 0x40,
	0x20, 0x00, 0x41, 0x03, 0x4e, 0x0d, 0x01,
	0x20, 0x00, 0x10, 0x00,
	0x20, 0x00, 0x41, 0x01, 0x6a, 0x21, 0x00,
	0x0c, 0x00,
	0x0b,
	0x0b,
	0x0b,
}

func TestRuntimeHostImportCalledInOrder(t *testing.T) {
	r := NewRuntime()
	defer r.Close(context.Background())

	var got []uint32
	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(v uint32) { got = append(got, v) }).
		Export("log").
		Instantiate()
	require.NoError(t, err)

	mod, err := r.Instantiate("logger", loggerBinary)
	require.NoError(t, err)

	_, err = mod.ExportedFunction("run").Call(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1, 2}, got)
}

func TestRuntimeHostGoFunctionRawStack(t *testing.T) {
	r := NewRuntime()
	defer r.Close(context.Background())

	_, err := r.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithGoFunction(func(_ context.Context, stack []uint64) {
			stack[0] = api.EncodeI32(int32(uint32(stack[0])) * 2)
		}, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("double").
		Instantiate()
	require.NoError(t, err)

	// Imports env.double (i32)->i32 and re-exports it as "twice".
	importerBinary := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

		0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
		0x02, 0x0e, 0x01, 0x03, 0x65, 0x6e, 0x76, 0x06, 0x64, 0x6f, 0x75, 0x62, 0x6c, 0x65, 0x00, 0x00,
		0x07, 0x09, 0x01, 0x05, 0x74, 0x77, 0x69, 0x63, 0x65, 0x00, 0x00,
	}
	mod, err := r.Instantiate("user", importerBinary)
	require.NoError(t, err)

	results, err := mod.ExportedFunction("twice").Call(context.Background(), 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

// memBinary defines a 1-page memory, an active data segment writing three
// bytes at offset 8, and exports the memory as "mem".
var memBinary = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x07, 0x01, 0x03, 0x6d, 0x65, 0x6d, 0x02, 0x00,
	0x0b, 0x09, 0x01, 0x00, 0x41, 0x08, 0x0b, 0x03, 0xde, 0xad, 0xbe,
}

func TestRuntimeExportedMemory(t *testing.T) {
	r := NewRuntime()
	defer r.Close(context.Background())

	mod, err := r.Instantiate("data", memBinary)
	require.NoError(t, err)

	mem := mod.ExportedMemory("mem")
	require.NotNil(t, mem)
	require.Equal(t, uint32(65536), mem.Size())

	got, ok := mem.Read(8, 3)
	require.True(t, ok)
	require.Equal(t, []byte{0xde, 0xad, 0xbe}, got)

	_, ok = mem.Read(65536-2, 3)
	require.False(t, ok)
}

// trapStartBinary declares a start function whose body is unreachable.
var trapStartBinary = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x08, 0x01, 0x00,
	0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b,
}

func TestRuntimeStartTrapDiscardsInstance(t *testing.T) {
	r := NewRuntime()
	defer r.Close(context.Background())

	_, err := r.Instantiate("boom", trapStartBinary)
	var linkErr *wasm.LinkError
	require.ErrorAs(t, err, &linkErr)
	require.Equal(t, wasm.LinkErrorStartTrapped, linkErr.Kind)
	require.ErrorIs(t, err, wasmruntime.ErrUnreachable)

	// The failed instance must not occupy the name.
	_, ok := r.Module("boom")
	require.False(t, ok)

	_, err = r.Instantiate("boom", addBinary)
	require.NoError(t, err)
}

func TestRuntimeDecodeErrorSurfaces(t *testing.T) {
	r := NewRuntime()
	defer r.Close(context.Background())

	_, err := r.Instantiate("bad", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00})
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, wasm.DecodeErrorBadVersion, decErr.Kind)
}

func TestRuntimeFeatureToggleRejectsBulkMemory(t *testing.T) {
	// memory.fill in a body: requires BulkMemoryOperations.
	bin := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,

		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		// i32.const 0; i32.const 0; i32.const 0; memory.fill; end
		0x0a, 0x0d, 0x01, 0x0b, 0x00, 0x41, 0x00, 0x41, 0x00, 0x41, 0x00, 0xfc, 0x0b, 0x00, 0x0b,
	}

	r := NewRuntimeWithConfig(NewRuntimeConfig().WithFeatureBulkMemoryOperations(false))
	defer r.Close(context.Background())

	_, err := r.Instantiate("bulk", bin)
	var decErr *wasm.DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, wasm.DecodeErrorDisabledFeature, decErr.Kind)

	r2 := NewRuntime()
	defer r2.Close(context.Background())
	_, err = r2.Instantiate("bulk", bin)
	require.NoError(t, err)
}
