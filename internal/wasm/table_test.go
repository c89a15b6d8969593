package wasm

import (
	"testing"

	"github.com/DanielCarmingham/WasmNet/api"
	"github.com/stretchr/testify/require"
)

func TestTableDefaultsNull(t *testing.T) {
	tbl := NewTableInstance(3, nil)
	for i := 0; i < 3; i++ {
		ref, ok := tbl.Get(uint32(i))
		require.True(t, ok)
		require.Equal(t, api.ReferenceNull, ref)
	}
}

func TestTableSetGet(t *testing.T) {
	tbl := NewTableInstance(2, nil)
	require.True(t, tbl.Set(1, 42))
	v, ok := tbl.Get(1)
	require.True(t, ok)
	require.Equal(t, Reference(42), v)

	_, ok = tbl.Get(2)
	require.False(t, ok)
	require.False(t, tbl.Set(2, 1))
}

func TestTableInit(t *testing.T) {
	tbl := NewTableInstance(4, nil)
	elems := []Reference{10, 11, 12}
	require.True(t, tbl.Init(elems, 1, 0, 3))
	v, _ := tbl.Get(1)
	require.Equal(t, Reference(10), v)
	v, _ = tbl.Get(3)
	require.Equal(t, Reference(12), v)

	require.False(t, tbl.Init(elems, 2, 0, 3))
}
