package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGlobalImmutable(t *testing.T) {
	g := &GlobalInstance{Type: &GlobalType{ValType: ValueTypeI32, Mutable: false}, Val: 7}
	require.Equal(t, uint64(7), g.Get())
	require.False(t, g.Set(8))
	require.Equal(t, uint64(7), g.Get())
}

func TestGlobalMutable(t *testing.T) {
	g := &GlobalInstance{Type: &GlobalType{ValType: ValueTypeI32, Mutable: true}, Val: 1}
	require.True(t, g.Set(99))
	require.Equal(t, uint64(99), g.Get())
}
