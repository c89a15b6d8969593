package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryGrow(t *testing.T) {
	max := uint32(2)
	m := NewMemoryInstance(1, &max)
	require.Equal(t, uint32(1), m.PageSize())

	prev := m.Grow(1)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(2), m.PageSize())

	require.Equal(t, uint32(0xffffffff), m.Grow(1))
}

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	m := NewMemoryInstance(1, nil)
	require.True(t, m.WriteUint32Le(8, 0xdeadbeef))
	v, ok := m.ReadUint32Le(8)
	require.True(t, ok)
	require.Equal(t, uint32(0xdeadbeef), v)

	require.True(t, m.WriteUint64Le(16, 0x1122334455667788))
	v64, ok := m.ReadUint64Le(16)
	require.True(t, ok)
	require.Equal(t, uint64(0x1122334455667788), v64)
}

func TestMemoryOutOfBounds(t *testing.T) {
	m := NewMemoryInstance(1, nil)
	_, ok := m.ReadUint32Le(uint32(len(m.Buffer)) - 2)
	require.False(t, ok)
	require.False(t, m.WriteByte(uint32(len(m.Buffer)), 1))
}

func TestMemoryCopyOverlap(t *testing.T) {
	m := NewMemoryInstance(1, nil)
	require.True(t, m.Write(0, []byte{1, 2, 3, 4, 5}))
	require.True(t, m.CopyWithinMemory(2, 0, 5))
	got, ok := m.Read(2, 5)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestMemoryFill(t *testing.T) {
	m := NewMemoryInstance(1, nil)
	require.True(t, m.Fill(4, 0xab, 3))
	got, ok := m.Read(4, 3)
	require.True(t, ok)
	require.Equal(t, []byte{0xab, 0xab, 0xab}, got)
}

func TestMemoryInitData(t *testing.T) {
	m := NewMemoryInstance(1, nil)
	data := []byte{1, 2, 3, 4}
	require.True(t, m.InitData(data, 10, 1, 2))
	got, ok := m.Read(10, 2)
	require.True(t, ok)
	require.Equal(t, []byte{2, 3}, got)

	require.False(t, m.InitData(data, 10, 1, 100))
}
