package wasm

import "encoding/binary"

// MemoryInstance is the runtime representation of linear memory. Buffer
// starts at Min pages; Grow reallocates, and shrinking is never permitted.
type MemoryInstance struct {
	Buffer []byte
	Min    uint32
	Max    *uint32 // nil means MemoryMaxPages
}

// NewMemoryInstance allocates a zeroed memory of min pages.
func NewMemoryInstance(min uint32, max *uint32) *MemoryInstance {
	return &MemoryInstance{Buffer: make([]byte, MemoryPagesToBytesNum(min)), Min: min, Max: max}
}

// PageSize returns the current size of the memory in pages.
func (m *MemoryInstance) PageSize() uint32 {
	return memoryBytesNumToPages(uint64(len(m.Buffer)))
}

func (m *MemoryInstance) max() uint32 {
	if m.Max != nil {
		return *m.Max
	}
	return MemoryMaxPages
}

// Grow implements the "memory.grow" instruction. It returns the previous
// page count, or -1 (as a uint32, i.e. 0xffffffff) if the delta would exceed
// the memory's max.
func (m *MemoryInstance) Grow(delta uint32) uint32 {
	current := m.PageSize()
	if delta == 0 {
		return current
	}
	if uint64(current)+uint64(delta) > uint64(m.max()) {
		return 0xffffffff
	}
	m.Buffer = append(m.Buffer, make([]byte, MemoryPagesToBytesNum(delta))...)
	return current
}

func (m *MemoryInstance) inBounds(offset uint64, byteCount uint64) bool {
	return offset+byteCount <= uint64(len(m.Buffer)) && offset+byteCount >= offset
}

// ReadByte reads a single byte at offset.
func (m *MemoryInstance) ReadByte(offset uint32) (byte, bool) {
	if !m.inBounds(uint64(offset), 1) {
		return 0, false
	}
	return m.Buffer[offset], true
}

// ReadUint32Le reads a little-endian uint32 at offset.
func (m *MemoryInstance) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.inBounds(uint64(offset), 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Buffer[offset : offset+4]), true
}

// ReadUint64Le reads a little-endian uint64 at offset.
func (m *MemoryInstance) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.inBounds(uint64(offset), 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.Buffer[offset : offset+8]), true
}

// Read returns a byteCount-length slice of memory aliasing the underlying
// buffer, starting at offset.
func (m *MemoryInstance) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.inBounds(uint64(offset), uint64(byteCount)) {
		return nil, false
	}
	return m.Buffer[offset : offset+byteCount : offset+byteCount], true
}

// WriteByte writes a single byte at offset.
func (m *MemoryInstance) WriteByte(offset uint32, v byte) bool {
	if !m.inBounds(uint64(offset), 1) {
		return false
	}
	m.Buffer[offset] = v
	return true
}

// WriteUint32Le writes v little-endian at offset.
func (m *MemoryInstance) WriteUint32Le(offset, v uint32) bool {
	if !m.inBounds(uint64(offset), 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[offset:offset+4], v)
	return true
}

// WriteUint64Le writes v little-endian at offset.
func (m *MemoryInstance) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.inBounds(uint64(offset), 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.Buffer[offset:offset+8], v)
	return true
}

// Write copies v into memory starting at offset.
func (m *MemoryInstance) Write(offset uint32, v []byte) bool {
	if !m.inBounds(uint64(offset), uint64(len(v))) {
		return false
	}
	copy(m.Buffer[offset:], v)
	return true
}

// InitData implements the "memory.init" instruction: copies len bytes from
// data[src:src+len] into m at dest. The data segment's own Dropped flag is
// checked by the caller (internal/engine/interpreter), since a dropped
// segment behaves as empty rather than as a bounds failure for len==0.
func (m *MemoryInstance) InitData(data []byte, dest, src, length uint32) bool {
	if uint64(src)+uint64(length) > uint64(len(data)) {
		return false
	}
	if !m.inBounds(uint64(dest), uint64(length)) {
		return false
	}
	copy(m.Buffer[dest:dest+length], data[src:src+length])
	return true
}

// CopyWithinMemory implements "memory.copy": copies length bytes from src to
// dest within the same memory, correctly handling overlap.
func (m *MemoryInstance) CopyWithinMemory(dest, src, length uint32) bool {
	if !m.inBounds(uint64(src), uint64(length)) || !m.inBounds(uint64(dest), uint64(length)) {
		return false
	}
	copy(m.Buffer[dest:dest+length], m.Buffer[src:src+length])
	return true
}

// Fill implements "memory.fill": sets length bytes starting at offset to v.
func (m *MemoryInstance) Fill(offset uint32, v byte, length uint32) bool {
	if !m.inBounds(uint64(offset), uint64(length)) {
		return false
	}
	buf := m.Buffer[offset : offset+length]
	for i := range buf {
		buf[i] = v
	}
	return true
}
