package wasm

// MemoryPageSizeInBits is the number of bits in MemoryPageSize, making it
// convenient to convert a byte count into pages via a shift instead of a
// divide.
const MemoryPageSizeInBits = 16

// MemoryPageSize is the number of bytes in a Wasm linear memory page: 65536
// (64 KiB). Every memory size (current, min, max) is a count of these pages.
const MemoryPageSize = uint32(1) << MemoryPageSizeInBits

// MemoryMaxPages is the maximum number of pages a memory may ever reach: 65536
// pages, i.e. 4 GiB, the largest size addressable by a 32-bit offset.
const MemoryMaxPages = uint32(1) << (32 - MemoryPageSizeInBits)

// MemoryPagesToBytesNum converts a page count into a byte count.
func MemoryPagesToBytesNum(pages uint32) uint64 {
	return uint64(pages) << MemoryPageSizeInBits
}

// memoryBytesNumToPages converts a byte count into a page count, truncating
// any partial page (callers only ever pass exact multiples of the page size).
func memoryBytesNumToPages(numBytes uint64) uint32 {
	return uint32(numBytes >> MemoryPageSizeInBits)
}
