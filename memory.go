package fieldinject

// PointerSize is the width of a native pointer in bytes. The native heap is a
// 32-bit linear memory, so every pointer-shaped field occupies four bytes.
const PointerSize = 4

// Memory represents the native heap
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of the native heap in bytes.
type MemorySizer interface {
	Size() uint32
}

// MemoryGrower is implemented by heaps that can be extended in 64 KiB pages.
type MemoryGrower interface {
	Grow(deltaPages uint32) (previousPages uint32, ok bool)
}

// Allocator allocates memory in the native heap
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr, size, align uint32)
}
