package engine

// PageSize is the size of one linear memory page.
const PageSize = 65536

// DefaultHeapBase is the first address handed out by the allocator. Lower
// addresses stay unused so that 0 is never a valid pointer.
const DefaultHeapBase = 16

// Config holds configuration for native heaps
type Config struct {
	// InitialPages is the number of 64KB pages allocated up front.
	// 0 means 1 page.
	InitialPages uint32

	// MemoryLimitPages caps growth in pages (64KB each).
	// 0 means the 32-bit maximum (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// HeapBase is the first address the allocator returns.
	// 0 means DefaultHeapBase.
	HeapBase uint32
}

func (c *Config) initialPages() uint32 {
	if c == nil || c.InitialPages == 0 {
		return 1
	}
	return c.InitialPages
}

func (c *Config) limitPages() uint32 {
	if c == nil || c.MemoryLimitPages == 0 {
		return 65536
	}
	return c.MemoryLimitPages
}

func (c *Config) heapBase() uint32 {
	if c == nil || c.HeapBase == 0 {
		return DefaultHeapBase
	}
	return c.HeapBase
}
