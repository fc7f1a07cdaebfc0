package inject

import (
	"sync"

	fieldinject "github.com/wippyai/field-injector"
)

// Allocation records one arena block.
type Allocation struct {
	Ptr   uint32
	Size  uint32
	Align uint32
}

// Arena hands out native memory that lives as long as the process. Field
// tables, names and type descriptors are referenced by native classes and
// can never be released, so the arena has no Free.
type Arena struct {
	alloc       fieldinject.Allocator
	mem         fieldinject.Memory
	allocations []Allocation
	bytes       uint64
	mu          sync.Mutex
}

// NewArena creates an arena allocating from alloc.
func NewArena(mem fieldinject.Memory, alloc fieldinject.Allocator) *Arena {
	return &Arena{
		alloc:       alloc,
		mem:         mem,
		allocations: make([]Allocation, 0, 64),
	}
}

// Alloc returns size bytes aligned to align.
func (a *Arena) Alloc(size, align uint32) (uint32, error) {
	ptr, err := a.alloc.Alloc(size, align)
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	a.allocations = append(a.allocations, Allocation{Ptr: ptr, Size: size, Align: align})
	a.bytes += uint64(size)
	a.mu.Unlock()
	return ptr, nil
}

// CString stores s as a NUL-terminated string.
func (a *Arena) CString(s string) (uint32, error) {
	ptr, err := a.Alloc(uint32(len(s))+1, 1)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	if err := a.mem.Write(ptr, buf); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Count returns the number of blocks handed out.
func (a *Arena) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocations)
}

// Bytes returns the total size of all blocks, excluding alignment padding.
func (a *Arena) Bytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bytes
}

// Allocations returns a copy of the block list.
func (a *Arena) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Allocation(nil), a.allocations...)
}
