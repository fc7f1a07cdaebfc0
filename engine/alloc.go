package engine

import (
	"sync"

	fieldinject "github.com/wippyai/field-injector"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/layout"
	"go.uber.org/zap"
)

// GrowableMemory is a heap the bump allocator can extend.
type GrowableMemory interface {
	fieldinject.Memory
	fieldinject.MemorySizer
	fieldinject.MemoryGrower
}

// BumpAllocator hands out increasing addresses and grows the heap on demand.
// Freeing the most recent allocation rolls the cursor back; other frees are
// ignored. Returned memory is always zeroed.
type BumpAllocator struct {
	mem  GrowableMemory
	next uint32
	live uint32
	mu   sync.Mutex
}

// NewBumpAllocator creates an allocator over mem starting at cfg.HeapBase.
func NewBumpAllocator(mem GrowableMemory, cfg *Config) *BumpAllocator {
	return &BumpAllocator{mem: mem, next: cfg.heapBase()}
}

func (a *BumpAllocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseBridge, errors.KindAllocation).
			Detail("alignment %d is not a power of two", align).
			Build()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ptr := layout.AlignTo(a.next, align)
	if ptr < a.next {
		return 0, errors.AllocationFailed(errors.PhaseBridge, size, align)
	}
	end, ok := layout.SafeAddU32(ptr, size)
	if !ok {
		return 0, errors.AllocationFailed(errors.PhaseBridge, size, align)
	}

	if have := a.mem.Size(); end > have {
		need := (uint64(end) - uint64(have) + PageSize - 1) / PageSize
		if _, ok := a.mem.Grow(uint32(need)); !ok {
			Logger().Warn("native heap exhausted",
				zap.Uint32("size", size),
				zap.Uint32("heap_bytes", have))
			return 0, errors.AllocationFailed(errors.PhaseBridge, size, align)
		}
	}

	a.next = end
	a.live += size
	return ptr, nil
}

func (a *BumpAllocator) Free(ptr, size, align uint32) {
	if ptr == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if size <= a.live {
		a.live -= size
	}
	if ptr+size != a.next {
		return
	}
	if size > 0 {
		if err := a.mem.Write(ptr, make([]byte, size)); err != nil {
			return
		}
	}
	a.next = ptr
}

// Used returns the address one past the highest allocation.
func (a *BumpAllocator) Used() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Live returns the number of bytes allocated and not freed.
func (a *BumpAllocator) Live() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

var _ fieldinject.Allocator = (*BumpAllocator)(nil)
