package engine

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	fieldinject "github.com/wippyai/field-injector"
)

// HeapMemory is a native heap backed by a Go byte slice.
type HeapMemory struct {
	data  []byte
	limit uint32
	mu    sync.RWMutex
}

// NewHeapMemory creates a zeroed heap of cfg.InitialPages pages.
func NewHeapMemory(cfg *Config) (*HeapMemory, error) {
	pages := cfg.initialPages()
	limit := cfg.limitPages()
	if pages > limit {
		return nil, fmt.Errorf("initial pages %d exceed limit %d", pages, limit)
	}
	return &HeapMemory{
		data:  make([]byte, uint64(pages)*PageSize),
		limit: limit,
	}, nil
}

func (m *HeapMemory) bounds(offset, length uint32) bool {
	return uint64(offset)+uint64(length) <= uint64(len(m.data))
}

func (m *HeapMemory) Read(offset uint32, length uint32) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.bounds(offset, length) {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return m.data[offset : offset+length], nil
}

func (m *HeapMemory) Write(offset uint32, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.bounds(offset, uint32(len(data))) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *HeapMemory) ReadU8(offset uint32) (uint8, error) {
	data, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *HeapMemory) ReadU16(offset uint32) (uint16, error) {
	data, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

func (m *HeapMemory) ReadU32(offset uint32) (uint32, error) {
	data, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

func (m *HeapMemory) ReadU64(offset uint32) (uint64, error) {
	data, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

func (m *HeapMemory) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *HeapMemory) WriteU16(offset uint32, value uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], value)
	return m.Write(offset, b[:])
}

func (m *HeapMemory) WriteU32(offset uint32, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

func (m *HeapMemory) WriteU64(offset uint32, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return m.Write(offset, b[:])
}

// Size returns the heap size in bytes.
func (m *HeapMemory) Size() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uint64(len(m.data)) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(len(m.data))
}

// Grow extends the heap by deltaPages zeroed pages.
func (m *HeapMemory) Grow(deltaPages uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := uint32(uint64(len(m.data)) / PageSize)
	if uint64(prev)+uint64(deltaPages) > uint64(m.limit) {
		return prev, false
	}
	if deltaPages == 0 {
		return prev, true
	}
	grown := make([]byte, (uint64(prev)+uint64(deltaPages))*PageSize)
	copy(grown, m.data)
	m.data = grown
	return prev, true
}

var (
	_ fieldinject.Memory       = (*HeapMemory)(nil)
	_ fieldinject.MemorySizer  = (*HeapMemory)(nil)
	_ fieldinject.MemoryGrower = (*HeapMemory)(nil)
)
