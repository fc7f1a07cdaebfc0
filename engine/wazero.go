package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	fieldinject "github.com/wippyai/field-injector"
	"go.uber.org/zap"
)

// WazeroMemory is a native heap backed by the linear memory of a wazero
// module that exports nothing but its memory.
type WazeroMemory struct {
	runtime wazero.Runtime
	mod     api.Module
	mem     api.Memory
}

// NewWazeroMemory instantiates a memory-only module with cfg.InitialPages
// pages, capped at cfg.MemoryLimitPages.
func NewWazeroMemory(ctx context.Context, cfg *Config) (*WazeroMemory, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	var maxPages *uint32
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		limit := cfg.MemoryLimitPages
		maxPages = &limit
	}
	if maxPages != nil && cfg.initialPages() > *maxPages {
		return nil, fmt.Errorf("initial pages %d exceed limit %d", cfg.initialPages(), *maxPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	mod, err := runtime.Instantiate(ctx, memoryModule(cfg.initialPages(), maxPages))
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate heap module: %w", err)
	}

	mem := mod.Memory()
	if mem == nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("heap module exports no memory")
	}

	Logger().Debug("wazero heap created",
		zap.Uint32("pages", cfg.initialPages()),
		zap.Uint32("bytes", mem.Size()))

	return &WazeroMemory{runtime: runtime, mod: mod, mem: mem}, nil
}

// memoryModule encodes a core module with a single exported memory.
func memoryModule(minPages uint32, maxPages *uint32) []byte {
	limits := []byte{0x00}
	limits = appendULEB128(limits, minPages)
	if maxPages != nil {
		limits[0] = 0x01
		limits = appendULEB128(limits, *maxPages)
	}

	memSection := append([]byte{0x01}, limits...)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, 0x05)
	out = appendULEB128(out, uint32(len(memSection)))
	out = append(out, memSection...)
	out = append(out, 0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00)
	return out
}

func appendULEB128(b []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

// Close releases the wazero runtime.
func (m *WazeroMemory) Close(ctx context.Context) error {
	if m.runtime == nil {
		return nil
	}
	return m.runtime.Close(ctx)
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU8(offset uint32) (uint8, error) {
	val, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *WazeroMemory) ReadU16(offset uint32) (uint16, error) {
	val, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *WazeroMemory) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds: offset=%d", offset)
	}
	return val, nil
}

func (m *WazeroMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *WazeroMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

func (m *WazeroMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return fmt.Errorf("write out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the current memory size in bytes.
func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// Grow extends the memory by deltaPages pages.
func (m *WazeroMemory) Grow(deltaPages uint32) (uint32, bool) {
	return m.mem.Grow(deltaPages)
}

var (
	_ fieldinject.Memory       = (*WazeroMemory)(nil)
	_ fieldinject.MemorySizer  = (*WazeroMemory)(nil)
	_ fieldinject.MemoryGrower = (*WazeroMemory)(nil)
)
