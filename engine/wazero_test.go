package engine

import (
	"bytes"
	"context"
	"testing"
)

func TestMemoryModule(t *testing.T) {
	got := memoryModule(1, nil)
	want := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("memoryModule(1, nil) = % x\nwant % x", got, want)
	}

	limit := uint32(300)
	got = memoryModule(2, &limit)
	// limits: flag 1, min 2, max 300 as ULEB128 (0xac 0x02)
	section := []byte{0x05, 0x05, 0x01, 0x01, 0x02, 0xac, 0x02}
	if !bytes.Equal(got[8:8+len(section)], section) {
		t.Errorf("memory section = % x, want % x", got[8:8+len(section)], section)
	}
}

func TestAppendULEB128(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{65536, []byte{0x80, 0x80, 0x04}},
	}
	for _, tc := range tests {
		if got := appendULEB128(nil, tc.v); !bytes.Equal(got, tc.want) {
			t.Errorf("appendULEB128(%d) = % x, want % x", tc.v, got, tc.want)
		}
	}
}

func TestNewWazeroMemory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg   *Config
		name  string
		pages uint32
	}{
		{nil, "nil config", 1},
		{&Config{}, "default config", 1},
		{&Config{InitialPages: 2, MemoryLimitPages: 16}, "limited", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mem, err := NewWazeroMemory(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroMemory failed: %v", err)
			}
			defer mem.Close(ctx)

			if mem.Size() != tc.pages*PageSize {
				t.Errorf("Size = %d, want %d", mem.Size(), tc.pages*PageSize)
			}
		})
	}
}

func TestWazeroMemory(t *testing.T) {
	ctx := context.Background()
	mem, err := NewWazeroMemory(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close(ctx)

	exerciseMemory(t, mem)
}

func TestWazeroMemory_Grow(t *testing.T) {
	ctx := context.Background()
	mem, err := NewWazeroMemory(ctx, &Config{InitialPages: 1, MemoryLimitPages: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close(ctx)

	prev, ok := mem.Grow(1)
	if !ok || prev != 1 {
		t.Fatalf("Grow(1) = %d, %v", prev, ok)
	}
	if mem.Size() != 2*PageSize {
		t.Errorf("Size = %d", mem.Size())
	}
	if _, ok := mem.Grow(1); ok {
		t.Error("Grow beyond max should fail")
	}
}

func TestWazeroMemory_InitialOverLimit(t *testing.T) {
	ctx := context.Background()
	if _, err := NewWazeroMemory(ctx, &Config{InitialPages: 4, MemoryLimitPages: 2}); err == nil {
		t.Error("expected error when initial pages exceed limit")
	}
}
