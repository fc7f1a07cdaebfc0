// Package fieldinject synthesizes native field layouts and conversion routines
// for Go types that have no representation in an ahead-of-time compiled native
// runtime.
//
// The native runtime describes every type with a fixed class descriptor: a
// field table with byte offsets, a vtable and an interface offset table. Go
// types declared by the caller are walked once, classified field by field,
// laid out after their base class and given a pair of routines that copy
// every field between the Go value and the native memory blob.
//
// # Architecture Overview
//
//	fieldinject/         Root package with Memory and Allocator interfaces
//	├── inject/          Type Injection Orchestrator (Registry, Inject, Report)
//	├── strategy/        Field strategy classification
//	├── layout/          Offset allocation for field tables
//	├── transcoder/      Conversion routines between Go values and native memory
//	├── bridge/          Contract with the native runtime, managed wrappers
//	├── native/          Reference native runtime implementing bridge.Bridge
//	├── handles/         Managed object handle table
//	├── engine/          Native heap backends (Go heap, wazero linear memory)
//	├── errors/          Structured error types
//	└── cmd/inspect/     Layout inspector CLI
//
// # Quick Start
//
//	heap, _ := engine.NewHeapMemory(nil)
//	rt, _ := native.New(heap, engine.NewBumpAllocator(heap, nil), nil)
//	reg := inject.New(rt, nil)
//
//	type Settings struct {
//	    bridge.Object
//	    Volume int32
//	    Name   string
//	    Tags   bridge.List[string]
//	}
//
//	report := reg.Inject(0, reflect.TypeOf(Settings{}))
//	if err := report.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// After injection every native instance of Settings carries the three fields
// and the runtime calls the generated routines through the serialisation
// callback interface (OnBeforeSerialize / OnAfterDeserialize).
//
// # Field Strategies
//
//	Go field type                 Native slot
//	─────────────────────────────────────────────────
//	bool, intN, uintN, floatN     inline value (blit)
//	defined integer (enum)        inline underlying integer
//	string                        pointer to native string
//	*T (T embeds bridge.Object)   pointer to native object
//	struct value                  inline nested layout
//	[]T                           pointer to native array
//	bridge.List[T]                pointer to native list
//
// # Thread Safety
//
// Injection batches are serialised per Registry. Routines are immutable once
// built and may be invoked from any goroutine that owns the native instance.
//
// # Memory Model
//
// Field tables, field names and type descriptors are allocated from an arena
// owned by the Registry and are never freed. Injection happens a bounded number
// of times at startup, so the arena does not grow with the number of instances.
package fieldinject
