// Package engine provides native heaps for the field injector.
//
// The native runtime addresses its heap with 32-bit pointers, exactly like a
// wasm32 linear memory. Two backends implement fieldinject.Memory:
//
//	HeapMemory    - a Go byte slice, growable in 64KB pages
//	WazeroMemory  - the exported memory of a wazero module instance
//
// Both grow in pages up to Config.MemoryLimitPages. BumpAllocator sits on top
// of either one and grows it on demand.
//
// # Usage
//
//	heap, err := engine.NewHeapMemory(&engine.Config{InitialPages: 4})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	alloc := engine.NewBumpAllocator(heap, nil)
//
// With wazero:
//
//	heap, err := engine.NewWazeroMemory(ctx, &engine.Config{MemoryLimitPages: 256})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer heap.Close(ctx)
//
// Address 0 is never handed out, so it can serve as the native null pointer.
package engine
