// Package layout assigns byte offsets to native field slots.
//
// Fields are placed in declaration order behind a caller-supplied base offset,
// which is the instance size of the base class (or of the value-type header).
// There is no reordering: the table order has to match the order in which a
// derived class visits its inherited prefix.
//
// # Layout Rules
//
//   - Primitives: natural alignment, size equals alignment (i32=4, f64=8, ...)
//   - Strings, arrays, lists, object references: one native pointer
//   - Nested value types: their payload size with alignment 0, packed directly
//     behind the previous field
//
// Alignment 0 means "no rounding". Nested value types whose own alignment is
// larger than the cursor's can therefore end up under-aligned; this matches
// the native runtime's field tables and is a known limitation.
//
// # Usage
//
//	placements, end, err := layout.Allocate([]layout.Request{
//	    {Name: "flag", Size: 4, Align: 4},
//	    {Name: "name", Size: layout.PointerSlot.Size, Align: layout.PointerSlot.Align},
//	}, baseSize)
package layout
