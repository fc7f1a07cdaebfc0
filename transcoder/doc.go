// Package transcoder builds conversion routines between Go values and native
// instances.
//
// A Compiler turns a classified struct plus its native field placements into
// one of two routines:
//
//	StructRoutine   value types; converts a Go struct to and from the inline
//	                payload of a native value (object header excluded)
//	ObjectRoutine   reference types; converts the Go wrapper bound to a native
//	                object, over the full inherited field list
//
// Every field gets a codec specialised for its strategy when the routine is
// built. Calls do not classify or look up classes again:
//
//	primitive, enum   fixed-width copy; Go and native sizes must agree
//	string            native string handle, "" <-> null
//	object            native pointer of the wrapper, nil <-> null
//	struct            nested StructRoutine at an inline offset
//	array, list       whole sequence; nil <-> null, empty <-> zero length
//
// Blittable structs whose Go layout equals the native layout, and primitive
// array elements of matching size, are copied in bulk.
//
// Routines are immutable after construction and carry a Plan describing the
// steps they take, which the compiler logs at debug level 3 and above.
package transcoder
