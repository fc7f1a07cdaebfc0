// Package strategy selects how each Go field is represented natively.
//
// Classification is a total function of a field's declared type. The first
// matching rule wins:
//
//  1. *T where T embeds bridge.Object    ObjectRef
//  2. string                             String
//  3. bool, intN, uintN, floatN          Primitive (defined integers are enums)
//     struct value                       Struct, classified field by field
//  4. []T that is not a bridge.List      Array of Classify(T)
//  5. bridge.List[T]                     List of Classify(T)
//
// Every other shape (maps, channels, funcs, interfaces, Go arrays, complex
// numbers, pointers to plain structs, reference types held by value) fails
// with errors.KindUnsupportedFieldType. Fields drops such fields and returns
// the failures as warnings; it never fails as a whole.
//
// A field is serialised when it is exported and not tagged `native:"-"`. The
// tag can also rename the native field:
//
//	type Settings struct {
//	    bridge.Object
//	    Volume  int32  `native:"volume"`
//	    Scratch []byte `native:"-"`
//	}
//
// Strategies are cached per type and are safe to share between goroutines.
package strategy
