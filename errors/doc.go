// Package errors provides structured error types for the field injector.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/native type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCompile, errors.KindLayoutInvariant).
//		Path("Settings", "Volume").
//		GoType("int64").
//		NativeType("System.Int32").
//		Detail("managed and native sizes differ").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnsupportedFieldType(path, "map[string]int")
//	err := errors.OutOfBounds(errors.PhaseDeserialise, path, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches on Kind alone, which is what batch reports are usually
// inspected for.
package errors
