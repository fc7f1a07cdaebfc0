package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseClassify    Phase = "classify"    // field strategy selection
	PhaseLayout      Phase = "layout"      // offset allocation
	PhaseCompile     Phase = "compile"     // routine construction
	PhaseInject      Phase = "inject"      // batch orchestration
	PhaseSerialise   Phase = "serialise"   // Go to native
	PhaseDeserialise Phase = "deserialise" // native to Go
	PhaseBridge      Phase = "bridge"      // native runtime calls
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedFieldType Kind = "unsupported_field_type"
	KindAlreadyInjected      Kind = "already_injected"
	KindLayoutInvariant      Kind = "layout_invariant"
	KindMissingInterfaceSlot Kind = "missing_interface_slot"
	KindNativeBridge         Kind = "native_bridge"
	KindCyclicDependency     Kind = "cyclic_dependency"
	KindTypeMismatch         Kind = "type_mismatch"
	KindNilPointer           Kind = "nil_pointer"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindAllocation           Kind = "allocation"
	KindNotFound             Kind = "not_found"
	KindInvalidData          Kind = "invalid_data"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	GoType     string
	NativeType string
	Detail     string
	Path       []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.NativeType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.NativeType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", native type ")
			b.WriteString(e.NativeType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("native type ")
			b.WriteString(e.NativeType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.NativeType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether any error in err's chain is an *Error of the given kind,
// regardless of phase.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain. Errors from
// outside the module report KindNativeBridge.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNativeBridge
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// NativeType sets the native class name
func (b *Builder) NativeType(t string) *Builder {
	b.err.NativeType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnsupportedFieldType reports a field whose type matches no strategy
func UnsupportedFieldType(path []string, goType string) *Error {
	return &Error{
		Phase:  PhaseClassify,
		Kind:   KindUnsupportedFieldType,
		Path:   path,
		GoType: goType,
		Detail: "no field strategy for this shape",
	}
}

// AlreadyInjected reports a type that already has a native class
func AlreadyInjected(goType string) *Error {
	return &Error{
		Phase:  PhaseInject,
		Kind:   KindAlreadyInjected,
		GoType: goType,
		Detail: "type already has a native class; its layout cannot change",
	}
}

// LayoutInvariant reports a managed/native representation mismatch
func LayoutInvariant(path []string, goType string, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindLayoutInvariant,
		Path:   path,
		GoType: goType,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// SizeMismatch reports differing managed and native byte sizes
func SizeMismatch(path []string, goType, nativeType string, goSize, nativeSize uint32) *Error {
	return &Error{
		Phase:      PhaseCompile,
		Kind:       KindLayoutInvariant,
		Path:       path,
		GoType:     goType,
		NativeType: nativeType,
		Detail:     fmt.Sprintf("size mismatch: Go %d bytes, native %d bytes", goSize, nativeSize),
	}
}

// MissingInterfaceSlot reports a class without the expected interface method
func MissingInterfaceSlot(nativeType, iface, method string) *Error {
	return &Error{
		Phase:      PhaseInject,
		Kind:       KindMissingInterfaceSlot,
		NativeType: nativeType,
		Detail:     fmt.Sprintf("interface %s has no slot for %s", iface, method),
	}
}

// BridgeFailure wraps an error surfaced by the native runtime
func BridgeFailure(phase Phase, goType string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNativeBridge,
		GoType: goType,
		Cause:  cause,
	}
}

// CyclicDependency reports a type that is part of a value-type dependency cycle
func CyclicDependency(goType string, cycle []string) *Error {
	return &Error{
		Phase:  PhaseInject,
		Kind:   KindCyclicDependency,
		GoType: goType,
		Detail: "dependency cycle: " + strings.Join(cycle, " -> "),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, nativeType string) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindTypeMismatch,
		Path:       path,
		GoType:     goType,
		NativeType: nativeType,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// NotFound creates a lookup failure error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}
