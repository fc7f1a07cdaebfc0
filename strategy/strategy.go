package strategy

import (
	"reflect"
	"strings"
)

// Kind is the closed set of field strategies
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindString
	KindObjectRef
	KindStruct
	KindArray
	KindList
)

var kindNames = [...]string{
	KindPrimitive: "primitive",
	KindString:    "string",
	KindObjectRef: "object",
	KindStruct:    "struct",
	KindArray:     "array",
	KindList:      "list",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPointerShaped reports whether the native slot holds a pointer.
func (k Kind) IsPointerShaped() bool {
	switch k {
	case KindString, KindObjectRef, KindArray, KindList:
		return true
	default:
		return false
	}
}

// Strategy is the selected representation for one Go type.
type Strategy struct {
	// GoType is the declared type.
	GoType reflect.Type
	// Underlying is the builtin type with the same kind as a primitive. For
	// enums it is the underlying integer type.
	Underlying reflect.Type
	// Elem is the element strategy of arrays and lists.
	Elem *Strategy
	// Fields are the serialised fields of a struct.
	Fields []Field
	Kind   Kind
	Enum   bool
}

// Field is one serialised field of a struct.
type Field struct {
	Type     reflect.Type
	Strategy *Strategy
	Name     string
	GoName   string
	Index    int
	GoOffset uintptr
}

// Blittable reports whether values can be copied byte for byte. Structs are
// blittable when every field is.
func (s *Strategy) Blittable() bool {
	switch s.Kind {
	case KindPrimitive:
		return true
	case KindStruct:
		for _, f := range s.Fields {
			if !f.Strategy.Blittable() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String describes the strategy, e.g. "list<string>" or "primitive int32".
func (s *Strategy) String() string {
	var b strings.Builder
	s.describe(&b)
	return b.String()
}

func (s *Strategy) describe(b *strings.Builder) {
	switch s.Kind {
	case KindPrimitive:
		if s.Enum {
			b.WriteString("enum ")
			b.WriteString(s.GoType.Name())
			b.WriteByte(':')
			b.WriteString(s.Underlying.Name())
			return
		}
		b.WriteString(s.Underlying.Name())
	case KindString:
		b.WriteString("string")
	case KindObjectRef:
		b.WriteString("object ")
		b.WriteString(s.GoType.Elem().Name())
	case KindStruct:
		b.WriteString("struct ")
		b.WriteString(s.GoType.Name())
	case KindArray, KindList:
		b.WriteString(s.Kind.String())
		b.WriteByte('<')
		s.Elem.describe(b)
		b.WriteByte('>')
	default:
		b.WriteString("unknown")
	}
}

// Deps returns the struct types a strategy needs laid out before it can be
// used: nested struct values and struct elements of arrays and lists.
func (s *Strategy) Deps() []reflect.Type {
	var deps []reflect.Type
	s.Walk(func(e *Strategy) {
		if e.Kind == KindStruct {
			deps = append(deps, e.GoType)
		}
	})
	return deps
}

// Walk visits s and every element strategy below it.
func (s *Strategy) Walk(fn func(*Strategy)) {
	fn(s)
	if s.Elem != nil {
		s.Elem.Walk(fn)
	}
}
