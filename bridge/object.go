package bridge

import "reflect"

// Object is the root of every Go reference type that mirrors a native class.
// It must be embedded as the first field.
type Object struct {
	ptr uint32
}

// NativePointer returns the address of the native instance, or 0.
func (o *Object) NativePointer() uint32 {
	if o == nil {
		return 0
	}
	return o.ptr
}

func (o *Object) object() *Object {
	return o
}

// Wrapper is implemented by pointers to reference types.
type Wrapper interface {
	NativePointer() uint32
	object() *Object
}

// Bind attaches a native instance to a wrapper.
func Bind(w Wrapper, ptr uint32) {
	w.object().ptr = ptr
}

// List is a resizable list of T. Plain slices map to fixed-size native arrays.
type List[T any] []T

func (List[T]) nativeList() {}

type listShape interface {
	nativeList()
}

var (
	ObjectType    = reflect.TypeOf(Object{})
	wrapperType   = reflect.TypeOf((*Wrapper)(nil)).Elem()
	listShapeType = reflect.TypeOf((*listShape)(nil)).Elem()
)

// BaseOf returns the base of a reference type: ObjectType for roots, the
// embedded reference type otherwise. It returns nil when t is not a reference
// type, including for ObjectType itself.
func BaseOf(t reflect.Type) reflect.Type {
	if t == nil || t.Kind() != reflect.Struct || t == ObjectType || t.NumField() == 0 {
		return nil
	}
	f := t.Field(0)
	if !f.Anonymous || f.Type.Kind() != reflect.Struct {
		return nil
	}
	if f.Type == ObjectType || BaseOf(f.Type) != nil {
		return f.Type
	}
	return nil
}

// IsReferenceType reports whether t is a struct mirroring a native reference
// class. ObjectType itself counts.
func IsReferenceType(t reflect.Type) bool {
	return t == ObjectType || BaseOf(t) != nil
}

// IsWrapperPointer reports whether t is *T for a reference type T.
func IsWrapperPointer(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Ptr && IsReferenceType(t.Elem()) && t.Implements(wrapperType)
}

// IsList reports whether t is an instantiation of List.
func IsList(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Slice && t.Implements(listShapeType)
}

// IsEnum reports whether t is a defined integer type. Builtin integers have
// no package path.
func IsEnum(t reflect.Type) bool {
	if t == nil || t.PkgPath() == "" || t.Name() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
