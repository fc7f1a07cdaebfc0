package bridge

import (
	"reflect"

	fieldinject "github.com/wippyai/field-injector"
	"go.bytecodealliance.org/wit"
)

// Names of the serialisation callback interface and its two methods.
const (
	CallbackInterfaceName = "ISerializationCallbackReceiver"
	OnBeforeSerialize     = "OnBeforeSerialize"
	OnAfterDeserialize    = "OnAfterDeserialize"
)

// ClassKind classifies a native class.
type ClassKind uint8

const (
	ClassReference ClassKind = iota
	ClassValue
	ClassEnum
	ClassPrimitive
	ClassString
	ClassArray
	ClassList
	ClassInterface
)

var classKindNames = [...]string{
	ClassReference: "reference",
	ClassValue:     "value",
	ClassEnum:      "enum",
	ClassPrimitive: "primitive",
	ClassString:    "string",
	ClassArray:     "array",
	ClassList:      "list",
	ClassInterface: "interface",
}

func (k ClassKind) String() string {
	if int(k) < len(classKindNames) {
		return classKindNames[k]
	}
	return "unknown"
}

// IsValueShaped reports whether instances of the kind are stored inline in
// fields rather than behind a pointer.
func (k ClassKind) IsValueShaped() bool {
	return k == ClassValue || k == ClassEnum || k == ClassPrimitive
}

// MethodFunc is the body of a native virtual method. obj is the receiver.
type MethodFunc func(obj uint32) error

// Method is one vtable slot.
type Method struct {
	Fn   MethodFunc
	Name string
}

// InterfaceOffset locates an implemented interface's methods in the vtable.
type InterfaceOffset struct {
	Class  uint32
	Offset int
}

// ClassInfo is a snapshot of a native class descriptor.
type ClassInfo struct {
	GoType       reflect.Type
	Shape        wit.Type
	Name         string
	Namespace    string
	Image        string
	Interfaces   []InterfaceOffset
	VTable       []Method
	Token        int64
	Ptr          uint32
	Parent       uint32
	Element      uint32
	TypeDesc     uint32
	NamespacePtr uint32
	Fields       uint32
	FieldCount   int
	InstanceSize uint32
	Kind         ClassKind
	Blittable    bool
}

// FullName returns "namespace.name", or the bare name in the global namespace.
func (c ClassInfo) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "." + c.Name
}

// ValueSize is the inline size of a value-shaped instance, without the object
// header. Reference-shaped classes report the pointer size.
func (c ClassInfo) ValueSize(header uint32) uint32 {
	if !c.Kind.IsValueShaped() {
		return fieldinject.PointerSize
	}
	if c.InstanceSize < header {
		return 0
	}
	return c.InstanceSize - header
}

// FieldInfo is a decoded native field table entry.
type FieldInfo struct {
	Name   string
	Entry  uint32
	Type   uint32
	Class  uint32
	Parent uint32
	Offset uint32
	Attrs  uint16
}

// Classes resolves, synthesizes and patches native class descriptors.
type Classes interface {
	// ResolveClass returns the native class for t, or 0 when the runtime has
	// none. Enums resolve to their underlying integer class unless
	// bypassEnum is set.
	ResolveClass(t reflect.Type, bypassEnum bool) uint32
	Class(ptr uint32) (ClassInfo, bool)
	Fields(class uint32) ([]FieldInfo, error)
	ObjectHeaderSize() uint32
	// IsManaged reports whether instances of class end in a managed handle
	// slot.
	IsManaged(class uint32) bool

	ValueTypeBase() uint32
	CallbackInterface() uint32
	ArrayClass(elem uint32) (uint32, error)
	ListClass(elem uint32) (uint32, error)

	RegisterReferenceType(t reflect.Type, parent uint32, interfaces ...uint32) (uint32, error)
	CreateValueTypeSkeleton(t reflect.Type, vtableSlots int) (uint32, error)
	GetOrCreateEnumClass(t reflect.Type) (uint32, error)
	AddClassToLookup(class uint32) error

	SetNamespace(class, str uint32) error
	SetFields(class, table uint32, count int, instanceSize uint32, blittable bool) error
	FindInterfaceMethodSlot(class, iface uint32, method string) (int, error)
	InstallVirtual(class uint32, slot int, name string, fn MethodFunc) error
	ReplaceFinalizer(class uint32, fn MethodFunc) error
}

// FieldAccess reads and writes field storage on native instances.
type FieldAccess interface {
	// ReadFieldValuePointer returns the stored pointer for reference-shaped
	// fields and the address of the inline storage for value-shaped fields.
	ReadFieldValuePointer(field, obj uint32) (uint32, error)
	WriteFieldValuePointer(obj, field, value uint32) error
}

// Objects converts between Go values and native instances.
type Objects interface {
	TextToNativeHandle(s string) (uint32, error)
	NativeHandleToText(ptr uint32) (string, error)

	ClassOf(obj uint32) (uint32, error)
	ManagedObject(obj uint32) (Wrapper, bool)
	ReleaseManaged(obj uint32) error

	NewArray(elemClass, length uint32) (uint32, error)
	ArrayInfo(arr uint32) (data, length uint32, err error)
	NewList(elemClass, items, size uint32) (uint32, error)
	ListInfo(list uint32) (items, size uint32, err error)
}

// Bridge is the full native runtime contract.
type Bridge interface {
	Classes
	FieldAccess
	Objects

	Memory() fieldinject.Memory
	Allocator() fieldinject.Allocator
}
