package inject

import (
	"reflect"

	"github.com/wippyai/field-injector/transcoder"
)

// Slot is one entry of an injected native field table.
type Slot struct {
	Name     string
	GoName   string
	Strategy string
	// Entry is the field table record, TypeDesc the field's own type
	// descriptor.
	Entry    uint32
	TypeDesc uint32
	Class    uint32
	// Parent is the class that declared the field.
	Parent uint32
	Offset uint32
	Size   uint32
	// Inherited marks entries copied from the base class.
	Inherited bool
}

// TypeLayout is the finished native shape of an injected type.
type TypeLayout struct {
	Type   reflect.Type
	Struct *transcoder.StructRoutine
	Object *transcoder.ObjectRoutine
	// Fields lists inherited entries first, then own entries.
	Fields       []Slot
	slots        []transcoder.FieldSlot
	Class        uint32
	InstanceSize uint32
	State        State
	ValueType    bool
	Blittable    bool
}

// Own returns the fields declared by the type itself.
func (l *TypeLayout) Own() []Slot {
	for i, f := range l.Fields {
		if !f.Inherited {
			return l.Fields[i:]
		}
	}
	return nil
}
