package bridge

import (
	"encoding/binary"

	fieldinject "github.com/wippyai/field-injector"
)

const (
	// TypeDescSize is the size of a type descriptor: class u32, attrs u16,
	// kind u8, flags u8.
	TypeDescSize = 8

	// FieldEntrySize is the size of one field table entry: name u32,
	// type u32, parent u32, offset i32.
	FieldEntrySize = 16
)

// Field attribute bits stored in a type descriptor.
const (
	AttrPrivate       uint16 = 0x0001
	AttrPublic        uint16 = 0x0006
	AttrStatic        uint16 = 0x0010
	AttrNotSerialized uint16 = 0x0080
)

// TypeDesc describes the type of a field or class.
type TypeDesc struct {
	Class uint32
	Attrs uint16
	Kind  ClassKind
	ByRef bool
}

// FieldEntry is one record of a native field table.
type FieldEntry struct {
	Name   uint32
	Type   uint32
	Parent uint32
	Offset int32
}

// ReadTypeDesc decodes a type descriptor.
func ReadTypeDesc(mem fieldinject.Memory, ptr uint32) (TypeDesc, error) {
	b, err := mem.Read(ptr, TypeDescSize)
	if err != nil {
		return TypeDesc{}, err
	}
	return TypeDesc{
		Class: binary.LittleEndian.Uint32(b[0:]),
		Attrs: binary.LittleEndian.Uint16(b[4:]),
		Kind:  ClassKind(b[6]),
		ByRef: b[7]&1 != 0,
	}, nil
}

// WriteTypeDesc encodes a type descriptor.
func WriteTypeDesc(mem fieldinject.Memory, ptr uint32, d TypeDesc) error {
	var b [TypeDescSize]byte
	binary.LittleEndian.PutUint32(b[0:], d.Class)
	binary.LittleEndian.PutUint16(b[4:], d.Attrs)
	b[6] = byte(d.Kind)
	if d.ByRef {
		b[7] = 1
	}
	return mem.Write(ptr, b[:])
}

// ReadFieldEntry decodes a field table entry.
func ReadFieldEntry(mem fieldinject.Memory, ptr uint32) (FieldEntry, error) {
	b, err := mem.Read(ptr, FieldEntrySize)
	if err != nil {
		return FieldEntry{}, err
	}
	return FieldEntry{
		Name:   binary.LittleEndian.Uint32(b[0:]),
		Type:   binary.LittleEndian.Uint32(b[4:]),
		Parent: binary.LittleEndian.Uint32(b[8:]),
		Offset: int32(binary.LittleEndian.Uint32(b[12:])),
	}, nil
}

// WriteFieldEntry encodes a field table entry.
func WriteFieldEntry(mem fieldinject.Memory, ptr uint32, e FieldEntry) error {
	var b [FieldEntrySize]byte
	binary.LittleEndian.PutUint32(b[0:], e.Name)
	binary.LittleEndian.PutUint32(b[4:], e.Type)
	binary.LittleEndian.PutUint32(b[8:], e.Parent)
	binary.LittleEndian.PutUint32(b[12:], uint32(e.Offset))
	return mem.Write(ptr, b[:])
}

// ReadCString reads a NUL-terminated UTF-8 string. A null pointer reads as "".
func ReadCString(mem fieldinject.Memory, ptr uint32, maxLen uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	var out []byte
	for i := uint32(0); i < maxLen; i++ {
		c, err := mem.ReadU8(ptr + i)
		if err != nil {
			return "", err
		}
		if c == 0 {
			break
		}
		out = append(out, c)
	}
	return string(out), nil
}
