package bridge

import (
	"encoding/binary"
	"reflect"
	"testing"
)

// mockMemory implements Memory for testing
type mockMemory struct {
	data []byte
}

func newMockMemory(size int) *mockMemory {
	return &mockMemory{data: make([]byte, size)}
}

func (m *mockMemory) Read(offset uint32, length uint32) ([]byte, error) {
	return m.data[offset : offset+length], nil
}

func (m *mockMemory) Write(offset uint32, data []byte) error {
	copy(m.data[offset:], data)
	return nil
}

func (m *mockMemory) ReadU8(offset uint32) (uint8, error) {
	return m.data[offset], nil
}

func (m *mockMemory) ReadU16(offset uint32) (uint16, error) {
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}

func (m *mockMemory) ReadU32(offset uint32) (uint32, error) {
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *mockMemory) ReadU64(offset uint32) (uint64, error) {
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *mockMemory) WriteU8(offset uint32, value uint8) error {
	m.data[offset] = value
	return nil
}

func (m *mockMemory) WriteU16(offset uint32, value uint16) error {
	binary.LittleEndian.PutUint16(m.data[offset:], value)
	return nil
}

func (m *mockMemory) WriteU32(offset uint32, value uint32) error {
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *mockMemory) WriteU64(offset uint32, value uint64) error {
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

type component struct {
	Object
	Enabled bool
}

type light struct {
	component
	Range float32
}

type notFirst struct {
	X int32
	Object
}

type plain struct {
	X int32
}

type mode int32

func TestShapes(t *testing.T) {
	tests := []struct {
		typ     reflect.Type
		name    string
		ref     bool
		wrapper bool
		list    bool
		enum    bool
	}{
		{ObjectType, "Object", true, false, false, false},
		{reflect.TypeOf(component{}), "root", true, false, false, false},
		{reflect.TypeOf(light{}), "derived", true, false, false, false},
		{reflect.TypeOf(&light{}), "wrapper", false, true, false, false},
		{reflect.TypeOf(&Object{}), "object pointer", false, true, false, false},
		{reflect.TypeOf(notFirst{}), "embedded late", false, false, false, false},
		{reflect.TypeOf(&notFirst{}), "late pointer", false, false, false, false},
		{reflect.TypeOf(plain{}), "plain struct", false, false, false, false},
		{reflect.TypeOf(&plain{}), "plain pointer", false, false, false, false},
		{reflect.TypeOf(List[string]{}), "list", false, false, true, false},
		{reflect.TypeOf([]string{}), "slice", false, false, false, false},
		{reflect.TypeOf(mode(0)), "enum", false, false, false, true},
		{reflect.TypeOf(int32(0)), "int32", false, false, false, false},
		{reflect.TypeOf(""), "string", false, false, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsReferenceType(tc.typ); got != tc.ref {
				t.Errorf("IsReferenceType = %v, want %v", got, tc.ref)
			}
			if got := IsWrapperPointer(tc.typ); got != tc.wrapper {
				t.Errorf("IsWrapperPointer = %v, want %v", got, tc.wrapper)
			}
			if got := IsList(tc.typ); got != tc.list {
				t.Errorf("IsList = %v, want %v", got, tc.list)
			}
			if got := IsEnum(tc.typ); got != tc.enum {
				t.Errorf("IsEnum = %v, want %v", got, tc.enum)
			}
		})
	}
}

func TestBaseOf(t *testing.T) {
	if got := BaseOf(reflect.TypeOf(component{})); got != ObjectType {
		t.Errorf("BaseOf(component) = %v, want Object", got)
	}
	if got := BaseOf(reflect.TypeOf(light{})); got != reflect.TypeOf(component{}) {
		t.Errorf("BaseOf(light) = %v, want component", got)
	}
	if got := BaseOf(ObjectType); got != nil {
		t.Errorf("BaseOf(Object) = %v, want nil", got)
	}
	if got := BaseOf(reflect.TypeOf(plain{})); got != nil {
		t.Errorf("BaseOf(plain) = %v, want nil", got)
	}
}

func TestBind(t *testing.T) {
	l := &light{}
	if l.NativePointer() != 0 {
		t.Fatal("fresh wrapper should have no native pointer")
	}

	var w Wrapper = l
	Bind(w, 0x1234)
	if l.NativePointer() != 0x1234 {
		t.Errorf("NativePointer = %#x, want 0x1234", l.NativePointer())
	}
	if l.component.Object.NativePointer() != 0x1234 {
		t.Error("Bind should write through to the embedded Object")
	}

	var nilObj *Object
	if nilObj.NativePointer() != 0 {
		t.Error("nil Object should report 0")
	}
}

func TestFieldEntryRoundTrip(t *testing.T) {
	mem := newMockMemory(256)
	want := FieldEntry{Name: 0x100, Type: 0x200, Parent: 0x300, Offset: 24}

	if err := WriteFieldEntry(mem, 16, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFieldEntry(mem, 16)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if off := binary.LittleEndian.Uint32(mem.data[16+12:]); off != 24 {
		t.Errorf("offset stored at +12 = %d", off)
	}
}

func TestTypeDescRoundTrip(t *testing.T) {
	mem := newMockMemory(64)
	want := TypeDesc{Class: 0xabc, Attrs: AttrPublic, Kind: ClassValue, ByRef: true}

	if err := WriteTypeDesc(mem, 8, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadTypeDesc(mem, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestReadCString(t *testing.T) {
	mem := newMockMemory(64)
	copy(mem.data[4:], "Volume\x00junk")

	s, err := ReadCString(mem, 4, 32)
	if err != nil || s != "Volume" {
		t.Errorf("ReadCString = %q, %v", s, err)
	}
	s, _ = ReadCString(mem, 0, 32)
	if s != "" {
		t.Errorf("null pointer should read as empty, got %q", s)
	}
	s, _ = ReadCString(mem, 4, 3)
	if s != "Vol" {
		t.Errorf("maxLen should truncate, got %q", s)
	}
}

func TestClassInfo(t *testing.T) {
	c := ClassInfo{Name: "Settings", Namespace: "game", Kind: ClassValue, InstanceSize: 20}
	if c.FullName() != "game.Settings" {
		t.Errorf("FullName = %q", c.FullName())
	}
	if c.ValueSize(8) != 12 {
		t.Errorf("ValueSize = %d, want 12", c.ValueSize(8))
	}

	c = ClassInfo{Name: "Thing", Kind: ClassReference, InstanceSize: 32}
	if c.FullName() != "Thing" {
		t.Errorf("FullName = %q", c.FullName())
	}
	if c.ValueSize(8) != 4 {
		t.Errorf("reference ValueSize = %d, want pointer size", c.ValueSize(8))
	}

	if ClassList.String() != "list" || ClassKind(99).String() != "unknown" {
		t.Error("ClassKind.String mismatch")
	}
}
