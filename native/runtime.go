package native

import (
	"math"
	"path"
	"reflect"
	"sync"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/handles"
	"github.com/wippyai/field-injector/layout"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	fieldinject "github.com/wippyai/field-injector"
)

// Layout constants of native records.
const (
	ObjectHeaderSize = 8
	ArrayHeaderSize  = 16
	ListObjectSize   = 20
	StringHeaderSize = 12

	classDescSize = 48

	offName         = 0
	offNamespace    = 4
	offParent       = 8
	offElement      = 12
	offInstanceSize = 16
	offFields       = 20
	offFieldCount   = 24
	offFlags        = 28
	offByval        = 32
	offToken        = 40
)

// InjectedImage is the image name given to value-type skeletons.
const InjectedImage = "InjectedStructs"

const (
	typeDefToken = 0x02000000
	minToken     = math.MinInt64 + 1
)

// DefaultMaxStringLength bounds the length of strings read back from native
// memory, in UTF-16 code units.
const DefaultMaxStringLength = 1 << 20

// Config holds configuration for the native runtime
type Config struct {
	// Namespace maps a Go type to its native namespace.
	// nil means the last element of the package path, with package main
	// mapping to the global namespace.
	Namespace func(reflect.Type) string

	// NativeInt32 maps Go int and uint to 32-bit native classes instead of
	// 64-bit ones.
	NativeInt32 bool

	// MaxStringLength bounds strings read from native memory.
	// 0 means DefaultMaxStringLength.
	MaxStringLength uint32
}

// DefaultNamespace derives a native namespace from a Go package path.
func DefaultNamespace(t reflect.Type) string {
	pkg := t.PkgPath()
	if pkg == "" || pkg == "main" {
		return ""
	}
	return path.Base(pkg)
}

type class struct {
	info    bridge.ClassInfo
	managed bool
}

// Runtime is an in-process native runtime.
type Runtime struct {
	mem     fieldinject.Memory
	alloc   fieldinject.Allocator
	handles *handles.Table
	utf16   encoding.Encoding
	cfg     Config

	mu         sync.RWMutex
	classes    map[uint32]*class
	byType     map[reflect.Type]uint32
	enums      map[reflect.Type]uint32
	byName     map[uint64][]uint32
	arrays     map[uint32]uint32
	lists      map[uint32]uint32
	primitives map[reflect.Kind]uint32
	nextToken  int64

	object    uint32
	valueType uint32
	enum      uint32
	str       uint32
	callback  uint32
}

// New boots a runtime on mem, allocating from alloc.
func New(mem fieldinject.Memory, alloc fieldinject.Allocator, cfg *Config) (*Runtime, error) {
	r := &Runtime{
		mem:        mem,
		alloc:      alloc,
		handles:    handles.NewTable(),
		utf16:      unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
		classes:    make(map[uint32]*class),
		byType:     make(map[reflect.Type]uint32),
		enums:      make(map[reflect.Type]uint32),
		byName:     make(map[uint64][]uint32),
		arrays:     make(map[uint32]uint32),
		lists:      make(map[uint32]uint32),
		primitives: make(map[reflect.Kind]uint32),
		nextToken:  minToken,
	}
	if cfg != nil {
		r.cfg = *cfg
	}
	if r.cfg.Namespace == nil {
		r.cfg.Namespace = DefaultNamespace
	}
	if r.cfg.MaxStringLength == 0 {
		r.cfg.MaxStringLength = DefaultMaxStringLength
	}

	if err := r.bootstrap(); err != nil {
		return nil, err
	}
	r.handles.Subscribe(handleLog{})
	return r, nil
}

// handleLog traces managed handle lifecycle events.
type handleLog struct{}

func (handleLog) OnHandleEvent(e handles.Event) {
	Logger().Debug("managed handle",
		zap.Stringer("event", e.Type),
		zap.Uint32("handle", uint32(e.Handle)),
		zap.Uint32("class", e.Class))
}

// Close unbinds every wrapper still held by a native instance and releases
// its handle. Managed instances cannot be created afterwards.
func (r *Runtime) Close() error {
	r.handles.Each(func(_ handles.Handle, _ uint32, v any) bool {
		if w, ok := v.(bridge.Wrapper); ok {
			bridge.Bind(w, 0)
		}
		return true
	})
	return r.handles.Close()
}

type primitiveDef struct {
	shape wit.Type
	name  string
	kinds []reflect.Kind
}

func (r *Runtime) primitiveDefs() []primitiveDef {
	intKinds := []reflect.Kind{reflect.Int64, reflect.Int}
	uintKinds := []reflect.Kind{reflect.Uint64, reflect.Uint}
	int32Kinds := []reflect.Kind{reflect.Int32}
	uint32Kinds := []reflect.Kind{reflect.Uint32}
	if r.cfg.NativeInt32 {
		intKinds = []reflect.Kind{reflect.Int64}
		uintKinds = []reflect.Kind{reflect.Uint64}
		int32Kinds = append(int32Kinds, reflect.Int)
		uint32Kinds = append(uint32Kinds, reflect.Uint)
	}

	return []primitiveDef{
		{wit.Bool{}, "Boolean", []reflect.Kind{reflect.Bool}},
		{wit.S8{}, "SByte", []reflect.Kind{reflect.Int8}},
		{wit.U8{}, "Byte", []reflect.Kind{reflect.Uint8}},
		{wit.S16{}, "Int16", []reflect.Kind{reflect.Int16}},
		{wit.U16{}, "UInt16", []reflect.Kind{reflect.Uint16}},
		{wit.S32{}, "Int32", int32Kinds},
		{wit.U32{}, "UInt32", uint32Kinds},
		{wit.S64{}, "Int64", intKinds},
		{wit.U64{}, "UInt64", uintKinds},
		{wit.F32{}, "Single", []reflect.Kind{reflect.Float32}},
		{wit.F64{}, "Double", []reflect.Kind{reflect.Float64}},
		{wit.U32{}, "UIntPtr", []reflect.Kind{reflect.Uintptr}},
	}
}

func noop(uint32) error { return nil }

func (r *Runtime) bootstrap() error {
	var err error

	objectVTable := []bridge.Method{
		{Name: "Finalize", Fn: noop},
		{Name: "Equals"},
		{Name: "GetHashCode"},
		{Name: "ToString"},
	}
	r.object, err = r.defineClass(bridge.ClassInfo{
		Name:         "Object",
		Namespace:    "System",
		Kind:         bridge.ClassReference,
		InstanceSize: ObjectHeaderSize,
		VTable:       objectVTable,
		GoType:       bridge.ObjectType,
	}, true)
	if err != nil {
		return err
	}
	r.byType[bridge.ObjectType] = r.object

	r.callback, err = r.defineClass(bridge.ClassInfo{
		Name:      bridge.CallbackInterfaceName,
		Namespace: "UnityEngine",
		Kind:      bridge.ClassInterface,
		VTable: []bridge.Method{
			{Name: bridge.OnBeforeSerialize},
			{Name: bridge.OnAfterDeserialize},
		},
	}, true)
	if err != nil {
		return err
	}

	r.valueType, err = r.defineClass(bridge.ClassInfo{
		Name:         "ValueType",
		Namespace:    "System",
		Kind:         bridge.ClassReference,
		Parent:       r.object,
		InstanceSize: ObjectHeaderSize,
		VTable:       cloneVTable(objectVTable),
	}, true)
	if err != nil {
		return err
	}

	var ifaces []bridge.InterfaceOffset
	enumVTable := cloneVTable(objectVTable)
	for _, def := range [][2]string{
		{"IComparable", "CompareTo"},
		{"IFormattable", "ToString"},
		{"IConvertible", "GetTypeCode"},
	} {
		iface, err := r.defineClass(bridge.ClassInfo{
			Name:      def[0],
			Namespace: "System",
			Kind:      bridge.ClassInterface,
			VTable:    []bridge.Method{{Name: def[1]}},
		}, true)
		if err != nil {
			return err
		}
		ifaces = append(ifaces, bridge.InterfaceOffset{Class: iface, Offset: len(enumVTable)})
		enumVTable = append(enumVTable, bridge.Method{Name: def[1]})
	}
	r.enum, err = r.defineClass(bridge.ClassInfo{
		Name:         "Enum",
		Namespace:    "System",
		Kind:         bridge.ClassReference,
		Parent:       r.valueType,
		InstanceSize: ObjectHeaderSize,
		VTable:       enumVTable,
		Interfaces:   ifaces,
	}, true)
	if err != nil {
		return err
	}

	r.str, err = r.defineClass(bridge.ClassInfo{
		Name:         "String",
		Namespace:    "System",
		Kind:         bridge.ClassString,
		Parent:       r.object,
		InstanceSize: StringHeaderSize,
		VTable:       cloneVTable(objectVTable),
	}, true)
	if err != nil {
		return err
	}

	for _, def := range r.primitiveDefs() {
		ptr, err := r.defineClass(bridge.ClassInfo{
			Name:         def.name,
			Namespace:    "System",
			Kind:         bridge.ClassPrimitive,
			Parent:       r.valueType,
			Shape:        def.shape,
			InstanceSize: ObjectHeaderSize + layout.ShapeInfo(def.shape).Size,
			VTable:       cloneVTable(objectVTable),
			Blittable:    true,
		}, true)
		if err != nil {
			return err
		}
		for _, k := range def.kinds {
			r.primitives[k] = ptr
		}
	}

	Logger().Debug("native runtime booted", zap.Int("classes", len(r.classes)))
	return nil
}

// defineClass allocates a class descriptor and records it. Callers hold mu
// or run before the runtime is shared.
func (r *Runtime) defineClass(info bridge.ClassInfo, lookup bool) (uint32, error) {
	ptr, err := r.alloc.Alloc(classDescSize, 8)
	if err != nil {
		return 0, err
	}
	info.Ptr = ptr
	info.TypeDesc = ptr + offByval
	if info.Token == 0 {
		info.Token = typeDefToken + int64(len(r.classes))
	}

	name, err := r.allocCString(info.Name)
	if err != nil {
		return 0, err
	}
	if info.Namespace != "" {
		if info.NamespacePtr, err = r.allocCString(info.Namespace); err != nil {
			return 0, err
		}
	}

	c := &class{info: info}
	if p, ok := r.classes[info.Parent]; ok && p.managed {
		c.managed = true
	}
	r.classes[ptr] = c

	if err := r.mem.WriteU32(ptr+offName, name); err != nil {
		return 0, err
	}
	if err := r.writeDescriptor(c); err != nil {
		return 0, err
	}
	if lookup {
		r.addToLookup(c)
	}
	return ptr, nil
}

// writeDescriptor mirrors the mutable parts of a class into native memory.
func (r *Runtime) writeDescriptor(c *class) error {
	ci := &c.info
	words := []struct {
		off uint32
		val uint32
	}{
		{offNamespace, ci.NamespacePtr},
		{offParent, ci.Parent},
		{offElement, ci.Element},
		{offInstanceSize, ci.InstanceSize},
		{offFields, ci.Fields},
		{offFieldCount, uint32(ci.FieldCount)},
	}
	for _, w := range words {
		if err := r.mem.WriteU32(ci.Ptr+w.off, w.val); err != nil {
			return err
		}
	}

	var flags [4]byte
	flags[0] = byte(ci.Kind)
	if ci.Blittable {
		flags[1] = 1
	}
	if c.managed {
		flags[2] = 1
	}
	if err := r.mem.Write(ci.Ptr+offFlags, flags[:]); err != nil {
		return err
	}
	if err := bridge.WriteTypeDesc(r.mem, ci.TypeDesc, bridge.TypeDesc{
		Class: ci.Ptr,
		Kind:  ci.Kind,
	}); err != nil {
		return err
	}
	return r.mem.WriteU64(ci.Ptr+offToken, uint64(ci.Token))
}

func (r *Runtime) allocCString(s string) (uint32, error) {
	ptr, err := r.alloc.Alloc(uint32(len(s))+1, 1)
	if err != nil {
		return 0, err
	}
	if len(s) > 0 {
		if err := r.mem.Write(ptr, []byte(s)); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

func cloneVTable(vt []bridge.Method) []bridge.Method {
	return append([]bridge.Method(nil), vt...)
}

// Memory returns the native heap.
func (r *Runtime) Memory() fieldinject.Memory {
	return r.mem
}

// Allocator returns the native heap allocator.
func (r *Runtime) Allocator() fieldinject.Allocator {
	return r.alloc
}

// Handles returns the managed object handle table.
func (r *Runtime) Handles() *handles.Table {
	return r.handles
}

// ObjectHeaderSize returns the size of the object header.
func (r *Runtime) ObjectHeaderSize() uint32 {
	return ObjectHeaderSize
}

// ObjectClass returns System.Object.
func (r *Runtime) ObjectClass() uint32 {
	return r.object
}

// ValueTypeBase returns System.ValueType.
func (r *Runtime) ValueTypeBase() uint32 {
	return r.valueType
}

// EnumBase returns System.Enum.
func (r *Runtime) EnumBase() uint32 {
	return r.enum
}

// StringClass returns System.String.
func (r *Runtime) StringClass() uint32 {
	return r.str
}

// CallbackInterface returns the serialisation callback interface.
func (r *Runtime) CallbackInterface() uint32 {
	return r.callback
}

var _ bridge.Bridge = (*Runtime)(nil)
