package inject

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/engine"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/native"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mode int32

const (
	modeA mode = iota
	modeB
)

type vec2 struct {
	X, Y float32
}

// settings is the six-field reference type used across these tests.
type settings struct {
	bridge.Object
	Flag  int32
	E     mode
	S     string
	Arr   []int32
	Names bridge.List[string]
	Sub   vec2
}

type extended struct {
	settings
	Extra int32
}

type pure struct {
	A int32
	B float32
}

type wrapped struct {
	P pure
	C int16
}

type impure struct {
	P pure
	S string
}

type wrappedImpure struct {
	I impure
}

type aligned struct {
	B bool
	S string
	C int8
	L []int32
	D int64
	O *node
}

type node struct {
	bridge.Object
	Name string `native:"name"`
	Next *node
	skip int32
	Tmp  int32 `native:"-"`
}

type withMap struct {
	A int32
	M map[string]int
	B int32
}

type cycA struct {
	Bs []cycB
}

type cycB struct {
	As []cycA
}

type cycHolder struct {
	A cycA
	N int32
}

type self struct {
	Kids []self
}

type box struct {
	In    wrapped
	Label string
}

// engineVec and engineBad stand for value types the runtime defines itself.
type engineVec struct {
	X, Y, Z float32
}

type engineBad struct {
	X, Y float32
}

type usesEngine struct {
	bridge.Object
	Pos  engineVec
	Path []engineVec
	N    int32
}

type engineHolder struct {
	V engineVec
	K int16
}

type usesBad struct {
	V engineBad
}

func newRuntime(t *testing.T, cfg *native.Config) *native.Runtime {
	t.Helper()
	heap, err := engine.NewHeapMemory(nil)
	require.NoError(t, err)
	rt, err := native.New(heap, engine.NewBumpAllocator(heap, nil), cfg)
	require.NoError(t, err)
	return rt
}

// nativeStruct defines typ on the runtime with a payload of size bytes, the
// way a runtime describes its own value types.
func nativeStruct(t *testing.T, rt *native.Runtime, typ reflect.Type, size uint32) {
	t.Helper()
	class, err := rt.CreateValueTypeSkeleton(typ, DefaultVTableSlots)
	require.NoError(t, err)
	require.NoError(t, rt.SetFields(class, 0, 0, native.ObjectHeaderSize+size, true))
}

// roundTrip serialises v through its struct routine and reads it back.
func roundTrip(t *testing.T, rt *native.Runtime, reg *Registry, v any) {
	t.Helper()
	l, ok := reg.Layout(reflect.TypeOf(v))
	require.True(t, ok)
	addr, err := rt.Allocator().Alloc(l.Struct.Size, 8)
	require.NoError(t, err)
	require.NoError(t, l.Struct.Serialise(v, addr))
	out, err := l.Struct.Deserialise(addr)
	require.NoError(t, err)
	require.Equal(t, v, out)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func fieldNames(t *testing.T, rt *native.Runtime, class uint32) []string {
	t.Helper()
	fields, err := rt.Fields(class)
	require.NoError(t, err)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func TestInjectScenario(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	report := reg.Inject(0, typeOf[settings]())
	require.NoError(t, report.Err())

	l, ok := reg.Layout(typeOf[settings]())
	require.True(t, ok)
	require.Equal(t, StateRoutinesInstalled, l.State)
	require.False(t, l.ValueType)
	require.NotNil(t, l.Object)

	require.Equal(t, []string{"Flag", "E", "S", "Arr", "Names", "Sub"}, fieldNames(t, rt, l.Class))
	require.Len(t, l.Fields, 6)
	for i := 1; i < len(l.Fields); i++ {
		require.Greater(t, l.Fields[i].Offset, l.Fields[i-1].Offset, "field %s", l.Fields[i].Name)
	}

	offsets := make(map[string]uint32)
	for _, f := range l.Fields {
		offsets[f.Name] = f.Offset
		require.Equal(t, l.Class, f.Parent)
		require.False(t, f.Inherited)
	}
	require.Equal(t, map[string]uint32{
		"Flag": 8, "E": 12, "S": 16, "Arr": 20, "Names": 24, "Sub": 28,
	}, offsets)
	// Fields sit before the trailing managed handle slot.
	require.Equal(t, uint32(40), l.InstanceSize)

	info, ok := rt.Class(l.Class)
	require.True(t, ok)
	require.Equal(t, l.InstanceSize, info.InstanceSize)
	require.Equal(t, 6, info.FieldCount)

	enumClass := rt.ResolveClass(typeOf[mode](), true)
	require.NotZero(t, enumClass)
	require.Equal(t, enumClass, l.Fields[1].Class)

	s := &settings{
		Flag:  92,
		E:     modeB,
		S:     "hello",
		Arr:   []int32{1, 2, 3},
		Names: bridge.List[string]{"a", "b"},
		Sub:   vec2{1.5, 2.5},
	}
	obj, err := rt.NewManaged(s)
	require.NoError(t, err)
	require.NoError(t, rt.BeforeSerialize(obj))

	mem := rt.Memory()
	flag, err := mem.ReadU32(obj + 8)
	require.NoError(t, err)
	require.Equal(t, uint32(92), flag)
	e, err := mem.ReadU32(obj + 12)
	require.NoError(t, err)
	require.Equal(t, uint32(modeB), e)

	strPtr, err := mem.ReadU32(obj + 16)
	require.NoError(t, err)
	text, err := rt.NativeHandleToText(strPtr)
	require.NoError(t, err)
	require.Equal(t, "hello", text)

	arrPtr, err := mem.ReadU32(obj + 20)
	require.NoError(t, err)
	data, n, err := rt.ArrayInfo(arrPtr)
	require.NoError(t, err)
	require.Equal(t, uint32(3), n)
	third, err := mem.ReadU32(data + 8)
	require.NoError(t, err)
	require.Equal(t, uint32(3), third)

	want := *s
	*s = settings{Object: s.Object}
	require.NoError(t, rt.AfterDeserialize(obj))
	require.Equal(t, want.Flag, s.Flag)
	require.Equal(t, want.E, s.E)
	require.Equal(t, want.S, s.S)
	require.Equal(t, want.Arr, s.Arr)
	require.Equal(t, want.Names, s.Names)
	require.Equal(t, want.Sub, s.Sub)
}

func TestInjectEmptyAndNil(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)
	require.NoError(t, reg.Inject(0, typeOf[settings]()).Err())

	s := &settings{Arr: []int32{}, Names: nil}
	obj, err := rt.NewManaged(s)
	require.NoError(t, err)
	require.NoError(t, rt.BeforeSerialize(obj))

	mem := rt.Memory()
	str, _ := mem.ReadU32(obj + 16)
	require.Zero(t, str, "empty string maps to null")
	arr, _ := mem.ReadU32(obj + 20)
	require.NotZero(t, arr, "empty slice maps to a zero-length array")
	names, _ := mem.ReadU32(obj + 24)
	require.Zero(t, names, "nil list maps to null")

	s.Arr, s.Names, s.S = nil, bridge.List[string]{"x"}, "x"
	require.NoError(t, rt.AfterDeserialize(obj))
	require.NotNil(t, s.Arr)
	require.Empty(t, s.Arr)
	require.Nil(t, s.Names)
	require.Empty(t, s.S)
}

func TestInjectInheritancePrefix(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	report := reg.Inject(0, typeOf[extended]())
	require.NoError(t, report.Err())
	// The base and its nested struct are discovered.
	require.Len(t, report.Results, 3)
	require.Len(t, report.Injected(), 3)

	base, ok := reg.Layout(typeOf[settings]())
	require.True(t, ok)
	derived, ok := reg.Layout(typeOf[extended]())
	require.True(t, ok)

	baseInfo, _ := rt.Class(base.Class)
	derivedInfo, _ := rt.Class(derived.Class)
	require.Equal(t, base.Class, derivedInfo.Parent)
	require.Equal(t, 7, derivedInfo.FieldCount)

	mem := rt.Memory()
	prefix, err := mem.Read(baseInfo.Fields, uint32(baseInfo.FieldCount)*bridge.FieldEntrySize)
	require.NoError(t, err)
	copied, err := mem.Read(derivedInfo.Fields, uint32(baseInfo.FieldCount)*bridge.FieldEntrySize)
	require.NoError(t, err)
	require.Equal(t, prefix, copied)

	require.Len(t, derived.Fields, 7)
	for i, f := range derived.Fields[:6] {
		require.True(t, f.Inherited)
		require.Equal(t, base.Fields[i].Name, f.Name)
		require.Equal(t, base.Fields[i].Offset, f.Offset)
		require.Equal(t, base.Fields[i].TypeDesc, f.TypeDesc)
		require.Equal(t, base.Fields[i].GoName, f.GoName)
	}
	own := derived.Own()
	require.Len(t, own, 1)
	require.Equal(t, "Extra", own[0].Name)
	require.Equal(t, base.InstanceSize-4, own[0].Offset)
	require.Equal(t, base.InstanceSize+4, derived.InstanceSize)

	x := &extended{settings: settings{Flag: 7, S: "base"}, Extra: 3}
	obj, err := rt.NewManaged(x)
	require.NoError(t, err)
	require.NoError(t, rt.BeforeSerialize(obj))
	x.Flag, x.S, x.Extra = 0, "", 0
	require.NoError(t, rt.AfterDeserialize(obj))
	require.Equal(t, int32(7), x.Flag)
	require.Equal(t, "base", x.S)
	require.Equal(t, int32(3), x.Extra)
}

func TestInjectDerivedRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		batches [][]reflect.Type
	}{
		{"same batch", [][]reflect.Type{{typeOf[extended]()}}},
		{"base first", [][]reflect.Type{{typeOf[settings]()}, {typeOf[extended]()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t, nil)
			reg := New(rt, nil)
			for _, types := range tt.batches {
				require.NoError(t, reg.Inject(0, types...).Err())
			}

			base, ok := reg.Layout(typeOf[settings]())
			require.True(t, ok)
			derived, ok := reg.Layout(typeOf[extended]())
			require.True(t, ok)
			require.Equal(t, uint32(40), base.InstanceSize)
			own := derived.Own()
			require.Len(t, own, 1)
			require.Equal(t, uint32(36), own[0].Offset, "own fields start at the base handle slot")
			require.Equal(t, uint32(44), derived.InstanceSize)

			x := &extended{
				settings: settings{
					Flag:  1,
					E:     modeB,
					S:     "s",
					Arr:   []int32{4, 5},
					Names: bridge.List[string]{"n"},
					Sub:   vec2{1, 2},
				},
				Extra: 9,
			}
			obj, err := rt.NewManaged(x)
			require.NoError(t, err)
			require.NoError(t, rt.BeforeSerialize(obj))

			w, ok := rt.ManagedObject(obj)
			require.True(t, ok, "handle slot overwritten by a field")
			require.True(t, w == bridge.Wrapper(x))

			want := *x
			*x = extended{settings: settings{Object: x.Object}}
			require.NoError(t, rt.AfterDeserialize(obj))
			require.Equal(t, want, *x)
		})
	}
}

func TestInjectNativeValueTypes(t *testing.T) {
	rt := newRuntime(t, nil)
	nativeStruct(t, rt, typeOf[engineVec](), 12)
	nativeStruct(t, rt, typeOf[engineBad](), 12)
	reg := New(rt, nil)

	report := reg.Inject(0, typeOf[usesEngine](), typeOf[engineHolder](), typeOf[usesBad]())

	for _, typ := range []reflect.Type{typeOf[usesEngine](), typeOf[engineHolder]()} {
		res, ok := report.Result(typ)
		require.True(t, ok, typ.String())
		require.True(t, res.OK(), "%s: %v", typ, res.Err)
		require.Empty(t, res.Warnings)
	}
	_, ok := report.Result(typeOf[engineVec]())
	require.False(t, ok, "runtime value types are not injected")

	l, _ := reg.Layout(typeOf[usesEngine]())
	offsets := make(map[string]uint32)
	for _, f := range l.Fields {
		offsets[f.Name] = f.Offset
	}
	require.Equal(t, map[string]uint32{"Pos": 8, "Path": 20, "N": 24}, offsets)
	require.Equal(t, uint32(32), l.InstanceSize)

	u := &usesEngine{Pos: engineVec{1, 2, 3}, Path: []engineVec{{4, 5, 6}, {7, 8, 9}}, N: 5}
	obj, err := rt.NewManaged(u)
	require.NoError(t, err)
	require.NoError(t, rt.BeforeSerialize(obj))
	z, err := rt.Memory().ReadU32(obj + 16)
	require.NoError(t, err)
	require.Equal(t, uint32(0x40400000), z, "Pos.Z copied byte for byte")

	want := *u
	*u = usesEngine{Object: u.Object}
	require.NoError(t, rt.AfterDeserialize(obj))
	require.Equal(t, want, *u)

	h, _ := reg.Layout(typeOf[engineHolder]())
	require.True(t, h.Blittable)
	roundTrip(t, rt, reg, engineHolder{V: engineVec{1, -1, 0.5}, K: 3})

	res, _ := report.Result(typeOf[usesBad]())
	require.Equal(t, StateFailed, res.State)
	require.True(t, errors.IsKind(res.Err, errors.KindLayoutInvariant), res.Err)
}

func TestInjectBlittableClosure(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	report := reg.Inject(0, typeOf[wrapped](), typeOf[wrappedImpure]())
	require.NoError(t, report.Err())

	tests := []struct {
		typ       reflect.Type
		blittable bool
	}{
		{typeOf[pure](), true},
		{typeOf[wrapped](), true},
		{typeOf[impure](), false},
		{typeOf[wrappedImpure](), false},
	}
	for _, tt := range tests {
		t.Run(tt.typ.Name(), func(t *testing.T) {
			l, ok := reg.Layout(tt.typ)
			require.True(t, ok)
			require.True(t, l.ValueType)
			require.Equal(t, tt.blittable, l.Blittable)
			info, _ := rt.Class(l.Class)
			require.Equal(t, tt.blittable, info.Blittable)
			require.Equal(t, native.InjectedImage, info.Image)
			require.Less(t, info.Token, int64(0))
		})
	}

	p, _ := reg.Layout(typeOf[pure]())
	require.True(t, p.Struct.Bulk())
	require.Equal(t, uint32(16), p.InstanceSize)
}

func TestInjectPointerAlignment(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	l, err := Type[aligned](reg, 0)
	require.NoError(t, err)

	offsets := make(map[string]uint32)
	for _, f := range l.Fields {
		offsets[f.Name] = f.Offset
	}
	require.Equal(t, map[string]uint32{
		"B": 8, "S": 12, "C": 16, "L": 20, "D": 24, "O": 32,
	}, offsets)
	require.Equal(t, uint32(36), l.InstanceSize)

	// The referenced reference type was injected with the batch.
	n, ok := reg.Layout(typeOf[node]())
	require.True(t, ok)
	require.Equal(t, []string{"name", "Next"}, fieldNames(t, rt, n.Class))
}

func TestInjectNestedTwoLevels(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	l, err := Type[box](reg, 0)
	require.NoError(t, err)

	addr, err := rt.Allocator().Alloc(l.Struct.Size, 8)
	require.NoError(t, err)

	in := box{In: wrapped{P: pure{A: 4, B: 0.5}, C: -2}, Label: "deep"}
	require.NoError(t, l.Struct.Serialise(in, addr))
	out, err := l.Struct.Deserialise(addr)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestInjectDroppedFieldIsolation(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	report := reg.Inject(0, typeOf[pure](), typeOf[withMap](), typeOf[vec2]())
	require.NoError(t, report.Err())
	require.Len(t, report.Injected(), 3)

	res, ok := report.Result(typeOf[withMap]())
	require.True(t, ok)
	require.True(t, res.OK())
	require.Len(t, res.Warnings, 1)
	require.True(t, errors.IsKind(res.Warnings[0], errors.KindUnsupportedFieldType))

	l, _ := reg.Layout(typeOf[withMap]())
	require.Equal(t, []string{"A", "B"}, fieldNames(t, rt, l.Class))
	require.Equal(t, uint32(12), l.Fields[1].Offset)

	for _, typ := range []reflect.Type{typeOf[pure](), typeOf[vec2]()} {
		res, _ := report.Result(typ)
		require.True(t, res.OK())
		require.Empty(t, res.Warnings)
	}
	roundTrip(t, rt, reg, pure{A: 3, B: 1.5})
	roundTrip(t, rt, reg, vec2{2, -1})
	roundTrip(t, rt, reg, withMap{A: 1, B: 2})
}

func TestInjectFailureIsolation(t *testing.T) {
	rt := newRuntime(t, nil)
	_, err := rt.CreateValueTypeSkeleton(typeOf[impure](), DefaultVTableSlots)
	require.NoError(t, err)

	reg := New(rt, nil)
	report := reg.Inject(0, typeOf[pure](), typeOf[impure](), typeOf[vec2]())

	err = report.Err()
	require.Error(t, err)
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Failures, 1)
	require.True(t, errors.IsKind(err, errors.KindAlreadyInjected))

	res, _ := report.Result(typeOf[impure]())
	require.Equal(t, StateFailed, res.State)
	for _, typ := range []reflect.Type{typeOf[pure](), typeOf[vec2]()} {
		res, _ := report.Result(typ)
		require.True(t, res.OK(), typ.String())
	}
	roundTrip(t, rt, reg, pure{A: -7, B: 0.25})
	roundTrip(t, rt, reg, vec2{3, 4})
}

func TestInjectNonStructRoot(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	report := reg.Inject(0, typeOf[mode](), typeOf[[]int32](), nil)
	require.Len(t, report.Failed(), 3)
	require.True(t, errors.IsKind(report.Results[0].Err, errors.KindTypeMismatch))
	require.True(t, errors.IsKind(report.Results[2].Err, errors.KindNilPointer))
}

func TestInjectIdempotent(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	first := reg.Inject(0, typeOf[settings]())
	require.NoError(t, first.Err())
	l, _ := reg.Layout(typeOf[settings]())
	blocks := reg.Arena().Count()

	second := reg.Inject(0, typeOf[settings](), typeOf[*settings]())
	require.NoError(t, second.Err())
	require.Len(t, second.Results, 1)
	res := second.Results[0]
	require.True(t, res.Skipped)
	require.True(t, res.OK())
	require.Equal(t, l.Class, res.Class)
	require.Empty(t, second.Injected())
	require.Equal(t, blocks, reg.Arena().Count(), "second batch allocated")

	strict := New(rt, &Config{Strict: true})
	require.True(t, errors.IsKind(strict.Inject(0, typeOf[settings]()).Err(), errors.KindAlreadyInjected),
		"another registry must not claim a native class")

	reg.cfg = &Config{Strict: true}
	require.True(t, errors.IsKind(reg.Inject(0, typeOf[settings]()).Err(), errors.KindAlreadyInjected))
}

func TestInjectBatchKinds(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	report := reg.InjectBatch(0,
		[]reflect.Type{typeOf[settings](), typeOf[impure]()},
		[]reflect.Type{typeOf[wrapped](), typeOf[node]()})

	for typ, ok := range map[reflect.Type]bool{
		typeOf[settings](): true,
		typeOf[impure]():   false,
		typeOf[wrapped]():  true,
		typeOf[node]():     false,
	} {
		res, found := report.Result(typ)
		require.True(t, found, typ.String())
		require.Equal(t, ok, res.OK(), typ.String())
		if !ok {
			require.True(t, errors.IsKind(res.Err, errors.KindTypeMismatch))
		}
	}
	_, ok := reg.Layout(typeOf[impure]())
	require.False(t, ok)
	_, ok = reg.Layout(typeOf[pure]())
	require.True(t, ok, "dependency of wrapped")
}

func TestInjectCycles(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	report := reg.Inject(0, typeOf[cycHolder](), typeOf[self](), typeOf[pure]())

	for _, typ := range []reflect.Type{typeOf[cycA](), typeOf[cycB](), typeOf[self]()} {
		res, ok := report.Result(typ)
		require.True(t, ok, typ.String())
		require.Equal(t, StateFailed, res.State)
		require.True(t, errors.IsKind(res.Err, errors.KindCyclicDependency), res.Err)
	}

	res, _ := report.Result(typeOf[cycHolder]())
	require.True(t, res.OK())
	require.Len(t, res.Warnings, 1)

	l, _ := reg.Layout(typeOf[cycHolder]())
	require.Equal(t, []string{"N"}, fieldNames(t, rt, l.Class))

	res, _ = report.Result(typeOf[pure]())
	require.True(t, res.OK())
}

// noCallbackSlots is a runtime whose classes lack the callback interface.
type noCallbackSlots struct {
	*native.Runtime
}

func (noCallbackSlots) FindInterfaceMethodSlot(class, iface uint32, method string) (int, error) {
	return 0, errors.MissingInterfaceSlot("settings", bridge.CallbackInterfaceName, method)
}

func TestInjectMissingInterfaceSlot(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(noCallbackSlots{rt}, nil)

	report := reg.Inject(0, typeOf[settings](), typeOf[pure]())
	res, _ := report.Result(typeOf[settings]())
	require.Equal(t, StateFailed, res.State)
	require.True(t, errors.IsKind(res.Err, errors.KindMissingInterfaceSlot))

	_, ok := reg.Layout(typeOf[settings]())
	require.False(t, ok, "failed types are not cached")
	res, _ = report.Result(typeOf[pure]())
	require.True(t, res.OK())
}

func TestInjectFinaliserReleasesHandle(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)
	require.NoError(t, reg.Inject(0, typeOf[settings]()).Err())

	s := &settings{}
	obj, err := rt.NewManaged(s)
	require.NoError(t, err)
	require.Equal(t, 1, rt.Handles().Len())

	require.NoError(t, rt.Finalize(obj))
	require.Equal(t, 0, rt.Handles().Len())
	require.Zero(t, s.NativePointer())
	_, ok := rt.ManagedObject(obj)
	require.False(t, ok)

	// A second run finds an empty slot.
	require.NoError(t, rt.Finalize(obj))
}

func TestInjectNamespaceFix(t *testing.T) {
	rt := newRuntime(t, &native.Config{
		Namespace: func(reflect.Type) string { return "" },
	})
	reg := New(rt, nil)
	require.NoError(t, reg.Inject(0, typeOf[settings]()).Err())

	l, _ := reg.Layout(typeOf[settings]())
	info, _ := rt.Class(l.Class)
	require.NotZero(t, info.NamespacePtr)
	require.Empty(t, info.Namespace)
	require.Equal(t, l.Class, rt.ClassFromName("", "settings"))
}

func TestInjectDefaultNamespace(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)
	require.NoError(t, reg.Inject(0, typeOf[pure]()).Err())

	l, _ := reg.Layout(typeOf[pure]())
	require.Equal(t, l.Class, rt.ClassFromName("inject", "pure"))
}

func TestInjectLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rt := newRuntime(t, nil)
	reg := New(rt, &Config{Logger: zap.New(core)})

	reg.Inject(0, typeOf[withMap]())
	require.Zero(t, logs.FilterLevelExact(zapcore.DebugLevel).Len(), "debug level 0 is silent")
	require.Equal(t, 1, logs.FilterMessage("field dropped").Len())

	reg.Inject(5, typeOf[wrapped]())
	require.Equal(t, 1, logs.FilterMessage("injection batch done").Len())
	require.NotZero(t, logs.FilterMessage("classified field").Len())
	require.NotZero(t, logs.FilterMessage("field placed").Len())
	require.NotZero(t, logs.FilterMessage("struct routine").Len())
}

func TestTypeHelper(t *testing.T) {
	rt := newRuntime(t, nil)
	reg := New(rt, nil)

	l, err := Type[*settings](reg, 0)
	require.NoError(t, err)
	require.Equal(t, typeOf[settings](), l.Type)

	_, err = Type[mode](reg, 0)
	require.True(t, errors.IsKind(err, errors.KindTypeMismatch))

	require.Len(t, reg.Layouts(), 2)
	require.Equal(t, typeOf[settings](), reg.Layouts()[0].Type)
}
