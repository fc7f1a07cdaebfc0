package transcoder

import (
	"reflect"
	"testing"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/engine"
	"github.com/wippyai/field-injector/layout"
	"github.com/wippyai/field-injector/native"
	"github.com/wippyai/field-injector/strategy"

	fieldinject "github.com/wippyai/field-injector"
)

// harness lays out classes on a native runtime the way an injector would,
// without the ordering and bookkeeping.
type harness struct {
	t  *testing.T
	rt *native.Runtime
	c  *Compiler
	cl *strategy.Classifier
}

func newHarness(t *testing.T, cfg *native.Config) *harness {
	t.Helper()
	heap, err := engine.NewHeapMemory(nil)
	if err != nil {
		t.Fatal(err)
	}
	rt, err := native.New(heap, engine.NewBumpAllocator(heap, nil), cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, rt: rt, c: NewCompiler(rt, nil), cl: strategy.NewClassifier()}
}

func (h *harness) fieldClass(s *strategy.Strategy) uint32 {
	h.t.Helper()
	switch s.Kind {
	case strategy.KindArray, strategy.KindList:
		elem := h.fieldClass(s.Elem)
		var class uint32
		var err error
		if s.Kind == strategy.KindList {
			class, err = h.rt.ListClass(elem)
		} else {
			class, err = h.rt.ArrayClass(elem)
		}
		if err != nil {
			h.t.Fatal(err)
		}
		return class
	case strategy.KindPrimitive:
		if s.Enum {
			if class, err := h.rt.GetOrCreateEnumClass(s.GoType); err == nil {
				return class
			}
		}
	}
	if class := h.rt.ResolveClass(s.GoType, false); class != 0 {
		return class
	}
	return h.rt.ObjectClass()
}

// place lays fields out from base and writes a field table for class.
func (h *harness) place(class uint32, fields []strategy.Field, base uint32) ([]FieldSlot, uint32) {
	h.t.Helper()
	mem := h.rt.Memory()
	alloc := h.rt.Allocator()

	reqs := make([]layout.Request, len(fields))
	classes := make([]uint32, len(fields))
	for i, f := range fields {
		classes[i] = h.fieldClass(f.Strategy)
		info, _ := h.rt.Class(classes[i])
		size := info.ValueSize(native.ObjectHeaderSize)
		align := size
		switch {
		case f.Strategy.Kind.IsPointerShaped():
			size, align = fieldinject.PointerSize, fieldinject.PointerSize
		case f.Strategy.Kind == strategy.KindStruct:
			align = 0
		}
		reqs[i] = layout.Request{Name: f.Name, Size: size, Align: align}
	}
	placements, end, err := layout.Allocate(reqs, base)
	if err != nil {
		h.t.Fatal(err)
	}

	table, err := alloc.Alloc(uint32(len(fields))*bridge.FieldEntrySize, 4)
	if err != nil {
		h.t.Fatal(err)
	}
	slots := make([]FieldSlot, len(fields))
	for i, f := range fields {
		info, _ := h.rt.Class(classes[i])
		entry := table + uint32(i)*bridge.FieldEntrySize
		if err := bridge.WriteFieldEntry(mem, entry, bridge.FieldEntry{
			Type:   info.TypeDesc,
			Parent: class,
			Offset: int32(placements[i].Offset),
		}); err != nil {
			h.t.Fatal(err)
		}
		slots[i] = FieldSlot{Field: f, Entry: entry, Offset: placements[i].Offset}
	}
	return slots, end
}

func (h *harness) valueType(v any) *StructRoutine {
	h.t.Helper()
	t := reflect.TypeOf(v)
	class, err := h.rt.CreateValueTypeSkeleton(t, 4)
	if err != nil {
		h.t.Fatal(err)
	}
	fields, warnings := h.cl.Fields(t)
	if len(warnings) > 0 {
		h.t.Fatalf("unexpected warnings: %v", warnings)
	}
	slots, end := h.place(class, fields, native.ObjectHeaderSize)
	if err := h.rt.SetFields(class, slots0(slots), len(slots), end, false); err != nil {
		h.t.Fatal(err)
	}
	r, err := h.c.CompileStruct(t, class, end-native.ObjectHeaderSize, slots, 0)
	if err != nil {
		h.t.Fatal(err)
	}
	return r
}

// referenceType registers t (a struct embedding bridge.Object) and compiles
// its routine over the inherited fields of base, if any.
func (h *harness) referenceType(v any, base []FieldSlot) (*ObjectRoutine, []FieldSlot) {
	h.t.Helper()
	t := reflect.TypeOf(v)
	parent := h.rt.ResolveClass(bridge.BaseOf(t), false)
	class, err := h.rt.RegisterReferenceType(t, parent, h.rt.CallbackInterface())
	if err != nil {
		h.t.Fatal(err)
	}
	info, _ := h.rt.Class(class)
	fields, warnings := h.cl.Fields(t)
	if len(warnings) > 0 {
		h.t.Fatalf("unexpected warnings: %v", warnings)
	}
	own, end := h.place(class, fields, info.InstanceSize-fieldinject.PointerSize)
	all := append(append([]FieldSlot(nil), base...), own...)
	if err := h.rt.SetFields(class, slots0(own), len(own), end+fieldinject.PointerSize, false); err != nil {
		h.t.Fatal(err)
	}
	r, err := h.c.CompileObject(t, class, all, 0)
	if err != nil {
		h.t.Fatal(err)
	}
	return r, all
}

func slots0(slots []FieldSlot) uint32 {
	if len(slots) == 0 {
		return 0
	}
	return slots[0].Entry
}
