package inject

import (
	"reflect"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/layout"
	"github.com/wippyai/field-injector/strategy"
	"github.com/wippyai/field-injector/transcoder"
	"go.uber.org/zap"

	fieldinject "github.com/wippyai/field-injector"
)

// structPass creates value-type skeletons and makes them resolvable by name.
func (r *Registry) structPass(b *batch, order []*progress) {
	for _, p := range order {
		if !p.value || p.state != StatePending {
			continue
		}
		class, err := r.b.CreateValueTypeSkeleton(p.t, r.cfg.vtableSlots())
		if err != nil {
			r.fail(p, bridgeError(p.t, err))
			continue
		}
		p.class = class
		if err := r.b.AddClassToLookup(class); err != nil {
			r.fail(p, bridgeError(p.t, err))
			continue
		}
		p.state = StateClassSkeletonCreated
		r.step(b, p, "value type skeleton created")
	}
}

// classPass registers reference classes implementing the serialisation
// callback interface.
func (r *Registry) classPass(b *batch, order []*progress) {
	for _, p := range order {
		if p.value || p.state != StatePending {
			continue
		}
		base := bridge.BaseOf(p.t)
		parent := r.b.ResolveClass(base, false)
		if parent == 0 {
			r.fail(p, errors.New(errors.PhaseInject, errors.KindNotFound).
				GoType(p.t.String()).
				Detail("base %s has no native class", base).
				Build())
			continue
		}
		class, err := r.b.RegisterReferenceType(p.t, parent, r.b.CallbackInterface())
		if err != nil {
			r.fail(p, bridgeError(p.t, err))
			continue
		}
		p.class = class

		info, _ := r.b.Class(class)
		if info.NamespacePtr == 0 {
			ns, err := r.arena.CString("")
			if err == nil {
				err = r.b.SetNamespace(class, ns)
			}
			if err != nil {
				r.fail(p, bridgeError(p.t, err))
				continue
			}
		}
		if err := r.b.ReplaceFinalizer(class, r.b.ReleaseManaged); err != nil {
			r.fail(p, bridgeError(p.t, err))
			continue
		}
		p.state = StateClassSkeletonCreated
		r.step(b, p, "reference class registered")
	}
}

// structFieldPass lays out value types and builds their routines.
func (r *Registry) structFieldPass(b *batch, order []*progress) {
	header := r.b.ObjectHeaderSize()
	for _, p := range order {
		if !p.value || p.state != StateClassSkeletonCreated {
			continue
		}
		fields := r.compiledFields(b, p)
		placed, end, err := r.place(b, p, fields, header)
		if err != nil {
			r.fail(p, err)
			continue
		}
		table, slots, err := r.writeTable(p.class, nil, placed)
		if err != nil {
			r.fail(p, err)
			continue
		}
		if err := checkOverlap(p, slots, 0); err != nil {
			r.fail(p, err)
			continue
		}

		blittable := true
		for _, pf := range placed {
			if !r.blittable(pf.field.Strategy) {
				blittable = false
				break
			}
		}
		if err := r.b.SetFields(p.class, table, len(slots), end, blittable); err != nil {
			r.fail(p, bridgeError(p.t, err))
			continue
		}
		p.state = StateFieldsLaidOut
		r.step(b, p, "value type fields laid out")

		ts := transcoderSlots(placed, slots)
		routine, err := r.compiler.CompileStruct(p.t, p.class, end-header, ts, b.debug)
		if err != nil {
			r.fail(p, err)
			continue
		}
		p.state = StateRoutinesInstalled
		r.layouts.Store(p.t, &TypeLayout{
			Type:         p.t,
			Struct:       routine,
			Fields:       slots,
			slots:        ts,
			Class:        p.class,
			InstanceSize: end,
			State:        p.state,
			ValueType:    true,
			Blittable:    blittable,
		})
		r.step(b, p, "struct routine built")
	}
}

// classFieldPass lays out reference types after their base's fields, builds
// their routines and installs them as the serialisation callbacks.
func (r *Registry) classFieldPass(b *batch, order []*progress) {
	iface := r.b.CallbackInterface()
	for _, p := range order {
		if p.value || p.state != StateClassSkeletonCreated {
			continue
		}
		info, ok := r.b.Class(p.class)
		if !ok {
			r.fail(p, errors.NotFound(errors.PhaseInject, "class of "+p.t.String()))
			continue
		}
		inherited, err := r.b.Fields(info.Parent)
		if err != nil {
			r.fail(p, bridgeError(p.t, err))
			continue
		}

		var (
			prefix     []transcoder.FieldSlot
			baseLayout *TypeLayout
		)
		if base := bridge.BaseOf(p.t); base != bridge.ObjectType {
			if bl, ok := r.Layout(base); ok {
				prefix, baseLayout = bl.slots, bl
			} else if _, ours := b.byType[base]; ours {
				r.fail(p, errors.New(errors.PhaseInject, errors.KindNotFound).
					GoType(p.t.String()).
					Detail("base %s failed to inject", base).
					Build())
				continue
			}
		}

		// The parent may have grown since this class was registered.
		start, err := r.ownFieldStart(p, info.Parent)
		if err != nil {
			r.fail(p, err)
			continue
		}
		fields := r.compiledFields(b, p)
		placed, end, err := r.place(b, p, fields, start)
		if err != nil {
			r.fail(p, err)
			continue
		}
		table, slots, err := r.writeTable(p.class, inherited, placed)
		if err != nil {
			r.fail(p, err)
			continue
		}
		size, ok := layout.SafeAddU32(end, fieldinject.PointerSize)
		if !ok {
			r.fail(p, errors.LayoutInvariant([]string{p.t.Name()}, p.t.String(),
				"handle slot after offset %d overflows", end))
			continue
		}
		if err := checkOverlap(p, slots, end); err != nil {
			r.fail(p, err)
			continue
		}
		if baseLayout != nil {
			for i := range inherited {
				if i < len(baseLayout.Fields) {
					slots[i].GoName = baseLayout.Fields[i].GoName
					slots[i].Strategy = baseLayout.Fields[i].Strategy
				}
			}
		}
		if err := r.b.SetFields(p.class, table, len(slots), size, false); err != nil {
			r.fail(p, bridgeError(p.t, err))
			continue
		}
		p.state = StateFieldsLaidOut
		r.step(b, p, "class fields laid out")

		all := make([]transcoder.FieldSlot, 0, len(prefix)+len(placed))
		for i, s := range prefix {
			if i < len(inherited) {
				s.Entry = slots[i].Entry
			}
			all = append(all, s)
		}
		all = append(all, transcoderSlots(placed, slots[len(inherited):])...)

		routine, err := r.compiler.CompileObject(p.t, p.class, all, b.debug)
		if err != nil {
			r.fail(p, err)
			continue
		}
		if err := r.installCallbacks(p, iface, routine); err != nil {
			r.fail(p, err)
			continue
		}
		p.state = StateRoutinesInstalled
		r.layouts.Store(p.t, &TypeLayout{
			Type:         p.t,
			Object:       routine,
			Fields:       slots,
			slots:        all,
			Class:        p.class,
			InstanceSize: size,
			State:        p.state,
		})
		r.step(b, p, "class routines installed")
	}
}

// ownFieldStart returns the offset of the first own field of a class
// deriving from parent: the parent's fields end where its handle slot starts.
func (r *Registry) ownFieldStart(p *progress, parent uint32) (uint32, error) {
	pinfo, ok := r.b.Class(parent)
	if !ok {
		return 0, errors.NotFound(errors.PhaseInject, "parent class of "+p.t.String())
	}
	if !r.b.IsManaged(parent) {
		return pinfo.InstanceSize, nil
	}
	if pinfo.InstanceSize < r.b.ObjectHeaderSize()+fieldinject.PointerSize {
		return 0, errors.LayoutInvariant([]string{p.t.Name()}, p.t.String(),
			"parent instance size %d has no handle slot", pinfo.InstanceSize)
	}
	return pinfo.InstanceSize - fieldinject.PointerSize, nil
}

func (r *Registry) installCallbacks(p *progress, iface uint32, routine *transcoder.ObjectRoutine) error {
	callbacks := []struct {
		name string
		fn   bridge.MethodFunc
	}{
		{bridge.OnAfterDeserialize, routine.Deserialise},
		{bridge.OnBeforeSerialize, routine.Serialise},
	}
	for _, cb := range callbacks {
		slot, err := r.b.FindInterfaceMethodSlot(p.class, iface, cb.name)
		if err != nil {
			return bridgeError(p.t, err)
		}
		if err := r.b.InstallVirtual(p.class, slot, cb.name, cb.fn); err != nil {
			return bridgeError(p.t, err)
		}
	}
	return nil
}

// compiledFields drops fields whose nested struct has no routine because it
// failed in this batch. Structs the runtime defined itself are copied as is.
func (r *Registry) compiledFields(b *batch, p *progress) []strategy.Field {
	out := make([]strategy.Field, 0, len(p.fields))
outer:
	for _, f := range p.fields {
		for _, d := range f.Strategy.Deps() {
			if _, ok := r.compiler.Struct(d); ok {
				continue
			}
			if _, ours := b.byType[d]; !ours && r.nativeValueType(d) {
				continue
			}
			err := errors.New(errors.PhaseInject, errors.KindNotFound).
				Path(p.t.Name(), f.GoName).
				GoType(d.String()).
				Detail("nested type has no conversion routine; field dropped").
				Build()
			p.warn(err)
			r.log.Warn("field dropped", zap.String("type", p.t.String()), zap.Error(err))
			continue outer
		}
		out = append(out, f)
	}
	return out
}

// nativeValueType reports whether the runtime defines t as a value type
// without this registry's help.
func (r *Registry) nativeValueType(t reflect.Type) bool {
	if _, ok := r.Layout(t); ok {
		return false
	}
	info, ok := r.b.Class(r.b.ResolveClass(t, false))
	return ok && info.Kind == bridge.ClassValue
}

type placedField struct {
	field  strategy.Field
	class  uint32
	kind   bridge.ClassKind
	offset uint32
	size   uint32
}

// place resolves the native class of each field and lays the fields out
// from base in declaration order.
func (r *Registry) place(b *batch, p *progress, fields []strategy.Field, base uint32) ([]placedField, uint32, error) {
	header := r.b.ObjectHeaderSize()
	placed := make([]placedField, len(fields))
	reqs := make([]layout.Request, len(fields))

	for i, f := range fields {
		class, err := r.fieldClass(f.Strategy)
		if err != nil {
			return nil, 0, errors.New(errors.PhaseLayout, errors.KindNotFound).
				Path(p.t.Name(), f.GoName).
				GoType(f.Type.String()).
				Cause(err).
				Build()
		}
		info, _ := r.b.Class(class)
		placed[i] = placedField{field: f, class: class, kind: info.Kind}

		req := layout.Request{Name: f.Name}
		switch {
		case f.Strategy.Kind.IsPointerShaped():
			req.Size, req.Align = layout.PointerSlot.Size, layout.PointerSlot.Align
		case f.Strategy.Kind == strategy.KindStruct:
			req.Size = info.ValueSize(header)
		default:
			req.Size = info.ValueSize(header)
			req.Align = req.Size
		}
		reqs[i] = req
	}

	ps, end, err := layout.Allocate(reqs, base)
	if err != nil {
		return nil, 0, err
	}
	for i := range placed {
		placed[i].offset = ps[i].Offset
		placed[i].size = ps[i].Size
		if b.debug >= 4 {
			r.log.Debug("field placed",
				zap.String("type", p.t.String()),
				zap.String("field", placed[i].field.Name),
				zap.Stringer("strategy", placed[i].field.Strategy),
				zap.Uint32("offset", ps[i].Offset),
				zap.Uint32("size", ps[i].Size))
		}
	}
	return placed, end, nil
}

// fieldClass returns the native class describing a field of strategy s.
func (r *Registry) fieldClass(s *strategy.Strategy) (uint32, error) {
	var class uint32
	switch s.Kind {
	case strategy.KindPrimitive:
		if s.Enum {
			class = r.b.ResolveClass(s.GoType, true)
		}
		if class == 0 {
			class = r.b.ResolveClass(s.Underlying, false)
		}
	case strategy.KindObjectRef:
		class = r.b.ResolveClass(s.GoType.Elem(), false)
		if class == 0 {
			class = r.b.ResolveClass(bridge.ObjectType, false)
		}
	case strategy.KindString, strategy.KindStruct:
		class = r.b.ResolveClass(s.GoType, false)
	case strategy.KindArray, strategy.KindList:
		elem, err := r.fieldClass(s.Elem)
		if err != nil {
			return 0, err
		}
		if s.Kind == strategy.KindList {
			return r.b.ListClass(elem)
		}
		return r.b.ArrayClass(elem)
	}
	if class == 0 {
		return 0, errors.NotFound(errors.PhaseLayout, "native class for "+s.String())
	}
	return class, nil
}

// writeTable writes a field table for class: the inherited entries copied
// byte for byte, then one entry per placed field, each with its own type
// descriptor and name.
func (r *Registry) writeTable(class uint32, inherited []bridge.FieldInfo, placed []placedField) (uint32, []Slot, error) {
	count := len(inherited) + len(placed)
	if count == 0 {
		return 0, nil, nil
	}
	mem := r.b.Memory()
	header := r.b.ObjectHeaderSize()

	table, err := r.arena.Alloc(uint32(count)*bridge.FieldEntrySize, 4)
	if err != nil {
		return 0, nil, errors.New(errors.PhaseLayout, errors.KindAllocation).Cause(err).Build()
	}

	slots := make([]Slot, 0, count)
	for i, f := range inherited {
		entry := table + uint32(i)*bridge.FieldEntrySize
		raw, err := mem.Read(f.Entry, bridge.FieldEntrySize)
		if err != nil {
			return 0, nil, err
		}
		if err := mem.Write(entry, raw); err != nil {
			return 0, nil, err
		}
		info, _ := r.b.Class(f.Class)
		slots = append(slots, Slot{
			Name:      f.Name,
			Entry:     entry,
			TypeDesc:  f.Type,
			Class:     f.Class,
			Parent:    f.Parent,
			Offset:    f.Offset,
			Size:      info.ValueSize(header),
			Inherited: true,
		})
	}

	for i, pf := range placed {
		entry := table + uint32(len(inherited)+i)*bridge.FieldEntrySize
		name, err := r.arena.CString(pf.field.Name)
		if err != nil {
			return 0, nil, err
		}
		desc, err := r.arena.Alloc(bridge.TypeDescSize, 4)
		if err != nil {
			return 0, nil, err
		}
		if err := bridge.WriteTypeDesc(mem, desc, bridge.TypeDesc{
			Class: pf.class,
			Attrs: bridge.AttrPublic,
			Kind:  pf.kind,
		}); err != nil {
			return 0, nil, err
		}
		if err := bridge.WriteFieldEntry(mem, entry, bridge.FieldEntry{
			Name:   name,
			Type:   desc,
			Parent: class,
			Offset: int32(pf.offset),
		}); err != nil {
			return 0, nil, err
		}
		slots = append(slots, Slot{
			Name:     pf.field.Name,
			GoName:   pf.field.GoName,
			Strategy: pf.field.Strategy.String(),
			Entry:    entry,
			TypeDesc: desc,
			Class:    pf.class,
			Parent:   class,
			Offset:   pf.offset,
			Size:     pf.size,
		})
	}
	return table, slots, nil
}

// blittable reports whether a laid out field keeps its struct copyable byte
// for byte.
func (r *Registry) blittable(s *strategy.Strategy) bool {
	switch s.Kind {
	case strategy.KindPrimitive:
		return true
	case strategy.KindStruct:
		if l, ok := r.Layout(s.GoType); ok {
			return l.Blittable
		}
		info, ok := r.b.Class(r.b.ResolveClass(s.GoType, false))
		return ok && info.Blittable
	default:
		return false
	}
}

// checkOverlap verifies that no two slots share a byte, counting the managed
// handle slot at handle when it is non-zero.
func checkOverlap(p *progress, slots []Slot, handle uint32) error {
	ps := make([]layout.Placement, 0, len(slots)+1)
	for _, s := range slots {
		ps = append(ps, layout.Placement{Name: s.Name, Offset: s.Offset, Size: s.Size})
	}
	if handle != 0 {
		ps = append(ps, layout.Placement{Name: "<handle>", Offset: handle, Size: fieldinject.PointerSize})
	}
	if i, j, found := layout.Overlapping(ps); found {
		return errors.LayoutInvariant([]string{p.t.Name()}, p.t.String(),
			"%s at %d overlaps %s at %d", ps[j].Name, ps[j].Offset, ps[i].Name, ps[i].Offset)
	}
	return nil
}

func transcoderSlots(placed []placedField, slots []Slot) []transcoder.FieldSlot {
	out := make([]transcoder.FieldSlot, len(placed))
	for i, pf := range placed {
		out[i] = transcoder.FieldSlot{
			Field:  pf.field,
			Entry:  slots[i].Entry,
			Offset: pf.offset,
		}
	}
	return out
}
