package transcoder

import (
	"reflect"
	"sync"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/strategy"
	"go.uber.org/zap"

	fieldinject "github.com/wippyai/field-injector"
)

// TraceLevel is the debug level from which plans are logged when built and
// routines log every call.
const TraceLevel = 3

// FieldSlot places a classified field in a native class.
type FieldSlot struct {
	Field strategy.Field
	// Entry is the native field table entry.
	Entry uint32
	// Offset is measured from the start of the instance, object header
	// included.
	Offset uint32
}

// Compiler builds and caches routines for one native runtime.
type Compiler struct {
	b       bridge.Bridge
	mem     fieldinject.Memory
	log     *zap.Logger
	structs sync.Map // reflect.Type -> *StructRoutine
	objects sync.Map // reflect.Type -> *ObjectRoutine
	header  uint32
}

// NewCompiler creates a compiler over b. A nil logger uses the package
// logger.
func NewCompiler(b bridge.Bridge, log *zap.Logger) *Compiler {
	if log == nil {
		log = Logger()
	}
	return &Compiler{
		b:      b,
		mem:    b.Memory(),
		log:    log,
		header: b.ObjectHeaderSize(),
	}
}

// Struct returns the routine built for value type t.
func (c *Compiler) Struct(t reflect.Type) (*StructRoutine, bool) {
	r, ok := c.structs.Load(t)
	if !ok {
		return nil, false
	}
	return r.(*StructRoutine), true
}

// Object returns the routine built for reference type t.
func (c *Compiler) Object(t reflect.Type) (*ObjectRoutine, bool) {
	r, ok := c.objects.Load(t)
	if !ok {
		return nil, false
	}
	return r.(*ObjectRoutine), true
}

// CompileStruct builds the routine of value type t whose native class has a
// payload of size bytes after the object header. Nested struct fields need
// their own routines first.
func (c *Compiler) CompileStruct(t reflect.Type, class, size uint32, slots []FieldSlot, debug int) (*StructRoutine, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
			GoType(typeName(t)).
			Detail("expected struct").
			Build()
	}
	if cached, ok := c.Struct(t); ok {
		return cached, nil
	}

	r := &StructRoutine{
		GoType: t,
		Class:  class,
		Size:   size,
		mem:    c.mem,
		log:    c.log,
		trace:  debug >= TraceLevel,
	}
	r.Plan.Type = t.String()

	bulk := uintptr(size) == t.Size()
	for _, slot := range slots {
		path := []string{t.Name(), slot.Field.Name}
		if slot.Offset < c.header {
			return nil, errors.LayoutInvariant(path, t.String(), "offset %d inside object header", slot.Offset)
		}
		cd, err := c.codec(slot.Field.Strategy, path)
		if err != nil {
			return nil, err
		}
		at := slot.Offset - c.header
		if at+cd.size > size {
			return nil, errors.LayoutInvariant(path, t.String(), "field ends at %d past payload size %d", at+cd.size, size)
		}
		if !cd.bulk || uintptr(at) != slot.Field.GoOffset || uintptr(cd.size) != cd.goSize {
			bulk = false
		}
		r.fields = append(r.fields, structField{
			name:   slot.Field.Name,
			goOff:  slot.Field.GoOffset,
			offset: at,
			codec:  cd,
		})
	}
	r.bulk = bulk && len(slots) > 0
	r.Plan.Bulk = r.bulk
	for _, d := range []Direction{ToNative, FromNative} {
		for _, f := range r.fields {
			r.Plan.Steps = append(r.Plan.Steps, Step{
				Field:     f.name,
				Strategy:  f.codec.strategy.String(),
				Offset:    f.offset,
				Direction: d,
				InPlace:   !f.codec.pointerShaped(),
				Bulk:      f.codec.bulk,
			})
		}
	}

	actual, _ := c.structs.LoadOrStore(t, r)
	c.logPlan(debug, "struct routine", r.Plan)
	return actual.(*StructRoutine), nil
}

// CompileObject builds the routine of reference type t over its full field
// list, inherited fields first.
func (c *Compiler) CompileObject(t reflect.Type, class uint32, slots []FieldSlot, debug int) (*ObjectRoutine, error) {
	if t == nil || !bridge.IsReferenceType(t) {
		return nil, errors.New(errors.PhaseCompile, errors.KindTypeMismatch).
			GoType(typeName(t)).
			Detail("expected a struct embedding bridge.Object").
			Build()
	}
	if cached, ok := c.Object(t); ok {
		return cached, nil
	}

	r := &ObjectRoutine{
		GoType: t,
		Class:  class,
		b:      c.b,
		log:    c.log,
		trace:  debug >= TraceLevel,
	}
	r.Plan.Type = t.String()

	for _, slot := range slots {
		path := []string{t.Name(), slot.Field.Name}
		if slot.Offset < c.header {
			return nil, errors.LayoutInvariant(path, t.String(), "offset %d inside object header", slot.Offset)
		}
		cd, err := c.codec(slot.Field.Strategy, path)
		if err != nil {
			return nil, err
		}
		r.fields = append(r.fields, objectField{
			name:   slot.Field.Name,
			entry:  slot.Entry,
			goOff:  slot.Field.GoOffset,
			offset: slot.Offset,
			codec:  cd,
		})
	}
	for _, d := range []Direction{ToNative, FromNative} {
		for _, f := range r.fields {
			r.Plan.Steps = append(r.Plan.Steps, Step{
				Field:     f.name,
				Strategy:  f.codec.strategy.String(),
				Offset:    f.offset,
				Direction: d,
				InPlace:   !f.codec.pointerShaped(),
				Bulk:      f.codec.bulk,
			})
		}
	}

	actual, _ := c.objects.LoadOrStore(t, r)
	c.logPlan(debug, "object routine", r.Plan)
	return actual.(*ObjectRoutine), nil
}

func (c *Compiler) logPlan(debug int, msg string, p Plan) {
	if debug < TraceLevel {
		return
	}
	c.log.Debug(msg,
		zap.String("type", p.Type),
		zap.Bool("bulk", p.Bulk),
		zap.Stringer("plan", p))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
