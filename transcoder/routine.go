package transcoder

import (
	"reflect"
	"unsafe"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"go.uber.org/zap"

	fieldinject "github.com/wippyai/field-injector"
)

type structField struct {
	codec  *codec
	name   string
	goOff  uintptr
	offset uint32
}

// StructRoutine converts a Go value type to and from the inline payload of
// its native class.
type StructRoutine struct {
	GoType reflect.Type
	mem    fieldinject.Memory
	log    *zap.Logger
	Plan   Plan
	fields []structField
	Class  uint32
	// Size is the native payload size, object header excluded.
	Size  uint32
	bulk  bool
	trace bool
}

// Bulk reports whether values are copied in one write.
func (r *StructRoutine) Bulk() bool {
	return r.bulk
}

// Serialise writes value, a GoType or a pointer to one, into the payload at
// addr. The payload is cleared first.
func (r *StructRoutine) Serialise(value any, addr uint32) error {
	if r.trace {
		r.log.Debug("Serialise", zap.String("type", r.GoType.String()), zap.Uint32("addr", addr))
	}
	p, err := r.pointer(value)
	if err != nil {
		return err
	}
	if err := zero(r.mem, addr, r.Size); err != nil {
		return err
	}
	return r.store(p, addr)
}

// Deserialise reads the payload at addr into a new GoType value.
func (r *StructRoutine) Deserialise(addr uint32) (any, error) {
	if r.trace {
		r.log.Debug("Deserialise", zap.String("type", r.GoType.String()), zap.Uint32("addr", addr))
	}
	nv := reflect.New(r.GoType)
	if err := r.load(addr, nv.UnsafePointer()); err != nil {
		return nil, err
	}
	return nv.Elem().Interface(), nil
}

// DeserialiseInto reads the payload at addr into dst, a pointer to GoType.
func (r *StructRoutine) DeserialiseInto(addr uint32, dst any) error {
	rv := reflect.ValueOf(dst)
	if !rv.IsValid() {
		return errors.NilPointer(errors.PhaseDeserialise, nil, "*"+r.GoType.String())
	}
	if rv.Kind() != reflect.Ptr || rv.Type().Elem() != r.GoType {
		return errors.TypeMismatch(errors.PhaseDeserialise, nil, rv.Type().String(), "*"+r.GoType.String())
	}
	if rv.IsNil() {
		return errors.NilPointer(errors.PhaseDeserialise, nil, rv.Type().String())
	}
	return r.load(addr, rv.UnsafePointer())
}

func (r *StructRoutine) pointer(value any) (unsafe.Pointer, error) {
	rv := reflect.ValueOf(value)
	switch {
	case !rv.IsValid():
		return nil, errors.NilPointer(errors.PhaseSerialise, nil, r.GoType.String())
	case rv.Type() == r.GoType:
		nv := reflect.New(r.GoType)
		nv.Elem().Set(rv)
		return nv.UnsafePointer(), nil
	case rv.Kind() == reflect.Ptr && rv.Type().Elem() == r.GoType:
		if rv.IsNil() {
			return nil, errors.NilPointer(errors.PhaseSerialise, nil, rv.Type().String())
		}
		return rv.UnsafePointer(), nil
	default:
		return nil, errors.TypeMismatch(errors.PhaseSerialise, nil, rv.Type().String(), r.GoType.String())
	}
}

func (r *StructRoutine) store(src unsafe.Pointer, addr uint32) error {
	if r.bulk {
		return r.mem.Write(addr, unsafe.Slice((*byte)(src), r.Size))
	}
	for i := range r.fields {
		f := &r.fields[i]
		if err := f.codec.store(unsafe.Add(src, f.goOff), addr+f.offset); err != nil {
			return fieldError(errors.PhaseSerialise, r.GoType, f.name, err)
		}
	}
	return nil
}

func (r *StructRoutine) load(addr uint32, dst unsafe.Pointer) error {
	if r.bulk {
		b, err := r.mem.Read(addr, r.Size)
		if err != nil {
			return err
		}
		copy(unsafe.Slice((*byte)(dst), r.Size), b)
		return nil
	}
	for i := range r.fields {
		f := &r.fields[i]
		if err := f.codec.load(addr+f.offset, unsafe.Add(dst, f.goOff)); err != nil {
			return fieldError(errors.PhaseDeserialise, r.GoType, f.name, err)
		}
	}
	return nil
}

type objectField struct {
	codec  *codec
	name   string
	goOff  uintptr
	entry  uint32
	offset uint32
}

// ObjectRoutine converts the Go wrapper of a native object over the full
// field list of its class. It is installed as the serialisation callbacks.
type ObjectRoutine struct {
	GoType reflect.Type
	b      bridge.Bridge
	log    *zap.Logger
	Plan   Plan
	fields []objectField
	Class  uint32
	trace  bool
}

// Serialise copies the fields of the wrapper bound to obj into obj.
func (r *ObjectRoutine) Serialise(obj uint32) error {
	if r.trace {
		r.log.Debug("Serialise", zap.String("type", r.GoType.String()), zap.Uint32("obj", obj))
	}
	p, err := r.resolve(errors.PhaseSerialise, obj)
	if err != nil {
		return err
	}
	for i := range r.fields {
		f := &r.fields[i]
		src := unsafe.Add(p, f.goOff)
		if !f.codec.pointerShaped() {
			err = f.codec.store(src, obj+f.offset)
		} else {
			var ptr uint32
			if ptr, err = f.codec.toNative(src); err == nil {
				err = r.b.WriteFieldValuePointer(obj, f.entry, ptr)
			}
		}
		if err != nil {
			return fieldError(errors.PhaseSerialise, r.GoType, f.name, err)
		}
	}
	return nil
}

// Deserialise copies the fields of obj into the wrapper bound to it.
func (r *ObjectRoutine) Deserialise(obj uint32) error {
	if r.trace {
		r.log.Debug("Deserialise", zap.String("type", r.GoType.String()), zap.Uint32("obj", obj))
	}
	p, err := r.resolve(errors.PhaseDeserialise, obj)
	if err != nil {
		return err
	}
	for i := range r.fields {
		f := &r.fields[i]
		vp, err := r.b.ReadFieldValuePointer(f.entry, obj)
		if err == nil {
			dst := unsafe.Add(p, f.goOff)
			if f.codec.pointerShaped() {
				err = f.codec.fromNative(vp, dst)
			} else {
				err = f.codec.load(vp, dst)
			}
		}
		if err != nil {
			return fieldError(errors.PhaseDeserialise, r.GoType, f.name, err)
		}
	}
	return nil
}

// resolve finds the Go wrapper of obj. Wrappers of derived types are
// accepted since every base is embedded at offset 0.
func (r *ObjectRoutine) resolve(phase errors.Phase, obj uint32) (unsafe.Pointer, error) {
	if obj == 0 {
		return nil, errors.NilPointer(phase, nil, r.GoType.String())
	}
	w, ok := r.b.ManagedObject(obj)
	if !ok {
		return nil, errors.New(phase, errors.KindNotFound).
			GoType(r.GoType.String()).
			Value(obj).
			Detail("no managed object bound to 0x%x", obj).
			Build()
	}
	wt := reflect.TypeOf(w)
	for t := wt.Elem(); t != r.GoType; t = bridge.BaseOf(t) {
		if t == nil || t == bridge.ObjectType {
			return nil, errors.TypeMismatch(phase, nil, wt.String(), r.GoType.String())
		}
	}
	return reflect.ValueOf(w).UnsafePointer(), nil
}

func fieldError(phase errors.Phase, t reflect.Type, field string, err error) error {
	return errors.New(phase, errors.KindOf(err)).
		Path(t.Name(), field).
		GoType(t.String()).
		Cause(err).
		Build()
}
