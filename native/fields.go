package native

import (
	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
)

type fieldSlot struct {
	offset uint32
	size   uint32
	inline bool
}

func (r *Runtime) fieldSlot(field uint32) (fieldSlot, error) {
	fe, err := bridge.ReadFieldEntry(r.mem, field)
	if err != nil {
		return fieldSlot{}, err
	}
	if fe.Offset < 0 {
		return fieldSlot{}, errors.New(errors.PhaseBridge, errors.KindInvalidData).
			Value(field).
			Detail("negative field offset %d", fe.Offset).
			Build()
	}
	td, err := bridge.ReadTypeDesc(r.mem, fe.Type)
	if err != nil {
		return fieldSlot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	kind := td.Kind
	size := uint32(0)
	if c, ok := r.classes[td.Class]; ok {
		kind = c.info.Kind
		size = c.info.ValueSize(ObjectHeaderSize)
	}
	return fieldSlot{
		offset: uint32(fe.Offset),
		size:   size,
		inline: kind.IsValueShaped() && !td.ByRef,
	}, nil
}

// ReadFieldValuePointer returns the address of inline storage for
// value-shaped fields and the stored pointer otherwise.
func (r *Runtime) ReadFieldValuePointer(field, obj uint32) (uint32, error) {
	if obj == 0 {
		return 0, errors.NilPointer(errors.PhaseBridge, nil, "")
	}
	fs, err := r.fieldSlot(field)
	if err != nil {
		return 0, err
	}
	if fs.inline {
		return obj + fs.offset, nil
	}
	return r.mem.ReadU32(obj + fs.offset)
}

// WriteFieldValuePointer stores value into the field of obj. Value-shaped
// fields copy the bytes at value into the instance; a null value zeroes them.
func (r *Runtime) WriteFieldValuePointer(obj, field, value uint32) error {
	if obj == 0 {
		return errors.NilPointer(errors.PhaseBridge, nil, "")
	}
	fs, err := r.fieldSlot(field)
	if err != nil {
		return err
	}
	if !fs.inline {
		return r.mem.WriteU32(obj+fs.offset, value)
	}
	if fs.size == 0 {
		return nil
	}
	data := make([]byte, fs.size)
	if value != 0 {
		if data, err = r.mem.Read(value, fs.size); err != nil {
			return err
		}
	}
	return r.mem.Write(obj+fs.offset, data)
}
