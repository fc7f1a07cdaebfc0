package native

import (
	"reflect"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/handles"
	"go.uber.org/zap"

	fieldinject "github.com/wippyai/field-injector"
)

func (r *Runtime) allocZeroed(size, align uint32) (uint32, error) {
	ptr, err := r.alloc.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	if size > 0 {
		if err := r.mem.Write(ptr, make([]byte, size)); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

// NewObject allocates a zeroed instance of class.
func (r *Runtime) NewObject(class uint32) (uint32, error) {
	r.mu.RLock()
	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		r.mu.RUnlock()
		return 0, err
	}
	size, kind, name := c.info.InstanceSize, c.info.Kind, c.info.FullName()
	r.mu.RUnlock()

	if kind == bridge.ClassInterface || kind == bridge.ClassArray || kind == bridge.ClassList {
		return 0, errors.New(errors.PhaseBridge, errors.KindTypeMismatch).
			NativeType(name).
			Detail("%s classes are not instantiated directly", kind).
			Build()
	}

	obj, err := r.allocZeroed(size, 8)
	if err != nil {
		return 0, err
	}
	if err := r.mem.WriteU32(obj, class); err != nil {
		return 0, err
	}
	return obj, nil
}

// NewManaged allocates a native instance for w, stores a handle to w in the
// instance and binds w to it.
func (r *Runtime) NewManaged(w bridge.Wrapper) (uint32, error) {
	t := reflect.TypeOf(w)
	if t == nil || t.Kind() != reflect.Ptr || reflect.ValueOf(w).IsNil() {
		return 0, errors.NilPointer(errors.PhaseBridge, nil, "bridge.Wrapper")
	}

	r.mu.RLock()
	class, ok := r.byType[t.Elem()]
	managed := ok && r.classes[class].managed
	r.mu.RUnlock()
	if !ok {
		return 0, errors.NotFound(errors.PhaseBridge, "no native class for "+t.Elem().String())
	}
	if !managed {
		return 0, errors.TypeMismatch(errors.PhaseBridge, nil, t.String(), "managed reference class")
	}

	obj, err := r.NewObject(class)
	if err != nil {
		return 0, err
	}
	h, err := r.handles.Insert(class, w)
	if err != nil {
		return 0, err
	}
	slot, _, err := r.handleSlot(obj)
	if err != nil {
		return 0, err
	}
	if err := r.mem.WriteU32(slot, uint32(h)); err != nil {
		return 0, err
	}
	bridge.Bind(w, obj)
	return obj, nil
}

// ClassOf returns the class pointer stored in the header of obj.
func (r *Runtime) ClassOf(obj uint32) (uint32, error) {
	if obj == 0 {
		return 0, errors.NilPointer(errors.PhaseBridge, nil, "")
	}
	class, err := r.mem.ReadU32(obj)
	if err != nil {
		return 0, err
	}
	r.mu.RLock()
	_, ok := r.classes[class]
	r.mu.RUnlock()
	if !ok {
		return 0, errors.New(errors.PhaseBridge, errors.KindInvalidData).
			Value(obj).
			Detail("object 0x%x has no valid class header", obj).
			Build()
	}
	return class, nil
}

// handleSlot returns the address of the managed handle slot of obj and the
// class of obj.
func (r *Runtime) handleSlot(obj uint32) (uint32, uint32, error) {
	class, err := r.ClassOf(obj)
	if err != nil {
		return 0, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := r.classes[class]
	if !c.managed {
		return 0, 0, errors.TypeMismatch(errors.PhaseBridge, nil, "", c.info.FullName())
	}
	return obj + c.info.InstanceSize - fieldinject.PointerSize, class, nil
}

// ManagedObject returns the Go wrapper held by obj, if any.
func (r *Runtime) ManagedObject(obj uint32) (bridge.Wrapper, bool) {
	if obj == 0 {
		return nil, false
	}
	slot, class, err := r.handleSlot(obj)
	if err != nil {
		return nil, false
	}
	h, err := r.mem.ReadU32(slot)
	if err != nil || h == 0 {
		return nil, false
	}
	v, ok := r.handles.GetTyped(handles.Handle(h), class)
	if !ok {
		return nil, false
	}
	w, ok := v.(bridge.Wrapper)
	return w, ok
}

// ReleaseManaged frees the managed handle of obj and unbinds its wrapper.
// Objects without a handle are left untouched.
func (r *Runtime) ReleaseManaged(obj uint32) error {
	slot, _, err := r.handleSlot(obj)
	if err != nil {
		return err
	}
	h, err := r.mem.ReadU32(slot)
	if err != nil {
		return err
	}
	if h == 0 {
		return nil
	}
	v, ok := r.handles.Release(handles.Handle(h))
	if w, isWrapper := v.(bridge.Wrapper); ok && isWrapper && w.NativePointer() == obj {
		bridge.Bind(w, 0)
	}
	Logger().Debug("released managed handle", zap.Uint32("obj", obj), zap.Uint32("handle", h))
	return r.mem.WriteU32(slot, 0)
}

// NewArray allocates a zeroed array of length elements of elemClass.
func (r *Runtime) NewArray(elemClass, length uint32) (uint32, error) {
	class, err := r.ArrayClass(elemClass)
	if err != nil {
		return 0, err
	}
	stride := r.ElementSize(elemClass)
	total := uint64(ArrayHeaderSize) + uint64(stride)*uint64(length)
	if total > uint64(^uint32(0)) {
		return 0, errors.AllocationFailed(errors.PhaseBridge, ^uint32(0), 8)
	}

	arr, err := r.allocZeroed(uint32(total), 8)
	if err != nil {
		return 0, err
	}
	if err := r.mem.WriteU32(arr, class); err != nil {
		return 0, err
	}
	if err := r.mem.WriteU32(arr+12, length); err != nil {
		return 0, err
	}
	return arr, nil
}

// ArrayInfo returns the address of the first element and the length of arr.
func (r *Runtime) ArrayInfo(arr uint32) (data, length uint32, err error) {
	if err := r.expectKind(arr, bridge.ClassArray); err != nil {
		return 0, 0, err
	}
	length, err = r.mem.ReadU32(arr + 12)
	if err != nil {
		return 0, 0, err
	}
	return arr + ArrayHeaderSize, length, nil
}

// NewList allocates a list of elemClass over the backing array items, of
// which the first size elements are in use.
func (r *Runtime) NewList(elemClass, items, size uint32) (uint32, error) {
	if items != 0 {
		_, capacity, err := r.ArrayInfo(items)
		if err != nil {
			return 0, err
		}
		if size > capacity {
			return 0, errors.OutOfBounds(errors.PhaseBridge, nil, int(size), int(capacity))
		}
	} else if size != 0 {
		return 0, errors.OutOfBounds(errors.PhaseBridge, nil, int(size), 0)
	}

	class, err := r.ListClass(elemClass)
	if err != nil {
		return 0, err
	}
	list, err := r.allocZeroed(ListObjectSize, 8)
	if err != nil {
		return 0, err
	}
	for _, w := range [][2]uint32{{0, class}, {8, items}, {12, size}} {
		if err := r.mem.WriteU32(list+w[0], w[1]); err != nil {
			return 0, err
		}
	}
	return list, nil
}

// ListInfo returns the backing array and the element count of list.
func (r *Runtime) ListInfo(list uint32) (items, size uint32, err error) {
	if err := r.expectKind(list, bridge.ClassList); err != nil {
		return 0, 0, err
	}
	if items, err = r.mem.ReadU32(list + 8); err != nil {
		return 0, 0, err
	}
	if size, err = r.mem.ReadU32(list + 12); err != nil {
		return 0, 0, err
	}
	return items, size, nil
}

func (r *Runtime) expectKind(obj uint32, kind bridge.ClassKind) error {
	class, err := r.ClassOf(obj)
	if err != nil {
		return err
	}
	r.mu.RLock()
	c := r.classes[class]
	r.mu.RUnlock()
	if c.info.Kind != kind {
		return errors.TypeMismatch(errors.PhaseBridge, nil, kind.String(), c.info.FullName())
	}
	return nil
}

func (r *Runtime) method(obj uint32, slot int) (bridge.Method, error) {
	class, err := r.ClassOf(obj)
	if err != nil {
		return bridge.Method{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	vt := r.classes[class].info.VTable
	if slot < 0 || slot >= len(vt) {
		return bridge.Method{}, errors.OutOfBounds(errors.PhaseBridge, nil, slot, len(vt))
	}
	return vt[slot], nil
}

// Invoke calls the virtual method in slot on obj. Empty slots are no-ops.
func (r *Runtime) Invoke(obj uint32, slot int) error {
	m, err := r.method(obj, slot)
	if err != nil {
		return err
	}
	if m.Fn == nil {
		return nil
	}
	return m.Fn(obj)
}

// InvokeInterface calls method of iface on obj.
func (r *Runtime) InvokeInterface(obj, iface uint32, method string) error {
	class, err := r.ClassOf(obj)
	if err != nil {
		return err
	}
	slot, err := r.FindInterfaceMethodSlot(class, iface, method)
	if err != nil {
		return err
	}
	return r.Invoke(obj, slot)
}

// Finalize runs the finaliser of obj.
func (r *Runtime) Finalize(obj uint32) error {
	return r.Invoke(obj, 0)
}

// BeforeSerialize runs the OnBeforeSerialize callback of obj.
func (r *Runtime) BeforeSerialize(obj uint32) error {
	return r.InvokeInterface(obj, r.callback, bridge.OnBeforeSerialize)
}

// AfterDeserialize runs the OnAfterDeserialize callback of obj.
func (r *Runtime) AfterDeserialize(obj uint32) error {
	return r.InvokeInterface(obj, r.callback, bridge.OnAfterDeserialize)
}
