package native

import (
	"reflect"

	"github.com/spaolacci/murmur3"
	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"go.uber.org/zap"

	fieldinject "github.com/wippyai/field-injector"
)

const maxNameLength = 1024

func (r *Runtime) takeToken() int64 {
	t := r.nextToken
	r.nextToken++
	return t
}

func lookupKey(namespace, name string) uint64 {
	if namespace == "" {
		return murmur3.Sum64([]byte(name))
	}
	return murmur3.Sum64([]byte(namespace + "." + name))
}

func (r *Runtime) addToLookup(c *class) {
	key := lookupKey(c.info.Namespace, c.info.Name)
	for _, ptr := range r.byName[key] {
		if ptr == c.info.Ptr {
			return
		}
	}
	r.byName[key] = append(r.byName[key], c.info.Ptr)
}

func (r *Runtime) removeFromLookup(c *class) bool {
	key := lookupKey(c.info.Namespace, c.info.Name)
	ptrs := r.byName[key]
	for i, ptr := range ptrs {
		if ptr == c.info.Ptr {
			r.byName[key] = append(ptrs[:i:i], ptrs[i+1:]...)
			if len(r.byName[key]) == 0 {
				delete(r.byName, key)
			}
			return true
		}
	}
	return false
}

// ClassFromName returns the class registered under namespace and name, or 0.
func (r *Runtime) ClassFromName(namespace, name string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ptr := range r.byName[lookupKey(namespace, name)] {
		c := r.classes[ptr]
		if c.info.Namespace == namespace && c.info.Name == name {
			return ptr
		}
	}
	return 0
}

// ResolveClass returns the native class for t, or 0.
func (r *Runtime) ResolveClass(t reflect.Type, bypassEnum bool) uint32 {
	if t == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(t, bypassEnum)
}

func (r *Runtime) resolveLocked(t reflect.Type, bypassEnum bool) uint32 {
	if bridge.IsWrapperPointer(t) {
		t = t.Elem()
	}
	if t == bridge.ObjectType {
		return r.object
	}
	if bridge.IsEnum(t) {
		if bypassEnum {
			return r.enums[t]
		}
		return r.primitives[t.Kind()]
	}

	switch t.Kind() {
	case reflect.String:
		return r.str
	case reflect.Struct:
		return r.byType[t]
	case reflect.Slice:
		elem := r.resolveLocked(t.Elem(), true)
		if elem == 0 {
			elem = r.resolveLocked(t.Elem(), false)
		}
		if elem == 0 {
			return 0
		}
		if bridge.IsList(t) {
			return r.lists[elem]
		}
		return r.arrays[elem]
	}
	return r.primitives[t.Kind()]
}

// Class returns a snapshot of the class at ptr.
func (r *Runtime) Class(ptr uint32) (bridge.ClassInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[ptr]
	if !ok {
		return bridge.ClassInfo{}, false
	}
	info := c.info
	info.VTable = cloneVTable(info.VTable)
	info.Interfaces = append([]bridge.InterfaceOffset(nil), info.Interfaces...)
	return info, true
}

// IsManaged reports whether instances of class carry a managed handle slot.
func (r *Runtime) IsManaged(class uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[class]
	return ok && c.managed
}

func (r *Runtime) classLocked(phase errors.Phase, ptr uint32) (*class, error) {
	c, ok := r.classes[ptr]
	if !ok {
		return nil, errors.New(phase, errors.KindNotFound).
			Value(ptr).
			Detail("no class at 0x%x", ptr).
			Build()
	}
	return c, nil
}

// Fields decodes the field table of class.
func (r *Runtime) Fields(class uint32) ([]bridge.FieldInfo, error) {
	r.mu.RLock()
	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		r.mu.RUnlock()
		return nil, err
	}
	table, count := c.info.Fields, c.info.FieldCount
	r.mu.RUnlock()

	out := make([]bridge.FieldInfo, 0, count)
	for i := 0; i < count; i++ {
		entry := table + uint32(i)*bridge.FieldEntrySize
		fe, err := bridge.ReadFieldEntry(r.mem, entry)
		if err != nil {
			return nil, err
		}
		name, err := bridge.ReadCString(r.mem, fe.Name, maxNameLength)
		if err != nil {
			return nil, err
		}
		td, err := bridge.ReadTypeDesc(r.mem, fe.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, bridge.FieldInfo{
			Name:   name,
			Entry:  entry,
			Type:   fe.Type,
			Class:  td.Class,
			Parent: fe.Parent,
			Offset: uint32(fe.Offset),
			Attrs:  td.Attrs,
		})
	}
	return out, nil
}

// ArrayClass returns the single-dimension array class of elem, creating it
// on first use.
func (r *Runtime) ArrayClass(elem uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ptr, ok := r.arrays[elem]; ok {
		return ptr, nil
	}
	ec, err := r.classLocked(errors.PhaseBridge, elem)
	if err != nil {
		return 0, err
	}
	ptr, err := r.defineClass(bridge.ClassInfo{
		Name:         ec.info.Name + "[]",
		Namespace:    ec.info.Namespace,
		Kind:         bridge.ClassArray,
		Parent:       r.object,
		Element:      elem,
		InstanceSize: ArrayHeaderSize,
		VTable:       cloneVTable(r.classes[r.object].info.VTable),
	}, true)
	if err != nil {
		return 0, err
	}
	r.arrays[elem] = ptr
	return ptr, nil
}

// ListClass returns the resizable list class of elem, creating it on first
// use.
func (r *Runtime) ListClass(elem uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ptr, ok := r.lists[elem]; ok {
		return ptr, nil
	}
	ec, err := r.classLocked(errors.PhaseBridge, elem)
	if err != nil {
		return 0, err
	}
	ptr, err := r.defineClass(bridge.ClassInfo{
		Name:         "List`1[" + ec.info.FullName() + "]",
		Namespace:    "System.Collections.Generic",
		Kind:         bridge.ClassList,
		Parent:       r.object,
		Element:      elem,
		InstanceSize: ListObjectSize,
		VTable:       cloneVTable(r.classes[r.object].info.VTable),
	}, true)
	if err != nil {
		return 0, err
	}
	r.lists[elem] = ptr
	return ptr, nil
}

func (r *Runtime) checkUnregistered(t reflect.Type) error {
	if _, ok := r.byType[t]; ok {
		return errors.AlreadyInjected(t.String())
	}
	return nil
}

// RegisterReferenceType creates a reference class for t deriving from
// parent and implementing interfaces. Instances get a trailing managed handle
// slot, and the class is added to the name lookup.
func (r *Runtime) RegisterReferenceType(t reflect.Type, parent uint32, interfaces ...uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnregistered(t); err != nil {
		return 0, err
	}
	pc, err := r.classLocked(errors.PhaseBridge, parent)
	if err != nil {
		return 0, err
	}
	if pc.info.Kind != bridge.ClassReference {
		return 0, errors.TypeMismatch(errors.PhaseBridge, nil, t.String(), pc.info.FullName())
	}

	size := pc.info.InstanceSize
	if !pc.managed {
		size += fieldinject.PointerSize
	}

	name := t.Name()
	vtable := cloneVTable(pc.info.VTable)
	if len(vtable) > 0 {
		vtable[0] = bridge.Method{Name: vtable[0].Name, Fn: unreleasableFinalizer(name)}
	}

	ifaces := append([]bridge.InterfaceOffset(nil), pc.info.Interfaces...)
	for _, iface := range interfaces {
		ic, err := r.classLocked(errors.PhaseBridge, iface)
		if err != nil {
			return 0, err
		}
		if ic.info.Kind != bridge.ClassInterface {
			return 0, errors.TypeMismatch(errors.PhaseBridge, nil, t.String(), ic.info.FullName())
		}
		if implements(ifaces, iface) {
			continue
		}
		ifaces = append(ifaces, bridge.InterfaceOffset{Class: iface, Offset: len(vtable)})
		for _, m := range ic.info.VTable {
			vtable = append(vtable, bridge.Method{Name: m.Name})
		}
	}

	ptr, err := r.defineClass(bridge.ClassInfo{
		GoType:       t,
		Name:         name,
		Namespace:    r.cfg.Namespace(t),
		Kind:         bridge.ClassReference,
		Parent:       parent,
		InstanceSize: size,
		VTable:       vtable,
		Interfaces:   ifaces,
		Token:        r.takeToken(),
	}, true)
	if err != nil {
		return 0, err
	}
	c := r.classes[ptr]
	c.managed = true
	if err := r.writeDescriptor(c); err != nil {
		return 0, err
	}
	r.byType[t] = ptr

	Logger().Debug("registered reference class",
		zap.String("class", c.info.FullName()),
		zap.Uint32("ptr", ptr),
		zap.Uint32("size", size))
	return ptr, nil
}

func implements(ifaces []bridge.InterfaceOffset, iface uint32) bool {
	for _, io := range ifaces {
		if io.Class == iface {
			return true
		}
	}
	return false
}

func unreleasableFinalizer(name string) bridge.MethodFunc {
	return func(obj uint32) error {
		return errors.New(errors.PhaseBridge, errors.KindNativeBridge).
			NativeType(name).
			Value(obj).
			Detail("default finaliser cannot release the managed handle").
			Build()
	}
}

// CreateValueTypeSkeleton creates an empty value class for t whose vtable is
// the first vtableSlots entries of System.ValueType. The skeleton is not
// visible to ClassFromName until AddClassToLookup.
func (r *Runtime) CreateValueTypeSkeleton(t reflect.Type, vtableSlots int) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnregistered(t); err != nil {
		return 0, err
	}
	base := r.classes[r.valueType].info.VTable
	if vtableSlots < 0 || vtableSlots > len(base) {
		return 0, errors.OutOfBounds(errors.PhaseBridge, []string{t.Name()}, vtableSlots, len(base))
	}

	ptr, err := r.defineClass(bridge.ClassInfo{
		GoType:       t,
		Name:         t.Name(),
		Namespace:    r.cfg.Namespace(t),
		Image:        InjectedImage,
		Kind:         bridge.ClassValue,
		Parent:       r.valueType,
		InstanceSize: ObjectHeaderSize,
		VTable:       cloneVTable(base[:vtableSlots]),
		Token:        r.takeToken(),
	}, false)
	if err != nil {
		return 0, err
	}
	r.byType[t] = ptr
	return ptr, nil
}

// GetOrCreateEnumClass returns the enum class of t, creating it on first use.
func (r *Runtime) GetOrCreateEnumClass(t reflect.Type) (uint32, error) {
	if !bridge.IsEnum(t) {
		return 0, errors.TypeMismatch(errors.PhaseBridge, nil, t.String(), "System.Enum")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ptr, ok := r.enums[t]; ok {
		return ptr, nil
	}
	underlying := r.primitives[t.Kind()]
	uc, err := r.classLocked(errors.PhaseBridge, underlying)
	if err != nil {
		return 0, err
	}
	ec := r.classes[r.enum]

	ptr, err := r.defineClass(bridge.ClassInfo{
		GoType:       t,
		Shape:        uc.info.Shape,
		Name:         t.Name(),
		Namespace:    r.cfg.Namespace(t),
		Image:        InjectedImage,
		Kind:         bridge.ClassEnum,
		Parent:       r.enum,
		Element:      underlying,
		InstanceSize: uc.info.InstanceSize,
		VTable:       cloneVTable(ec.info.VTable),
		Interfaces:   append([]bridge.InterfaceOffset(nil), ec.info.Interfaces...),
		Blittable:    true,
		Token:        r.takeToken(),
	}, true)
	if err != nil {
		return 0, err
	}
	r.enums[t] = ptr
	return ptr, nil
}

// AddClassToLookup makes class visible to ClassFromName.
func (r *Runtime) AddClassToLookup(class uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		return err
	}
	r.addToLookup(c)
	return nil
}

// SetNamespace points the namespace of class at the C string str.
func (r *Runtime) SetNamespace(class, str uint32) error {
	ns, err := bridge.ReadCString(r.mem, str, maxNameLength)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		return err
	}
	listed := r.removeFromLookup(c)
	c.info.Namespace = ns
	c.info.NamespacePtr = str
	if listed {
		r.addToLookup(c)
	}
	return r.writeDescriptor(c)
}

// SetFields installs a field table on class and resizes it.
func (r *Runtime) SetFields(class, table uint32, count int, instanceSize uint32, blittable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		return err
	}
	if count < 0 || (count > 0 && table == 0) {
		return errors.New(errors.PhaseBridge, errors.KindInvalidData).
			NativeType(c.info.FullName()).
			Detail("field table 0x%x with %d entries", table, count).
			Build()
	}
	if instanceSize < ObjectHeaderSize {
		return errors.New(errors.PhaseBridge, errors.KindInvalidData).
			NativeType(c.info.FullName()).
			Detail("instance size %d below object header", instanceSize).
			Build()
	}
	c.info.Fields = table
	c.info.FieldCount = count
	c.info.InstanceSize = instanceSize
	c.info.Blittable = blittable
	return r.writeDescriptor(c)
}

// FindInterfaceMethodSlot returns the vtable slot of method from iface on
// class.
func (r *Runtime) FindInterfaceMethodSlot(class, iface uint32, method string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		return 0, err
	}
	ic, err := r.classLocked(errors.PhaseBridge, iface)
	if err != nil {
		return 0, err
	}
	for _, io := range c.info.Interfaces {
		if io.Class != iface {
			continue
		}
		for i, m := range ic.info.VTable {
			if m.Name == method {
				return io.Offset + i, nil
			}
		}
	}
	return 0, errors.MissingInterfaceSlot(c.info.FullName(), ic.info.FullName(), method)
}

// InstallVirtual sets vtable slot of class.
func (r *Runtime) InstallVirtual(class uint32, slot int, name string, fn bridge.MethodFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		return err
	}
	if slot < 0 || slot >= len(c.info.VTable) {
		return errors.OutOfBounds(errors.PhaseBridge, []string{c.info.FullName()}, slot, len(c.info.VTable))
	}
	c.info.VTable[slot] = bridge.Method{Name: name, Fn: fn}
	return nil
}

// ReplaceFinalizer sets the finaliser slot of class.
func (r *Runtime) ReplaceFinalizer(class uint32, fn bridge.MethodFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.classLocked(errors.PhaseBridge, class)
	if err != nil {
		return err
	}
	if len(c.info.VTable) == 0 {
		return errors.OutOfBounds(errors.PhaseBridge, []string{c.info.FullName()}, 0, 0)
	}
	c.info.VTable[0].Fn = fn
	return nil
}

// ElementSize is the stride of elem inside an array.
func (r *Runtime) ElementSize(elem uint32) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elementSizeLocked(elem)
}

func (r *Runtime) elementSizeLocked(elem uint32) uint32 {
	c, ok := r.classes[elem]
	if !ok {
		return fieldinject.PointerSize
	}
	return c.info.ValueSize(ObjectHeaderSize)
}
