package transcoder

import (
	"reflect"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/strategy"

	fieldinject "github.com/wippyai/field-injector"
)

// codec converts one field. Value-shaped codecs implement store and load
// against inline storage. Pointer-shaped codecs implement toNative and
// fromNative; their store and load go through a pointer slot.
type codec struct {
	strategy *strategy.Strategy

	store func(src unsafe.Pointer, addr uint32) error
	load  func(addr uint32, dst unsafe.Pointer) error

	toNative   func(src unsafe.Pointer) (uint32, error)
	fromNative func(ptr uint32, dst unsafe.Pointer) error

	// size is the native slot size; goSize the Go value size.
	size   uint32
	goSize uintptr
	// bulk is set when the Go bytes equal the native bytes.
	bulk bool
}

func (c *codec) pointerShaped() bool {
	return c.toNative != nil
}

func (c *Compiler) codec(s *strategy.Strategy, path []string) (*codec, error) {
	switch s.Kind {
	case strategy.KindPrimitive:
		return c.primitiveCodec(s, path)
	case strategy.KindString:
		return c.pointerCodec(s, c.stringToNative, c.stringFromNative), nil
	case strategy.KindObjectRef:
		return c.objectCodec(s), nil
	case strategy.KindStruct:
		return c.structCodec(s, path)
	case strategy.KindArray, strategy.KindList:
		return c.sequenceCodec(s, path)
	default:
		return nil, errors.UnsupportedFieldType(path, s.GoType.String())
	}
}

func (c *Compiler) primitiveCodec(s *strategy.Strategy, path []string) (*codec, error) {
	class := c.b.ResolveClass(s.Underlying, false)
	info, ok := c.b.Class(class)
	if class == 0 || !ok {
		return nil, errors.LayoutInvariant(path, s.GoType.String(), "no native class for %s", s.Underlying)
	}
	size := info.ValueSize(c.header)
	if uintptr(size) != s.GoType.Size() {
		return nil, errors.SizeMismatch(path, s.GoType.String(), info.FullName(), uint32(s.GoType.Size()), size)
	}

	mem := c.mem
	cd := &codec{strategy: s, size: size, goSize: s.GoType.Size(), bulk: true}
	switch {
	case s.Underlying.Kind() == reflect.Bool:
		cd.store = func(src unsafe.Pointer, addr uint32) error {
			var b uint8
			if *(*bool)(src) {
				b = 1
			}
			return mem.WriteU8(addr, b)
		}
		cd.load = func(addr uint32, dst unsafe.Pointer) error {
			b, err := mem.ReadU8(addr)
			*(*bool)(dst) = b != 0
			return err
		}
		// Native booleans other than 0 and 1 must be normalised.
		cd.bulk = false
	case size == 1:
		cd.store = func(src unsafe.Pointer, addr uint32) error {
			return mem.WriteU8(addr, *(*uint8)(src))
		}
		cd.load = func(addr uint32, dst unsafe.Pointer) error {
			v, err := mem.ReadU8(addr)
			*(*uint8)(dst) = v
			return err
		}
	case size == 2:
		cd.store = func(src unsafe.Pointer, addr uint32) error {
			return mem.WriteU16(addr, *(*uint16)(src))
		}
		cd.load = func(addr uint32, dst unsafe.Pointer) error {
			v, err := mem.ReadU16(addr)
			*(*uint16)(dst) = v
			return err
		}
	case size == 4:
		cd.store = func(src unsafe.Pointer, addr uint32) error {
			return mem.WriteU32(addr, *(*uint32)(src))
		}
		cd.load = func(addr uint32, dst unsafe.Pointer) error {
			v, err := mem.ReadU32(addr)
			*(*uint32)(dst) = v
			return err
		}
	case size == 8:
		cd.store = func(src unsafe.Pointer, addr uint32) error {
			return mem.WriteU64(addr, *(*uint64)(src))
		}
		cd.load = func(addr uint32, dst unsafe.Pointer) error {
			v, err := mem.ReadU64(addr)
			*(*uint64)(dst) = v
			return err
		}
	default:
		return nil, errors.LayoutInvariant(path, s.GoType.String(), "unsupported primitive size %d", size)
	}
	return cd, nil
}

// pointerCodec completes a pointer-shaped codec with slot-based store and
// load.
func (c *Compiler) pointerCodec(s *strategy.Strategy,
	to func(unsafe.Pointer) (uint32, error),
	from func(uint32, unsafe.Pointer) error,
) *codec {
	mem := c.mem
	return &codec{
		strategy:   s,
		size:       fieldinject.PointerSize,
		goSize:     s.GoType.Size(),
		toNative:   to,
		fromNative: from,
		store: func(src unsafe.Pointer, addr uint32) error {
			ptr, err := to(src)
			if err != nil {
				return err
			}
			return mem.WriteU32(addr, ptr)
		},
		load: func(addr uint32, dst unsafe.Pointer) error {
			ptr, err := mem.ReadU32(addr)
			if err != nil {
				return err
			}
			return from(ptr, dst)
		},
	}
}

func (c *Compiler) stringToNative(src unsafe.Pointer) (uint32, error) {
	s := *(*string)(src)
	if s == "" {
		return 0, nil
	}
	return c.b.TextToNativeHandle(s)
}

func (c *Compiler) stringFromNative(ptr uint32, dst unsafe.Pointer) error {
	if ptr == 0 {
		*(*string)(dst) = ""
		return nil
	}
	s, err := c.b.NativeHandleToText(ptr)
	if err != nil {
		return err
	}
	*(*string)(dst) = s
	return nil
}

// objectCodec handles *T fields where T embeds bridge.Object. The embedded
// base chain always starts at offset 0, so a non-nil *T is also a
// *bridge.Object. Loading always builds a new wrapper around the pointer.
func (c *Compiler) objectCodec(s *strategy.Strategy) *codec {
	t := s.GoType
	to := func(src unsafe.Pointer) (uint32, error) {
		p := *(*unsafe.Pointer)(src)
		if p == nil {
			return 0, nil
		}
		return (*bridge.Object)(p).NativePointer(), nil
	}
	from := func(ptr uint32, dst unsafe.Pointer) error {
		if ptr == 0 {
			*(*unsafe.Pointer)(dst) = nil
			return nil
		}
		nv := reflect.New(t.Elem()).UnsafePointer()
		bridge.Bind((*bridge.Object)(nv), ptr)
		*(*unsafe.Pointer)(dst) = nv
		return nil
	}
	return c.pointerCodec(s, to, from)
}

func (c *Compiler) structCodec(s *strategy.Strategy, path []string) (*codec, error) {
	nested, ok := c.Struct(s.GoType)
	if !ok {
		return c.nativeStructCodec(s, path)
	}
	mem := c.mem
	return &codec{
		strategy: s,
		size:     nested.Size,
		goSize:   s.GoType.Size(),
		bulk:     nested.bulk,
		store: func(src unsafe.Pointer, addr uint32) error {
			if err := zero(mem, addr, nested.Size); err != nil {
				return err
			}
			return nested.store(src, addr)
		},
		load: nested.load,
	}, nil
}

// nativeStructCodec copies a value type the runtime already defines byte for
// byte. The Go type must hold plain data and match the native payload size.
func (c *Compiler) nativeStructCodec(s *strategy.Strategy, path []string) (*codec, error) {
	t := s.GoType
	info, ok := c.b.Class(c.b.ResolveClass(t, false))
	if !ok || info.Kind != bridge.ClassValue {
		return nil, errors.LayoutInvariant(path, t.String(), "nested struct %s has no routine", t.Name())
	}
	if !plainData(t) {
		return nil, errors.LayoutInvariant(path, t.String(), "native struct %s mapped onto a Go type holding references", info.FullName())
	}
	size := info.ValueSize(c.header)
	if uintptr(size) != t.Size() {
		return nil, errors.SizeMismatch(path, t.String(), info.FullName(), uint32(t.Size()), size)
	}

	mem := c.mem
	return &codec{
		strategy: s,
		size:     size,
		goSize:   t.Size(),
		bulk:     true,
		store: func(src unsafe.Pointer, addr uint32) error {
			return mem.Write(addr, unsafe.Slice((*byte)(src), size))
		},
		load: func(addr uint32, dst unsafe.Pointer) error {
			b, err := mem.Read(addr, size)
			if err != nil {
				return err
			}
			copy(unsafe.Slice((*byte)(dst), size), b)
			return nil
		},
	}, nil
}

// plainData reports whether t holds no Go pointers.
func plainData(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Array:
		return plainData(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !plainData(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func zero(mem fieldinject.Memory, addr, size uint32) error {
	if size == 0 {
		return nil
	}
	return mem.Write(addr, make([]byte, size))
}

// classRef resolves a native class on first use. Object reference elements
// may name classes injected later in the same batch.
type classRef struct {
	resolve func() (uint32, error)
	v       atomic.Uint32
}

func (r *classRef) get() (uint32, error) {
	if v := r.v.Load(); v != 0 {
		return v, nil
	}
	v, err := r.resolve()
	if err != nil {
		return 0, err
	}
	r.v.Store(v)
	return v, nil
}

func (c *Compiler) elementClass(s *strategy.Strategy, path []string) *classRef {
	fixed := func(t reflect.Type, bypass bool) func() (uint32, error) {
		return func() (uint32, error) {
			if class := c.b.ResolveClass(t, bypass); class != 0 {
				return class, nil
			}
			if bypass {
				if class := c.b.ResolveClass(t, false); class != 0 {
					return class, nil
				}
			}
			return 0, errors.NotFound(errors.PhaseCompile, "native class for "+strings.Join(path, "."))
		}
	}

	ref := &classRef{}
	switch s.Kind {
	case strategy.KindPrimitive:
		ref.resolve = fixed(s.GoType, true)
	case strategy.KindString, strategy.KindStruct:
		ref.resolve = fixed(s.GoType, false)
	case strategy.KindObjectRef:
		ref.resolve = func() (uint32, error) {
			if class := c.b.ResolveClass(s.GoType, false); class != 0 {
				return class, nil
			}
			return c.b.ResolveClass(bridge.ObjectType, false), nil
		}
	case strategy.KindArray, strategy.KindList:
		inner := c.elementClass(s.Elem, path)
		ref.resolve = func() (uint32, error) {
			elem, err := inner.get()
			if err != nil {
				return 0, err
			}
			if s.Kind == strategy.KindList {
				return c.b.ListClass(elem)
			}
			return c.b.ArrayClass(elem)
		}
	}
	return ref
}

// sequenceCodec converts arrays and lists. Lists are a list object over an
// array holding exactly the elements.
func (c *Compiler) sequenceCodec(s *strategy.Strategy, path []string) (*codec, error) {
	elem, err := c.codec(s.Elem, extend(path, "[]"))
	if err != nil {
		return nil, err
	}
	elemClass := c.elementClass(s.Elem, path)

	seq := &sequence{
		c:      c,
		t:      s.GoType,
		elem:   elem,
		class:  elemClass,
		stride: elem.size,
		bulk:   elem.bulk && uintptr(elem.size) == elem.goSize,
	}
	if s.Kind == strategy.KindList {
		return c.pointerCodec(s, seq.listToNative, seq.listFromNative), nil
	}
	return c.pointerCodec(s, seq.arrayToNative, seq.arrayFromNative), nil
}

type sequence struct {
	c      *Compiler
	t      reflect.Type
	elem   *codec
	class  *classRef
	stride uint32
	bulk   bool
}

func (q *sequence) fill(src unsafe.Pointer) (arr, n uint32, err error) {
	v := reflect.NewAt(q.t, src).Elem()
	if v.IsNil() {
		return 0, 0, nil
	}
	n = uint32(v.Len())
	class, err := q.class.get()
	if err != nil {
		return 0, 0, err
	}
	arr, err = q.c.b.NewArray(class, n)
	if err != nil {
		return 0, 0, err
	}
	if n == 0 {
		return arr, 0, nil
	}
	data, _, err := q.c.b.ArrayInfo(arr)
	if err != nil {
		return 0, 0, err
	}

	base := v.UnsafePointer()
	if q.bulk {
		return arr, n, q.c.mem.Write(data, unsafe.Slice((*byte)(base), uintptr(n)*uintptr(q.stride)))
	}
	for i := uint32(0); i < n; i++ {
		if err := q.elem.store(unsafe.Add(base, uintptr(i)*q.elem.goSize), data+i*q.stride); err != nil {
			return 0, 0, errors.New(errors.PhaseSerialise, errors.KindOf(err)).
				Value(i).
				Cause(err).
				Build()
		}
	}
	return arr, n, nil
}

func (q *sequence) drain(data, n uint32, dst unsafe.Pointer) error {
	s := reflect.MakeSlice(q.t, int(n), int(n))
	if n > 0 {
		base := s.UnsafePointer()
		if q.bulk {
			b, err := q.c.mem.Read(data, n*q.stride)
			if err != nil {
				return err
			}
			copy(unsafe.Slice((*byte)(base), len(b)), b)
		} else {
			for i := uint32(0); i < n; i++ {
				if err := q.elem.load(data+i*q.stride, unsafe.Add(base, uintptr(i)*q.elem.goSize)); err != nil {
					return errors.New(errors.PhaseDeserialise, errors.KindOf(err)).
						Value(i).
						Cause(err).
						Build()
				}
			}
		}
	}
	reflect.NewAt(q.t, dst).Elem().Set(s)
	return nil
}

func (q *sequence) setNil(dst unsafe.Pointer) {
	reflect.NewAt(q.t, dst).Elem().SetZero()
}

func (q *sequence) arrayToNative(src unsafe.Pointer) (uint32, error) {
	arr, _, err := q.fill(src)
	return arr, err
}

func (q *sequence) arrayFromNative(ptr uint32, dst unsafe.Pointer) error {
	if ptr == 0 {
		q.setNil(dst)
		return nil
	}
	data, n, err := q.c.b.ArrayInfo(ptr)
	if err != nil {
		return err
	}
	return q.drain(data, n, dst)
}

func (q *sequence) listToNative(src unsafe.Pointer) (uint32, error) {
	if reflect.NewAt(q.t, src).Elem().IsNil() {
		return 0, nil
	}
	arr, n, err := q.fill(src)
	if err != nil {
		return 0, err
	}
	class, err := q.class.get()
	if err != nil {
		return 0, err
	}
	return q.c.b.NewList(class, arr, n)
}

func (q *sequence) listFromNative(ptr uint32, dst unsafe.Pointer) error {
	if ptr == 0 {
		q.setNil(dst)
		return nil
	}
	items, size, err := q.c.b.ListInfo(ptr)
	if err != nil {
		return err
	}
	if items == 0 {
		if size != 0 {
			return errors.OutOfBounds(errors.PhaseDeserialise, nil, int(size), 0)
		}
		return q.drain(0, 0, dst)
	}
	data, capacity, err := q.c.b.ArrayInfo(items)
	if err != nil {
		return err
	}
	if size > capacity {
		return errors.OutOfBounds(errors.PhaseDeserialise, nil, int(size), int(capacity))
	}
	return q.drain(data, size, dst)
}

func extend(path []string, elem string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}
