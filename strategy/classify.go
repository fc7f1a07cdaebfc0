package strategy

import (
	"reflect"
	"strings"
	"sync"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
)

// TagName is the struct tag read for exclusion and renaming.
const TagName = "native"

var builtins = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeOf(false),
	reflect.Int:     reflect.TypeOf(int(0)),
	reflect.Int8:    reflect.TypeOf(int8(0)),
	reflect.Int16:   reflect.TypeOf(int16(0)),
	reflect.Int32:   reflect.TypeOf(int32(0)),
	reflect.Int64:   reflect.TypeOf(int64(0)),
	reflect.Uint:    reflect.TypeOf(uint(0)),
	reflect.Uint8:   reflect.TypeOf(uint8(0)),
	reflect.Uint16:  reflect.TypeOf(uint16(0)),
	reflect.Uint32:  reflect.TypeOf(uint32(0)),
	reflect.Uint64:  reflect.TypeOf(uint64(0)),
	reflect.Uintptr: reflect.TypeOf(uintptr(0)),
	reflect.Float32: reflect.TypeOf(float32(0)),
	reflect.Float64: reflect.TypeOf(float64(0)),
}

// Builtin returns the builtin type for a scalar kind, or nil.
func Builtin(k reflect.Kind) reflect.Type {
	return builtins[k]
}

// Classifier classifies Go types into strategies and caches the result.
type Classifier struct {
	cache    sync.Map // reflect.Type -> *Strategy
	mu       sync.Mutex
	building map[reflect.Type]*Strategy
}

func NewClassifier() *Classifier {
	return &Classifier{
		building: make(map[reflect.Type]*Strategy),
	}
}

// Classify returns the strategy for t.
func (c *Classifier) Classify(t reflect.Type) (*Strategy, error) {
	if t == nil {
		return nil, errors.New(errors.PhaseClassify, errors.KindNilPointer).
			Detail("type cannot be nil").
			Build()
	}
	if cached, ok := c.cache.Load(t); ok {
		return cached.(*Strategy), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classify(t, []string{typeLabel(t)})
}

func (c *Classifier) classify(t reflect.Type, path []string) (*Strategy, error) {
	if cached, ok := c.cache.Load(t); ok {
		return cached.(*Strategy), nil
	}
	// A struct reached again through its own array or list elements.
	if s, ok := c.building[t]; ok {
		return s, nil
	}

	var s *Strategy
	switch {
	case bridge.IsWrapperPointer(t):
		s = &Strategy{Kind: KindObjectRef, GoType: t}

	case t.Kind() == reflect.String:
		s = &Strategy{Kind: KindString, GoType: t}

	case builtins[t.Kind()] != nil:
		s = &Strategy{
			Kind:       KindPrimitive,
			GoType:     t,
			Underlying: builtins[t.Kind()],
			Enum:       bridge.IsEnum(t),
		}

	case t.Kind() == reflect.Struct:
		if bridge.IsReferenceType(t) {
			return nil, unsupported(path, t, "reference types are held by pointer")
		}
		s = &Strategy{Kind: KindStruct, GoType: t}
		c.building[t] = s
		// Dropped nested fields are reported when the struct itself is
		// injected.
		s.Fields, _ = c.fields(t, path)
		delete(c.building, t)

	case t.Kind() == reflect.Slice && !bridge.IsList(t):
		elem, err := c.classify(t.Elem(), extend(path, "[]"))
		if err != nil {
			return nil, err
		}
		s = &Strategy{Kind: KindArray, GoType: t, Elem: elem}

	case bridge.IsList(t):
		elem, err := c.classify(t.Elem(), extend(path, "[]"))
		if err != nil {
			return nil, err
		}
		s = &Strategy{Kind: KindList, GoType: t, Elem: elem}

	default:
		return nil, unsupported(path, t, "")
	}

	c.cache.Store(t, s)
	return s, nil
}

func unsupported(path []string, t reflect.Type, detail string) *errors.Error {
	err := errors.UnsupportedFieldType(path, t.String())
	if detail != "" {
		err.Detail = detail
	}
	return err
}

// Fields returns the serialised own fields of struct t, in declaration order.
// The embedded base of a reference type is not an own field. Fields whose
// type cannot be classified are dropped and reported as warnings.
func (c *Classifier) Fields(t reflect.Type) ([]Field, []error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, []error{errors.New(errors.PhaseClassify, errors.KindTypeMismatch).
			GoType(typeLabel(t)).
			Detail("expected struct").
			Build()}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields(t, []string{typeLabel(t)})
}

func (c *Classifier) fields(t reflect.Type, path []string) ([]Field, []error) {
	var (
		out      []Field
		warnings []error
	)

	start := 0
	if bridge.BaseOf(t) != nil {
		start = 1
	}

	for i := start; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, ok := NativeName(sf)
		if !ok {
			continue
		}

		s, err := c.classify(sf.Type, extend(path, sf.Name))
		if err != nil {
			warnings = append(warnings, err)
			continue
		}

		out = append(out, Field{
			Name:     name,
			GoName:   sf.Name,
			Index:    i,
			GoOffset: sf.Offset,
			Type:     sf.Type,
			Strategy: s,
		})
	}

	return out, warnings
}

// NativeName returns the native name of a struct field and whether the field
// is serialised at all.
func NativeName(sf reflect.StructField) (string, bool) {
	if !sf.IsExported() {
		return "", false
	}
	tag := sf.Tag.Get(TagName)
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return sf.Name, true
}

func extend(path []string, elem string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = elem
	return out
}

func typeLabel(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
