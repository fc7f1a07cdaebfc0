package layout

import (
	"math"

	fieldinject "github.com/wippyai/field-injector"
	"github.com/wippyai/field-injector/errors"
	"go.bytecodealliance.org/wit"
)

// Info is the size and alignment of one native slot
type Info struct {
	Size  uint32
	Align uint32
}

// PointerSlot is the slot used by every pointer-shaped field
var PointerSlot = Info{Size: fieldinject.PointerSize, Align: fieldinject.PointerSize}

// Request asks for one field slot
type Request struct {
	Name  string
	Size  uint32
	Align uint32
}

// Placement is the resolved position of one requested slot
type Placement struct {
	Name   string
	Offset uint32
	Size   uint32
}

// End returns the first byte after the slot
func (p Placement) End() uint32 {
	return p.Offset + p.Size
}

// Allocate places each request at the next multiple of its alignment,
// starting from base. It returns the placements in request order and the
// cursor after the last field.
func Allocate(reqs []Request, base uint32) ([]Placement, uint32, error) {
	out := make([]Placement, 0, len(reqs))
	cursor := base

	for _, r := range reqs {
		if r.Align != 0 && r.Align&(r.Align-1) != 0 {
			return nil, 0, errors.New(errors.PhaseLayout, errors.KindInvalidData).
				Path(r.Name).
				Detail("alignment %d is not a power of two", r.Align).
				Build()
		}
		aligned := AlignTo(cursor, r.Align)
		if aligned < cursor {
			return nil, 0, overflow(r.Name)
		}
		next, ok := SafeAddU32(aligned, r.Size)
		if !ok {
			return nil, 0, overflow(r.Name)
		}
		out = append(out, Placement{Name: r.Name, Offset: aligned, Size: r.Size})
		cursor = next
	}

	return out, cursor, nil
}

func overflow(name string) *errors.Error {
	return errors.New(errors.PhaseLayout, errors.KindOutOfBounds).
		Path(name).
		Detail("instance size exceeds 32-bit address space").
		Build()
}

// AlignTo rounds offset up to a multiple of align. An align of 0 leaves the
// offset untouched.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func SafeAddU32(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}

// ShapeInfo returns the natural size and alignment of a primitive shape.
// Unknown shapes report a zero size.
func ShapeInfo(t wit.Type) Info {
	switch t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case wit.String:
		return PointerSlot
	default:
		return Info{Size: 0, Align: 1}
	}
}

// ShapeName returns the canonical name of a primitive shape.
func ShapeName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case nil:
		return ""
	default:
		return "unknown"
	}
}

// Overlapping reports the first pair of placements whose byte ranges
// intersect. Zero-sized slots never overlap.
func Overlapping(ps []Placement) (a, b int, found bool) {
	for i := range ps {
		if ps[i].Size == 0 {
			continue
		}
		for j := i + 1; j < len(ps); j++ {
			if ps[j].Size == 0 {
				continue
			}
			if ps[i].Offset < ps[j].End() && ps[j].Offset < ps[i].End() {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
