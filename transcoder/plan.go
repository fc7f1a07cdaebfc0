package transcoder

import (
	"fmt"
	"strings"
)

// Direction of a plan step.
type Direction uint8

const (
	ToNative Direction = iota
	FromNative
)

func (d Direction) String() string {
	if d == ToNative {
		return "serialise"
	}
	return "deserialise"
}

// Step is one field conversion of a routine.
type Step struct {
	Field     string
	Strategy  string
	Offset    uint32
	Direction Direction
	// InPlace is set for value-shaped fields converted at their offset
	// rather than through a field value pointer.
	InPlace bool
	Bulk    bool
}

func (s Step) String() string {
	var flags []string
	if s.InPlace {
		flags = append(flags, "inline")
	}
	if s.Bulk {
		flags = append(flags, "bulk")
	}
	out := fmt.Sprintf("%s %s @%d %s", s.Direction, s.Field, s.Offset, s.Strategy)
	if len(flags) > 0 {
		out += " [" + strings.Join(flags, ",") + "]"
	}
	return out
}

// Plan lists the steps of a routine in execution order, serialise steps
// first.
type Plan struct {
	Type  string
	Steps []Step
	// Bulk is set when the whole value is copied in one write.
	Bulk bool
}

// Direction returns the steps taken in one direction.
func (p Plan) Direction(d Direction) []Step {
	var out []Step
	for _, s := range p.Steps {
		if s.Direction == d {
			out = append(out, s)
		}
	}
	return out
}

func (p Plan) String() string {
	var b strings.Builder
	b.WriteString(p.Type)
	if p.Bulk {
		b.WriteString(" (bulk)")
	}
	for _, s := range p.Steps {
		b.WriteString("\n  ")
		b.WriteString(s.String())
	}
	return b.String()
}
