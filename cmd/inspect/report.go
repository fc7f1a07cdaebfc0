package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/inject"
	"github.com/wippyai/field-injector/layout"
	"github.com/wippyai/field-injector/native"
)

type fieldReport struct {
	Name      string `json:"name"`
	GoName    string `json:"goName,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Class     string `json:"class"`
	Shape     string `json:"shape,omitempty"`
	Offset    uint32 `json:"offset"`
	Size      uint32 `json:"size"`
	Inherited bool   `json:"inherited,omitempty"`
}

type typeReport struct {
	Name         string        `json:"name"`
	Native       string        `json:"native,omitempty"`
	Kind         string        `json:"kind"`
	State        string        `json:"state"`
	Error        string        `json:"error,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Fields       []fieldReport `json:"fields,omitempty"`
	Class        uint32        `json:"class"`
	InstanceSize uint32        `json:"instanceSize,omitempty"`
	Blittable    bool          `json:"blittable,omitempty"`
	Skipped      bool          `json:"skipped,omitempty"`
}

type sampleReport struct {
	Type           string `json:"type"`
	Object         uint32 `json:"object"`
	Bytes          string `json:"bytes"`
	RoundTrip      bool   `json:"roundTrip"`
	Value          string `json:"value,omitempty"`
	ValueBytes     string `json:"valueBytes,omitempty"`
	ValueRoundTrip bool   `json:"valueRoundTrip,omitempty"`
}

type inspectReport struct {
	Heap        string        `json:"heap"`
	Types       []typeReport  `json:"types"`
	Sample      *sampleReport `json:"sample,omitempty"`
	ArenaBlocks int           `json:"arenaBlocks"`
	ArenaBytes  uint64        `json:"arenaBytes"`
	Failed      int           `json:"failed"`
}

func buildReport(heap string, rt *native.Runtime, reg *inject.Registry, rep *inject.Report) *inspectReport {
	out := &inspectReport{
		Heap:        heap,
		ArenaBlocks: reg.Arena().Count(),
		ArenaBytes:  reg.Arena().Bytes(),
		Failed:      len(rep.Failed()),
	}

	for _, res := range rep.Results {
		tr := typeReport{
			Name:    fmt.Sprint(res.Type),
			Kind:    "value",
			State:   res.State.String(),
			Class:   res.Class,
			Skipped: res.Skipped,
		}
		if res.Type != nil && bridge.IsReferenceType(res.Type) {
			tr.Kind = "reference"
		}
		if res.Err != nil {
			tr.Error = res.Err.Error()
		}
		for _, w := range res.Warnings {
			tr.Warnings = append(tr.Warnings, w.Error())
		}
		if info, ok := rt.Class(res.Class); ok {
			tr.Native = info.FullName()
		}
		if l, ok := reg.Layout(res.Type); ok {
			tr.InstanceSize = l.InstanceSize
			tr.Blittable = l.Blittable
			for _, f := range l.Fields {
				tr.Fields = append(tr.Fields, describeField(rt, f))
			}
		}
		out.Types = append(out.Types, tr)
	}
	return out
}

func describeField(rt *native.Runtime, f inject.Slot) fieldReport {
	fr := fieldReport{
		Name:      f.Name,
		GoName:    f.GoName,
		Strategy:  f.Strategy,
		Offset:    f.Offset,
		Size:      f.Size,
		Inherited: f.Inherited,
	}
	if info, ok := rt.Class(f.Class); ok {
		fr.Class = info.FullName()
		fr.Shape = layout.ShapeName(info.Shape)
	}
	return fr
}

// sample serialises a demo Transform through its installed callbacks and
// reads it back into a fresh value.
func sample(rt *native.Runtime, reg *inject.Registry) (*sampleReport, error) {
	l, ok := reg.Layout(typeOfTransform)
	if !ok {
		return nil, fmt.Errorf("%s was not injected", typeOfTransform)
	}

	src := sampleTransform()
	obj, err := rt.NewManaged(src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rt.Finalize(obj) }()

	if err := rt.BeforeSerialize(obj); err != nil {
		return nil, fmt.Errorf("serialise: %w", err)
	}
	raw, err := rt.Memory().Read(obj, l.InstanceSize)
	if err != nil {
		return nil, err
	}

	want := *src
	*src = Transform{Component: Component{Object: src.Object}}
	if err := rt.AfterDeserialize(obj); err != nil {
		return nil, fmt.Errorf("deserialise: %w", err)
	}

	out := &sampleReport{
		Type:      l.Type.String(),
		Object:    obj,
		Bytes:     hex.EncodeToString(raw),
		RoundTrip: src.Position == want.Position && src.Tag == want.Tag && src.Layer == want.Layer,
	}
	if err := sampleBounds(rt, reg, out); err != nil {
		return nil, err
	}
	return out, nil
}

// sampleBounds round-trips a Bounds value through its struct routine when
// Bounds was injected.
func sampleBounds(rt *native.Runtime, reg *inject.Registry, out *sampleReport) error {
	l, ok := reg.Layout(typeOfBounds)
	if !ok || l.Struct == nil {
		return nil
	}
	addr, err := rt.Allocator().Alloc(l.Struct.Size, 4)
	if err != nil {
		return err
	}
	defer rt.Allocator().Free(addr, l.Struct.Size, 4)

	src := Bounds{Center: Vector3{0, 1, 0}, Extents: Vector3{2, 2, 2}}
	if err := l.Struct.Serialise(src, addr); err != nil {
		return fmt.Errorf("serialise %s: %w", l.Type, err)
	}
	raw, err := rt.Memory().Read(addr, l.Struct.Size)
	if err != nil {
		return err
	}
	var got Bounds
	if err := l.Struct.DeserialiseInto(addr, &got); err != nil {
		return fmt.Errorf("deserialise %s: %w", l.Type, err)
	}
	out.Value = l.Type.String()
	out.ValueBytes = hex.EncodeToString(raw)
	out.ValueRoundTrip = got == src
	return nil
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	inheritedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func writeText(w io.Writer, r *inspectReport) {
	fmt.Fprintf(w, "%s heap=%s arena=%d blocks/%d bytes\n\n",
		titleStyle.Render("Field Injector"), r.Heap, r.ArenaBlocks, r.ArenaBytes)
	for _, t := range r.Types {
		fmt.Fprint(w, renderType(t))
		fmt.Fprintln(w)
	}
	if r.Sample != nil {
		fmt.Fprintf(w, "sample %s @0x%x round trip=%v\n  %s\n",
			nameStyle.Render(r.Sample.Type), r.Sample.Object, r.Sample.RoundTrip, r.Sample.Bytes)
		if r.Sample.Value != "" {
			fmt.Fprintf(w, "sample %s round trip=%v\n  %s\n",
				nameStyle.Render(r.Sample.Value), r.Sample.ValueRoundTrip, r.Sample.ValueBytes)
		}
	}
}

func renderType(t typeReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", nameStyle.Render(t.Name), typeStyle.Render(t.Kind), t.State)
	if t.Native != "" {
		fmt.Fprintf(&b, " -> %s (class 0x%x, %d bytes", t.Native, t.Class, t.InstanceSize)
		if t.Blittable {
			b.WriteString(", blittable")
		}
		b.WriteByte(')')
	}
	if t.Skipped {
		b.WriteString(" [skipped]")
	}
	b.WriteByte('\n')

	if t.Error != "" {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render(t.Error))
		b.WriteByte('\n')
	}
	for _, w := range t.Warnings {
		b.WriteString("  ")
		b.WriteString(warnStyle.Render("warning: " + w))
		b.WriteByte('\n')
	}
	for _, f := range t.Fields {
		line := fmt.Sprintf("  %4d %3d  %-12s %-24s %s", f.Offset, f.Size, f.Name, f.Class, f.Strategy)
		if f.Shape != "" {
			line += " " + typeStyle.Render(f.Shape)
		}
		if f.Inherited {
			line = inheritedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
