package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func inspectJSON(t *testing.T, opts options) gjson.Result {
	t.Helper()
	report, err := run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := write(&buf, report, true); err != nil {
		t.Fatal(err)
	}
	if !gjson.Valid(buf.String()) {
		t.Fatalf("invalid JSON: %s", buf.String())
	}
	return gjson.Parse(buf.String())
}

func TestInspectJSON(t *testing.T) {
	out := inspectJSON(t, options{jsonOut: true, pages: 1})

	if got := out.Get("heap").String(); got != "go" {
		t.Errorf("heap = %q", got)
	}
	if got := out.Get("failed").Int(); got != 0 {
		t.Errorf("failed = %d", got)
	}
	if got := out.Get("types.#").Int(); got != 7 {
		t.Errorf("types = %d: %s", got, out.Get("types.#.name"))
	}

	tests := []struct {
		path string
		want string
	}{
		{`types.#(name=="main.Component").instanceSize`, "20"},
		{`types.#(name=="main.Transform").kind`, "reference"},
		{`types.#(name=="main.Transform").instanceSize`, "72"},
		{`types.#(name=="main.Transform").fields.0.name`, "Enabled"},
		{`types.#(name=="main.Transform").fields.0.inherited`, "true"},
		{`types.#(name=="main.Transform").fields.#(name=="Position").offset`, "16"},
		{`types.#(name=="main.Transform").fields.#(name=="Layer").offset`, "56"},
		{`types.#(name=="main.Transform").fields.#(name=="Layer").shape`, "s32"},
		{`types.#(name=="main.Transform").fields.#(name=="Children").strategy`, "list<object Transform>"},
		{`types.#(name=="main.Inventory").instanceSize`, "60"},
		{`types.#(name=="main.Inventory").warnings.#`, "1"},
		{`types.#(name=="main.Inventory").fields.#(name=="Area").offset`, "32"},
		{`types.#(name=="main.Bounds").kind`, "value"},
		{`types.#(name=="main.Bounds").blittable`, "true"},
		{`types.#(name=="main.ItemStack").blittable`, ""},
		{`types.#(name=="main.Vector3").state`, "routines-installed"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := out.Get(tt.path).String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if !strings.Contains(out.Get(`types.#(name=="main.Inventory").warnings.0`).String(), "map[string]int32") {
		t.Errorf("warning = %s", out.Get(`types.#(name=="main.Inventory").warnings.0`))
	}
}

func TestInspectSelectedTypes(t *testing.T) {
	out := inspectJSON(t, options{types: "Vector3, ItemStack", pages: 1})
	names := out.Get("types.#.name").Array()
	if len(names) != 2 || names[0].String() != "main.Vector3" || names[1].String() != "main.ItemStack" {
		t.Errorf("types = %v", names)
	}

	if _, err := run(context.Background(), options{types: "Nope"}); err == nil {
		t.Error("unknown type accepted")
	}
}

func TestInspectSampleOnWazero(t *testing.T) {
	out := inspectJSON(t, options{wazero: true, sample: true, pages: 1})

	if got := out.Get("heap").String(); got != "wazero" {
		t.Errorf("heap = %q", got)
	}
	if !out.Get("sample.roundTrip").Bool() {
		t.Errorf("sample = %s", out.Get("sample").Raw)
	}
	if got := len(out.Get("sample.bytes").String()); got != 72*2 {
		t.Errorf("sample bytes = %d hex digits", got)
	}
	if out.Get("sample.object").Uint() == 0 {
		t.Error("sample object is null")
	}
	if !out.Get("sample.valueRoundTrip").Bool() || out.Get("sample.value").String() != "main.Bounds" {
		t.Errorf("value sample = %s", out.Get("sample").Raw)
	}
	if got := len(out.Get("sample.valueBytes").String()); got != 24*2 {
		t.Errorf("value bytes = %d hex digits", got)
	}
}

func TestInspectText(t *testing.T) {
	report, err := run(context.Background(), options{types: "Bounds", pages: 1})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := write(&buf, report, false); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	for _, want := range []string{"main.Bounds", "Center", "Extents", "blittable"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output lacks %q:\n%s", want, text)
		}
	}
}

func TestInteractiveFilter(t *testing.T) {
	report, err := run(context.Background(), options{pages: 1})
	if err != nil {
		t.Fatal(err)
	}
	m := newInteractiveModel(report)
	if len(m.visible) != len(report.Types) {
		t.Fatalf("visible = %d", len(m.visible))
	}
	m.filter.SetValue("vec")
	m.applyFilter()
	if len(m.visible) != 1 || report.Types[m.visible[0]].Name != "main.Vector3" {
		t.Errorf("filtered = %v", m.visible)
	}
	if !strings.Contains(m.View(), "main.Vector3") {
		t.Error("view lacks the filtered type")
	}
}
