package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/field-injector/engine"
	"github.com/wippyai/field-injector/inject"
	"github.com/wippyai/field-injector/native"
	"github.com/wippyai/field-injector/transcoder"
)

type options struct {
	types       string
	debug       int
	pages       uint32
	jsonOut     bool
	wazero      bool
	sample      bool
	int32Ints   bool
	interactive bool
}

func main() {
	var opts options
	pages := flag.Uint("pages", 1, "Initial heap size in 64KB pages")
	flag.StringVar(&opts.types, "types", "", "Comma-separated demo types to inject (default: all)")
	flag.IntVar(&opts.debug, "debug", 0, "Injection debug level 0-5, logged to stderr")
	flag.BoolVar(&opts.jsonOut, "json", false, "Print the layout report as JSON")
	flag.BoolVar(&opts.wazero, "wazero", false, "Back the native heap with a wazero linear memory")
	flag.BoolVar(&opts.sample, "sample", false, "Round-trip a sample Transform through the native heap")
	flag.BoolVar(&opts.int32Ints, "int32", false, "Map Go int and uint to 32-bit native classes")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()
	opts.pages = uint32(*pages)

	if opts.interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: -i needs a terminal")
		os.Exit(1)
	}

	if opts.debug > 0 {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
		engine.SetLogger(log)
		native.SetLogger(log)
		transcoder.SetLogger(log)
		inject.SetLogger(log)
	}

	report, err := run(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if opts.interactive {
		if err := runInteractive(report); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := write(os.Stdout, report, opts.jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if report.Failed > 0 {
		os.Exit(2)
	}
}

func newHeap(ctx context.Context, opts options) (engine.GrowableMemory, string, func(), error) {
	cfg := &engine.Config{InitialPages: opts.pages}
	if opts.wazero {
		mem, err := engine.NewWazeroMemory(ctx, cfg)
		if err != nil {
			return nil, "", nil, err
		}
		return mem, "wazero", func() { _ = mem.Close(ctx) }, nil
	}
	mem, err := engine.NewHeapMemory(cfg)
	if err != nil {
		return nil, "", nil, err
	}
	return mem, "go", func() {}, nil
}

func selectTypes(names string) ([]reflect.Type, error) {
	if names == "" {
		return demoTypes, nil
	}
	byName := make(map[string]reflect.Type)
	for _, t := range demoTypes {
		byName[t.Name()] = t
	}
	for _, v := range []any{Component{}, ItemStack{}, Vector3{}, Quaternion{}} {
		t := reflect.TypeOf(v)
		byName[t.Name()] = t
	}
	var out []reflect.Type
	for _, name := range strings.Split(names, ",") {
		t, ok := byName[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown demo type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func run(ctx context.Context, opts options) (*inspectReport, error) {
	types, err := selectTypes(opts.types)
	if err != nil {
		return nil, err
	}

	mem, name, closeHeap, err := newHeap(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create heap: %w", err)
	}
	defer closeHeap()

	rt, err := native.New(mem, engine.NewBumpAllocator(mem, nil), &native.Config{NativeInt32: opts.int32Ints})
	if err != nil {
		return nil, fmt.Errorf("boot runtime: %w", err)
	}
	defer func() { _ = rt.Close() }()

	reg := inject.New(rt, nil)
	rep := reg.Inject(opts.debug, types...)
	report := buildReport(name, rt, reg, rep)

	if opts.sample {
		s, err := sample(rt, reg)
		if err != nil {
			return nil, fmt.Errorf("sample: %w", err)
		}
		report.Sample = s
	}
	return report, nil
}

func write(w io.Writer, r *inspectReport, asJSON bool) error {
	if !asJSON {
		writeText(w, r)
		return nil
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
