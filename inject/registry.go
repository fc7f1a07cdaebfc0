package inject

import (
	"reflect"
	"sort"
	"sync"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/strategy"
	"github.com/wippyai/field-injector/transcoder"
	"go.uber.org/zap"
)

// Registry injects Go types into one native runtime and keeps their layouts
// for its lifetime.
type Registry struct {
	b          bridge.Bridge
	cfg        *Config
	log        *zap.Logger
	arena      *Arena
	classifier *strategy.Classifier
	compiler   *transcoder.Compiler
	layouts    sync.Map // reflect.Type -> *TypeLayout
	mu         sync.Mutex
}

// New creates a registry over b. A nil cfg uses defaults.
func New(b bridge.Bridge, cfg *Config) *Registry {
	log := cfg.logger()
	return &Registry{
		b:          b,
		cfg:        cfg,
		log:        log,
		arena:      NewArena(b.Memory(), b.Allocator()),
		classifier: strategy.NewClassifier(),
		compiler:   transcoder.NewCompiler(b, log),
	}
}

// Inject injects types and everything they reference that has no native
// class yet. Reference and value types may be mixed.
func (r *Registry) Inject(debugLevel int, types ...reflect.Type) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := newBatch(debugLevel)
	for _, t := range types {
		r.discover(b, t, true)
	}
	r.run(b)
	return b.report
}

// InjectBatch injects reference types and value types given separately.
// A type in the wrong list fails with KindTypeMismatch.
func (r *Registry) InjectBatch(debugLevel int, classes, structs []reflect.Type) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := newBatch(debugLevel)
	check := func(t reflect.Type, reference bool) {
		for t != nil && t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t != nil && t.Kind() == reflect.Struct && bridge.IsReferenceType(t) != reference {
			want := "value type"
			if reference {
				want = "reference type embedding bridge.Object"
			}
			b.report.add(Result{
				Type:  t,
				State: StateFailed,
				Err: errors.New(errors.PhaseInject, errors.KindTypeMismatch).
					GoType(t.String()).
					Detail("expected %s", want).
					Build(),
			})
			return
		}
		r.discover(b, t, true)
	}
	for _, t := range classes {
		check(t, true)
	}
	for _, t := range structs {
		check(t, false)
	}
	r.run(b)
	return b.report
}

// Type injects T and returns its layout.
func Type[T any](r *Registry, debugLevel int) (*TypeLayout, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	res, _ := r.Inject(debugLevel, t).Result(t)
	if res.Err != nil {
		return nil, res.Err
	}
	l, ok := r.Layout(t)
	if !ok {
		return nil, errors.NotFound(errors.PhaseInject, "layout of "+t.String())
	}
	return l, nil
}

// Layout returns the layout of an injected type.
func (r *Registry) Layout(t reflect.Type) (*TypeLayout, bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return nil, false
	}
	l, ok := r.layouts.Load(t)
	if !ok {
		return nil, false
	}
	return l.(*TypeLayout), true
}

// Layouts returns every injected layout sorted by type name.
func (r *Registry) Layouts() []*TypeLayout {
	var out []*TypeLayout
	r.layouts.Range(func(_, v any) bool {
		out = append(out, v.(*TypeLayout))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Type.String() < out[j].Type.String()
	})
	return out
}

func (r *Registry) Arena() *Arena {
	return r.arena
}

func (r *Registry) Compiler() *transcoder.Compiler {
	return r.compiler
}

func (r *Registry) Classifier() *strategy.Classifier {
	return r.classifier
}

func (r *Registry) Bridge() bridge.Bridge {
	return r.b
}

func (r *Registry) run(b *batch) {
	order := r.order(b)

	r.structPass(b, order)
	r.classPass(b, order)
	r.structFieldPass(b, order)
	r.classFieldPass(b, order)

	for _, p := range b.items {
		b.report.add(p.result())
	}

	if b.debug >= 1 {
		r.log.Debug("injection batch done",
			zap.Int("types", len(b.items)),
			zap.Int("injected", len(b.report.Injected())),
			zap.Int("failed", len(b.report.Failed())),
			zap.Int("warnings", len(b.report.Warnings())),
			zap.Int("arena_blocks", r.arena.Count()),
			zap.Uint64("arena_bytes", r.arena.Bytes()))
	}
}

func (r *Registry) fail(p *progress, err error) {
	p.state = StateFailed
	p.err = err
	r.log.Error("type injection failed",
		zap.String("type", p.t.String()),
		zap.Error(err))
}

func (r *Registry) step(b *batch, p *progress, msg string) {
	if b.debug < 2 {
		return
	}
	r.log.Debug(msg,
		zap.String("type", p.t.String()),
		zap.Uint32("class", p.class),
		zap.Stringer("state", p.state))
}

// bridgeError wraps a runtime error unless it already names an injection
// failure.
func bridgeError(t reflect.Type, err error) error {
	if errors.IsKind(err, errors.KindAlreadyInjected) || errors.IsKind(err, errors.KindMissingInterfaceSlot) {
		return err
	}
	return errors.BridgeFailure(errors.PhaseInject, t.String(), err)
}
