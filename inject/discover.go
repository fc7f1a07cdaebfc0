package inject

import (
	"reflect"

	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
	"github.com/wippyai/field-injector/strategy"
	"go.uber.org/zap"
)

// progress tracks one type through a batch.
type progress struct {
	t        reflect.Type
	fields   []strategy.Field
	warnings []error
	deps     []reflect.Type
	err      error
	class    uint32
	state    State
	value    bool
	root     bool
}

func (p *progress) result() Result {
	return Result{
		Type:     p.t,
		Err:      p.err,
		Warnings: p.warnings,
		Class:    p.class,
		State:    p.state,
	}
}

func (p *progress) warn(err error) {
	p.warnings = append(p.warnings, err)
}

// batch is the working set of one Inject call.
type batch struct {
	report *Report
	byType map[reflect.Type]*progress
	items  []*progress
	debug  int
}

func newBatch(debug int) *batch {
	return &batch{
		report: newReport(),
		byType: make(map[reflect.Type]*progress),
		debug:  debug,
	}
}

// discover adds t and every type it needs that has no native class yet.
func (r *Registry) discover(b *batch, t reflect.Type, root bool) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		if root {
			b.report.add(Result{
				State: StateFailed,
				Err:   errors.NilPointer(errors.PhaseInject, nil, "nil"),
			})
		}
		return
	}
	if root && t.Kind() != reflect.Struct {
		b.report.add(Result{
			Type:  t,
			State: StateFailed,
			Err: errors.New(errors.PhaseInject, errors.KindTypeMismatch).
				GoType(t.String()).
				Detail("only struct types can be injected").
				Build(),
		})
		return
	}

	switch {
	case bridge.IsEnum(t):
		if _, err := r.b.GetOrCreateEnumClass(t); err != nil {
			r.log.Warn("enum class unavailable, using underlying integer",
				zap.String("type", t.String()),
				zap.Error(err))
		}
		return
	case t.Kind() == reflect.Slice:
		r.discover(b, t.Elem(), false)
		return
	case t.Kind() != reflect.Struct, t == bridge.ObjectType:
		return
	}

	if p, ok := b.byType[t]; ok {
		p.root = p.root || root
		return
	}
	if l, ok := r.Layout(t); ok {
		if root {
			r.repeat(b, l)
		}
		return
	}
	if r.b.ResolveClass(t, false) != 0 {
		if root {
			b.report.add(Result{
				Type:  t,
				State: StateFailed,
				Err:   errors.AlreadyInjected(t.String()),
			})
		}
		return
	}

	p := &progress{
		t:     t,
		state: StatePending,
		value: !bridge.IsReferenceType(t),
		root:  root,
	}
	b.byType[t] = p
	b.items = append(b.items, p)

	base := bridge.BaseOf(t)
	if base != nil && base != bridge.ObjectType {
		r.discover(b, base, false)
		if _, ok := b.byType[base]; ok {
			p.deps = append(p.deps, base)
		}
	}

	p.fields, p.warnings = r.classifier.Fields(t)
	for _, w := range p.warnings {
		r.log.Warn("field dropped", zap.String("type", t.String()), zap.Error(w))
	}
	for _, f := range p.fields {
		if b.debug >= 5 {
			r.log.Debug("classified field",
				zap.String("type", t.String()),
				zap.String("field", f.GoName),
				zap.String("native", f.Name),
				zap.Stringer("strategy", f.Strategy))
		}
		r.discover(b, f.Type, false)
	}
	for _, f := range p.fields {
		for _, d := range f.Strategy.Deps() {
			if _, ok := b.byType[d]; ok {
				p.deps = append(p.deps, d)
			}
		}
	}
}

// repeat reports a root this registry injected in an earlier batch.
func (r *Registry) repeat(b *batch, l *TypeLayout) {
	if r.cfg.strict() {
		b.report.add(Result{
			Type:  l.Type,
			Class: l.Class,
			State: StateFailed,
			Err:   errors.AlreadyInjected(l.Type.String()),
		})
		return
	}
	b.report.add(Result{
		Type:    l.Type,
		Class:   l.Class,
		State:   l.State,
		Skipped: true,
	})
}

// order sorts the batch so that bases and nested structs come first. Members
// of a dependency cycle fail and are left out.
func (r *Registry) order(b *batch) []*progress {
	index := make(map[reflect.Type]int, len(b.items))
	for i, p := range b.items {
		index[p.t] = i
	}
	deps := func(i int) []int {
		out := make([]int, 0, len(b.items[i].deps))
		for _, d := range b.items[i].deps {
			out = append(out, index[d])
		}
		return out
	}

	order, cycles := topoOrder(len(b.items), deps)
	for _, cycle := range cycles {
		path := walkCycle(cycle, deps)
		names := make([]string, len(path))
		for i, n := range path {
			names[i] = b.items[n].t.String()
		}
		for _, n := range cycle {
			p := b.items[n]
			r.fail(p, errors.CyclicDependency(p.t.String(), names))
		}
	}

	out := make([]*progress, len(order))
	for i, n := range order {
		out[i] = b.items[n]
	}
	return out
}
