package inject

import (
	"fmt"
	"reflect"
	"strings"
)

// Result is the outcome of one type in a batch.
type Result struct {
	Type     reflect.Type
	Err      error
	Warnings []error
	Class    uint32
	State    State
	// Skipped is set for types this registry had already injected.
	Skipped bool
}

// OK reports whether the type has working routines.
func (r Result) OK() bool {
	return r.State == StateRoutinesInstalled && r.Err == nil
}

// Report collects the results of one batch.
type Report struct {
	Results []Result
	index   map[reflect.Type]int
}

func newReport() *Report {
	return &Report{index: make(map[reflect.Type]int)}
}

func (r *Report) add(res Result) {
	if i, ok := r.index[res.Type]; ok {
		r.Results[i] = res
		return
	}
	r.index[res.Type] = len(r.Results)
	r.Results = append(r.Results, res)
}

// Result returns the outcome for t.
func (r *Report) Result(t reflect.Type) (Result, bool) {
	i, ok := r.index[t]
	if !ok {
		return Result{}, false
	}
	return r.Results[i], true
}

// Failed returns the failed results in batch order.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.State == StateFailed {
			out = append(out, res)
		}
	}
	return out
}

// Injected returns the types that received routines in this batch.
func (r *Report) Injected() []reflect.Type {
	var out []reflect.Type
	for _, res := range r.Results {
		if res.OK() && !res.Skipped {
			out = append(out, res.Type)
		}
	}
	return out
}

// Warnings returns every warning of the batch.
func (r *Report) Warnings() []error {
	var out []error
	for _, res := range r.Results {
		out = append(out, res.Warnings...)
	}
	return out
}

// Err returns a *BatchError when any type failed, nil otherwise.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &BatchError{Failures: failed}
}

// BatchError lists the failed types of a batch.
type BatchError struct {
	Failures []Result
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d type(s) failed to inject", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %v: %v", f.Type, f.Err)
	}
	return b.String()
}

// Unwrap exposes each failure to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Err
	}
	return out
}
