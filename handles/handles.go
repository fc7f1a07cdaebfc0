package handles

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("handle table closed")

// Handle refers to a Go object held by the table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a handle lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Event describes a handle lifecycle change.
type Event struct {
	Value  any
	Handle Handle
	Class  uint32
	Type   EventType
}

// Observer receives handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

type slot struct {
	value any
	class uint32
	live  bool
}

// Table maps handles to Go objects, tagged with the native class they were
// created for.
type Table struct {
	slots     []slot
	free      []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty handle table.
func NewTable() *Table {
	return &Table{
		slots: make([]slot, 0, 64),
		free:  make([]Handle, 0, 16),
	}
}

// Insert stores value and returns its handle.
func (t *Table) Insert(class uint32, value any) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	s := slot{value: value, class: class, live: true}
	var h Handle
	if n := len(t.free); n > 0 {
		h = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[h-1] = s
	} else {
		t.slots = append(t.slots, s)
		h = Handle(len(t.slots))
	}
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Class: class, Value: value})
	return h, nil
}

func (t *Table) lookup(h Handle) (slot, bool) {
	if h == 0 {
		return slot{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := int(h) - 1
	if idx >= len(t.slots) || !t.slots[idx].live {
		return slot{}, false
	}
	return t.slots[idx], true
}

// Get returns the value behind a handle.
func (t *Table) Get(h Handle) (any, bool) {
	s, ok := t.lookup(h)
	return s.value, ok
}

// GetTyped returns the value only if it was inserted for class.
func (t *Table) GetTyped(h Handle, class uint32) (any, bool) {
	s, ok := t.lookup(h)
	if !ok || s.class != class {
		return nil, false
	}
	return s.value, true
}

// Class returns the native class a handle was created for.
func (t *Table) Class(h Handle) (uint32, bool) {
	s, ok := t.lookup(h)
	return s.class, ok
}

// Release drops a handle and returns its value. Releasing an invalid or
// already released handle reports false.
func (t *Table) Release(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.Lock()
	idx := int(h) - 1
	if idx >= len(t.slots) || !t.slots[idx].live {
		t.mu.Unlock()
		return nil, false
	}
	s := t.slots[idx]
	t.slots[idx] = slot{}
	t.free = append(t.free, h)
	t.mu.Unlock()

	t.notify(Event{Type: EventReleased, Handle: h, Class: s.class, Value: s.value})
	return s.value, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, s := range t.slots {
		if s.live {
			n++
		}
	}
	return n
}

// Each calls fn for every live handle until fn returns false.
func (t *Table) Each(fn func(Handle, uint32, any) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i, s := range t.slots {
		if s.live && !fn(Handle(i+1), s.class, s.value) {
			return
		}
	}
}

// Subscribe adds an observer.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Close releases every live handle and rejects further inserts.
func (t *Table) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	var live []Handle
	for i, s := range t.slots {
		if s.live {
			live = append(live, Handle(i+1))
		}
	}
	t.mu.Unlock()

	for _, h := range live {
		t.Release(h)
	}
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnHandleEvent(e)
	}
}
