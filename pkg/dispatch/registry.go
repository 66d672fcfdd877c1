// Package dispatch implements the consumer side of the huddle runtime:
// the handler registry, the single dispatcher loop that drains the
// event queue, and the Runtime that composes queue, monitors,
// dispatcher, event log, and the status socket into one process.
package dispatch

import (
	"sort"
	"sync"

	"huddle/pkg/event"
)

// Handler consumes an event and returns a short result description.
// Errors are isolated per handler by the dispatcher: they are logged
// and never abort remaining handlers or the loop.
type Handler func(ev event.Event) (string, error)

// registration pairs a handler with its ordering key. seq preserves
// registration order within a priority class.
type registration struct {
	typ      event.Type
	priority int
	seq      int
	name     string
	fn       Handler
}

// Registry holds the ordered handler registrations. Registration
// usually happens before Run, but the registry is guarded so late
// registration from another goroutine is safe.
type Registry struct {
	mu      sync.Mutex
	entries []registration
	nextSeq int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler for typ. Lower priority values run first;
// handlers with equal priority run in registration order. name
// identifies the handler in logs.
func (r *Registry) Register(typ event.Type, priority int, name string, fn Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registration{
		typ:      typ,
		priority: priority,
		seq:      r.nextSeq,
		name:     name,
		fn:       fn,
	})
	r.nextSeq++
}

// handlersFor returns the registrations matching typ in dispatch order.
func (r *Registry) handlersFor(typ event.Type) []registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []registration
	for _, reg := range r.entries {
		if reg.typ == typ {
			out = append(out, reg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Count returns the total number of registrations.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
