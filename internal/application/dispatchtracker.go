package application

import (
	"sync"
	"time"
)

// unresolvedWindow is how long an unresolved dispatch keeps later dispatches
// of the same workflow and ref from claiming a run. Runs normally register
// within a few seconds of the dispatch.
const unresolvedWindow = 2 * time.Minute

// dispatchTracker remembers which dispatches of a workflow on a ref are in
// flight, or recently went without a run id, so a lookup never hands one
// caller the run another caller created.
type dispatchTracker struct {
	mu         sync.Mutex
	active     map[string]int
	generation map[string]uint64
	unresolved map[string]time.Time
}

// dispatchTicket identifies one tracked dispatch.
type dispatchTicket struct {
	key        string
	at         time.Time
	generation uint64
	contended  bool // Another dispatch was in flight or unresolved at begin.
}

func newDispatchTracker() *dispatchTracker {
	return &dispatchTracker{
		active:     make(map[string]int),
		generation: make(map[string]uint64),
		unresolved: make(map[string]time.Time),
	}
}

func (t *dispatchTracker) begin(key string, at time.Time) dispatchTicket {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, when := range t.unresolved {
		if at.Sub(when) > unresolvedWindow {
			delete(t.unresolved, k)
		}
	}

	_, pending := t.unresolved[key]
	t.generation[key]++
	t.active[key]++

	return dispatchTicket{
		key:        key,
		at:         at,
		generation: t.generation[key],
		contended:  pending || t.active[key] > 1,
	}
}

// exclusive reports whether no other dispatch of the same key overlapped
// the ticket's dispatch so far.
func (t *dispatchTracker) exclusive(tk dispatchTicket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !tk.contended && t.generation[tk.key] == tk.generation
}

// end releases the ticket. An unresolved dispatch blocks run matching for
// the key until unresolvedWindow has passed.
func (t *dispatchTracker) end(tk dispatchTicket, resolved bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !resolved {
		if when, ok := t.unresolved[tk.key]; !ok || tk.at.After(when) {
			t.unresolved[tk.key] = tk.at
		}
	}

	t.active[tk.key]--
	if t.active[tk.key] <= 0 {
		delete(t.active, tk.key)
		delete(t.generation, tk.key)
	}
}
