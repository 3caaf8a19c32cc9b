// Package trigger implements the at-most-once, LIFO-fired trigger
// registry described in spec.md §4.6, grounded on
// original_source/insteon_mngr/sequences/i1_device.py's use of
// InsteonTrigger to resume a sequence from an inbound frame match.
package trigger

import (
	"sync"
	"time"

	"github.com/insteonplm/meshd/pkg/insteon/address"
	"github.com/insteonplm/meshd/pkg/insteon/frame"
)

// Trigger is a pending continuation: it fires at most once, when an
// inbound frame matches its device, command name, and every named
// attribute matcher.
type Trigger struct {
	Device      address.Address
	CommandName string
	Matchers    map[string]byte
	Fire        func(frame.Incoming)

	// Name tags this trigger for cancellation via RemoveStateMachine; it
	// carries the owning device's address plus the state-machine label,
	// matching the tagging convention queued outgoing frames use.
	Name string

	// Deadline and OnTimeout implement spec.md §5's per-step sequence
	// timeout: a zero Deadline means this trigger never expires on its
	// own (only fires or is explicitly cancelled). ExpireBefore invokes
	// OnTimeout instead of Fire when a non-zero Deadline has passed.
	Deadline  time.Time
	OnTimeout func()
}

// matches reports whether in satisfies every matcher value (spec.md §4.6:
// "every matcher value equals the corresponding named byte in the
// frame").
func (t *Trigger) matches(commandName string, in frame.Incoming) bool {
	if t.CommandName != commandName {
		return false
	}
	for name, want := range t.Matchers {
		got, ok := in.ByteByName(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Registry is the LIFO trigger store: at most one matching trigger fires
// per frame (the most recently queued of the matches), and it is removed
// immediately after firing.
type Registry struct {
	mu       sync.Mutex
	triggers []*Trigger
}

// NewRegistry returns an empty trigger registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add queues a trigger, most-recent last.
func (r *Registry) Add(t *Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, t)
}

// Dispatch walks the registry LIFO, firing and removing the first
// (most-recently-queued) trigger whose device, commandName, and matchers
// all match in. Returns false if nothing matched.
func (r *Registry) Dispatch(dev address.Address, commandName string, in frame.Incoming) bool {
	r.mu.Lock()
	var fired *Trigger
	for i := len(r.triggers) - 1; i >= 0; i-- {
		t := r.triggers[i]
		if t.Device != dev {
			continue
		}
		if t.matches(commandName, in) {
			fired = t
			r.triggers = append(r.triggers[:i], r.triggers[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if fired == nil {
		return false
	}
	fired.Fire(in)
	return true
}

// ExpireBefore removes and fires the timeout of every pending trigger
// whose Deadline is non-zero and no later than now, per spec.md §5
// ("expiring triggers/timeouts"). The scheduler's periodic sweep
// (internal/scheduler) is what actually advances time here; this package
// never reads the wall clock unprompted.
func (r *Registry) ExpireBefore(now time.Time) {
	r.mu.Lock()
	var expired []*Trigger
	kept := r.triggers[:0]
	for _, t := range r.triggers {
		if !t.Deadline.IsZero() && !t.Deadline.After(now) {
			expired = append(expired, t)
			continue
		}
		kept = append(kept, t)
	}
	r.triggers = kept
	r.mu.Unlock()

	for _, t := range expired {
		if t.OnTimeout != nil {
			t.OnTimeout()
		}
	}
}

// RemoveStateMachine removes every trigger tagged with name, per
// spec.md §4.6's cancellation contract.
func (r *Registry) RemoveStateMachine(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	filtered := r.triggers[:0]
	for _, t := range r.triggers {
		if t.Name == name {
			continue
		}
		filtered = append(filtered, t)
	}
	r.triggers = filtered
}

// Len reports how many triggers are currently pending.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggers)
}
