// Package txstatus reports the outcome of mutating registry operations to
// callers. It keeps the single observable slot the UI polls, and layers a
// subscription channel on top so a consumer can follow discrete transitions
// without the slot's last-writer-wins ambiguity.
package txstatus

import (
	"sync"
	"time"
)

// State is the transaction state machine, orthogonal to a record's own status.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Update is one transition of a mutating operation.
type Update struct {
	Op      string    `json:"op"`
	State   State     `json:"state"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Terminal reports whether the update ends its operation.
func (u Update) Terminal() bool {
	return u.State == StateSuccess || u.State == StateError
}

// Reporter holds the single status slot. Concurrent operations overwrite each
// other in the slot (accepted limitation); subscribers see every transition.
type Reporter struct {
	mu      sync.Mutex
	slot    *Update
	window  time.Duration
	clear   *time.Timer
	subs    map[int]chan Update
	nextSub int
}

// New builds a Reporter whose slot auto-clears the given window after a
// terminal state. The window is a display affordance, not a correctness
// mechanism.
func New(window time.Duration) *Reporter {
	return &Reporter{window: window, subs: make(map[int]chan Update)}
}

// Begin marks a mutating operation as pending, overwriting the slot.
func (r *Reporter) Begin(op, message string) {
	r.set(Update{Op: op, State: StatePending, Message: message, At: time.Now()})
}

// Succeed marks the operation's logical completion.
func (r *Reporter) Succeed(op, message string) {
	r.set(Update{Op: op, State: StateSuccess, Message: message, At: time.Now()})
}

// Fail records the operation's first failure with its cause description.
func (r *Reporter) Fail(op, message string) {
	r.set(Update{Op: op, State: StateError, Message: message, At: time.Now()})
}

// Current returns the slot and whether it is visible.
func (r *Reporter) Current() (Update, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slot == nil {
		return Update{}, false
	}
	return *r.slot, true
}

// Watch subscribes to every transition. The returned cancel func must be
// called to release the subscription. Slow consumers drop updates rather than
// blocking the engine.
func (r *Reporter) Watch() (<-chan Update, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Update, 16)
	r.subs[id] = ch
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Broadcast delivers a transition to subscribers without touching the slot.
// Used for failures of work the caller never initiated, like deferred
// resolution, which have no user-facing slot to occupy.
func (r *Reporter) Broadcast(op string, state State, message string) {
	u := Update{Op: op, State: state, Message: message, At: time.Now()}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		select {
		case sub <- u:
		default:
		}
	}
}

func (r *Reporter) set(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := u
	r.slot = &slot
	if r.clear != nil {
		r.clear.Stop()
		r.clear = nil
	}
	if u.Terminal() && r.window > 0 {
		r.clear = time.AfterFunc(r.window, func() { r.clearSlot(u) })
	}
	for _, sub := range r.subs {
		select {
		case sub <- u:
		default:
		}
	}
}

// clearSlot empties the slot only if the given update is still the one on
// display; a newer operation keeps its own status.
func (r *Reporter) clearSlot(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slot != nil && *r.slot == u {
		r.slot = nil
	}
}
