package directory

import (
	"sync"
	"time"
)

// TimerRegistry owns the scheduled expiry deletions, one cancellable
// timer per room id. Reconcile keeps it aligned with the latest snapshot:
// timers for rooms no longer present are cancelled, new expiring rooms
// get one, existing ones are left untouched.
type TimerRegistry struct {
	mu       sync.Mutex
	timers   map[string]*time.Timer
	drained  bool
	onExpire func(roomID string)
}

func NewTimerRegistry(onExpire func(roomID string)) *TimerRegistry {
	return &TimerRegistry{
		timers:   make(map[string]*time.Timer),
		onExpire: onExpire,
	}
}

// Reconcile aligns the registry with the deadlines derived from the
// current snapshot. An already-due deadline fires after zero delay rather
// than synchronously, keeping the snapshot callback cheap.
func (r *TimerRegistry) Reconcile(deadlines map[string]time.Time, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return
	}

	for id, t := range r.timers {
		if _, still := deadlines[id]; !still {
			t.Stop()
			delete(r.timers, id)
		}
	}

	for id, deadline := range deadlines {
		if _, scheduled := r.timers[id]; scheduled {
			continue
		}
		delay := deadline.Sub(now)
		if delay < 0 {
			delay = 0
		}
		id := id
		r.timers[id] = time.AfterFunc(delay, func() { r.fire(id) })
	}
}

// fire runs onExpire under the registry lock so Drain can't return while
// an expiry is in flight: after Drain, no callback runs, ever.
func (r *TimerRegistry) fire(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drained {
		return
	}
	if _, armed := r.timers[roomID]; !armed {
		return
	}
	delete(r.timers, roomID)
	r.onExpire(roomID)
}

// Drain cancels every pending timer and rejects later Reconcile calls.
// After Drain returns, no expiry callback will run.
func (r *TimerRegistry) Drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drained = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}

// Pending returns the number of armed timers, for tests and diagnostics.
func (r *TimerRegistry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
