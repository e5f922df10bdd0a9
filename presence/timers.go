package presence

import (
	"sync"
	"time"
)

type timerEntry struct {
	gen   uint64
	timer Timer
}

// timerRegistry holds at most one live timer per serial. Every refresh hands
// out a new generation, a fired timer only counts if its generation is still
// the registered one.
type timerRegistry struct {
	mu     sync.Mutex
	clock  Clock
	next   uint64
	timers map[string]timerEntry
}

func newTimerRegistry(clock Clock) *timerRegistry {
	return &timerRegistry{
		clock:  clock,
		timers: make(map[string]timerEntry),
	}
}

func (r *timerRegistry) refresh(serial string, d time.Duration, fire func(serial string, gen uint64)) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[serial]; ok {
		old.timer.Stop()
	}

	r.next++
	gen := r.next
	r.timers[serial] = timerEntry{
		gen:   gen,
		timer: r.clock.AfterFunc(d, func() { fire(serial, gen) }),
	}

	return gen
}

// consume removes the timer of serial if gen is current.
func (r *timerRegistry) consume(serial string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.timers[serial]
	if !ok || entry.gen != gen {
		return false
	}

	delete(r.timers, serial)
	return true
}

func (r *timerRegistry) cancel(serial string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.timers[serial]; ok {
		entry.timer.Stop()
		delete(r.timers, serial)
	}
}

func (r *timerRegistry) cancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.timers)
	for serial, entry := range r.timers {
		entry.timer.Stop()
		delete(r.timers, serial)
	}

	return count
}

func (r *timerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
