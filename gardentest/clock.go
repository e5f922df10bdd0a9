package gardentest

import (
	"sort"
	"sync"
	"time"

	"github.com/DuTi2201/gardenR4-sub001/presence"
)

type fakeTimer struct {
	clock    *Clock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Clock is a manual presence.Clock. Timers only fire inside Advance, each one
// with Now set to its own deadline, and never while the clock lock is held.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) presence.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending counts the timers that have neither fired nor been stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			count++
		}
	}
	return count
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.deadline
		c.mu.Unlock()

		next.f()
	}
}

func (c *Clock) nextDue(target time.Time) *fakeTimer {
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}
