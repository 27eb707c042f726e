// Package timer schedules callbacks on the render loop. Timers never fire on
// their own goroutine; the loop calls Advance once per frame and due
// callbacks run inline.
package timer

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// Scheduler holds one-shot and repeating timers.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers map[uint64]*entry
}

type entry struct {
	id       uint64
	due      time.Time
	interval time.Duration // zero for one-shot
	fn       func()
}

// NewScheduler creates a scheduler whose clock starts at now.
func NewScheduler(now time.Time) *Scheduler {
	return &Scheduler{now: now, timers: make(map[uint64]*entry)}
}

// Now returns the time of the last Advance.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// After runs fn once, d after the current scheduler time.
func (s *Scheduler) After(d time.Duration, fn func()) (cancel func()) {
	return s.add(d, 0, fn)
}

// Every runs fn each interval until cancelled. interval must be positive.
func (s *Scheduler) Every(interval time.Duration, fn func()) (cancel func()) {
	if interval <= 0 {
		panic("timer: non-positive interval")
	}
	return s.add(interval, interval, fn)
}

func (s *Scheduler) add(d, interval time.Duration, fn func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.timers[id] = &entry{id: id, due: s.now.Add(d), interval: interval, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
	}
}

// Pending returns the number of live timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Advance moves the clock to now and runs every due callback in due order.
// A repeating timer fires at most once per Advance. Callbacks may add or
// cancel timers; timers added during Advance first fire on a later call.
func (s *Scheduler) Advance(now time.Time) {
	s.mu.Lock()
	if now.After(s.now) {
		s.now = now
	}
	var due []*entry
	for _, e := range s.timers {
		if !e.due.After(s.now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	sortByDue(due)

	for _, e := range due {
		s.mu.Lock()
		_, live := s.timers[e.id]
		if live {
			if e.interval > 0 {
				e.due = s.now.Add(e.interval)
			} else {
				delete(s.timers, e.id)
			}
		}
		s.mu.Unlock()

		if live {
			e.fn()
		}
	}
}

func sortByDue(entries []*entry) {
	slices.SortFunc(entries, func(a, b *entry) int {
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
}
