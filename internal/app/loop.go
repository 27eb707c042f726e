package app

import (
	"context"
	"sync"

	"github.com/Faultbox/decalforge/internal/api"
)

type funcRun struct {
	fn   func() error
	done chan error // nil for fire-and-forget posts
}

// Loop queues work for the goroutine that owns the scene. Other goroutines
// (API handlers, the model watcher) hand closures to it; the owner runs them
// between frames with Drain.
type Loop struct {
	queue chan funcRun
	quit  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop with room for size queued closures.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{queue: make(chan funcRun, size), quit: make(chan struct{})}
}

// Do queues fn and waits until the owner ran it or ctx ends.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := l.enqueue(ctx, funcRun{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return api.ErrLoopClosed
	}
}

// Post queues fn without waiting for it.
func (l *Loop) Post(fn func()) error {
	return l.enqueue(context.Background(), funcRun{fn: func() error { fn(); return nil }})
}

func (l *Loop) enqueue(ctx context.Context, r funcRun) error {
	select {
	case <-l.quit:
		return api.ErrLoopClosed
	default:
	}
	select {
	case l.queue <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return api.ErrLoopClosed
	}
}

// Drain runs every queued closure and returns how many ran. Must be called
// from the owning goroutine.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case r := <-l.queue:
			err := r.fn()
			if r.done != nil {
				r.done <- err
			}
			n++
		default:
			return n
		}
	}
}

// Close rejects further work and fails whatever is still queued.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	for {
		select {
		case r := <-l.queue:
			if r.done != nil {
				r.done <- api.ErrLoopClosed
			}
		default:
			return
		}
	}
}
