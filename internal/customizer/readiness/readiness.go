// Package readiness resolves a decal's stored mesh reference to a live,
// geometry-ready drawable, polling on the render loop while the model is
// still loading.
package readiness

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/engine/scene"
)

// DefaultPollInterval is used when a tracker is built with a zero interval.
const DefaultPollInterval = 50 * time.Millisecond

// Key identifies a target drawable. ID is the stable per-instance identity
// and always wins over Name, which may collide after a reload.
type Key struct {
	ID   string
	Name string
}

// Empty reports whether the key carries no reference at all.
func (k Key) Empty() bool {
	return k.ID == "" && k.Name == ""
}

// Source is the live scene queried on every attempt.
type Source interface {
	FindByID(id string) *scene.Node
	FindByName(name string) *scene.Node
	Contains(n *scene.Node) bool
}

// Scheduler runs repeating callbacks on the render loop.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// Via records which lookup produced a resolution.
type Via int

const (
	ViaNone Via = iota
	ViaID
	ViaName
	ViaSnapshot
)

func (v Via) String() string {
	switch v {
	case ViaID:
		return "id"
	case ViaName:
		return "name"
	case ViaSnapshot:
		return "snapshot"
	default:
		return "none"
	}
}

// Ready reports whether n is a drawable with usable geometry.
func Ready(n *scene.Node) bool {
	return n != nil && n.Kind == scene.KindDrawable && n.Geometry.Ready()
}

// Tracker resolves keys against a live scene and a load-time snapshot.
type Tracker struct {
	source   Source
	sched    Scheduler
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	nextID  int
	pending map[int]func()
}

// New creates a tracker. A nil logger discards diagnostics.
func New(source Source, sched Scheduler, interval time.Duration, log *zap.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		source:   source,
		sched:    sched,
		interval: interval,
		log:      log,
		pending:  make(map[int]func()),
	}
}

// SetSource swaps the live scene, e.g. after a model reload. Pending polls
// use the new source from their next attempt.
func (t *Tracker) SetSource(source Source) {
	t.mu.Lock()
	t.source = source
	t.mu.Unlock()
}

func (t *Tracker) currentSource() Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.source
}

// Lookup tries the stable id against the live scene, then the name against
// the live scene, then the snapshot. Only geometry-ready drawables count,
// and a snapshot entry must still be attached to the live scene.
func (t *Tracker) Lookup(key Key, snap scene.Snapshot) (*scene.Node, Via) {
	src := t.currentSource()
	if src == nil {
		return nil, ViaNone
	}
	if key.ID != "" {
		if n := src.FindByID(key.ID); Ready(n) {
			return n, ViaID
		}
	}
	if key.Name != "" {
		if n := src.FindByName(key.Name); Ready(n) {
			return n, ViaName
		}
	}
	if n := snapshotEntry(key, snap); Ready(n) && src.Contains(n) {
		return n, ViaSnapshot
	}
	return nil, ViaNone
}

func snapshotEntry(key Key, snap scene.Snapshot) *scene.Node {
	if snap == nil {
		return nil
	}
	if key.Name != "" {
		if n := snap[key.Name]; n != nil {
			return n
		}
	}
	if key.ID != "" {
		return snap[key.ID]
	}
	return nil
}

// Resolve performs one lookup and reports a live/snapshot identity
// disagreement. The live result is always the one returned.
func (t *Tracker) Resolve(key Key, snap scene.Snapshot) *scene.Node {
	n, via := t.Lookup(key, snap)
	if n == nil {
		return nil
	}
	if via == ViaID || via == ViaName {
		if other := snapshotEntry(key, snap); other != nil && other != n {
			t.log.Debug("live drawable differs from snapshot entry",
				zap.String("name", key.Name),
				zap.String("id", key.ID),
				zap.String("live", n.ID),
				zap.String("snapshot", other.ID))
		}
	}
	return n
}

// Await calls onReady once key resolves. A key that resolves immediately
// triggers onReady before Await returns. Otherwise the tracker polls on
// the scheduler until success or until cancel is called; there is no
// retry ceiling.
func (t *Tracker) Await(key Key, snap scene.Snapshot, onReady func(*scene.Node)) (cancel func()) {
	if n := t.Resolve(key, snap); n != nil {
		onReady(n)
		return func() {}
	}

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.mu.Unlock()

	var once sync.Once
	var stop func()
	cancel = func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.pending, id)
			t.mu.Unlock()
			if stop != nil {
				stop()
			}
		})
	}

	attempts := 0
	stop = t.sched.Every(t.interval, func() {
		attempts++
		n := t.Resolve(key, snap)
		if n == nil {
			return
		}
		t.log.Debug("target drawable ready",
			zap.String("name", n.Name),
			zap.String("id", n.ID),
			zap.Int("polls", attempts))
		cancel()
		onReady(n)
	})

	t.mu.Lock()
	t.pending[id] = cancel
	t.mu.Unlock()
	return cancel
}

// Pending returns the number of outstanding polls.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close cancels every outstanding poll.
func (t *Tracker) Close() {
	t.mu.Lock()
	cancels := make([]func(), 0, len(t.pending))
	for _, c := range t.pending {
		cancels = append(cancels, c)
	}
	t.mu.Unlock()

	for _, c := range cancels {
		c()
	}
}
