// Package assets loads product models and watches them for changes.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/engine/scene"
)

// Manager resolves model paths against a base directory and caches parsed
// documents until the file on disk changes.
type Manager struct {
	baseDir string
	scale   float32
	cache   *Cache
	log     *zap.Logger
}

// NewManager creates a manager. scale is applied to every loaded model root;
// zero means 1.
func NewManager(baseDir string, scale float32, log *zap.Logger) *Manager {
	if scale == 0 {
		scale = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{baseDir: baseDir, scale: scale, cache: NewCache(), log: log}
}

// Resolve maps a model path to a filesystem path.
func (m *Manager) Resolve(path string) string {
	if filepath.IsAbs(path) || m.baseDir == "" {
		return path
	}
	return filepath.Join(m.baseDir, path)
}

// Load reads the model at path and builds its scene graph.
func (m *Manager) Load(path string) (*scene.Graph, error) {
	full := m.Resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("opening model %s: %w", path, err)
	}

	doc, ok := m.cache.Get(full, info.ModTime())
	if !ok {
		start := time.Now()
		doc, err = gltf.Open(full)
		if err != nil {
			return nil, fmt.Errorf("parsing model %s: %w", path, err)
		}
		m.cache.Set(full, info.ModTime(), doc)
		m.log.Debug("model parsed",
			zap.String("path", full),
			zap.Int("nodes", len(doc.Nodes)),
			zap.Int("meshes", len(doc.Meshes)),
			zap.Duration("took", time.Since(start)))
	}

	g, err := Build(doc, filepath.Base(full))
	if err != nil {
		return nil, fmt.Errorf("building model %s: %w", path, err)
	}
	if m.scale != 1 {
		g.Root().Scale = g.Root().Scale.Mul(m.scale)
	}
	m.log.Info("model loaded", zap.String("path", full), zap.Int("drawables", len(g.Drawables())))
	return g, nil
}

// Result is the outcome of an asynchronous load.
type Result struct {
	Path  string
	Graph *scene.Graph
	Err   error
}

// LoadAsync loads path on a background goroutine and delivers exactly one
// result on the returned channel.
func (m *Manager) LoadAsync(path string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		g, err := m.Load(path)
		out <- Result{Path: path, Graph: g, Err: err}
	}()
	return out
}

// Close drops cached documents.
func (m *Manager) Close() {
	m.cache.Clear()
}

type cacheEntry struct {
	modTime time.Time
	doc     *gltf.Document
}

// Cache holds parsed documents keyed by path and modification time.
type Cache struct {
	data map[string]cacheEntry
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]cacheEntry),
	}
}

// Get returns the document for path if it was cached for the same modTime.
func (c *Cache) Get(path string, modTime time.Time) (*gltf.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[path]
	if ok && e.modTime.Equal(modTime) {
		c.hits++
		return e.doc, true
	}
	c.misses++
	return nil, false
}

// Set stores a document.
func (c *Cache) Set(path string, modTime time.Time, doc *gltf.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[path] = cacheEntry{modTime: modTime, doc: doc}
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
