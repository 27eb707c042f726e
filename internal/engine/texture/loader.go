package texture

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxSize bounds decal colour maps on either side.
const DefaultMaxSize = 1024

// maxDownload caps remote image bodies.
const maxDownload = 32 << 20

var ErrCancelled = errors.New("image load cancelled")

// Pending is an in-flight image load. Poll never blocks.
type Pending struct {
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	img    *image.RGBA
	err    error
}

// URL returns the source being loaded.
func (p *Pending) URL() string {
	return p.url
}

// Poll reports the result once the load has finished.
func (p *Pending) Poll() (img *image.RGBA, err error, done bool) {
	select {
	case <-p.done:
		return p.img, p.err, true
	default:
		return nil, nil, false
	}
}

// Wait blocks until the load finishes or ctx ends. Intended for tools and tests.
func (p *Pending) Wait(ctx context.Context) (*image.RGBA, error) {
	select {
	case <-p.done:
		return p.img, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel abandons the load. A finished load is unaffected.
func (p *Pending) Cancel() {
	p.cancel()
}

// Resolved returns an already finished load, e.g. for images decoded
// elsewhere.
func Resolved(src string, img *image.RGBA, err error) *Pending {
	p := &Pending{url: src, cancel: func() {}, done: make(chan struct{}), img: img, err: err}
	close(p.done)
	return p
}

// Loader fetches and decodes images on background goroutines and caches
// finished results by URL.
type Loader struct {
	client  *http.Client
	maxSize int
	baseDir string
	log     *zap.Logger

	mu    sync.Mutex
	cache map[string]*image.RGBA
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	MaxSize int
	// BaseDir resolves relative paths, e.g. the upload directory.
	BaseDir string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewLoader creates a loader.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		client:  &http.Client{Timeout: cfg.Timeout},
		maxSize: cfg.MaxSize,
		baseDir: cfg.BaseDir,
		log:     log,
		cache:   make(map[string]*image.RGBA),
	}
}

// Load starts loading src, which may be a data: URL, an http(s) URL, a
// file: URL or a filesystem path.
func (l *Loader) Load(src string) *Pending {
	l.mu.Lock()
	cached, ok := l.cache[src]
	l.mu.Unlock()
	if ok {
		return Resolved(src, cached, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pending{url: src, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		defer cancel()

		img, err := l.fetch(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				err = ErrCancelled
			}
			p.err = err
			l.log.Debug("image load failed", zap.String("url", abbreviate(src)), zap.Error(err))
			return
		}

		l.mu.Lock()
		l.cache[src] = img
		l.mu.Unlock()
		p.img = img
		l.log.Debug("image loaded", zap.String("url", abbreviate(src)), zap.Int("width", img.Rect.Dx()), zap.Int("height", img.Rect.Dy()))
	}()
	return p
}

// Forget drops a cached image, e.g. after the file behind it was replaced.
func (l *Loader) Forget(src string) {
	l.mu.Lock()
	delete(l.cache, src)
	l.mu.Unlock()
}

func (l *Loader) fetch(ctx context.Context, src string) (*image.RGBA, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(data, src)
	if err != nil {
		return nil, err
	}
	return ToRGBA(Fit(img, l.maxSize)), nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return decodeDataURL(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.download(ctx, src)
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", src, err)
		}
		return os.ReadFile(u.Path)
	default:
		return os.ReadFile(l.resolve(src))
	}
}

func (l *Loader) resolve(p string) string {
	if l.baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.baseDir, p)
}

func (l *Loader) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", src, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownload))
}

// decodeDataURL accepts data:[<mime>][;base64],<payload>.
func decodeDataURL(src string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	if strings.HasSuffix(header, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(unescaped), nil
}

func abbreviate(s string) string {
	if len(s) > 64 {
		return s[:61] + "..."
	}
	return s
}
