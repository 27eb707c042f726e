package texture

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ftrvxmtrx/tga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// tgaBytes builds an uncompressed 2x1 32-bit TGA.
func tgaBytes() []byte {
	header := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 1, 0, 32, 0x28}
	pixels := []byte{
		0, 0, 255, 255, // red (BGRA)
		255, 0, 0, 255, // blue
	}
	return append(header, pixels...)
}

func TestDecodePNG(t *testing.T) {
	img, format, err := Decode(pngBytes(t, 4, 3), "logo.png")
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
}

func TestDecodeTGAByName(t *testing.T) {
	img, format, err := Decode(tgaBytes(), "logo.tga")
	require.NoError(t, err)
	assert.Equal(t, "tga", format)
	assert.Equal(t, 2, img.Bounds().Dx())

	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode(nil, "x.png")
	assert.ErrorIs(t, err, ErrEmpty)

	_, _, err = Decode([]byte("plain text, not an image"), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupported)

	broken := pngBytes(t, 2, 2)[:20]
	_, _, err = Decode(broken, "broken.png")
	assert.Error(t, err)
}

func TestDecodeFormats(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 5, 2))
	encode := func(enc func(*bytes.Buffer) error) []byte {
		var buf bytes.Buffer
		require.NoError(t, enc(&buf))
		return buf.Bytes()
	}

	tests := []struct {
		name   string
		file   string
		data   []byte
		format string
	}{
		{"jpeg", "photo.jpg", encode(func(b *bytes.Buffer) error { return jpeg.Encode(b, src, nil) }), "jpg"},
		{"gif", "anim.gif", encode(func(b *bytes.Buffer) error { return gif.Encode(b, src, nil) }), "gif"},
		{"bmp", "icon.bmp", encode(func(b *bytes.Buffer) error { return bmp.Encode(b, src) }), "bmp"},
		{"tga", "sprite.tga", encode(func(b *bytes.Buffer) error { return tga.Encode(b, src) }), "tga"},
		{"png under wrong name", "logo.tga", pngBytes(t, 5, 2), "png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := Decode(tt.data, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, image.Rect(0, 0, 5, 2), img.Bounds())
		})
	}
}

// resizedPNG rewrites the IHDR dimensions of a valid PNG and fixes the CRC.
func resizedPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := pngBytes(t, 1, 1)
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// tgaHeader is a 32-bit truecolor header padded to the footer size.
func tgaHeader(w, h uint16) []byte {
	data := make([]byte, 26)
	data[2] = 2
	binary.LittleEndian.PutUint16(data[12:14], w)
	binary.LittleEndian.PutUint16(data[14:16], h)
	data[16] = 32
	data[17] = 0x28
	return data
}

func TestDecodeRejectsOversizedHeaders(t *testing.T) {
	_, format, err := Decode(resizedPNG(t, 100000, 100000), "bomb.png")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "png", format)

	_, _, err = Decode(resizedPNG(t, MaxPixels, 2), "strip.png")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, format, err = Decode(tgaHeader(65535, 65535), "bomb.tga")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "tga", format)

	_, _, err = Decode(tgaHeader(65535, 65535), "unnamed")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Decode(tgaHeader(0, 4), "empty.tga")
	assert.ErrorIs(t, err, ErrBadSize)
}

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		w, h, limit  int
		wantW, wantH int
	}{
		{"within bounds", 100, 50, 128, 100, 50},
		{"wide", 400, 100, 100, 100, 25},
		{"tall", 100, 400, 100, 25, 100},
		{"unbounded", 400, 100, 0, 400, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := Fit(img, tt.limit).Bounds()
			assert.Equal(t, tt.wantW, got.Dx())
			assert.Equal(t, tt.wantH, got.Dy())
		})
	}
}

func TestToRGBANormalisesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 9, 7))
	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 4, 2), out.Bounds())

	zero := image.NewRGBA(image.Rect(0, 0, 2, 2))
	assert.Same(t, zero, ToRGBA(zero))
}

func waitLoad(t *testing.T, p *Pending) (*image.RGBA, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestLoaderSources(t *testing.T) {
	data := pngBytes(t, 8, 8)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.png"), data, 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logo.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(LoaderConfig{BaseDir: dir, MaxSize: 4})

	sources := []string{
		"logo.png",
		filepath.Join(dir, "logo.png"),
		"file://" + filepath.Join(dir, "logo.png"),
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		srv.URL + "/logo.png",
	}
	for _, src := range sources {
		img, err := waitLoad(t, l.Load(src))
		require.NoError(t, err, src)
		assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds(), src)
	}

	_, err := waitLoad(t, l.Load(srv.URL+"/missing.png"))
	assert.Error(t, err)
}

func TestPollIsNonBlockingAndCached(t *testing.T) {
	release := make(chan struct{})
	data := pngBytes(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(LoaderConfig{})
	p := l.Load(srv.URL)

	_, _, done := p.Poll()
	assert.False(t, done)

	close(release)
	img, err := waitLoad(t, p)
	require.NoError(t, err)

	again := l.Load(srv.URL)
	cached, err, done := again.Poll()
	require.True(t, done)
	require.NoError(t, err)
	assert.Same(t, img, cached)

	l.Forget(srv.URL)
	l.mu.Lock()
	_, ok := l.cache[srv.URL]
	l.mu.Unlock()
	assert.False(t, ok)
}

func TestCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewLoader(LoaderConfig{}).Load(srv.URL)
	p.Cancel()
	_, err := waitLoad(t, p)
	assert.ErrorIs(t, err, ErrCancelled)
}
