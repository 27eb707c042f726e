// Package audio plays short interface cues in the viewer: a click when a
// decal lands, a shutter on capture. Cues are synthesized unless a WAV
// file overrides them.
package audio

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"
)

// DefaultSampleRate is the playback rate.
const DefaultSampleRate = beep.SampleRate(44100)

// Cue names an interface sound.
type Cue int

const (
	CuePlace Cue = iota
	CueDelete
	CueCapture
	CueError
	cueCount
)

var cueNames = [cueCount]string{"place", "delete", "capture", "error"}

func (c Cue) String() string {
	if c >= 0 && c < cueCount {
		return cueNames[c]
	}
	return fmt.Sprintf("cue(%d)", int(c))
}

// ParseCue looks a cue up by name.
func ParseCue(name string) (Cue, bool) {
	for i, n := range cueNames {
		if n == name {
			return Cue(i), true
		}
	}
	return 0, false
}

// tone is one enveloped sine segment; freq glides to end over dur.
type tone struct {
	freq, end float64
	dur       time.Duration
}

var synth = [cueCount][]tone{
	CuePlace:   {{freq: 880, end: 1320, dur: 60 * time.Millisecond}},
	CueDelete:  {{freq: 660, end: 330, dur: 90 * time.Millisecond}},
	CueCapture: {{freq: 2200, end: 1800, dur: 25 * time.Millisecond}, {freq: 1400, end: 1200, dur: 45 * time.Millisecond}},
	CueError:   {{freq: 220, end: 220, dur: 70 * time.Millisecond}, {freq: 196, end: 196, dur: 110 * time.Millisecond}},
}

// Manager owns the speaker and the cue buffers. It is safe for concurrent
// use.
type Manager struct {
	mu          sync.Mutex
	log         *zap.Logger
	sampleRate  beep.SampleRate
	initialized bool
	volume      float64
	mixer       *beep.Mixer
	cues        [cueCount]*beep.Buffer
}

// New creates a muted manager with synthesized cues. Call Init to open the
// audio device.
func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:        log,
		sampleRate: DefaultSampleRate,
		volume:     0.6,
		mixer:      &beep.Mixer{},
	}
	for c := range cueCount {
		m.cues[c] = synthesize(m.sampleRate, synth[c])
	}
	return m
}

// synthesize renders tones into a stereo buffer.
func synthesize(sr beep.SampleRate, tones []tone) *beep.Buffer {
	buf := beep.NewBuffer(beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2})
	for _, t := range tones {
		n := sr.N(t.dur)
		i, phase := 0, 0.0
		buf.Append(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
			if i >= n {
				return 0, false
			}
			k := 0
			for ; k < len(samples) && i < n; k++ {
				p := float64(i) / float64(n)
				freq := t.freq + (t.end-t.freq)*p
				phase += 2 * math.Pi * freq / float64(sr)
				// Short attack, exponential release.
				env := math.Min(p*40, 1) * math.Exp(-5*p)
				v := 0.4 * env * math.Sin(phase)
				samples[k] = [2]float64{v, v}
				i++
			}
			return k, true
		}))
	}
	return buf
}

// Init opens the audio device and starts the cue mixer.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if err := speaker.Init(m.sampleRate, m.sampleRate.N(time.Second/30)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(m.mixer)
	m.initialized = true
	m.log.Debug("audio ready", zap.Int("sample_rate", int(m.sampleRate)))
	return nil
}

// Load replaces a cue with the WAV file at path.
func (m *Manager) Load(c Cue, path string) error {
	if c < 0 || c >= cueCount {
		return fmt.Errorf("load %s: unknown cue", c)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", c, err)
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != m.sampleRate {
		s = beep.Resample(4, format.SampleRate, m.sampleRate, streamer)
	}
	buf := beep.NewBuffer(beep.Format{SampleRate: m.sampleRate, NumChannels: 2, Precision: 2})
	buf.Append(s)
	if err := streamer.Err(); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	m.mu.Lock()
	m.cues[c] = buf
	m.mu.Unlock()
	m.log.Debug("cue loaded", zap.Stringer("cue", c), zap.String("path", path), zap.Int("samples", buf.Len()))
	return nil
}

// Len returns the length of a cue in samples.
func (m *Manager) Len(c Cue) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c < 0 || c >= cueCount {
		return 0
	}
	return m.cues[c].Len()
}

// SetVolume sets the cue volume (0.0 to 1.0).
func (m *Manager) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clamp(v, 0, 1)
}

// Volume returns the cue volume.
func (m *Manager) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Play starts a cue. It reports false while the device is closed, muted or
// the cue is unknown.
func (m *Manager) Play(c Cue) bool {
	m.mu.Lock()
	if !m.initialized || m.volume <= 0 || c < 0 || c >= cueCount {
		m.mu.Unlock()
		return false
	}
	buf, vol := m.cues[c], m.volume
	m.mu.Unlock()

	s := &effects.Volume{
		Streamer: buf.Streamer(0, buf.Len()),
		Base:     2,
		Volume:   gainExponent(vol),
	}
	speaker.Lock()
	m.mixer.Add(s)
	speaker.Unlock()
	return true
}

// Close stops playback and releases the device.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return
	}
	speaker.Clear()
	speaker.Close()
	m.initialized = false
}

// gainExponent converts a linear gain to the base-2 exponent effects.Volume
// expects.
func gainExponent(v float64) float64 {
	if v <= 0 {
		return -10
	}
	return math.Log2(v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
