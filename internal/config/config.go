// Package config handles customizer configuration loading and management.
package config

import "time"

// Config holds all application settings.
type Config struct {
	Viewer  ViewerConfig  `yaml:"viewer"`
	Product ProductConfig `yaml:"product"`
	Decals  DecalConfig   `yaml:"decals"`
	Tracker TrackerConfig `yaml:"tracker"`
	Capture CaptureConfig `yaml:"capture"`
	Catalog CatalogConfig `yaml:"catalog"`
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Logging LoggingConfig `yaml:"logging"`
}

// ViewerConfig holds window and camera settings.
type ViewerConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	FPSLimit   int     `yaml:"fps_limit"`
	FOVDegrees float32 `yaml:"fov_degrees"`
	Headless   bool    `yaml:"headless"` // run the loop and API without a window
}

// ProductConfig describes the product model and its customizable parts.
type ProductConfig struct {
	ID          string   `yaml:"id"`
	ModelURL    string   `yaml:"model_url"`
	RootNode    string   `yaml:"root_node"` // placement rays only test this subtree
	ModelScale  float32  `yaml:"model_scale"`
	Parts       []string `yaml:"parts"`
	DefaultPart string   `yaml:"default_part"`
	WatchModel  bool     `yaml:"watch_model"`
}

// DecalConfig holds defaults for newly placed decals and the decal material.
type DecalConfig struct {
	DefaultContent     string  `yaml:"default_content"`
	FontFamily         string  `yaml:"font_family"`
	FontSize           float64 `yaml:"font_size"`
	Color              string  `yaml:"color"`
	Scale              float32 `yaml:"scale"`
	TextPadding        int     `yaml:"text_padding"`
	HighlightColor     string  `yaml:"highlight_color"`
	HighlightIntensity float32 `yaml:"highlight_intensity"`
	PolygonOffset      float32 `yaml:"polygon_offset"`
	MaxImageSize       int     `yaml:"max_image_size"`
}

// TrackerConfig holds mesh readiness polling settings.
type TrackerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	GraceWindow  time.Duration `yaml:"grace_window"`
	Placeholder  bool          `yaml:"placeholder"`
}

// CaptureConfig holds still-image export settings.
type CaptureConfig struct {
	OutputDir string `yaml:"output_dir"`
	Prefix    string `yaml:"prefix"`
	Format    string `yaml:"format"` // png or webp
}

// CatalogConfig points to the fabric catalog export.
type CatalogConfig struct {
	Path       string `yaml:"path"`
	MaxResults int    `yaml:"max_results"`
}

// ServerConfig holds the UI command API settings.
type ServerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// AudioConfig controls the viewer's interface cues.
type AudioConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"`
	// Cues maps a cue name (place, delete, capture, error) to a WAV file.
	Cues map[string]string `yaml:"cues"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // log_file layout: console or json
}

// DefaultParts is the part list of the bundled boxing shorts model.
var DefaultParts = []string{
	"BX_8_BRIT_CURVED_1_1",
	"BX_8_BRIT_CURVED_1_2",
	"BX_8_BRIT_CURVED_1_3",
	"BX_8_BRIT_CURVED_1_4",
	"BX_8_BRIT_CURVED_1_5",
	"BX_8_BRIT_CURVED_1_6",
	"BX_8_BRIT_CURVED_1_7",
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Viewer: ViewerConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
			FOVDegrees: 35,
		},
		Product: ProductConfig{
			ID:          "boxxer-v1",
			ModelURL:    "models/Boxing-shorts-copy.glb",
			RootNode:    "Boxing-shorts-copy.glb",
			ModelScale:  0.2,
			Parts:       append([]string(nil), DefaultParts...),
			DefaultPart: DefaultParts[0],
		},
		Decals: DecalConfig{
			DefaultContent:     "NEW TEXT",
			FontFamily:         "Inter",
			FontSize:           128,
			Color:              "#ffffff",
			Scale:              0.8,
			TextPadding:        20,
			HighlightColor:     "#3b82f6",
			HighlightIntensity: 0.5,
			PolygonOffset:      -10,
			MaxImageSize:       1024,
		},
		Tracker: TrackerConfig{
			PollInterval: 50 * time.Millisecond,
			GraceWindow:  50 * time.Millisecond,
			Placeholder:  false,
		},
		Capture: CaptureConfig{
			OutputDir: ".",
			Prefix:    "custom-product",
			Format:    "png",
		},
		Catalog: CatalogConfig{
			Path:       "",
			MaxResults: 16,
		},
		Server: ServerConfig{
			Enabled:        true,
			Addr:           "127.0.0.1:8765",
			UploadDir:      "uploads",
			MaxUploadBytes: 10 << 20,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  0.6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
