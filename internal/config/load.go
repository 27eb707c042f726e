package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a loaded config fails validation.
var ErrInvalid = errors.New("invalid config")

// fileName is the config file looked up in each search directory.
const fileName = "config.yaml"

// Load builds the effective config: defaults, then the first config file
// found, then flags.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that YAML decoding cannot express.
func (c *Config) Validate() error {
	switch {
	case c.Tracker.PollInterval <= 0:
		return fmt.Errorf("%w: tracker.poll_interval must be positive", ErrInvalid)
	case c.Tracker.GraceWindow < 0:
		return fmt.Errorf("%w: tracker.grace_window must not be negative", ErrInvalid)
	case len(c.Product.Parts) > 0 && c.Product.DefaultPart != "" && !slices.Contains(c.Product.Parts, c.Product.DefaultPart):
		return fmt.Errorf("%w: product.default_part %q is not a listed part", ErrInvalid, c.Product.DefaultPart)
	case c.Capture.Format != "png" && c.Capture.Format != "webp":
		return fmt.Errorf("%w: capture.format %q (want png or webp)", ErrInvalid, c.Capture.Format)
	case c.Decals.FontSize <= 0:
		return fmt.Errorf("%w: decals.font_size must be positive", ErrInvalid)
	case c.Audio.Volume < 0 || c.Audio.Volume > 1:
		return fmt.Errorf("%w: audio.volume %v (want 0..1)", ErrInvalid, c.Audio.Volume)
	case c.Logging.Format != "" && c.Logging.Format != "console" && c.Logging.Format != "json":
		return fmt.Errorf("%w: logging.format %q (want console or json)", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// searchPaths lists where Load looks when no -config flag is given.
func searchPaths() []string {
	return []string{
		filepath.Join(".", fileName),
		filepath.Join(ConfigDir(), fileName),
	}
}

func findConfigFile() string {
	for _, path := range searchPaths() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user config directory.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Decalforge")
	case "windows":
		if dir := os.Getenv("APPDATA"); dir != "" {
			return filepath.Join(dir, "Decalforge")
		}
		return filepath.Join(home, "AppData", "Roaming", "Decalforge")
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "decalforge")
	}
	return filepath.Join(home, ".config", "decalforge")
}

// loadFromFile merges a YAML file over cfg. Unknown keys are an error.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
