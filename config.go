package gpuframe

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// WindowConfig is the file form of a window's requested configuration.
//
// Example file:
//
//	title = "viewer"
//	width = 1920
//	height = 1080
//	srgb = true
//	presentation_mode = "triple_buffering"
//	samples = 4
//	concurrent_frames = 3
//
// Zero counts keep the surface-derived defaults.
type WindowConfig struct {
	Title             string `toml:"title"`
	Width             uint32 `toml:"width"`
	Height            uint32 `toml:"height"`
	SRGB              *bool  `toml:"srgb"`
	PresentationMode  string `toml:"presentation_mode"`
	Samples           uint32 `toml:"samples"`
	PresentableImages uint32 `toml:"presentable_images"`
	ConcurrentFrames  uint32 `toml:"concurrent_frames"`
}

// ParseWindowConfig parses a TOML window configuration and validates its
// presentation mode and sample count.
func ParseWindowConfig(data []byte) (WindowConfig, error) {
	var cfg WindowConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return WindowConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.PresentationMode != "" {
		if _, err := ParsePresentationMode(cfg.PresentationMode); err != nil {
			return WindowConfig{}, err
		}
	}
	switch cfg.Samples {
	case 0, 1, 2, 4, 8, 16, 32, 64:
	default:
		return WindowConfig{}, fmt.Errorf("%w: samples = %d", ErrInvalidConfig, cfg.Samples)
	}
	if (cfg.Width == 0) != (cfg.Height == 0) {
		return WindowConfig{}, fmt.Errorf("%w: width and height must be set together", ErrInvalidConfig)
	}
	return cfg, nil
}

// LoadWindowConfig reads and parses a TOML window configuration file.
func LoadWindowConfig(path string) (WindowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WindowConfig{}, fmt.Errorf("gpuframe: read window config: %w", err)
	}
	cfg, err := ParseWindowConfig(data)
	if err != nil {
		return WindowConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Options converts the configuration into window options. Unset fields
// produce no option. The configuration must have been validated by
// ParseWindowConfig.
func (c WindowConfig) Options() []WindowOption {
	var opts []WindowOption
	if c.Title != "" {
		opts = append(opts, WithTitle(c.Title))
	}
	if c.Width != 0 {
		opts = append(opts, WithSize(c.Width, c.Height))
	}
	if c.SRGB != nil {
		opts = append(opts, WithSRGBFramebuffer(*c.SRGB))
	}
	if c.PresentationMode != "" {
		if m, err := ParsePresentationMode(c.PresentationMode); err == nil {
			opts = append(opts, WithPresentationMode(m))
		}
	}
	if c.Samples != 0 {
		opts = append(opts, WithSamples(c.Samples))
	}
	if c.PresentableImages != 0 {
		opts = append(opts, WithPresentableImages(c.PresentableImages))
	}
	if c.ConcurrentFrames != 0 {
		opts = append(opts, WithConcurrentFrames(c.ConcurrentFrames))
	}
	return opts
}
