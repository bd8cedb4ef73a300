package gpuframe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gpuframe/gpucore"
)

func TestParseWindowConfig(t *testing.T) {
	data := []byte(`
title = "viewer"
width = 800
height = 600
srgb = true
presentation_mode = "vsync"
samples = 4
presentable_images = 3
concurrent_frames = 2
`)
	cfg, err := ParseWindowConfig(data)
	if err != nil {
		t.Fatalf("ParseWindowConfig() error = %v", err)
	}
	if cfg.Title != "viewer" || cfg.Width != 800 || cfg.Height != 600 || cfg.SRGB == nil || !*cfg.SRGB {
		t.Errorf("cfg = %+v", cfg)
	}

	o := defaultWindowOptions()
	for _, opt := range cfg.Options() {
		opt(&o)
	}
	want := windowOptions{
		title:       "viewer",
		width:       800,
		height:      600,
		srgb:        true,
		mode:        VSync,
		samples:     4,
		presentable: 3,
		concurrent:  2,
	}
	if o.title != want.title || o.width != want.width || o.height != want.height || o.srgb != want.srgb ||
		o.mode != want.mode || o.samples != want.samples || o.presentable != want.presentable || o.concurrent != want.concurrent {
		t.Errorf("options = %+v, want %+v", o, want)
	}
}

func TestParseWindowConfigDefaults(t *testing.T) {
	cfg, err := ParseWindowConfig([]byte(`title = "only a title"`))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(cfg.Options()); got != 1 {
		t.Errorf("got %d options for a title-only config, want 1", got)
	}
	o := defaultWindowOptions()
	for _, opt := range cfg.Options() {
		opt(&o)
	}
	if o.srgb || o.mode != TripleBuffering || o.samples != 1 {
		t.Errorf("unset fields changed defaults: %+v", o)
	}
}

func TestParseWindowConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", `title = `},
		{"mode", `presentation_mode = "adaptive"`},
		{"samples", `samples = 3`},
		{"half size", `width = 640`},
		{"type", `width = "wide"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseWindowConfig([]byte(tt.data)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseWindowConfig(%q) error = %v, want ErrInvalidConfig", tt.data, err)
			}
		})
	}
}

func TestLoadWindowConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "window.toml")
	if err := os.WriteFile(path, []byte("concurrent_frames = 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadWindowConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ConcurrentFrames != 2 {
		t.Errorf("ConcurrentFrames = %d", cfg.ConcurrentFrames)
	}

	if _, err := LoadWindowConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadWindowConfig() of a missing file should fail")
	}
}

func TestWindowConfigOpensWindow(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	cfg, err := ParseWindowConfig([]byte("width = 320\nheight = 200\npresentation_mode = \"immediate\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	w := openWindow(t, ctx, cfg.Options()...)
	r := w.Resolved()
	if r.Extent.Width != 320 || r.Extent.Height != 200 {
		t.Errorf("extent = %+v", r.Extent)
	}
	if r.PresentMode != gpucore.PresentModeImmediate {
		t.Errorf("present mode = %s", r.PresentMode)
	}
}
