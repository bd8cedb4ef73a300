package swapchain

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/gpuframe/gpucore"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestDefaultImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max uint32
		want     uint32
	}{
		{"clamped to max", 2, 3, 3},
		{"max equals min", 2, 2, 2},
		{"unlimited", 2, 0, 3},
		{"unlimited large min", 5, 0, 6},
		{"room below max", 1, 8, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultImageCount(gpucore.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max})
			if got != tt.want {
				t.Errorf("DefaultImageCount(min=%d,max=%d) = %d, want %d", tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestSelectPresentMode_Fallback(t *testing.T) {
	logger, buf := bufferLogger()
	available := []gpucore.PresentMode{gpucore.PresentModeFifo, gpucore.PresentModeImmediate}

	got, err := SelectPresentMode(gpucore.PresentModeMailbox, available, logger)
	if err != nil {
		t.Fatalf("SelectPresentMode() error = %v, want nil", err)
	}
	if got != gpucore.PresentModeFifo {
		t.Errorf("SelectPresentMode() = %v, want Fifo", got)
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected a warning, log = %q", buf.String())
	}
}

func TestSelectPresentMode_ExactMatch(t *testing.T) {
	logger, buf := bufferLogger()
	available := []gpucore.PresentMode{gpucore.PresentModeFifo, gpucore.PresentModeMailbox}

	got, err := SelectPresentMode(gpucore.PresentModeMailbox, available, logger)
	if err != nil || got != gpucore.PresentModeMailbox {
		t.Errorf("SelectPresentMode() = %v, %v, want Mailbox, nil", got, err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output %q", buf.String())
	}
}

func TestSelectPresentMode_Empty(t *testing.T) {
	if _, err := SelectPresentMode(gpucore.PresentModeFifo, nil, nil); !errors.Is(err, ErrNoPresentModes) {
		t.Errorf("err = %v, want ErrNoPresentModes", err)
	}
}

func TestSelectSurfaceFormat(t *testing.T) {
	unorm := gpucore.SurfaceFormat{Format: gpucore.TextureFormatRGBA8Unorm}
	srgb := gpucore.SurfaceFormat{Format: gpucore.TextureFormatBGRA8UnormSRGB}
	undefined := gpucore.SurfaceFormat{Format: gpucore.TextureFormatUndefined}

	tests := []struct {
		name    string
		srgb    bool
		formats []gpucore.SurfaceFormat
		want    gpucore.SurfaceFormat
	}{
		{"srgb match", true, []gpucore.SurfaceFormat{unorm, srgb}, srgb},
		{"linear match", false, []gpucore.SurfaceFormat{srgb, unorm}, unorm},
		{"no srgb match uses default", true, []gpucore.SurfaceFormat{unorm}, DefaultSurfaceFormat},
		{"no linear match uses default", false, []gpucore.SurfaceFormat{{Format: gpucore.TextureFormatRGBA8UnormSRGB}}, DefaultSurfaceFormat},
		{"none reported", true, nil, DefaultSurfaceFormat},
		{"undefined only", true, []gpucore.SurfaceFormat{undefined}, DefaultSurfaceFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectSurfaceFormat(tt.srgb, tt.formats, nil); got != tt.want {
				t.Errorf("SelectSurfaceFormat() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveSamples(t *testing.T) {
	for _, n := range []uint32{1, 2, 4, 8, 16, 32, 64} {
		if got, err := ResolveSamples(n); err != nil || got != n {
			t.Errorf("ResolveSamples(%d) = %d, %v", n, got, err)
		}
	}
	if got, _ := ResolveSamples(0); got != 1 {
		t.Errorf("ResolveSamples(0) = %d, want 1", got)
	}
	for _, n := range []uint32{3, 5, 128} {
		if _, err := ResolveSamples(n); !errors.Is(err, ErrInvalidSampleCount) {
			t.Errorf("ResolveSamples(%d) err = %v, want ErrInvalidSampleCount", n, err)
		}
	}
}

func surfaceInfo() SurfaceInfo {
	return SurfaceInfo{
		Capabilities: gpucore.SurfaceCapabilities{
			MinImageCount: 2,
			MaxImageCount: 3,
			CurrentExtent: gpucore.Extent2D{Width: 640, Height: 480},
		},
		Formats:      []gpucore.SurfaceFormat{{Format: gpucore.TextureFormatBGRA8UnormSRGB}},
		PresentModes: []gpucore.PresentMode{gpucore.PresentModeFifo, gpucore.PresentModeMailbox},
	}
}

func TestResolve_Defaults(t *testing.T) {
	r, err := Resolve(Request{SRGB: true, PresentMode: gpucore.PresentModeMailbox}, surfaceInfo(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.PresentableImages != 3 {
		t.Errorf("PresentableImages = %d, want 3", r.PresentableImages)
	}
	if r.ConcurrentFrames != r.PresentableImages {
		t.Errorf("ConcurrentFrames = %d, want presentable count %d", r.ConcurrentFrames, r.PresentableImages)
	}
	if r.Samples != 1 || r.Multisample.SampleShading {
		t.Errorf("Multisample = %+v, want 1 sample without shading", r.Multisample)
	}
	if r.Multisample.MinSampleShading != 1 {
		t.Errorf("MinSampleShading = %v, want 1", r.Multisample.MinSampleShading)
	}
	if r.Extent.Width != 640 || r.Extent.Height != 480 {
		t.Errorf("Extent = %+v", r.Extent)
	}
}

func TestResolve_Overrides(t *testing.T) {
	atts := []gpucore.Attachment{{Label: "depth", Format: gpucore.TextureFormatDepth24PlusStencil8}}
	req := Request{
		PresentMode:       gpucore.PresentModeFifo,
		Samples:           4,
		PresentableImages: 2,
		ConcurrentFrames:  1,
		Attachments:       atts,
	}
	r, err := Resolve(req, surfaceInfo(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.PresentableImages != 2 || r.ConcurrentFrames != 1 {
		t.Errorf("counts = %d/%d, want 2/1", r.PresentableImages, r.ConcurrentFrames)
	}
	if !r.Multisample.SampleShading || r.Samples != 4 {
		t.Errorf("Multisample = %+v, want 4 samples with shading", r.Multisample)
	}
	atts[0].Label = "mutated"
	if r.Attachments[0].Label != "depth" {
		t.Error("Resolved attachments must not alias the request")
	}
}

func TestResolve_InvalidSamples(t *testing.T) {
	if _, err := Resolve(Request{Samples: 3}, surfaceInfo(), nil); !errors.Is(err, ErrInvalidSampleCount) {
		t.Errorf("err = %v, want ErrInvalidSampleCount", err)
	}
}
