// Package swapchain resolves a window's requested presentation settings
// against what a surface supports.
//
// Resolution runs once per swapchain build and yields an immutable
// [Resolved] value; nothing is filled in lazily on read.
package swapchain

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gpuframe/gpucore"
)

var (
	// ErrNoPresentModes is returned when a surface reports no present modes.
	ErrNoPresentModes = errors.New("swapchain: surface reports no present modes")

	// ErrInvalidSampleCount is returned for sample counts that are not a
	// power of two between 1 and 64.
	ErrInvalidSampleCount = errors.New("swapchain: invalid sample count")

	// ErrInvalidFrameCount is returned when the resolved number of
	// concurrent frames or presentable images is zero.
	ErrInvalidFrameCount = errors.New("swapchain: frame count must be at least 1")
)

// DefaultSurfaceFormat is used when a surface reports no formats, a single
// Undefined format meaning any format is accepted, or no format with the
// requested sRGB-ness.
var DefaultSurfaceFormat = gpucore.SurfaceFormat{
	Format:     gpucore.TextureFormatBGRA8Unorm,
	ColorSpace: gpucore.ColorSpaceSRGBNonlinear,
}

// Request holds the settings a window asks for. Zero counts mean "derive
// from the surface".
type Request struct {
	SRGB              bool
	PresentMode       gpucore.PresentMode
	Samples           uint32
	PresentableImages uint32
	ConcurrentFrames  uint32
	Attachments       []gpucore.Attachment
}

// SurfaceInfo is what the surface reports about itself.
type SurfaceInfo struct {
	Capabilities gpucore.SurfaceCapabilities
	Formats      []gpucore.SurfaceFormat
	PresentModes []gpucore.PresentMode
}

// Query reads SurfaceInfo from a surface.
func Query(s gpucore.Surface) (SurfaceInfo, error) {
	caps, err := s.Capabilities()
	if err != nil {
		return SurfaceInfo{}, fmt.Errorf("swapchain: query capabilities: %w", err)
	}
	formats, err := s.Formats()
	if err != nil {
		return SurfaceInfo{}, fmt.Errorf("swapchain: query formats: %w", err)
	}
	modes, err := s.PresentModes()
	if err != nil {
		return SurfaceInfo{}, fmt.Errorf("swapchain: query present modes: %w", err)
	}
	return SurfaceInfo{Capabilities: caps, Formats: formats, PresentModes: modes}, nil
}

// Multisample is the multisample pipeline state derived from the sample count.
type Multisample struct {
	Samples          uint32
	SampleShading    bool
	MinSampleShading float32
}

// Resolved is the frozen configuration a swapchain is built with.
type Resolved struct {
	SurfaceFormat     gpucore.SurfaceFormat
	PresentMode       gpucore.PresentMode
	Samples           uint32
	Multisample       Multisample
	PresentableImages uint32
	ConcurrentFrames  uint32
	Extent            gpucore.Extent2D
	Attachments       []gpucore.Attachment
}

// Resolve combines a request with surface information.
// A nil logger discards the fallback warnings.
func Resolve(req Request, info SurfaceInfo, logger *slog.Logger) (Resolved, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	samples, err := ResolveSamples(req.Samples)
	if err != nil {
		return Resolved{}, err
	}
	mode, err := SelectPresentMode(req.PresentMode, info.PresentModes, logger)
	if err != nil {
		return Resolved{}, err
	}

	images := req.PresentableImages
	if images == 0 {
		images = DefaultImageCount(info.Capabilities)
	}
	frames := req.ConcurrentFrames
	if frames == 0 {
		frames = images
	}
	if images == 0 || frames == 0 {
		return Resolved{}, ErrInvalidFrameCount
	}

	return Resolved{
		SurfaceFormat: SelectSurfaceFormat(req.SRGB, info.Formats, logger),
		PresentMode:   mode,
		Samples:       samples,
		Multisample: Multisample{
			Samples:          samples,
			SampleShading:    samples > 1,
			MinSampleShading: 1,
		},
		PresentableImages: images,
		ConcurrentFrames:  frames,
		Extent:            info.Capabilities.CurrentExtent,
		Attachments:       slices.Clone(req.Attachments),
	}, nil
}

// SelectSurfaceFormat picks the first format whose sRGB-ness matches the
// request, else DefaultSurfaceFormat.
func SelectSurfaceFormat(srgb bool, formats []gpucore.SurfaceFormat, logger *slog.Logger) gpucore.SurfaceFormat {
	if len(formats) == 0 || (len(formats) == 1 && formats[0].Format == gpucore.TextureFormatUndefined) {
		return DefaultSurfaceFormat
	}
	for _, f := range formats {
		if f.Format.IsSRGB() == srgb {
			return f
		}
	}
	if logger != nil {
		logger.Warn("swapchain: no surface format matches sRGB request, using default",
			"srgb", srgb, "format", DefaultSurfaceFormat.Format)
	}
	return DefaultSurfaceFormat
}

// SelectPresentMode returns want when the surface supports it. Otherwise it
// logs a warning and returns the first mode the surface reports.
func SelectPresentMode(want gpucore.PresentMode, available []gpucore.PresentMode, logger *slog.Logger) (gpucore.PresentMode, error) {
	if len(available) == 0 {
		return 0, ErrNoPresentModes
	}
	if slices.Contains(available, want) {
		return want, nil
	}
	if logger != nil {
		logger.Warn("swapchain: requested presentation mode unavailable, falling back",
			"requested", want, "fallback", available[0])
	}
	return available[0], nil
}

// DefaultImageCount is the surface minimum plus one, clamped to the maximum
// when the maximum is nonzero.
func DefaultImageCount(caps gpucore.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// ResolveSamples validates a sample count. Zero means one sample.
func ResolveSamples(n uint32) (uint32, error) {
	switch n {
	case 0:
		return 1, nil
	case 1, 2, 4, 8, 16, 32, 64:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidSampleCount, n)
	}
}
