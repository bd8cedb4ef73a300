// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halgpu

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gpuframe/gpucore"
)

// Offscreen surface limits.
const (
	minSwapchainImages = 2
	maxSwapchainImages = 3
)

var surfaceFormats = []gpucore.SurfaceFormat{
	{Format: gpucore.TextureFormatBGRA8UnormSRGB, ColorSpace: gpucore.ColorSpaceSRGBNonlinear},
	{Format: gpucore.TextureFormatBGRA8Unorm, ColorSpace: gpucore.ColorSpaceSRGBNonlinear},
	{Format: gpucore.TextureFormatRGBA8Unorm, ColorSpace: gpucore.ColorSpaceSRGBNonlinear},
}

var surfacePresentModes = []gpucore.PresentMode{
	gpucore.PresentModeFifo,
	gpucore.PresentModeMailbox,
	gpucore.PresentModeImmediate,
}

// WindowSystem is an offscreen gpucore.WindowSystem. Its windows have no OS
// counterpart and its swapchains render into ordinary device textures, so
// the frame loop can run on machines without a display.
type WindowSystem struct {
	mu      sync.Mutex
	next    gpucore.WindowHandle
	windows map[gpucore.WindowHandle]gpucore.WindowDescriptor
}

// NewWindowSystem returns an empty offscreen window system.
func NewWindowSystem() *WindowSystem {
	return &WindowSystem{windows: make(map[gpucore.WindowHandle]gpucore.WindowDescriptor)}
}

// CreateWindow implements gpucore.WindowSystem.
func (ws *WindowSystem) CreateWindow(desc *gpucore.WindowDescriptor) (gpucore.WindowHandle, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return 0, fmt.Errorf("halgpu: window size %dx%d", desc.Width, desc.Height)
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.next++
	ws.windows[ws.next] = *desc
	return ws.next, nil
}

// CreateSurface implements gpucore.WindowSystem. device must be a *Device.
func (ws *WindowSystem) CreateSurface(device gpucore.Device, window gpucore.WindowHandle) (gpucore.Surface, error) {
	d, ok := device.(*Device)
	if !ok {
		return nil, fmt.Errorf("halgpu: surface for foreign device %T", device)
	}
	ws.mu.Lock()
	desc, ok := ws.windows[window]
	ws.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: window %d", ErrUnknownObject, window)
	}
	return &Surface{dev: d, extent: gpucore.Extent2D{Width: desc.Width, Height: desc.Height}}, nil
}

// DestroyWindow implements gpucore.WindowSystem.
func (ws *WindowSystem) DestroyWindow(window gpucore.WindowHandle) {
	ws.mu.Lock()
	delete(ws.windows, window)
	ws.mu.Unlock()
}

// Surface is an offscreen gpucore.Surface.
type Surface struct {
	dev       *Device
	extent    gpucore.Extent2D
	destroyed bool
}

// Capabilities implements gpucore.Surface.
func (s *Surface) Capabilities() (gpucore.SurfaceCapabilities, error) {
	return gpucore.SurfaceCapabilities{
		MinImageCount: minSwapchainImages,
		MaxImageCount: maxSwapchainImages,
		CurrentExtent: s.extent,
	}, nil
}

// Formats implements gpucore.Surface. The device's preferred format, if
// any, comes first.
func (s *Surface) Formats() ([]gpucore.SurfaceFormat, error) {
	formats := slices.Clone(surfaceFormats)
	s.dev.mu.Lock()
	preferred := s.dev.preferred
	s.dev.mu.Unlock()
	if preferred == gpucore.TextureFormatUndefined {
		return formats, nil
	}
	i := slices.IndexFunc(formats, func(f gpucore.SurfaceFormat) bool { return f.Format == preferred })
	if i > 0 {
		f := formats[i]
		copy(formats[1:i+1], formats[:i])
		formats[0] = f
	}
	return formats, nil
}

// PresentModes implements gpucore.Surface.
func (s *Surface) PresentModes() ([]gpucore.PresentMode, error) {
	return slices.Clone(surfacePresentModes), nil
}

// CreateSwapchain implements gpucore.Surface.
func (s *Surface) CreateSwapchain(desc *gpucore.SwapchainDescriptor) (gpucore.Swapchain, error) {
	if s.destroyed {
		return nil, errors.New("halgpu: swapchain for destroyed surface")
	}
	if desc.ImageCount < minSwapchainImages || desc.ImageCount > maxSwapchainImages {
		return nil, fmt.Errorf("halgpu: %d swapchain images outside [%d, %d]",
			desc.ImageCount, minSwapchainImages, maxSwapchainImages)
	}
	if !slices.Contains(surfacePresentModes, desc.PresentMode) {
		return nil, fmt.Errorf("halgpu: unsupported present mode %s", desc.PresentMode)
	}

	sc := &Swapchain{dev: s.dev, extent: desc.Extent, mode: desc.PresentMode}
	for i := range desc.ImageCount {
		id, err := s.dev.CreateImage(&gpucore.ImageDescriptor{
			Label:  fmt.Sprintf("swapchain image %d", i),
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Format: desc.Format.Format,
			Usage:  gpucore.ImageUsageColorAttachment | gpucore.ImageUsageTransferSrc | gpucore.ImageUsageTransferDst,
		})
		if err != nil {
			sc.Destroy()
			return nil, err
		}
		sc.images = append(sc.images, id)
	}
	slogger().Debug("halgpu: offscreen swapchain created",
		"images", desc.ImageCount, "extent", desc.Extent, "mode", desc.PresentMode)
	return sc, nil
}

// Destroy implements gpucore.Surface.
func (s *Surface) Destroy() {
	s.destroyed = true
}

// Swapchain is an offscreen gpucore.Swapchain. Images are handed out
// round robin; presenting consumes the waits and retires the image.
type Swapchain struct {
	mu        sync.Mutex
	dev       *Device
	extent    gpucore.Extent2D
	mode      gpucore.PresentMode
	images    []gpucore.ImageID
	next      uint32
	presented uint64
	destroyed bool
}

// Images implements gpucore.Swapchain.
func (sc *Swapchain) Images() []gpucore.ImageID {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return slices.Clone(sc.images)
}

// Extent implements gpucore.Swapchain.
func (sc *Swapchain) Extent() gpucore.Extent2D {
	return sc.extent
}

// Presented returns the number of successful presents.
func (sc *Swapchain) Presented() uint64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.presented
}

// AcquireNextImage implements gpucore.Swapchain. The next image is always
// available, so signal is scheduled immediately.
func (sc *Swapchain) AcquireNextImage(_ time.Duration, signal gpucore.SemaphoreID) (uint32, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return 0, errors.New("halgpu: acquire from destroyed swapchain")
	}

	d := sc.dev
	d.mu.Lock()
	err := d.markPendingLocked(signal)
	d.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("halgpu: acquire: %w", err)
	}

	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	return idx, nil
}

// Present implements gpucore.Swapchain.
func (sc *Swapchain) Present(_ gpucore.QueueType, waits []gpucore.SemaphoreID, index uint32) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return errors.New("halgpu: present to destroyed swapchain")
	}
	if int(index) >= len(sc.images) {
		return fmt.Errorf("halgpu: present of image %d out of %d", index, len(sc.images))
	}

	d := sc.dev
	d.mu.Lock()
	err := d.consumeWaitsLocked(waits)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("halgpu: present: %w", err)
	}
	sc.presented++
	return nil
}

// Destroy implements gpucore.Swapchain.
func (sc *Swapchain) Destroy() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	for _, id := range sc.images {
		sc.dev.DestroyImage(id)
	}
}
