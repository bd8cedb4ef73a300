package sim

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gpuframe/gpucore"
)

// SurfaceConfig is what simulated surfaces report.
type SurfaceConfig struct {
	MinImages    uint32
	MaxImages    uint32
	Formats      []gpucore.SurfaceFormat
	PresentModes []gpucore.PresentMode

	// Extent overrides the window size when non-zero.
	Extent gpucore.Extent2D
}

// DefaultSurfaceConfig returns a surface that accepts two or three images,
// both BGRA8 formats and every present mode.
func DefaultSurfaceConfig() SurfaceConfig {
	return SurfaceConfig{
		MinImages: 2,
		MaxImages: 3,
		Formats: []gpucore.SurfaceFormat{
			{Format: gpucore.TextureFormatBGRA8UnormSRGB, ColorSpace: gpucore.ColorSpaceSRGBNonlinear},
			{Format: gpucore.TextureFormatBGRA8Unorm, ColorSpace: gpucore.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []gpucore.PresentMode{
			gpucore.PresentModeFifo,
			gpucore.PresentModeMailbox,
			gpucore.PresentModeImmediate,
			gpucore.PresentModeFifoRelaxed,
		},
	}
}

// WindowSystem is a headless gpucore.WindowSystem. Windows exist only as
// handles and their surfaces present into simulated images.
type WindowSystem struct {
	mu        sync.Mutex
	next      gpucore.WindowHandle
	windows   map[gpucore.WindowHandle]gpucore.WindowDescriptor
	createErr error
	created   int
}

// NewWindowSystem returns an empty window system.
func NewWindowSystem() *WindowSystem {
	return &WindowSystem{windows: make(map[gpucore.WindowHandle]gpucore.WindowDescriptor)}
}

// FailCreateWindow makes CreateWindow fail with err until reset with nil.
func (ws *WindowSystem) FailCreateWindow(err error) {
	ws.mu.Lock()
	ws.createErr = err
	ws.mu.Unlock()
}

// CreateWindow implements gpucore.WindowSystem.
func (ws *WindowSystem) CreateWindow(desc *gpucore.WindowDescriptor) (gpucore.WindowHandle, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.createErr != nil {
		return 0, ws.createErr
	}
	ws.next++
	ws.windows[ws.next] = *desc
	ws.created++
	return ws.next, nil
}

// CreateSurface implements gpucore.WindowSystem. device must be a *Device.
func (ws *WindowSystem) CreateSurface(device gpucore.Device, window gpucore.WindowHandle) (gpucore.Surface, error) {
	d, ok := device.(*Device)
	if !ok {
		return nil, fmt.Errorf("sim: surface for foreign device %T", device)
	}
	ws.mu.Lock()
	desc, ok := ws.windows[window]
	ws.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: window %d", ErrUnknownObject, window)
	}

	d.mu.Lock()
	cfg := d.surface
	d.mu.Unlock()
	if cfg.Extent.Width == 0 || cfg.Extent.Height == 0 {
		cfg.Extent = gpucore.Extent2D{Width: desc.Width, Height: desc.Height}
	}
	return &Surface{dev: d, cfg: cfg}, nil
}

// DestroyWindow implements gpucore.WindowSystem.
func (ws *WindowSystem) DestroyWindow(window gpucore.WindowHandle) {
	ws.mu.Lock()
	delete(ws.windows, window)
	ws.mu.Unlock()
}

// OpenWindows returns the number of windows not yet destroyed.
func (ws *WindowSystem) OpenWindows() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.windows)
}

// Surface is a simulated gpucore.Surface.
type Surface struct {
	dev       *Device
	cfg       SurfaceConfig
	destroyed bool
}

// Capabilities implements gpucore.Surface.
func (s *Surface) Capabilities() (gpucore.SurfaceCapabilities, error) {
	return gpucore.SurfaceCapabilities{
		MinImageCount: s.cfg.MinImages,
		MaxImageCount: s.cfg.MaxImages,
		CurrentExtent: s.cfg.Extent,
	}, nil
}

// Formats implements gpucore.Surface.
func (s *Surface) Formats() ([]gpucore.SurfaceFormat, error) {
	return slices.Clone(s.cfg.Formats), nil
}

// PresentModes implements gpucore.Surface.
func (s *Surface) PresentModes() ([]gpucore.PresentMode, error) {
	return slices.Clone(s.cfg.PresentModes), nil
}

// CreateSwapchain implements gpucore.Surface.
func (s *Surface) CreateSwapchain(desc *gpucore.SwapchainDescriptor) (gpucore.Swapchain, error) {
	if s.destroyed {
		return nil, errors.New("sim: swapchain for destroyed surface")
	}
	if desc.ImageCount < s.cfg.MinImages || (s.cfg.MaxImages > 0 && desc.ImageCount > s.cfg.MaxImages) {
		return nil, fmt.Errorf("sim: %d swapchain images outside [%d, %d]", desc.ImageCount, s.cfg.MinImages, s.cfg.MaxImages)
	}
	if !slices.Contains(s.cfg.PresentModes, desc.PresentMode) {
		return nil, fmt.Errorf("sim: unsupported present mode %s", desc.PresentMode)
	}

	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	sc := &Swapchain{dev: d, id: d.id(), extent: desc.Extent, mode: desc.PresentMode}
	for i := range desc.ImageCount {
		id, err := d.createImage(&gpucore.ImageDescriptor{
			Label:  fmt.Sprintf("swapchain image %d", i),
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
			Format: desc.Format.Format,
			Usage:  gpucore.ImageUsageColorAttachment | gpucore.ImageUsageTransferDst,
		}, true)
		if err != nil {
			for _, img := range sc.images {
				d.destroyImage(img)
			}
			return nil, err
		}
		sc.images = append(sc.images, id)
	}
	d.rec.swapchainsCreated++
	return sc, nil
}

// Destroy implements gpucore.Surface.
func (s *Surface) Destroy() {
	s.destroyed = true
}

// Swapchain is a simulated gpucore.Swapchain. Images are handed out round
// robin and are ready for rendering as soon as they are acquired.
type Swapchain struct {
	dev       *Device
	id        uint64
	extent    gpucore.Extent2D
	mode      gpucore.PresentMode
	images    []gpucore.ImageID
	next      uint32
	destroyed bool
}

// Images implements gpucore.Swapchain.
func (sc *Swapchain) Images() []gpucore.ImageID {
	return slices.Clone(sc.images)
}

// Extent implements gpucore.Swapchain.
func (sc *Swapchain) Extent() gpucore.Extent2D {
	return sc.extent
}

// PresentMode returns the mode the swapchain was created with.
func (sc *Swapchain) PresentMode() gpucore.PresentMode {
	return sc.mode
}

// AcquireNextImage implements gpucore.Swapchain.
func (sc *Swapchain) AcquireNextImage(_ time.Duration, signal gpucore.SemaphoreID) (uint32, error) {
	d := sc.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if sc.destroyed {
		return 0, errors.New("sim: acquire from destroyed swapchain")
	}
	if d.acquireErr != nil {
		return 0, d.acquireErr
	}
	s, ok := d.semaphores[signal]
	if !ok {
		return 0, fmt.Errorf("%w: semaphore %d", ErrUnknownObject, signal)
	}
	if s.signaled || s.pendingSignals > 0 {
		d.violate("acquire signals semaphore %d that is already signaled", signal)
	}
	s.signaled = true
	d.cond.Broadcast()

	idx := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	d.rec.acquires++
	return idx, nil
}

// Present implements gpucore.Swapchain.
func (sc *Swapchain) Present(queue gpucore.QueueType, waits []gpucore.SemaphoreID, index uint32) error {
	d := sc.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if sc.destroyed {
		return errors.New("sim: present to destroyed swapchain")
	}
	if int(index) >= len(sc.images) {
		return fmt.Errorf("sim: present of image %d out of %d", index, len(sc.images))
	}
	if len(d.failPresent) > 0 {
		err := d.failPresent[0]
		d.failPresent = d.failPresent[1:]
		if err != nil {
			return err
		}
	}
	for _, id := range waits {
		s, ok := d.semaphores[id]
		if !ok {
			return fmt.Errorf("%w: present wait semaphore %d", ErrUnknownObject, id)
		}
		if !s.signaled && s.pendingSignals == 0 {
			return fmt.Errorf("%w: %d", ErrNoPendingSignal, id)
		}
	}
	for _, id := range waits {
		d.semaphores[id].pendingWaits++
	}
	d.enqueue(&job{
		queue: queue,
		label: fmt.Sprintf("present %d", index),
		waits: slices.Clone(waits),
		present: &PresentRecord{
			Swapchain: sc.id,
			Index:     index,
			Image:     sc.images[index],
			Waits:     slices.Clone(waits),
		},
	})
	return nil
}

// Destroy implements gpucore.Swapchain.
func (sc *Swapchain) Destroy() {
	d := sc.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if sc.destroyed {
		return
	}
	sc.destroyed = true
	for _, id := range sc.images {
		d.destroyImage(id)
	}
}
