package gpuframe

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpuframe/gpucore"
)

// ImageUsage is the intended use of an image. It determines the layout
// uploads leave the image in.
type ImageUsage uint8

// Image usages.
const (
	// ImageUsageSampled images are read by shaders.
	ImageUsageSampled ImageUsage = iota

	// ImageUsageColorAttachment images are rendered to.
	ImageUsageColorAttachment

	// ImageUsageDepthStencil images are depth/stencil targets.
	ImageUsageDepthStencil

	// ImageUsageStorage images are read and written by compute shaders.
	ImageUsageStorage

	// ImageUsageTransferSrc images are copied from.
	ImageUsageTransferSrc

	// ImageUsagePresent images are presented.
	ImageUsagePresent
)

// TargetLayout returns the layout an image with usage u must be in.
func (u ImageUsage) TargetLayout() gpucore.ImageLayout {
	switch u {
	case ImageUsageSampled:
		return gpucore.ImageLayoutShaderReadOnly
	case ImageUsageColorAttachment:
		return gpucore.ImageLayoutColorAttachment
	case ImageUsageDepthStencil:
		return gpucore.ImageLayoutDepthStencilAttachment
	case ImageUsageStorage:
		return gpucore.ImageLayoutGeneral
	case ImageUsageTransferSrc:
		return gpucore.ImageLayoutTransferSrc
	case ImageUsagePresent:
		return gpucore.ImageLayoutPresentSrc
	default:
		return gpucore.ImageLayoutGeneral
	}
}

func (u ImageUsage) deviceUsage() gpucore.ImageUsage {
	flags := gpucore.ImageUsageTransferDst | gpucore.ImageUsageTransferSrc
	switch u {
	case ImageUsageSampled:
		flags |= gpucore.ImageUsageSampled
	case ImageUsageColorAttachment, ImageUsagePresent:
		flags |= gpucore.ImageUsageColorAttachment | gpucore.ImageUsageSampled
	case ImageUsageDepthStencil:
		flags |= gpucore.ImageUsageDepthStencilAttachment
	case ImageUsageStorage:
		flags |= gpucore.ImageUsageStorage | gpucore.ImageUsageSampled
	}
	return flags
}

// Image is a device image with CPU-side layout tracking.
//
// The tracked layout is the layout the image will be in once every recorded
// operation has executed. At most one operation may be pending on an image:
// a new operation must wait on the semaphore of the previous one until that
// semaphore is destroyed.
type Image struct {
	ctx   *Context
	id    gpucore.ImageID
	desc  gpucore.ImageDescriptor
	usage ImageUsage
	owned bool

	mu      sync.Mutex
	layout  gpucore.ImageLayout
	pending *Semaphore

	destroyed atomic.Bool
}

// CreateImage creates a 2D image in the Undefined layout.
func (c *Context) CreateImage(width, height uint32, format gpucore.TextureFormat, usage ImageUsage) (*Image, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	desc := gpucore.ImageDescriptor{
		Label:   fmt.Sprintf("image_%dx%d", width, height),
		Width:   width,
		Height:  height,
		Format:  format,
		Usage:   usage.deviceUsage(),
		Samples: 1,
	}
	id, err := c.device.CreateImage(&desc)
	if err != nil {
		return nil, fmt.Errorf("gpuframe: create image: %w", err)
	}
	return &Image{ctx: c, id: id, desc: desc, usage: usage, owned: true}, nil
}

// wrapImage tracks an image owned by someone else (a swapchain).
func (c *Context) wrapImage(id gpucore.ImageID, desc gpucore.ImageDescriptor, usage ImageUsage) *Image {
	return &Image{ctx: c, id: id, desc: desc, usage: usage}
}

// ID returns the device handle.
func (img *Image) ID() gpucore.ImageID { return img.id }

// Width returns the image width in pixels.
func (img *Image) Width() uint32 { return img.desc.Width }

// Height returns the image height in pixels.
func (img *Image) Height() uint32 { return img.desc.Height }

// Format returns the texel format.
func (img *Image) Format() gpucore.TextureFormat { return img.desc.Format }

// Usage returns the intended use.
func (img *Image) Usage() ImageUsage { return img.usage }

// Layout returns the tracked current layout.
func (img *Image) Layout() gpucore.ImageLayout {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.layout
}

// TargetLayout returns the layout required by the image's usage.
func (img *Image) TargetLayout() gpucore.ImageLayout {
	return img.usage.TargetLayout()
}

// Pending returns the semaphore of the image's pending operation, or nil.
func (img *Image) Pending() *Semaphore {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.pending != nil && img.pending.Destroyed() {
		img.pending = nil
	}
	return img.pending
}

// byteSize returns the size of tightly packed image data.
func (img *Image) byteSize() uint64 {
	return uint64(img.desc.Width) * uint64(img.desc.Height) * uint64(img.desc.Format.BytesPerPixel())
}

// checkOrdered fails with ErrTransitionPending when img has a live pending
// operation that is not among waits. The caller must hold img.mu.
func (img *Image) checkOrdered(waits []*Semaphore) error {
	p := img.pending
	if p == nil || p.Destroyed() {
		return nil
	}
	if slices.Contains(waits, p) {
		return nil
	}
	return fmt.Errorf("%w: image %d", ErrTransitionPending, img.id)
}

// Destroy releases the image if this package created it. Destroy is
// idempotent.
func (img *Image) Destroy() {
	if !img.owned || !img.destroyed.CompareAndSwap(false, true) {
		return
	}
	img.ctx.device.DestroyImage(img.id)
}

// StagingBuffer is a host-visible transfer source.
type StagingBuffer struct {
	ctx       *Context
	id        gpucore.BufferID
	size      uint64
	destroyed atomic.Bool
}

// CreateStagingBuffer allocates a host-visible buffer and copies data into
// it synchronously.
func (c *Context) CreateStagingBuffer(data []byte) (*StagingBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	id, err := c.device.CreateBuffer(&gpucore.BufferDescriptor{
		Label:       "staging",
		Size:        uint64(len(data)),
		Usage:       gpucore.BufferUsageCopySrc | gpucore.BufferUsageMapWrite,
		HostVisible: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gpuframe: create staging buffer: %w", err)
	}
	if err := c.device.WriteBuffer(id, 0, data); err != nil {
		c.device.DestroyBuffer(id)
		return nil, fmt.Errorf("gpuframe: fill staging buffer: %w", err)
	}
	return &StagingBuffer{ctx: c, id: id, size: uint64(len(data))}, nil
}

// ID returns the device handle.
func (b *StagingBuffer) ID() gpucore.BufferID { return b.id }

// Size returns the buffer size in bytes.
func (b *StagingBuffer) Size() uint64 { return b.size }

// Destroyed reports whether the buffer was released.
func (b *StagingBuffer) Destroyed() bool { return b.destroyed.Load() }

// Destroy releases the buffer. Destroy is idempotent.
func (b *StagingBuffer) Destroy() {
	if b.destroyed.CompareAndSwap(false, true) {
		b.ctx.device.DestroyBuffer(b.id)
	}
}

// DeviceBuffer is a device-local buffer.
type DeviceBuffer struct {
	ctx       *Context
	id        gpucore.BufferID
	size      uint64
	usage     gpucore.BufferUsage
	destroyed atomic.Bool
}

// CreateDeviceBuffer allocates a device-local buffer that can be a copy
// destination.
func (c *Context) CreateDeviceBuffer(size uint64, usage gpucore.BufferUsage) (*DeviceBuffer, error) {
	usage |= gpucore.BufferUsageCopyDst
	id, err := c.device.CreateBuffer(&gpucore.BufferDescriptor{Label: "device", Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("gpuframe: create device buffer: %w", err)
	}
	return &DeviceBuffer{ctx: c, id: id, size: size, usage: usage}, nil
}

// ID returns the device handle.
func (b *DeviceBuffer) ID() gpucore.BufferID { return b.id }

// Size returns the buffer size in bytes.
func (b *DeviceBuffer) Size() uint64 { return b.size }

// Usage returns the buffer usage flags.
func (b *DeviceBuffer) Usage() gpucore.BufferUsage { return b.usage }

// Destroy releases the buffer. Destroy is idempotent.
func (b *DeviceBuffer) Destroy() {
	if b.destroyed.CompareAndSwap(false, true) {
		b.ctx.device.DestroyBuffer(b.id)
	}
}
