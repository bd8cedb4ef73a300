// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package halgpu implements gpucore.Device on top of gogpu/wgpu's hardware
// abstraction layer.
//
// All gpucore queues map onto the single hal queue, so submissions execute
// in the order they are made. Semaphores are therefore bookkeeping only: a
// wait is satisfied as long as its signal was submitted earlier. Fences are
// points on one timeline hal.Fence that advances by one per submission.
package halgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuframe/gpucore"
)

// EncodeFunc is the payload of a gpucore.NativeCommand executed by this
// backend. It records into the encoder of the command list being built.
type EncodeFunc func(enc hal.CommandEncoder) error

type semaphore struct {
	pending bool
}

type fence struct {
	// signaled is set for fences created signaled and cleared by reset.
	signaled bool

	// submitted is set when a submission will reach value on the timeline.
	submitted bool
	value     uint64
}

type buffer struct {
	raw     hal.Buffer
	desc    gpucore.BufferDescriptor
	lastUse uint64
}

type image struct {
	raw     hal.Texture
	desc    gpucore.ImageDescriptor
	lastUse uint64
}

// inflight holds what a submission owns until the timeline passes value.
type inflight struct {
	value    uint64
	cmdBufs  []hal.CommandBuffer
	scratch  []hal.Buffer
	buffers  []hal.Buffer
	textures []hal.Texture
}

// Device implements gpucore.Device over a hal.Device and hal.Queue.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
type Device struct {
	mu sync.Mutex

	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // nil when the device is borrowed
	owned    bool

	timeline  hal.Fence
	submitted uint64
	completed uint64

	nextID     uint64
	semaphores map[gpucore.SemaphoreID]*semaphore
	fences     map[gpucore.FenceID]*fence
	buffers    map[gpucore.BufferID]*buffer
	images     map[gpucore.ImageID]*image

	inflight  []*inflight
	destroyed bool

	// preferred is listed first by offscreen surfaces when set.
	preferred gpucore.TextureFormat
}

var _ gpucore.Device = (*Device)(nil)

// New wraps a device and queue owned by the caller. Destroy releases only
// the objects created through the returned Device.
func New(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, errors.New("halgpu: nil device or queue")
	}
	timeline, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halgpu: create timeline fence: %w", err)
	}
	return &Device{
		device:     device,
		queue:      queue,
		timeline:   timeline,
		nextID:     1,
		semaphores: make(map[gpucore.SemaphoreID]*semaphore),
		fences:     make(map[gpucore.FenceID]*fence),
		buffers:    make(map[gpucore.BufferID]*buffer),
		images:     make(map[gpucore.ImageID]*image),
	}, nil
}

// NewFromProvider shares the device of a host application, such as a
// gogpu window. The provider must implement HalDevice() any and HalQueue()
// any returning hal.Device and hal.Queue. Its surface format becomes the
// preferred format of offscreen surfaces.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProviderNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProviderNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProviderNotHAL)
	}
	d, err := New(device, queue)
	if err != nil {
		return nil, err
	}
	d.preferred = textureFormatFromGPUTypes(provider.SurfaceFormat())
	return d, nil
}

// Open creates a standalone Vulkan device, preferring discrete or
// integrated GPUs over software adapters.
func Open() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create instance: %w", err)
	}
	d, err := openInstance(instance)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

// openInstance opens the preferred adapter of instance. On success the
// returned Device owns both the device and the instance.
func openInstance(instance hal.Instance) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("halgpu: open device: %w", err)
	}
	d, err := New(openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	slogger().Info("halgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// HalDevice returns the wrapped hal.Device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the wrapped hal.Queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

func (d *Device) newIDLocked() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

// CreateSemaphore implements gpucore.Device.
func (d *Device) CreateSemaphore() (gpucore.SemaphoreID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return gpucore.InvalidID, ErrDeviceDestroyed
	}
	id := gpucore.SemaphoreID(d.newIDLocked())
	d.semaphores[id] = &semaphore{}
	return id, nil
}

// DestroySemaphore implements gpucore.Device.
func (d *Device) DestroySemaphore(id gpucore.SemaphoreID) {
	d.mu.Lock()
	delete(d.semaphores, id)
	d.mu.Unlock()
}

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence(signaled bool) (gpucore.FenceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return gpucore.InvalidID, ErrDeviceDestroyed
	}
	id := gpucore.FenceID(d.newIDLocked())
	d.fences[id] = &fence{signaled: signaled}
	return id, nil
}

// DestroyFence implements gpucore.Device.
func (d *Device) DestroyFence(id gpucore.FenceID) {
	d.mu.Lock()
	delete(d.fences, id)
	d.mu.Unlock()
}

// WaitFence implements gpucore.Device.
func (d *Device) WaitFence(id gpucore.FenceID, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return false, ErrDeviceDestroyed
	}
	f, ok := d.fences[id]
	if !ok {
		d.mu.Unlock()
		return false, fmt.Errorf("%w: fence %d", ErrUnknownObject, id)
	}
	if f.signaled {
		d.mu.Unlock()
		return true, nil
	}
	if !f.submitted {
		d.mu.Unlock()
		return false, fmt.Errorf("%w: fence %d", ErrFenceNotSubmitted, id)
	}
	value := f.value
	if value <= d.completed {
		d.mu.Unlock()
		return true, nil
	}
	d.mu.Unlock()

	reached, err := d.device.Wait(d.timeline, value, timeout)
	if err != nil {
		return false, fmt.Errorf("halgpu: wait fence %d: %w", id, err)
	}
	if !reached {
		return false, nil
	}
	d.mu.Lock()
	d.markCompletedLocked(value)
	d.mu.Unlock()
	return true, nil
}

// ResetFence implements gpucore.Device.
func (d *Device) ResetFence(id gpucore.FenceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[id]
	if !ok {
		return fmt.Errorf("%w: fence %d", ErrUnknownObject, id)
	}
	if f.submitted && f.value > d.completed {
		d.reapLocked()
		if f.value > d.completed {
			return fmt.Errorf("%w: fence %d", ErrFenceInUse, id)
		}
	}
	f.signaled = false
	f.submitted = false
	return nil
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("halgpu: buffer size must be positive")
	}
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: convertBufferUsage(desc.Usage, desc.HostVisible),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create buffer %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		d.device.DestroyBuffer(raw)
		return gpucore.InvalidID, ErrDeviceDestroyed
	}
	id := gpucore.BufferID(d.newIDLocked())
	d.buffers[id] = &buffer{raw: raw, desc: *desc}
	return id, nil
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownObject, id)
	}
	if !b.desc.HostVisible {
		return fmt.Errorf("%w: buffer %d", ErrNotHostVisible, id)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("halgpu: write of %d bytes at %d overflows buffer %d of %d bytes",
			len(data), offset, id, b.desc.Size)
	}
	if len(data) > 0 {
		d.queue.WriteBuffer(b.raw, offset, data)
	}
	return nil
}

// DestroyBuffer implements gpucore.Device. A buffer still referenced by an
// incomplete submission is released once that submission finishes.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return
	}
	delete(d.buffers, id)
	if e := d.pendingAtLocked(b.lastUse); e != nil {
		e.buffers = append(e.buffers, b.raw)
		return
	}
	d.device.DestroyBuffer(b.raw)
}

// CreateImage implements gpucore.Device.
func (d *Device) CreateImage(desc *gpucore.ImageDescriptor) (gpucore.ImageID, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("halgpu: image dimensions must be positive")
	}
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     gputypes.TextureDimension2D,
		Format:        convertTextureFormat(desc.Format),
		Usage:         convertImageUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create image %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		d.device.DestroyTexture(raw)
		return gpucore.InvalidID, ErrDeviceDestroyed
	}
	id := gpucore.ImageID(d.newIDLocked())
	d.images[id] = &image{raw: raw, desc: *desc}
	return id, nil
}

// DestroyImage implements gpucore.Device. Like DestroyBuffer, release is
// deferred while a submission still uses the image.
func (d *Device) DestroyImage(id gpucore.ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[id]
	if !ok {
		return
	}
	delete(d.images, id)
	if e := d.pendingAtLocked(img.lastUse); e != nil {
		e.textures = append(e.textures, img.raw)
		return
	}
	d.device.DestroyTexture(img.raw)
}

// Submit implements gpucore.Device. The queue type is accepted for
// bookkeeping only; all work goes to the single hal queue.
func (d *Device) Submit(queue gpucore.QueueType, info *gpucore.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDeviceDestroyed
	}
	if len(info.WaitSemaphores) != len(info.WaitStages) {
		return fmt.Errorf("halgpu: %d wait semaphores but %d wait stages",
			len(info.WaitSemaphores), len(info.WaitStages))
	}

	waits := make([]*semaphore, len(info.WaitSemaphores))
	for i, id := range info.WaitSemaphores {
		s, ok := d.semaphores[id]
		if !ok {
			return fmt.Errorf("%w: semaphore %d", ErrUnknownObject, id)
		}
		if !s.pending {
			return fmt.Errorf("%w: semaphore %d", ErrNoPendingSignal, id)
		}
		waits[i] = s
	}
	signals := make([]*semaphore, len(info.SignalSemaphores))
	for i, id := range info.SignalSemaphores {
		s, ok := d.semaphores[id]
		if !ok {
			return fmt.Errorf("%w: semaphore %d", ErrUnknownObject, id)
		}
		if s.pending {
			return fmt.Errorf("%w: semaphore %d", ErrSemaphorePending, id)
		}
		signals[i] = s
	}
	var f *fence
	if info.Fence != gpucore.InvalidID {
		var ok bool
		if f, ok = d.fences[info.Fence]; !ok {
			return fmt.Errorf("%w: fence %d", ErrUnknownObject, info.Fence)
		}
		if f.signaled || f.submitted {
			return fmt.Errorf("%w: fence %d was not reset", ErrFenceInUse, info.Fence)
		}
	}

	value := d.submitted + 1
	entry := &inflight{value: value}
	for _, list := range info.CommandLists {
		cmdBuf, err := d.encodeLocked(list, entry)
		if err != nil {
			d.releaseLocked(entry)
			return fmt.Errorf("halgpu: submit %q: %w", info.Label, err)
		}
		entry.cmdBufs = append(entry.cmdBufs, cmdBuf)
	}

	if err := d.queue.Submit(entry.cmdBufs, d.timeline, value); err != nil {
		d.releaseLocked(entry)
		return fmt.Errorf("halgpu: submit %q: %w", info.Label, err)
	}

	d.submitted = value
	for _, s := range waits {
		s.pending = false
	}
	for _, s := range signals {
		s.pending = true
	}
	if f != nil {
		f.submitted = true
		f.value = value
	}
	d.inflight = append(d.inflight, entry)
	slogger().Debug("halgpu: submitted",
		"label", info.Label, "queue", queue, "lists", len(entry.cmdBufs), "timeline", value)
	d.reapLocked()
	return nil
}

// encodeLocked records one command list into a new hal command buffer.
// Resources touched by the list are marked as used by entry.
func (d *Device) encodeLocked(list *gpucore.CommandList, entry *inflight) (hal.CommandBuffer, error) {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: list.Label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(list.Label); err != nil {
		return nil, fmt.Errorf("begin encoding %q: %w", list.Label, err)
	}
	for _, cmd := range list.Commands {
		if err := d.recordLocked(enc, cmd, entry); err != nil {
			enc.DiscardEncoding()
			return nil, fmt.Errorf("%q: %s: %w", list.Label, cmd.Kind(), err)
		}
	}
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding %q: %w", list.Label, err)
	}
	return cmdBuf, nil
}

func (d *Device) recordLocked(enc hal.CommandEncoder, cmd gpucore.Command, entry *inflight) error {
	switch c := cmd.(type) {
	case gpucore.TransitionCommand:
		img, err := d.imageLocked(c.Image, entry.value)
		if err != nil {
			return err
		}
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: img.raw,
			Usage: hal.TextureUsageTransition{
				OldUsage: layoutUsage(c.OldLayout),
				NewUsage: layoutUsage(c.NewLayout),
			},
		}})

	case gpucore.CopyBufferToImageCommand:
		buf, err := d.bufferLocked(c.Buffer, entry.value)
		if err != nil {
			return err
		}
		img, err := d.imageLocked(c.Image, entry.value)
		if err != nil {
			return err
		}
		enc.CopyBufferToTexture(buf.raw, img.raw, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: c.Offset, BytesPerRow: c.BytesPerRow, RowsPerImage: c.Height},
			TextureBase:  hal.ImageCopyTexture{Texture: img.raw, MipLevel: 0},
			Size:         hal.Extent3D{Width: c.Width, Height: c.Height, DepthOrArrayLayers: 1},
		}})

	case gpucore.CopyBufferToBufferCommand:
		src, err := d.bufferLocked(c.Src, entry.value)
		if err != nil {
			return err
		}
		dst, err := d.bufferLocked(c.Dst, entry.value)
		if err != nil {
			return err
		}
		enc.CopyBufferToBuffer(src.raw, dst.raw, []hal.BufferCopy{{
			SrcOffset: c.SrcOffset,
			DstOffset: c.DstOffset,
			Size:      c.Size,
		}})

	case gpucore.CopyImageToImageCommand:
		return d.recordImageCopyLocked(enc, c, entry)

	case gpucore.NativeCommand:
		switch fn := c.Payload.(type) {
		case nil:
		case EncodeFunc:
			return fn(enc)
		case func(hal.CommandEncoder) error:
			return fn(enc)
		default:
			return fmt.Errorf("%w: %s payload %T", ErrUnsupportedCommand, c.Name, c.Payload)
		}

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedCommand, cmd)
	}
	return nil
}

// recordImageCopyLocked copies between images through a scratch buffer
// owned by the submission.
func (d *Device) recordImageCopyLocked(enc hal.CommandEncoder, c gpucore.CopyImageToImageCommand, entry *inflight) error {
	src, err := d.imageLocked(c.Src, entry.value)
	if err != nil {
		return err
	}
	dst, err := d.imageLocked(c.Dst, entry.value)
	if err != nil {
		return err
	}
	if src.desc.Format != dst.desc.Format {
		return fmt.Errorf("halgpu: image copy from %s to %s", src.desc.Format, dst.desc.Format)
	}
	bpp := src.desc.Format.BytesPerPixel()
	if bpp == 0 {
		return fmt.Errorf("halgpu: image copy of unsized format %s", src.desc.Format)
	}
	rowPitch := alignRow(c.Width * bpp)
	scratch, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "image-copy-scratch",
		Size:  uint64(rowPitch) * uint64(c.Height),
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create scratch buffer: %w", err)
	}
	entry.scratch = append(entry.scratch, scratch)

	layout := hal.ImageDataLayout{Offset: 0, BytesPerRow: rowPitch, RowsPerImage: c.Height}
	size := hal.Extent3D{Width: c.Width, Height: c.Height, DepthOrArrayLayers: 1}
	enc.CopyTextureToBuffer(src.raw, scratch, []hal.BufferTextureCopy{{
		BufferLayout: layout,
		TextureBase:  hal.ImageCopyTexture{Texture: src.raw, MipLevel: 0},
		Size:         size,
	}})
	enc.TransitionBuffers([]hal.BufferBarrier{{
		Buffer: scratch,
		Usage: hal.BufferUsageTransition{
			OldUsage: gputypes.BufferUsageCopyDst,
			NewUsage: gputypes.BufferUsageCopySrc,
		},
	}})
	enc.CopyBufferToTexture(scratch, dst.raw, []hal.BufferTextureCopy{{
		BufferLayout: layout,
		TextureBase:  hal.ImageCopyTexture{Texture: dst.raw, MipLevel: 0},
		Size:         size,
	}})
	return nil
}

func (d *Device) bufferLocked(id gpucore.BufferID, use uint64) (*buffer, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrUnknownObject, id)
	}
	b.lastUse = use
	return b, nil
}

func (d *Device) imageLocked(id gpucore.ImageID, use uint64) (*image, error) {
	img, ok := d.images[id]
	if !ok {
		return nil, fmt.Errorf("%w: image %d", ErrUnknownObject, id)
	}
	img.lastUse = use
	return img, nil
}

// pendingAtLocked returns the in-flight entry a resource last used at
// value must wait for, or nil when that use has completed.
func (d *Device) pendingAtLocked(value uint64) *inflight {
	if value <= d.completed {
		return nil
	}
	for _, e := range d.inflight {
		if e.value >= value {
			return e
		}
	}
	return nil
}

// markCompletedLocked records that the timeline reached value and
// releases what completed submissions owned.
func (d *Device) markCompletedLocked(value uint64) {
	if value > d.completed {
		d.completed = value
	}
	n := 0
	for _, e := range d.inflight {
		if e.value > d.completed {
			break
		}
		d.releaseLocked(e)
		n++
	}
	d.inflight = d.inflight[n:]
}

// reapLocked polls the timeline without blocking.
func (d *Device) reapLocked() {
	for len(d.inflight) > 0 {
		e := d.inflight[0]
		reached, err := d.device.Wait(d.timeline, e.value, 0)
		if err != nil || !reached {
			return
		}
		d.markCompletedLocked(e.value)
	}
}

func (d *Device) releaseLocked(e *inflight) {
	for _, cb := range e.cmdBufs {
		d.device.FreeCommandBuffer(cb)
	}
	for _, b := range e.scratch {
		d.device.DestroyBuffer(b)
	}
	for _, b := range e.buffers {
		d.device.DestroyBuffer(b)
	}
	for _, t := range e.textures {
		d.device.DestroyTexture(t)
	}
	*e = inflight{value: e.value}
}

// WaitIdle implements gpucore.Device.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return ErrDeviceDestroyed
	}
	value := d.submitted
	if value <= d.completed {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	reached, err := d.device.Wait(d.timeline, value, gpucore.Infinite)
	if err != nil {
		return fmt.Errorf("halgpu: wait idle: %w", err)
	}
	if !reached {
		return fmt.Errorf("halgpu: wait idle: timeline stalled at submission %d", value)
	}
	d.mu.Lock()
	d.markCompletedLocked(value)
	d.mu.Unlock()
	return nil
}

// Destroy implements gpucore.Device. It waits for outstanding work, then
// releases every object still alive. An owned hal device and instance are
// destroyed last.
func (d *Device) Destroy() {
	if err := d.WaitIdle(); err != nil && !errors.Is(err, ErrDeviceDestroyed) {
		slogger().Warn("halgpu: destroy without idle", "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true

	for _, e := range d.inflight {
		d.releaseLocked(e)
	}
	d.inflight = nil
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		delete(d.buffers, id)
	}
	for id, img := range d.images {
		d.device.DestroyTexture(img.raw)
		delete(d.images, id)
	}
	clear(d.semaphores)
	clear(d.fences)
	d.device.DestroyFence(d.timeline)

	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
}

// Live reports the number of live buffers and images.
func (d *Device) Live() (buffers, images int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers), len(d.images)
}

// markPendingLocked schedules a signal on a semaphore outside of a queue
// submission, as swapchain acquisition does.
func (d *Device) markPendingLocked(id gpucore.SemaphoreID) error {
	s, ok := d.semaphores[id]
	if !ok {
		return fmt.Errorf("%w: semaphore %d", ErrUnknownObject, id)
	}
	if s.pending {
		return fmt.Errorf("%w: semaphore %d", ErrSemaphorePending, id)
	}
	s.pending = true
	return nil
}

// consumeWaitsLocked consumes the signals of waits, as presentation does.
func (d *Device) consumeWaitsLocked(waits []gpucore.SemaphoreID) error {
	for _, id := range waits {
		s, ok := d.semaphores[id]
		if !ok {
			return fmt.Errorf("%w: semaphore %d", ErrUnknownObject, id)
		}
		if !s.pending {
			return fmt.Errorf("%w: semaphore %d", ErrNoPendingSignal, id)
		}
	}
	for _, id := range waits {
		d.semaphores[id].pending = false
	}
	return nil
}
