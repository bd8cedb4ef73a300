// Package sim provides a simulated asynchronous GPU.
//
// The simulated device executes submissions on its own goroutine, in
// submission order, after all of a submission's wait semaphores have been
// signaled and an optional latency has elapsed. It tracks layouts and
// contents of images, checks synchronization rules (waiting on a semaphore
// nobody will signal, destroying resources still referenced by pending
// work, transitions from the wrong layout) and records everything it sees,
// so tests can assert how a frame loop drove it.
package sim

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/gpuframe/gpucore"
)

// Device errors.
var (
	// ErrDeviceLost is returned after Destroy.
	ErrDeviceLost = errors.New("sim: device destroyed")

	// ErrUnknownObject is returned for IDs the device never handed out or
	// already destroyed.
	ErrUnknownObject = errors.New("sim: unknown object")

	// ErrNoPendingSignal is returned when a submission waits on a semaphore
	// that is neither signaled nor going to be signaled by earlier work.
	ErrNoPendingSignal = errors.New("sim: wait on semaphore without pending signal")

	// ErrFenceNotSubmitted is returned when waiting on an unsignaled fence
	// that no submission will signal.
	ErrFenceNotSubmitted = errors.New("sim: wait on fence that was never submitted")

	// ErrFenceInUse is returned when resetting a fence with pending work.
	ErrFenceInUse = errors.New("sim: reset of fence in use")
)

// Option configures a Device.
type Option func(*Device)

// WithLatency delays the execution of every submission by d.
func WithLatency(d time.Duration) Option {
	return func(dev *Device) {
		dev.latency = d
	}
}

// WithSurfaceConfig sets what surfaces created by the device's window
// system report.
func WithSurfaceConfig(cfg SurfaceConfig) Option {
	return func(dev *Device) {
		dev.surface = cfg
	}
}

type semaphore struct {
	signaled       bool
	pendingSignals int
	pendingWaits   int
}

type fence struct {
	signaled bool
	pending  int
}

type buffer struct {
	desc    gpucore.BufferDescriptor
	data    []byte
	pending int
}

type image struct {
	desc      gpucore.ImageDescriptor
	layout    gpucore.ImageLayout
	data      []byte
	pending   int
	swapchain bool
}

type job struct {
	queue   gpucore.QueueType
	label   string
	waits   []gpucore.SemaphoreID
	lists   []*gpucore.CommandList
	signals []gpucore.SemaphoreID
	fence   gpucore.FenceID
	buffers []gpucore.BufferID
	images  []gpucore.ImageID
	present *PresentRecord
}

// Device is a simulated gpucore.Device. It is safe for concurrent use.
type Device struct {
	latency time.Duration
	surface SurfaceConfig

	mu   sync.Mutex
	cond *sync.Cond

	nextID    uint64
	destroyed bool

	semaphores map[gpucore.SemaphoreID]*semaphore
	fences     map[gpucore.FenceID]*fence
	buffers    map[gpucore.BufferID]*buffer
	images     map[gpucore.ImageID]*image

	queue   []*job
	queued  int
	stopped chan struct{}

	failSubmit  []error
	failPresent []error
	failIdle    []error
	acquireErr  error

	rec records
}

// New creates a simulated device and starts its execution goroutine.
func New(opts ...Option) *Device {
	d := &Device{
		surface:    DefaultSurfaceConfig(),
		semaphores: make(map[gpucore.SemaphoreID]*semaphore),
		fences:     make(map[gpucore.FenceID]*fence),
		buffers:    make(map[gpucore.BufferID]*buffer),
		images:     make(map[gpucore.ImageID]*image),
		stopped:    make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	go d.run()
	return d
}

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

// CreateSemaphore implements gpucore.Device.
func (d *Device) CreateSemaphore() (gpucore.SemaphoreID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return 0, ErrDeviceLost
	}
	id := gpucore.SemaphoreID(d.id())
	d.semaphores[id] = &semaphore{}
	d.rec.semaphoresCreated++
	return id, nil
}

// DestroySemaphore implements gpucore.Device.
func (d *Device) DestroySemaphore(id gpucore.SemaphoreID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.semaphores[id]
	if !ok {
		d.violate("destroy of unknown semaphore %d", id)
		return
	}
	if s.pendingSignals > 0 || s.pendingWaits > 0 {
		d.violate("semaphore %d destroyed while referenced by pending work", id)
	}
	delete(d.semaphores, id)
	d.rec.destroyedSemaphores = append(d.rec.destroyedSemaphores, id)
	d.cond.Broadcast()
}

// CreateFence implements gpucore.Device.
func (d *Device) CreateFence(signaled bool) (gpucore.FenceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return 0, ErrDeviceLost
	}
	id := gpucore.FenceID(d.id())
	d.fences[id] = &fence{signaled: signaled}
	return id, nil
}

// DestroyFence implements gpucore.Device.
func (d *Device) DestroyFence(id gpucore.FenceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[id]
	if !ok {
		d.violate("destroy of unknown fence %d", id)
		return
	}
	if f.pending > 0 {
		d.violate("fence %d destroyed while in use", id)
	}
	delete(d.fences, id)
}

// WaitFence implements gpucore.Device.
func (d *Device) WaitFence(id gpucore.FenceID, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rec.fenceWaits++
	f, ok := d.fences[id]
	if !ok {
		return false, fmt.Errorf("%w: fence %d", ErrUnknownObject, id)
	}
	if !f.signaled && f.pending == 0 {
		return false, fmt.Errorf("%w: fence %d", ErrFenceNotSubmitted, id)
	}

	var expired bool
	if timeout != gpucore.Infinite {
		t := time.AfterFunc(timeout, func() {
			d.mu.Lock()
			expired = true
			d.cond.Broadcast()
			d.mu.Unlock()
		})
		defer t.Stop()
	}
	for !f.signaled {
		if expired {
			return false, nil
		}
		if d.destroyed {
			return false, ErrDeviceLost
		}
		d.cond.Wait()
	}
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
	if f.pending > 0 {
		return fmt.Errorf("%w: fence %d", ErrFenceInUse, id)
	}
	f.signaled = false
	return nil
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return 0, ErrDeviceLost
	}
	if desc.Size == 0 {
		return 0, errors.New("sim: zero-sized buffer")
	}
	id := gpucore.BufferID(d.id())
	d.buffers[id] = &buffer{desc: *desc, data: make([]byte, desc.Size)}
	d.rec.buffersCreated++
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
		return fmt.Errorf("sim: write to buffer %d that is not host visible", id)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("sim: write of %d bytes at %d overflows buffer %d", len(data), offset, id)
	}
	copy(b.data[offset:], data)
	return nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		d.violate("destroy of unknown buffer %d", id)
		return
	}
	if b.pending > 0 {
		d.violate("buffer %d destroyed while referenced by pending work", id)
	}
	delete(d.buffers, id)
	d.rec.destroyedBuffers = append(d.rec.destroyedBuffers, id)
}

// CreateImage implements gpucore.Device.
func (d *Device) CreateImage(desc *gpucore.ImageDescriptor) (gpucore.ImageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createImage(desc, false)
}

func (d *Device) createImage(desc *gpucore.ImageDescriptor, swapchain bool) (gpucore.ImageID, error) {
	if d.destroyed {
		return 0, ErrDeviceLost
	}
	if desc.Width == 0 || desc.Height == 0 {
		return 0, errors.New("sim: zero-sized image")
	}
	id := gpucore.ImageID(d.id())
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(desc.Format.BytesPerPixel())
	d.images[id] = &image{desc: *desc, data: make([]byte, size), swapchain: swapchain}
	return id, nil
}

// DestroyImage implements gpucore.Device.
func (d *Device) DestroyImage(id gpucore.ImageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.destroyImage(id)
}

func (d *Device) destroyImage(id gpucore.ImageID) {
	img, ok := d.images[id]
	if !ok {
		d.violate("destroy of unknown image %d", id)
		return
	}
	if img.pending > 0 {
		d.violate("image %d destroyed while referenced by pending work", id)
	}
	delete(d.images, id)
}

// Submit implements gpucore.Device.
func (d *Device) Submit(queue gpucore.QueueType, info *gpucore.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.destroyed {
		return ErrDeviceLost
	}
	if len(d.failSubmit) > 0 {
		err := d.failSubmit[0]
		d.failSubmit = d.failSubmit[1:]
		if err != nil {
			return err
		}
	}
	if len(info.WaitSemaphores) != len(info.WaitStages) {
		return fmt.Errorf("sim: %d wait semaphores with %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
	}

	// Validate before touching any state.
	for _, id := range info.WaitSemaphores {
		s, ok := d.semaphores[id]
		if !ok {
			return fmt.Errorf("%w: wait semaphore %d", ErrUnknownObject, id)
		}
		if !s.signaled && s.pendingSignals == 0 {
			return fmt.Errorf("%w: %d", ErrNoPendingSignal, id)
		}
	}
	for _, id := range info.SignalSemaphores {
		if _, ok := d.semaphores[id]; !ok {
			return fmt.Errorf("%w: signal semaphore %d", ErrUnknownObject, id)
		}
	}
	var f *fence
	if info.Fence != gpucore.InvalidID {
		var ok bool
		if f, ok = d.fences[info.Fence]; !ok {
			return fmt.Errorf("%w: fence %d", ErrUnknownObject, info.Fence)
		}
		if f.signaled || f.pending > 0 {
			d.violate("submit %q with fence %d that was not reset", info.Label, info.Fence)
		}
	}
	j := &job{
		queue:   queue,
		label:   info.Label,
		waits:   slices.Clone(info.WaitSemaphores),
		lists:   slices.Clone(info.CommandLists),
		signals: slices.Clone(info.SignalSemaphores),
		fence:   info.Fence,
	}
	for _, l := range info.CommandLists {
		for _, cmd := range l.Commands {
			j.buffers, j.images = appendReferences(j.buffers, j.images, cmd)
		}
	}
	for _, id := range j.buffers {
		b, ok := d.buffers[id]
		if !ok {
			return fmt.Errorf("%w: buffer %d", ErrUnknownObject, id)
		}
		b.pending++
	}
	for _, id := range j.images {
		if img, ok := d.images[id]; ok {
			img.pending++
		}
	}

	for _, id := range j.waits {
		d.semaphores[id].pendingWaits++
	}
	for _, id := range j.signals {
		d.semaphores[id].pendingSignals++
	}
	if f != nil {
		f.pending++
		d.rec.inFlight++
		d.rec.maxInFlight = max(d.rec.maxInFlight, d.rec.inFlight)
	}

	d.rec.submissions = append(d.rec.submissions, newSubmission(queue, info))
	d.enqueue(j)
	return nil
}

func appendReferences(bufs []gpucore.BufferID, imgs []gpucore.ImageID, cmd gpucore.Command) ([]gpucore.BufferID, []gpucore.ImageID) {
	switch c := cmd.(type) {
	case gpucore.TransitionCommand:
		imgs = append(imgs, c.Image)
	case gpucore.CopyBufferToImageCommand:
		bufs = append(bufs, c.Buffer)
		imgs = append(imgs, c.Image)
	case gpucore.CopyBufferToBufferCommand:
		bufs = append(bufs, c.Src, c.Dst)
	case gpucore.CopyImageToImageCommand:
		imgs = append(imgs, c.Src, c.Dst)
	}
	return bufs, imgs
}

// enqueue hands j to the execution goroutine. The caller holds d.mu.
func (d *Device) enqueue(j *job) {
	d.queued++
	d.queue = append(d.queue, j)
	d.cond.Broadcast()
}

// WaitIdle implements gpucore.Device.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.waitIdles++
	if len(d.failIdle) > 0 {
		err := d.failIdle[0]
		d.failIdle = d.failIdle[1:]
		if err != nil {
			return err
		}
	}
	for d.queued > 0 {
		if d.destroyed {
			return ErrDeviceLost
		}
		d.cond.Wait()
	}
	return nil
}

// Destroy implements gpucore.Device. Pending work that can still run is
// executed first.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.stopped
}

func (d *Device) run() {
	defer close(d.stopped)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.destroyed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		j := d.queue[0]
		d.queue = d.queue[1:]
		d.execute(j)
	}
}

// execute runs j. It is called with d.mu held and releases it.
func (d *Device) execute(j *job) {
	for !d.waitsSignaled(j.waits) {
		if d.destroyed {
			d.queued--
			d.cond.Broadcast()
			d.mu.Unlock()
			return
		}
		if id, ok := d.destroyedWait(j.waits); ok {
			// The signal can never arrive. Drop the work but retire the
			// job so fences and later submissions still make progress.
			d.violate("%q waits on destroyed semaphore %d, dropped", j.label, id)
			for _, w := range j.waits {
				if s, ok := d.semaphores[w]; ok {
					s.pendingWaits--
				}
			}
			d.retire(j)
			d.mu.Unlock()
			return
		}
		d.cond.Wait()
	}
	for _, id := range j.waits {
		s := d.semaphores[id]
		s.signaled = false
		s.pendingWaits--
	}
	d.mu.Unlock()

	if d.latency > 0 {
		time.Sleep(d.latency)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, l := range j.lists {
		for _, cmd := range l.Commands {
			d.exec(j, cmd)
		}
	}
	if j.present != nil {
		d.rec.presents = append(d.rec.presents, *j.present)
	}
	d.rec.executed = append(d.rec.executed, j.label)
	d.retire(j)
}

// retire signals j's semaphores and fence and releases its references.
// The caller holds d.mu.
func (d *Device) retire(j *job) {
	for _, id := range j.signals {
		s, ok := d.semaphores[id]
		if !ok {
			continue
		}
		if s.signaled {
			d.violate("semaphore %d signaled twice by %q", id, j.label)
		}
		s.signaled = true
		s.pendingSignals--
	}
	for _, id := range j.buffers {
		if b, ok := d.buffers[id]; ok {
			b.pending--
		}
	}
	for _, id := range j.images {
		if img, ok := d.images[id]; ok {
			img.pending--
		}
	}
	if f, ok := d.fences[j.fence]; ok {
		f.signaled = true
		f.pending--
		d.rec.inFlight--
	}

	d.queued--
	d.cond.Broadcast()
}

// destroyedWait returns the first wait semaphore that no longer exists.
func (d *Device) destroyedWait(waits []gpucore.SemaphoreID) (gpucore.SemaphoreID, bool) {
	for _, id := range waits {
		if _, ok := d.semaphores[id]; !ok {
			return id, true
		}
	}
	return 0, false
}

func (d *Device) waitsSignaled(waits []gpucore.SemaphoreID) bool {
	for _, id := range waits {
		s, ok := d.semaphores[id]
		if !ok || !s.signaled {
			return false
		}
	}
	return true
}

// exec runs one command. The caller holds d.mu.
func (d *Device) exec(j *job, cmd gpucore.Command) {
	switch c := cmd.(type) {
	case gpucore.TransitionCommand:
		img, ok := d.images[c.Image]
		if !ok {
			d.violate("%q: transition of destroyed image %d", j.label, c.Image)
			return
		}
		if c.OldLayout != gpucore.ImageLayoutUndefined && c.OldLayout != img.layout {
			d.violate("%q: transition of image %d from %s, but it is in %s", j.label, c.Image, c.OldLayout, img.layout)
		}
		img.layout = c.NewLayout
		d.rec.transitions = append(d.rec.transitions, Transition{Image: c.Image, From: c.OldLayout, To: c.NewLayout})

	case gpucore.CopyBufferToImageCommand:
		b, bok := d.buffers[c.Buffer]
		img, iok := d.images[c.Image]
		if !bok || !iok {
			d.violate("%q: copy with destroyed buffer %d or image %d", j.label, c.Buffer, c.Image)
			return
		}
		if img.layout != gpucore.ImageLayoutTransferDst {
			d.violate("%q: copy into image %d in layout %s", j.label, c.Image, img.layout)
		}
		n := uint64(c.BytesPerRow) * uint64(c.Height)
		if c.Offset+n > uint64(len(b.data)) || n > uint64(len(img.data)) {
			d.violate("%q: copy of %d bytes out of range", j.label, n)
			return
		}
		copy(img.data, b.data[c.Offset:c.Offset+n])

	case gpucore.CopyBufferToBufferCommand:
		src, sok := d.buffers[c.Src]
		dst, dok := d.buffers[c.Dst]
		if !sok || !dok {
			d.violate("%q: copy with destroyed buffer %d or %d", j.label, c.Src, c.Dst)
			return
		}
		if c.SrcOffset+c.Size > uint64(len(src.data)) || c.DstOffset+c.Size > uint64(len(dst.data)) {
			d.violate("%q: buffer copy of %d bytes out of range", j.label, c.Size)
			return
		}
		copy(dst.data[c.DstOffset:], src.data[c.SrcOffset:c.SrcOffset+c.Size])

	case gpucore.CopyImageToImageCommand:
		src, sok := d.images[c.Src]
		dst, dok := d.images[c.Dst]
		if !sok || !dok {
			d.violate("%q: copy with destroyed image %d or %d", j.label, c.Src, c.Dst)
			return
		}
		if src.layout != gpucore.ImageLayoutTransferSrc || dst.layout != gpucore.ImageLayoutTransferDst {
			d.violate("%q: image copy in layouts %s -> %s", j.label, src.layout, dst.layout)
		}
		copy(dst.data, src.data)

	case gpucore.NativeCommand:
		if fn, ok := c.Payload.(func()); ok {
			fn()
		}
	}
	d.rec.commands = append(d.rec.commands, cmd.Kind())
}

func (d *Device) violate(format string, args ...any) {
	d.rec.violations = append(d.rec.violations, fmt.Sprintf(format, args...))
}

// FailNextSubmit makes the next Submit calls return errs, one per call.
// A nil entry lets that call through.
func (d *Device) FailNextSubmit(errs ...error) {
	d.mu.Lock()
	d.failSubmit = append(d.failSubmit, errs...)
	d.mu.Unlock()
}

// FailNextPresent makes the next Present calls return errs, one per call.
// A nil entry lets that call through.
func (d *Device) FailNextPresent(errs ...error) {
	d.mu.Lock()
	d.failPresent = append(d.failPresent, errs...)
	d.mu.Unlock()
}

// FailNextWaitIdle makes the next WaitIdle calls return errs without
// waiting, one per call. A nil entry lets that call through.
func (d *Device) FailNextWaitIdle(errs ...error) {
	d.mu.Lock()
	d.failIdle = append(d.failIdle, errs...)
	d.mu.Unlock()
}

// SetAcquireError makes every acquire fail with err until it is cleared
// with nil. Use gpucore.ErrOutOfDate to simulate a stale swapchain.
func (d *Device) SetAcquireError(err error) {
	d.mu.Lock()
	d.acquireErr = err
	d.mu.Unlock()
}

// ImageLayout returns the layout an image is in after all executed work.
func (d *Device) ImageLayout(id gpucore.ImageID) (gpucore.ImageLayout, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[id]
	if !ok {
		return 0, false
	}
	return img.layout, true
}

// ImageData returns a copy of an image's contents.
func (d *Device) ImageData(id gpucore.ImageID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if img, ok := d.images[id]; ok {
		return slices.Clone(img.data)
	}
	return nil
}

// BufferData returns a copy of a buffer's contents.
func (d *Device) BufferData(id gpucore.BufferID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.buffers[id]; ok {
		return slices.Clone(b.data)
	}
	return nil
}

// BufferAlive reports whether a buffer has not been destroyed.
func (d *Device) BufferAlive(id gpucore.BufferID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.buffers[id]
	return ok
}

// SemaphoreAlive reports whether a semaphore has not been destroyed.
func (d *Device) SemaphoreAlive(id gpucore.SemaphoreID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.semaphores[id]
	return ok
}

// LiveSemaphores returns the number of semaphores not yet destroyed.
func (d *Device) LiveSemaphores() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.semaphores)
}

// LiveImages returns the number of images not yet destroyed, swapchain
// images included.
func (d *Device) LiveImages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.images)
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}
