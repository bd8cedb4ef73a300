package gpuframe

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpuframe/gpucore"
	"github.com/gogpu/gpuframe/internal/lifetime"
	"github.com/gogpu/gpuframe/internal/swapchain"
)

// ResolvedConfig is the immutable configuration a swapchain was built with.
type ResolvedConfig = swapchain.Resolved

// Multisample is the multisample state derived from the sample count.
type Multisample = swapchain.Multisample

// BackBuffer describes the framebuffer built for one swapchain image: the
// swapchain color attachment followed by the additional attachments.
type BackBuffer struct {
	Index       uint32
	Image       *Image
	Attachments []gpucore.Attachment
}

// FrameStats counts frame loop events since the window was opened.
type FrameStats struct {
	Frames            int64
	FenceWaits        int64
	Reclaims          int64
	Submissions       int64
	Presents          int64
	ReleasedResources int64
	Recreations       int64
}

// frameSlot is one in-flight slot.
type frameSlot struct {
	inFlight       *Fence
	imageAvailable *Semaphore
	renderFinished *Semaphore

	// armed is set once the fence has been submitted since its last reset.
	// A slot whose frame failed after the reset is not waited on again.
	armed bool
}

// Window owns a surface, its swapchain and the frame scheduler.
//
// RenderFrame, Recreate and Close must be called from one goroutine (the
// render loop). Registration methods and configuration setters may be called
// from any goroutine.
type Window struct {
	ctx    *Context
	logger *slog.Logger

	// mu guards the requested configuration and the lifecycle flags.
	mu       sync.Mutex
	opts     windowOptions
	open     bool
	recreate bool
	stale    bool

	// frameMu serializes the frame loop against recreation and teardown.
	frameMu sync.Mutex

	handle    gpucore.WindowHandle
	surface   gpucore.Surface
	swapchain gpucore.Swapchain
	resolved  swapchain.Resolved
	images    []*Image
	buffers   []BackBuffer
	slots     []frameSlot

	frame      atomic.Int64
	concurrent atomic.Int64

	extraDeps *lifetime.Tracker[*Semaphore]
	oneTime   *lifetime.Tracker[*CommandBuffer]
	retained  *lifetime.Tracker[*CommandBuffer]

	fenceWaits  atomic.Int64
	reclaims    atomic.Int64
	submissions atomic.Int64
	presents    atomic.Int64
	released    atomic.Int64
	recreations atomic.Int64
}

// NewWindow creates a window description. Nothing is created on the device
// or the window system until Open.
func (c *Context) NewWindow(opts ...WindowOption) *Window {
	o := defaultWindowOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Window{
		ctx:       c,
		logger:    c.logger,
		opts:      o,
		extraDeps: lifetime.NewTracker[*Semaphore](),
		oneTime:   lifetime.NewTracker[*CommandBuffer](),
		retained:  lifetime.NewTracker[*CommandBuffer](),
	}
}

// Open creates the OS window and its surface on the main-thread loop and
// builds the swapchain. It blocks until the window is live.
func (w *Window) Open() error {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()

	w.mu.Lock()
	if w.open {
		w.mu.Unlock()
		return ErrWindowAlreadyOpen
	}
	desc := gpucore.WindowDescriptor{Title: w.opts.title, Width: w.opts.width, Height: w.opts.height}
	w.mu.Unlock()

	if w.ctx.closed.Load() {
		return ErrClosed
	}
	ws := w.ctx.windowSystem
	if ws == nil {
		return fmt.Errorf("%w: no window system configured", ErrWindowCreation)
	}

	err := w.ctx.main.Dispatch(func() error {
		h, err := ws.CreateWindow(&desc)
		if err != nil {
			return err
		}
		s, err := ws.CreateSurface(w.ctx.device, h)
		if err != nil {
			ws.DestroyWindow(h)
			return err
		}
		w.handle, w.surface = h, s
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrWindowCreation, desc.Title, err)
	}

	if err := w.build(); err != nil {
		w.destroyWindow()
		return err
	}

	w.mu.Lock()
	w.open = true
	w.recreate = false
	w.mu.Unlock()
	w.ctx.track(w)

	w.logger.Info("gpuframe: window opened",
		"title", desc.Title,
		"format", w.resolved.SurfaceFormat.Format,
		"present_mode", w.resolved.PresentMode,
		"images", w.resolved.PresentableImages,
		"frames_in_flight", w.resolved.ConcurrentFrames)
	return nil
}

// request snapshots the requested configuration.
func (w *Window) request() swapchain.Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	return swapchain.Request{
		SRGB:              w.opts.srgb,
		PresentMode:       w.opts.mode.PresentMode(),
		Samples:           w.opts.samples,
		PresentableImages: w.opts.presentable,
		ConcurrentFrames:  w.opts.concurrent,
		Attachments:       slices.Clone(w.opts.attachments),
	}
}

// build resolves the configuration and creates the swapchain, back buffers
// and in-flight slots. The caller holds frameMu.
func (w *Window) build() error {
	info, err := swapchain.Query(w.surface)
	if err != nil {
		return fmt.Errorf("gpuframe: build swapchain: %w", err)
	}
	resolved, err := swapchain.Resolve(w.request(), info, w.logger)
	if err != nil {
		return fmt.Errorf("gpuframe: build swapchain: %w", err)
	}

	sc, err := w.surface.CreateSwapchain(&gpucore.SwapchainDescriptor{
		Format:      resolved.SurfaceFormat,
		PresentMode: resolved.PresentMode,
		ImageCount:  resolved.PresentableImages,
		Extent:      resolved.Extent,
	})
	if err != nil {
		return fmt.Errorf("gpuframe: create swapchain: %w", err)
	}

	extent := sc.Extent()
	ids := sc.Images()
	images := make([]*Image, len(ids))
	buffers := make([]BackBuffer, len(ids))
	color := gpucore.Attachment{
		Label:       "swapchain_color",
		Format:      resolved.SurfaceFormat.Format,
		Samples:     1,
		LoadOp:      gpucore.LoadOpClear,
		StoreOp:     gpucore.StoreOpStore,
		FinalLayout: gpucore.ImageLayoutPresentSrc,
	}
	for i, id := range ids {
		images[i] = w.ctx.wrapImage(id, gpucore.ImageDescriptor{
			Label:  fmt.Sprintf("swapchain_%d", i),
			Width:  extent.Width,
			Height: extent.Height,
			Format: resolved.SurfaceFormat.Format,
			Usage:  gpucore.ImageUsageColorAttachment,
		}, ImageUsagePresent)
		buffers[i] = BackBuffer{
			Index:       uint32(i),
			Image:       images[i],
			Attachments: append([]gpucore.Attachment{color}, resolved.Attachments...),
		}
	}

	slots := make([]frameSlot, resolved.ConcurrentFrames)
	for i := range slots {
		if err := w.createSlot(&slots[i]); err != nil {
			destroySlots(slots[:i+1])
			sc.Destroy()
			return err
		}
	}

	w.swapchain = sc
	w.resolved = resolved
	w.images = images
	w.buffers = buffers
	w.slots = slots
	w.concurrent.Store(int64(len(slots)))
	return nil
}

func (w *Window) createSlot(s *frameSlot) error {
	var err error
	// Signaled so the first wait on each slot returns immediately.
	if s.inFlight, err = w.ctx.CreateFence(true); err != nil {
		return err
	}
	s.armed = true
	if s.imageAvailable, err = w.ctx.CreateSemaphore(); err != nil {
		return err
	}
	if s.renderFinished, err = w.ctx.CreateSemaphore(); err != nil {
		return err
	}
	return nil
}

func destroySlots(slots []frameSlot) {
	for _, s := range slots {
		if s.inFlight != nil {
			s.inFlight.Destroy()
		}
		if s.imageAvailable != nil {
			s.imageAvailable.Destroy()
		}
		if s.renderFinished != nil {
			s.renderFinished.Destroy()
		}
	}
}

// RenderFrame runs one frame iteration: wait for the slot's fence, reclaim
// the retired frame's deferred resources, acquire an image, submit cbs plus
// the frame's one-time command buffers, present, and advance the frame
// counter.
//
// An acquire or submit failure leaves the frame counter unchanged. After a
// submit failure RenderFrame returns ErrRecreateRequired until Recreate
// runs. A present failure still advances the counter, since the frame was
// submitted. No failure is retried.
func (w *Window) RenderFrame(cbs ...*CommandBuffer) error {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()

	if !w.isOpen() {
		return ErrWindowNotOpen
	}
	if w.isStale() {
		return ErrRecreateRequired
	}
	for _, cb := range cbs {
		if err := cb.checkExecutable(); err != nil {
			return err
		}
	}

	frame := w.frame.Load()
	n := int64(len(w.slots))
	slot := &w.slots[frame%n]

	// Waiting
	if slot.armed {
		if _, err := slot.inFlight.Wait(gpucore.Infinite); err != nil {
			return fmt.Errorf("gpuframe: frame %d: wait in-flight fence: %w", frame, err)
		}
		w.fenceWaits.Add(1)
		if err := slot.inFlight.Reset(); err != nil {
			return fmt.Errorf("gpuframe: frame %d: reset in-flight fence: %w", frame, err)
		}
		slot.armed = false
	}

	// Reclaim
	w.reclaim(frame - n)

	// Acquiring
	w.ctx.submitMu.Lock()
	index, err := w.swapchain.AcquireNextImage(gpucore.Infinite, slot.imageAvailable.id)
	w.ctx.submitMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: frame %d: %w", ErrAcquireFailed, frame, err)
	}

	// Submitting
	extra := w.extraDeps.Entries(frame)
	waits := make([]gpucore.SemaphoreID, 0, 1+len(extra))
	stages := make([]gpucore.PipelineStage, 0, 1+len(extra))
	waits = append(waits, slot.imageAvailable.id)
	stages = append(stages, gpucore.StageColorAttachmentOutput)
	for _, s := range extra {
		waits = append(waits, s.id)
		stages = append(stages, gpucore.StageColorAttachmentOutput)
	}

	signals := []gpucore.SemaphoreID{slot.renderFinished.id}
	if fn := w.frameSignals(); fn != nil {
		for _, s := range fn(frame) {
			signals = append(signals, s.id)
		}
	}

	oneTime := w.oneTime.Entries(frame)
	lists := make([]*gpucore.CommandList, 0, len(cbs)+len(oneTime))
	for _, cb := range cbs {
		lists = append(lists, cb.take())
		w.retained.Register(frame, cb)
	}
	for _, cb := range oneTime {
		if err := cb.checkExecutable(); err != nil {
			w.logger.Warn("gpuframe: skipping one-time command buffer", "frame", frame, "label", cb.label, "err", err)
			continue
		}
		lists = append(lists, cb.take())
	}

	info := &gpucore.SubmitInfo{
		Label:            fmt.Sprintf("frame %d", frame),
		CommandLists:     lists,
		WaitSemaphores:   waits,
		WaitStages:       stages,
		SignalSemaphores: signals,
		Fence:            slot.inFlight.id,
	}
	w.ctx.submitMu.Lock()
	err = w.ctx.device.Submit(gpucore.QueueGraphics, info)
	w.ctx.submitMu.Unlock()
	if err != nil {
		// The slot's image-available semaphore is signaled with no waiter
		// and the acquired image is never presented.
		w.mu.Lock()
		w.stale = true
		w.recreate = true
		w.mu.Unlock()
		return fmt.Errorf("%w: frame %d: %w", ErrSubmitFailed, frame, err)
	}
	slot.armed = true
	w.submissions.Add(1)

	// Presenting
	w.ctx.submitMu.Lock()
	err = w.swapchain.Present(gpucore.QueuePresent, []gpucore.SemaphoreID{slot.renderFinished.id}, index)
	w.ctx.submitMu.Unlock()

	// Advanced
	w.frame.Add(1)
	if err != nil {
		return fmt.Errorf("%w: frame %d: %w", ErrPresentFailed, frame, err)
	}
	w.presents.Add(1)

	w.logger.Debug("gpuframe: frame presented",
		"frame", frame,
		"slot", frame%n,
		"image", index,
		"waits", len(waits),
		"lists", len(lists))
	return nil
}

// reclaim releases every deferred resource registered for frame. It runs
// once per iteration, also for negative frames with nothing registered.
func (w *Window) reclaim(frame int64) {
	w.reclaims.Add(1)
	w.release(frame)
}

// release destroys the deferred resources of frame.
func (w *Window) release(frame int64) {
	var released int64
	for _, s := range w.extraDeps.Reclaim(frame) {
		s.Destroy()
		released++
	}
	for _, cb := range w.oneTime.Reclaim(frame) {
		cb.Destroy()
		released++
	}
	for _, cb := range w.retained.Reclaim(frame) {
		cb.Destroy()
	}
	if released > 0 {
		w.released.Add(released)
		w.logger.Debug("gpuframe: reclaimed deferred resources", "frame", frame, "count", released)
	}
}

func (w *Window) isOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

func (w *Window) isStale() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stale
}

func (w *Window) frameSignals() FrameSignalFunc {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts.frameSignals
}

// CurrentFrame returns the index of the next frame to be rendered.
func (w *Window) CurrentFrame() int64 {
	return w.frame.Load()
}

// SetExtraSemaphoreDependency makes the current frame's render submission
// wait on s. Ownership of s moves to the window; it is destroyed once the
// frame has retired.
func (w *Window) SetExtraSemaphoreDependency(s *Semaphore) error {
	return w.SetExtraSemaphoreDependencyForFrame(s, w.CurrentFrame())
}

// SetExtraSemaphoreDependencyForFrame is SetExtraSemaphoreDependency for a
// given frame index. Registering for a frame that was already submitted
// only defers the destruction of s. Frames whose reclaim already ran are
// moved to the oldest frame still awaiting one.
func (w *Window) SetExtraSemaphoreDependencyForFrame(s *Semaphore, frame int64) error {
	if err := s.consume(); err != nil {
		return fmt.Errorf("%w: %d", err, s.id)
	}
	w.extraDeps.Register(w.reclaimableFrame(frame), s)
	return nil
}

// reclaimableFrame clamps frame to current-N, the frame the next Reclaim
// releases.
func (w *Window) reclaimableFrame(frame int64) int64 {
	return max(frame, w.frame.Load()-w.concurrent.Load())
}

// SetOneTimeSubmitCommandBuffer submits cb with the current frame and
// releases it once that frame has retired.
func (w *Window) SetOneTimeSubmitCommandBuffer(cb *CommandBuffer) error {
	return w.SetOneTimeSubmitCommandBufferForFrame(cb, w.CurrentFrame())
}

// SetOneTimeSubmitCommandBufferForFrame is SetOneTimeSubmitCommandBuffer for
// a given frame index.
func (w *Window) SetOneTimeSubmitCommandBufferForFrame(cb *CommandBuffer, frame int64) error {
	if err := cb.checkExecutable(); err != nil {
		return err
	}
	w.oneTime.Register(w.reclaimableFrame(frame), cb)
	return nil
}

// PendingDependencies returns the number of extra semaphore dependencies
// registered for frame and not yet reclaimed.
func (w *Window) PendingDependencies(frame int64) int {
	return w.extraDeps.Pending(frame)
}

// PendingCommandBuffers returns the number of one-time command buffers
// registered for frame and not yet reclaimed.
func (w *Window) PendingCommandBuffers(frame int64) int {
	return w.oneTime.Pending(frame)
}

// setOption applies a configuration change. Once the window is live it
// only marks the swapchain for recreation.
func (w *Window) setOption(opt WindowOption) {
	w.mu.Lock()
	defer w.mu.Unlock()
	opt(&w.opts)
	if w.open {
		w.recreate = true
	}
}

// RequestSRGBFramebuffer requests an sRGB or linear surface format.
func (w *Window) RequestSRGBFramebuffer(srgb bool) { w.setOption(WithSRGBFramebuffer(srgb)) }

// SetPresentationMode sets the presentation policy.
func (w *Window) SetPresentationMode(m PresentationMode) { w.setOption(WithPresentationMode(m)) }

// SetNumberOfSamples sets the multisample count.
func (w *Window) SetNumberOfSamples(n uint32) { w.setOption(WithSamples(n)) }

// SetNumberOfPresentableImages overrides the swapchain image count.
func (w *Window) SetNumberOfPresentableImages(n uint32) { w.setOption(WithPresentableImages(n)) }

// SetNumberOfConcurrentFrames overrides the number of frames in flight.
func (w *Window) SetNumberOfConcurrentFrames(n uint32) { w.setOption(WithConcurrentFrames(n)) }

// SetAdditionalBackBufferAttachments replaces the additional attachments.
func (w *Window) SetAdditionalBackBufferAttachments(atts ...gpucore.Attachment) {
	w.setOption(WithAdditionalAttachments(atts...))
}

// RecreationRequired reports whether the configuration changed while the
// window was live.
func (w *Window) RecreationRequired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.recreate
}

// Recreate rebuilds the swapchain and in-flight slots with the current
// configuration, for example after ErrOutOfDate or a configuration change.
// It waits for the device to go idle first. The frame counter and the
// deferred resource queues are kept.
func (w *Window) Recreate() error {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()

	if !w.isOpen() {
		return ErrWindowNotOpen
	}
	if err := w.ctx.WaitIdle(); err != nil {
		return err
	}
	// The device is idle, so every submitted frame has retired. The slot
	// count may change, so release them now rather than at frame+N.
	current := w.frame.Load()
	for f := current - int64(len(w.slots)); f < current; f++ {
		w.release(f)
	}
	w.destroySwapchain()
	if err := w.build(); err != nil {
		return err
	}

	w.mu.Lock()
	w.recreate = false
	w.stale = false
	w.mu.Unlock()
	w.recreations.Add(1)

	w.logger.Info("gpuframe: swapchain recreated",
		"present_mode", w.resolved.PresentMode,
		"images", w.resolved.PresentableImages,
		"frames_in_flight", w.resolved.ConcurrentFrames)
	return nil
}

func (w *Window) destroySwapchain() {
	destroySlots(w.slots)
	w.slots = nil
	w.images = nil
	w.buffers = nil
	if w.swapchain != nil {
		w.swapchain.Destroy()
		w.swapchain = nil
	}
}

func (w *Window) destroyWindow() {
	if w.surface != nil {
		w.surface.Destroy()
		w.surface = nil
	}
	if w.handle != gpucore.InvalidID {
		h, ws := w.handle, w.ctx.windowSystem
		if err := w.ctx.main.RunOnMain(func() { ws.DestroyWindow(h) }); err != nil {
			w.logger.Warn("gpuframe: destroy window", "err", err)
		}
		w.handle = gpucore.InvalidID
	}
}

// Close waits for the device to go idle, releases every deferred resource,
// the swapchain, the surface and the OS window. Close is idempotent.
func (w *Window) Close() error {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()

	w.mu.Lock()
	if !w.open {
		w.mu.Unlock()
		return nil
	}
	w.open = false
	w.mu.Unlock()
	w.ctx.untrack(w)

	err := w.ctx.WaitIdle()
	for _, s := range w.extraDeps.Drain() {
		s.Destroy()
	}
	for _, cb := range w.oneTime.Drain() {
		cb.Destroy()
	}
	for _, cb := range w.retained.Drain() {
		cb.Destroy()
	}
	w.destroySwapchain()
	w.destroyWindow()

	w.logger.Info("gpuframe: window closed", "frames", w.frame.Load())
	return err
}

// Resolved returns the configuration of the current swapchain.
func (w *Window) Resolved() ResolvedConfig {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()
	r := w.resolved
	r.Attachments = slices.Clone(r.Attachments)
	return r
}

// ConcurrentFrames returns the number of in-flight slots.
func (w *Window) ConcurrentFrames() int {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()
	return len(w.slots)
}

// BackBuffers returns the framebuffer descriptions of the current swapchain.
func (w *Window) BackBuffers() []BackBuffer {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()
	return slices.Clone(w.buffers)
}

// Stats returns a snapshot of the frame loop counters.
func (w *Window) Stats() FrameStats {
	return FrameStats{
		Frames:            w.frame.Load(),
		FenceWaits:        w.fenceWaits.Load(),
		Reclaims:          w.reclaims.Load(),
		Submissions:       w.submissions.Load(),
		Presents:          w.presents.Load(),
		ReleasedResources: w.released.Load(),
		Recreations:       w.recreations.Load(),
	}
}
