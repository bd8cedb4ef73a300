package gpuframe

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpuframe/gpucore"
	"github.com/gogpu/gpuframe/internal/lifetime"
	"github.com/gogpu/gpuframe/internal/mainthread"
	"github.com/gogpu/gpuframe/internal/parallel"
)

// Context is the rendering context shared by windows, queues and uploads.
//
// It is created once at startup and closed once at shutdown. Every
// component receives it explicitly; there is no global context.
type Context struct {
	device       gpucore.Device
	windowSystem gpucore.WindowSystem
	logger       *slog.Logger

	main     *mainthread.Loop
	ownsMain bool

	poolOnce sync.Once
	pool     *parallel.Pool
	workers  int

	bindings *lifetime.Bindings

	// submitMu serializes queue submission, acquire and present.
	submitMu sync.Mutex

	graphics *Queue
	transfer *Queue
	present  *Queue

	mu      sync.Mutex
	windows []*Window
	closed  atomic.Bool
}

// NewContext creates a rendering context on device.
func NewContext(device gpucore.Device, opts ...ContextOption) (*Context, error) {
	if device == nil {
		return nil, errors.New("gpuframe: nil device")
	}
	o := defaultContextOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = Logger()
	}

	c := &Context{
		device:       device,
		windowSystem: o.windowSystem,
		logger:       logger,
		main:         o.mainThread,
		workers:      o.recordWorkers,
		bindings:     lifetime.NewBindings(),
	}
	if c.main == nil {
		c.main = mainthread.Start()
		c.ownsMain = true
	}
	c.graphics = &Queue{ctx: c, kind: gpucore.QueueGraphics}
	c.transfer = &Queue{ctx: c, kind: gpucore.QueueTransfer}
	c.present = &Queue{ctx: c, kind: gpucore.QueuePresent}
	return c, nil
}

// Device returns the underlying device.
func (c *Context) Device() gpucore.Device { return c.device }

// Logger returns the context logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// GraphicsQueue returns the queue used for rendering and layout transitions.
func (c *Context) GraphicsQueue() *Queue { return c.graphics }

// TransferQueue returns the queue used for copies.
func (c *Context) TransferQueue() *Queue { return c.transfer }

// PresentQueue returns the queue used for presentation.
func (c *Context) PresentQueue() *Queue { return c.present }

// CreateSemaphore creates a semaphore with the color-attachment-output
// wait stage.
func (c *Context) CreateSemaphore() (*Semaphore, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	id, err := c.device.CreateSemaphore()
	if err != nil {
		return nil, fmt.Errorf("gpuframe: create semaphore: %w", err)
	}
	return &Semaphore{ctx: c, id: id, stage: gpucore.StageColorAttachmentOutput}, nil
}

// CreateFence creates a fence, optionally already signaled.
func (c *Context) CreateFence(signaled bool) (*Fence, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	id, err := c.device.CreateFence(signaled)
	if err != nil {
		return nil, fmt.Errorf("gpuframe: create fence: %w", err)
	}
	return &Fence{ctx: c, id: id}, nil
}

// NewCommandBuffer creates an empty command buffer in the initial state.
func (c *Context) NewCommandBuffer(label string) *CommandBuffer {
	return &CommandBuffer{label: label}
}

// RecordParallel records one command buffer per function concurrently on
// the context's worker pool. Each function receives a buffer that is
// already recording; it is ended when the function returns nil.
// Submission of the results stays with the caller.
func (c *Context) RecordParallel(label string, fns ...func(*CommandBuffer) error) ([]*CommandBuffer, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.poolOnce.Do(func() {
		c.pool = parallel.NewPool(c.workers)
	})

	bufs := make([]*CommandBuffer, len(fns))
	jobs := make([]func() error, len(fns))
	for i, fn := range fns {
		cb := c.NewCommandBuffer(fmt.Sprintf("%s[%d]", label, i))
		bufs[i] = cb
		jobs[i] = func() error {
			if err := cb.BeginRecording(); err != nil {
				return err
			}
			if err := fn(cb); err != nil {
				return err
			}
			return cb.EndRecording()
		}
	}
	if err := c.pool.Run(jobs); err != nil {
		return nil, fmt.Errorf("gpuframe: parallel recording: %w", err)
	}
	return bufs, nil
}

// WaitIdle blocks until the device has finished all submitted work.
func (c *Context) WaitIdle() error {
	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("gpuframe: wait idle: %w", err)
	}
	return nil
}

// Close closes all open windows, waits for the device to go idle and stops
// the worker pool and the owned main-thread loop. The device itself is
// owned by the caller.
func (c *Context) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	windows := c.windows
	c.windows = nil
	c.mu.Unlock()

	var errs []error
	for _, w := range windows {
		errs = append(errs, w.Close())
	}
	errs = append(errs, c.WaitIdle())

	if c.pool != nil {
		c.pool.Close()
	}
	if c.ownsMain {
		c.main.Close()
	}
	c.logger.Debug("gpuframe: context closed", "bound", c.bindings.Owners())
	return errors.Join(errs...)
}

func (c *Context) track(w *Window) {
	c.mu.Lock()
	c.windows = append(c.windows, w)
	c.mu.Unlock()
}

func (c *Context) untrack(w *Window) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.windows {
		if x == w {
			c.windows = append(c.windows[:i], c.windows[i+1:]...)
			return
		}
	}
}
