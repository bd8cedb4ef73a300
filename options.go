package gpuframe

import (
	"log/slog"
	"slices"

	"github.com/gogpu/gpuframe/gpucore"
	"github.com/gogpu/gpuframe/internal/mainthread"
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	ctx, err := gpuframe.NewContext(dev,
//	    gpuframe.WithWindowSystem(ws),
//	    gpuframe.WithRecordWorkers(4),
//	)
type ContextOption func(*contextOptions)

type contextOptions struct {
	logger        *slog.Logger
	windowSystem  gpucore.WindowSystem
	mainThread    *MainLoop
	recordWorkers int
}

func defaultContextOptions() contextOptions {
	return contextOptions{}
}

// WithLogger sets the logger used by the Context and everything it creates.
// Without it the package logger ([Logger]) at creation time is used.
func WithLogger(l *slog.Logger) ContextOption {
	return func(o *contextOptions) {
		o.logger = l
	}
}

// WithWindowSystem sets the window system windows are created with.
func WithWindowSystem(ws gpucore.WindowSystem) ContextOption {
	return func(o *contextOptions) {
		o.windowSystem = ws
	}
}

// WithMainThread routes window-system calls through loop, which the caller
// runs (typically on the process main thread) and closes. Without it the
// Context starts and owns a loop on a dedicated locked OS thread.
func WithMainThread(loop *MainLoop) ContextOption {
	return func(o *contextOptions) {
		o.mainThread = loop
	}
}

// WithRecordWorkers sets the number of goroutines used by
// [Context.RecordParallel]. Zero or negative means GOMAXPROCS.
func WithRecordWorkers(n int) ContextOption {
	return func(o *contextOptions) {
		o.recordWorkers = n
	}
}

// MainLoop runs functions on the thread that owns the window system.
type MainLoop = mainthread.Loop

// NewMainLoop creates a loop to be serviced by the caller with Run.
//
// Example:
//
//	func init() { runtime.LockOSThread() }
//
//	func main() {
//	    loop := gpuframe.NewMainLoop()
//	    go app(loop) // creates a Context WithMainThread(loop), then loop.Close()
//	    loop.Run()
//	}
func NewMainLoop() *MainLoop {
	return mainthread.NewLoop()
}

// FrameSignalFunc returns additional semaphores to signal with frame's
// render submission. The caller keeps ownership of them.
type FrameSignalFunc func(frame int64) []*Semaphore

// WindowOption configures a Window during creation.
type WindowOption func(*windowOptions)

type windowOptions struct {
	title        string
	width        uint32
	height       uint32
	srgb         bool
	mode         PresentationMode
	samples      uint32
	presentable  uint32
	concurrent   uint32
	attachments  []gpucore.Attachment
	frameSignals FrameSignalFunc
}

func defaultWindowOptions() windowOptions {
	return windowOptions{
		title:   "gpuframe",
		width:   1280,
		height:  720,
		srgb:    false,
		mode:    TripleBuffering,
		samples: 1,
	}
}

// WithTitle sets the window title.
func WithTitle(title string) WindowOption {
	return func(o *windowOptions) {
		o.title = title
	}
}

// WithSize sets the requested window size in pixels.
func WithSize(width, height uint32) WindowOption {
	return func(o *windowOptions) {
		o.width = width
		o.height = height
	}
}

// WithSRGBFramebuffer requests an sRGB (true) or linear (false) surface format.
func WithSRGBFramebuffer(srgb bool) WindowOption {
	return func(o *windowOptions) {
		o.srgb = srgb
	}
}

// WithPresentationMode sets the presentation policy.
func WithPresentationMode(m PresentationMode) WindowOption {
	return func(o *windowOptions) {
		o.mode = m
	}
}

// WithSamples sets the multisample count.
func WithSamples(n uint32) WindowOption {
	return func(o *windowOptions) {
		o.samples = n
	}
}

// WithPresentableImages overrides the swapchain image count.
func WithPresentableImages(n uint32) WindowOption {
	return func(o *windowOptions) {
		o.presentable = n
	}
}

// WithConcurrentFrames overrides the number of frames in flight.
func WithConcurrentFrames(n uint32) WindowOption {
	return func(o *windowOptions) {
		o.concurrent = n
	}
}

// WithAdditionalAttachments adds attachments to every back buffer.
func WithAdditionalAttachments(atts ...gpucore.Attachment) WindowOption {
	return func(o *windowOptions) {
		o.attachments = slices.Clone(atts)
	}
}

// WithFrameSignals installs a hook that adds signal semaphores to each
// frame's render submission. Without it only render-finished is signaled.
func WithFrameSignals(fn FrameSignalFunc) WindowOption {
	return func(o *windowOptions) {
		o.frameSignals = fn
	}
}
