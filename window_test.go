package gpuframe

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gogpu/gpuframe/backend/sim"
	"github.com/gogpu/gpuframe/gpucore"
)

func openWindow(t *testing.T, ctx *Context, opts ...WindowOption) *Window {
	t.Helper()
	w := ctx.NewWindow(opts...)
	if err := w.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return w
}

// frameSubmissions returns the render submissions of the frame loop keyed
// by frame index.
func frameSubmissions(dev *sim.Device) map[int64]sim.Submission {
	out := make(map[int64]sim.Submission)
	for _, s := range dev.Submissions() {
		var f int64
		if _, err := fmt.Sscanf(s.Label, "frame %d", &f); err == nil {
			out[f] = s
		}
	}
	return out
}

func TestFrameLoopTripleBuffering(t *testing.T) {
	ctx, dev, ws := newTestContext(t, sim.WithLatency(2*time.Millisecond))
	w := openWindow(t, ctx, WithPresentationMode(TripleBuffering), WithConcurrentFrames(3))

	r := w.Resolved()
	if r.PresentMode != gpucore.PresentModeMailbox || r.PresentableImages != 3 || r.ConcurrentFrames != 3 {
		t.Fatalf("Resolved() = %+v", r)
	}

	const frames = 7
	deps := make([]*Semaphore, frames)
	for i := range frames {
		img, err := ctx.CreateImage(1, 1, gpucore.TextureFormatRGBA8Unorm, ImageUsageSampled)
		if err != nil {
			t.Fatal(err)
		}
		defer img.Destroy()
		sem, err := ctx.UploadImage([]byte{byte(i), 0, 0, 255}, img, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.SetExtraSemaphoreDependency(sem); err != nil {
			t.Fatal(err)
		}
		deps[i] = sem
		if err := w.RenderFrame(); err != nil {
			t.Fatalf("RenderFrame() frame %d error = %v", i, err)
		}
	}

	st := w.Stats()
	if w.CurrentFrame() != frames || st.Frames != frames {
		t.Errorf("CurrentFrame() = %d, want %d", w.CurrentFrame(), frames)
	}
	if st.FenceWaits != frames || st.Reclaims != frames {
		t.Errorf("fence waits = %d, reclaims = %d, want %d each", st.FenceWaits, st.Reclaims, frames)
	}
	if st.Submissions != frames || st.Presents != frames {
		t.Errorf("submissions = %d, presents = %d", st.Submissions, st.Presents)
	}
	if got := dev.MaxInFlight(); got > 3 {
		t.Errorf("MaxInFlight() = %d, must not exceed the concurrent frame count", got)
	}

	subs := frameSubmissions(dev)
	for f, dep := range deps {
		for g, s := range subs {
			if waited := s.Waited(dep.ID()); waited != (int64(f) == g) {
				t.Errorf("frame %d waits on dependency of frame %d: %v", g, f, waited)
			}
		}
	}

	// Frame k is reclaimed by the iteration of frame k+3.
	for f, dep := range deps {
		if want := f+3 < frames; dep.Destroyed() != want {
			t.Errorf("dependency of frame %d destroyed = %v, want %v", f, dep.Destroyed(), want)
		}
	}
	if w.PendingDependencies(5) != 1 || w.PendingDependencies(2) != 0 {
		t.Errorf("pending dependencies: frame 5 = %d, frame 2 = %d", w.PendingDependencies(5), w.PendingDependencies(2))
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if dev.LiveSemaphores() != 0 || dev.LiveBuffers() != 0 {
		t.Errorf("after Close: %d semaphores, %d buffers alive", dev.LiveSemaphores(), dev.LiveBuffers())
	}
	if ws.OpenWindows() != 0 {
		t.Error("OS window not destroyed")
	}
	noViolations(t, dev)
}

func TestFrameLoopCommandBuffers(t *testing.T) {
	ctx, dev, _ := newTestContext(t)
	w := openWindow(t, ctx, WithConcurrentFrames(2))

	cb := recorded(t, ctx, "scene")
	once := recorded(t, ctx, "once")
	if err := w.SetOneTimeSubmitCommandBuffer(once); err != nil {
		t.Fatal(err)
	}
	if err := w.RenderFrame(cb); err != nil {
		t.Fatal(err)
	}
	if err := w.RenderFrame(cb); !errors.Is(err, ErrCommandBufferConsumed) {
		t.Errorf("resubmitting a frame command buffer error = %v", err)
	}

	sub := frameSubmissions(dev)[0]
	if len(sub.Lists) != 2 || sub.Lists[0] != "scene" || sub.Lists[1] != "once" {
		t.Errorf("frame 0 lists = %v, want caller buffers then one-time buffers", sub.Lists)
	}

	unended := ctx.NewCommandBuffer("unended")
	if err := w.SetOneTimeSubmitCommandBuffer(unended); !errors.Is(err, ErrCommandBufferNotEnded) {
		t.Errorf("SetOneTimeSubmitCommandBuffer(unended) error = %v", err)
	}

	for range 2 {
		if err := w.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}
	if w.PendingCommandBuffers(0) != 0 {
		t.Error("one-time buffer of frame 0 should be reclaimed by frame 2")
	}
	if got := w.Stats().ReleasedResources; got != 1 {
		t.Errorf("ReleasedResources = %d, want 1", got)
	}
	if cb.Len() != 0 {
		t.Error("caller command buffer should be released with its frame")
	}
	noViolations(t, dev)
}

func TestFrameLoopLateRegistration(t *testing.T) {
	ctx, dev, _ := newTestContext(t)
	w := openWindow(t, ctx, WithConcurrentFrames(2))
	for range 5 {
		if err := w.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}

	sem, err := ctx.CreateSemaphore()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.SetExtraSemaphoreDependencyForFrame(sem, 1); err != nil {
		t.Fatal(err)
	}
	cb := recorded(t, ctx, "late")
	if err := w.SetOneTimeSubmitCommandBufferForFrame(cb, 0); err != nil {
		t.Fatal(err)
	}
	if w.PendingDependencies(3) != 1 || w.PendingCommandBuffers(3) != 1 {
		t.Fatalf("late registrations should move to frame 3: deps = %d, buffers = %d",
			w.PendingDependencies(3), w.PendingCommandBuffers(3))
	}

	if err := w.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if !sem.Destroyed() {
		t.Error("late dependency should be released by the next reclaim")
	}
	if w.PendingCommandBuffers(3) != 0 {
		t.Error("late one-time buffer should be released by the next reclaim")
	}
	if sub := frameSubmissions(dev)[5]; sub.Waited(sem.ID()) {
		t.Error("late dependency should not join a later frame's waits")
	}
	noViolations(t, dev)
}

func TestFrameLoopFrameSignals(t *testing.T) {
	ctx, dev, _ := newTestContext(t)
	var extra *Semaphore
	w := openWindow(t, ctx, WithFrameSignals(func(frame int64) []*Semaphore {
		if frame != 0 {
			return nil
		}
		s, err := ctx.CreateSemaphore()
		if err != nil {
			t.Error(err)
			return nil
		}
		extra = s
		return []*Semaphore{s}
	}))

	if err := w.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	sub := frameSubmissions(dev)[0]
	if len(sub.Signals) != 2 || sub.Signals[1] != extra.ID() {
		t.Errorf("frame 0 signals = %v", sub.Signals)
	}
	consumer, err := ctx.GraphicsQueue().SubmitAndSignal("consumer", []*Semaphore{extra})
	if err != nil {
		t.Fatal(err)
	}
	if err := ctx.HandleSemaphore(consumer, nil); err != nil {
		t.Fatal(err)
	}
	noViolations(t, dev)
}

func TestFrameLoopFailures(t *testing.T) {
	t.Run("not open", func(t *testing.T) {
		ctx, _, _ := newTestContext(t)
		if err := ctx.NewWindow().RenderFrame(); !errors.Is(err, ErrWindowNotOpen) {
			t.Errorf("RenderFrame() error = %v", err)
		}
	})

	t.Run("acquire out of date", func(t *testing.T) {
		ctx, dev, _ := newTestContext(t)
		w := openWindow(t, ctx)
		dev.SetAcquireError(gpucore.ErrOutOfDate)

		err := w.RenderFrame()
		if !errors.Is(err, ErrAcquireFailed) || !errors.Is(err, ErrOutOfDate) {
			t.Fatalf("RenderFrame() error = %v", err)
		}
		if w.CurrentFrame() != 0 {
			t.Errorf("CurrentFrame() = %d after failed acquire", w.CurrentFrame())
		}

		dev.SetAcquireError(nil)
		if err := w.Recreate(); err != nil {
			t.Fatal(err)
		}
		if err := w.RenderFrame(); err != nil {
			t.Fatalf("RenderFrame() after Recreate error = %v", err)
		}
		if w.CurrentFrame() != 1 {
			t.Errorf("CurrentFrame() = %d", w.CurrentFrame())
		}
		noViolations(t, dev)
	})

	t.Run("submit failure", func(t *testing.T) {
		ctx, dev, _ := newTestContext(t)
		w := openWindow(t, ctx)
		boom := errors.New("device lost")
		dev.FailNextSubmit(boom)
		if err := w.RenderFrame(); !errors.Is(err, ErrSubmitFailed) || !errors.Is(err, boom) {
			t.Errorf("RenderFrame() error = %v", err)
		}
		if w.CurrentFrame() != 0 {
			t.Errorf("CurrentFrame() = %d after failed submit", w.CurrentFrame())
		}
		if !w.RecreationRequired() {
			t.Error("failed submit should mark the swapchain for recreation")
		}
		if err := w.RenderFrame(); !errors.Is(err, ErrRecreateRequired) {
			t.Errorf("RenderFrame() before Recreate error = %v, want ErrRecreateRequired", err)
		}
		if err := w.Recreate(); err != nil {
			t.Fatal(err)
		}
		for range 4 {
			if err := w.RenderFrame(); err != nil {
				t.Fatalf("RenderFrame() after Recreate error = %v", err)
			}
		}
		if err := ctx.WaitIdle(); err != nil {
			t.Fatal(err)
		}
		if w.CurrentFrame() != 4 {
			t.Errorf("CurrentFrame() = %d, want 4", w.CurrentFrame())
		}
		noViolations(t, dev)
	})

	t.Run("present failure advances", func(t *testing.T) {
		ctx, dev, _ := newTestContext(t)
		w := openWindow(t, ctx)
		boom := errors.New("surface lost")
		dev.FailNextPresent(boom)
		if err := w.RenderFrame(); !errors.Is(err, ErrPresentFailed) || !errors.Is(err, boom) {
			t.Errorf("RenderFrame() error = %v", err)
		}
		if w.CurrentFrame() != 1 {
			t.Errorf("CurrentFrame() = %d, want 1 since the frame was submitted", w.CurrentFrame())
		}
		if st := w.Stats(); st.Submissions != 1 || st.Presents != 0 {
			t.Errorf("Stats() = %+v", st)
		}
	})
}

func TestWindowOpenErrors(t *testing.T) {
	t.Run("already open", func(t *testing.T) {
		ctx, _, _ := newTestContext(t)
		w := openWindow(t, ctx)
		if err := w.Open(); !errors.Is(err, ErrWindowAlreadyOpen) {
			t.Errorf("second Open() error = %v", err)
		}
	})

	t.Run("no window system", func(t *testing.T) {
		dev := sim.New()
		defer dev.Destroy()
		ctx, err := NewContext(dev)
		if err != nil {
			t.Fatal(err)
		}
		defer ctx.Close()
		if err := ctx.NewWindow().Open(); !errors.Is(err, ErrWindowCreation) {
			t.Errorf("Open() error = %v", err)
		}
	})

	t.Run("window system failure", func(t *testing.T) {
		ctx, _, ws := newTestContext(t)
		boom := errors.New("no display")
		ws.FailCreateWindow(boom)
		if err := ctx.NewWindow(WithTitle("x")).Open(); !errors.Is(err, ErrWindowCreation) || !errors.Is(err, boom) {
			t.Errorf("Open() error = %v", err)
		}
	})

	t.Run("invalid samples", func(t *testing.T) {
		ctx, _, ws := newTestContext(t)
		if err := ctx.NewWindow(WithSamples(3)).Open(); !errors.Is(err, ErrInvalidSampleCount) {
			t.Errorf("Open() error = %v", err)
		}
		if ws.OpenWindows() != 0 {
			t.Error("failed Open should destroy the OS window")
		}
	})
}

func TestWindowRecreation(t *testing.T) {
	ctx, dev, _ := newTestContext(t)
	w := openWindow(t, ctx, WithConcurrentFrames(3))
	if w.RecreationRequired() {
		t.Fatal("fresh window should not need recreation")
	}

	for range 4 {
		if err := w.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}

	w.SetPresentationMode(VSync)
	w.SetNumberOfConcurrentFrames(2)
	if !w.RecreationRequired() {
		t.Fatal("RecreationRequired() = false after a configuration change")
	}
	if got := w.Resolved().PresentMode; got != gpucore.PresentModeMailbox {
		t.Errorf("live swapchain changed before Recreate: %s", got)
	}

	if err := w.Recreate(); err != nil {
		t.Fatal(err)
	}
	if w.RecreationRequired() {
		t.Error("RecreationRequired() = true after Recreate")
	}
	r := w.Resolved()
	if r.PresentMode != gpucore.PresentModeFifo || w.ConcurrentFrames() != 2 {
		t.Errorf("after Recreate: mode %s, %d frames in flight", r.PresentMode, w.ConcurrentFrames())
	}
	if dev.SwapchainsCreated() != 2 || w.Stats().Recreations != 1 {
		t.Errorf("swapchains = %d, recreations = %d", dev.SwapchainsCreated(), w.Stats().Recreations)
	}
	if w.CurrentFrame() != 4 {
		t.Errorf("Recreate should keep the frame counter, got %d", w.CurrentFrame())
	}

	for range 3 {
		if err := w.RenderFrame(); err != nil {
			t.Fatal(err)
		}
	}
	noViolations(t, dev)
}

func TestWindowBackBuffers(t *testing.T) {
	ctx, _, _ := newTestContext(t)
	depth := gpucore.Attachment{
		Label:       "depth",
		Format:      gpucore.TextureFormatDepth24PlusStencil8,
		Samples:     4,
		LoadOp:      gpucore.LoadOpClear,
		StoreOp:     gpucore.StoreOpDontCare,
		FinalLayout: gpucore.ImageLayoutDepthStencilAttachment,
	}
	w := openWindow(t, ctx, WithSamples(4), WithAdditionalAttachments(depth))

	r := w.Resolved()
	if r.Samples != 4 || !r.Multisample.SampleShading {
		t.Errorf("multisample = %+v", r.Multisample)
	}
	bufs := w.BackBuffers()
	if len(bufs) != int(r.PresentableImages) {
		t.Fatalf("%d back buffers for %d images", len(bufs), r.PresentableImages)
	}
	for i, bb := range bufs {
		if bb.Index != uint32(i) || bb.Image.Usage() != ImageUsagePresent {
			t.Errorf("back buffer %d = %+v", i, bb)
		}
		if len(bb.Attachments) != 2 {
			t.Fatalf("back buffer %d has %d attachments", i, len(bb.Attachments))
		}
		color := bb.Attachments[0]
		if color.Format != gpucore.TextureFormatBGRA8Unorm || color.FinalLayout != gpucore.ImageLayoutPresentSrc {
			t.Errorf("color attachment = %+v", color)
		}
		if bb.Attachments[1] != depth {
			t.Errorf("additional attachment = %+v", bb.Attachments[1])
		}
	}

	w.RequestSRGBFramebuffer(true)
	if err := w.Recreate(); err != nil {
		t.Fatal(err)
	}
	if got := w.Resolved().SurfaceFormat.Format; got != gpucore.TextureFormatBGRA8UnormSRGB {
		t.Errorf("sRGB request resolved to %s", got)
	}
}

func TestContextCloseClosesWindows(t *testing.T) {
	dev := sim.New()
	defer dev.Destroy()
	ws := sim.NewWindowSystem()
	ctx, err := NewContext(dev, WithWindowSystem(ws))
	if err != nil {
		t.Fatal(err)
	}
	w := ctx.NewWindow()
	if err := w.Open(); err != nil {
		t.Fatal(err)
	}
	if err := w.RenderFrame(); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatal(err)
	}
	if ws.OpenWindows() != 0 || dev.LiveSemaphores() != 0 {
		t.Errorf("Close left %d windows and %d semaphores", ws.OpenWindows(), dev.LiveSemaphores())
	}
	if err := w.RenderFrame(); !errors.Is(err, ErrWindowNotOpen) {
		t.Errorf("RenderFrame() after Close error = %v", err)
	}
}
