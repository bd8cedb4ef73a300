// Package gpuframe paces and synchronizes GPU frames.
//
// # Overview
//
// gpuframe turns a sequence of command submissions into presented frames
// that are correctly synchronized against the GPU, and releases
// GPU-adjacent resources (semaphores, one-time command buffers, staging
// buffers) only once the GPU has provably finished with them.
//
// It sits on top of a device boundary ([gpucore.Device]) implemented by a
// backend. The backend/halgpu package drives real hardware through
// gogpu/wgpu; backend/sim is an asynchronous simulated GPU used by tests
// and by the framedemo command.
//
// # Quick Start
//
//	ctx, err := gpuframe.NewContext(device, gpuframe.WithWindowSystem(ws))
//	if err != nil { ... }
//	defer ctx.Close()
//
//	win := ctx.NewWindow(
//	    gpuframe.WithTitle("demo"),
//	    gpuframe.WithPresentationMode(gpuframe.TripleBuffering),
//	)
//	if err := win.Open(); err != nil { ... }
//
//	for running {
//	    cb := ctx.NewCommandBuffer("frame")
//	    _ = cb.BeginRecording()
//	    // record work...
//	    _ = cb.EndRecording()
//	    if err := win.RenderFrame(cb); err != nil { ... }
//	}
//
// # Frames in Flight
//
// A window owns N in-flight slots, N being the resolved number of
// concurrent frames. Each slot has a fence, an image-available semaphore
// and a render-finished semaphore. Rendering frame k uses slot k mod N:
//
//  1. wait for the slot's fence (frame k-N has retired), then reset it
//  2. release deferred resources registered for frame k-N
//  3. acquire a swapchain image, signaling image-available
//  4. submit, waiting on image-available plus the frame's extra
//     dependencies, signaling render-finished and the fence
//  5. present, gated on render-finished
//  6. advance the frame counter
//
// The CPU therefore never runs more than N frames ahead of the GPU.
//
// # Uploads
//
// [Context.UploadImage] moves host bytes into an image through a staging
// buffer with three dependent submissions: transition to TransferDst, copy,
// transition to the image's target layout. The returned semaphore signals
// completion; the staging buffer is bound to it and freed only when that
// semaphore is destroyed. Register it with
// [Window.SetExtraSemaphoreDependency] to make a frame wait for the upload.
//
// # Thread Safety
//
// Submission, acquire and present are serialized inside a [Context].
// Command buffers may be recorded concurrently ([Context.RecordParallel]).
// Window-system calls run on the context's main-thread loop.
package gpuframe
