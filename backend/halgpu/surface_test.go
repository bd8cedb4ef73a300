// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpuframe/gpucore"
)

func TestOffscreenSwapchain(t *testing.T) {
	d := newTestDevice(t)
	ws := NewWindowSystem()

	win, err := ws.CreateWindow(&gpucore.WindowDescriptor{Title: "offscreen", Width: 64, Height: 32})
	if err != nil {
		t.Fatal(err)
	}
	defer ws.DestroyWindow(win)

	surf, err := ws.CreateSurface(d, win)
	if err != nil {
		t.Fatal(err)
	}
	defer surf.Destroy()

	caps, err := surf.Capabilities()
	if err != nil {
		t.Fatal(err)
	}
	if caps.CurrentExtent != (gpucore.Extent2D{Width: 64, Height: 32}) {
		t.Errorf("CurrentExtent = %+v", caps.CurrentExtent)
	}

	desc := &gpucore.SwapchainDescriptor{
		Format:      gpucore.SurfaceFormat{Format: gpucore.TextureFormatBGRA8Unorm},
		PresentMode: gpucore.PresentModeMailbox,
		ImageCount:  3,
		Extent:      caps.CurrentExtent,
	}
	sc, err := surf.CreateSwapchain(desc)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(sc.Images()); n != 3 {
		t.Fatalf("len(Images()) = %d, want 3", n)
	}

	acquired := mustSemaphore(t, d)
	rendered := mustSemaphore(t, d)
	for frame := range 4 {
		idx, err := sc.AcquireNextImage(gpucore.Infinite, acquired)
		if err != nil {
			t.Fatalf("frame %d: AcquireNextImage() error = %v", frame, err)
		}
		if want := uint32(frame % 3); idx != want {
			t.Errorf("frame %d: image %d, want %d", frame, idx, want)
		}
		if err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{
			Label:            "frame",
			WaitSemaphores:   []gpucore.SemaphoreID{acquired},
			WaitStages:       []gpucore.PipelineStage{gpucore.StageColorAttachmentOutput},
			SignalSemaphores: []gpucore.SemaphoreID{rendered},
		}); err != nil {
			t.Fatalf("frame %d: Submit() error = %v", frame, err)
		}
		if err := sc.Present(gpucore.QueuePresent, []gpucore.SemaphoreID{rendered}, idx); err != nil {
			t.Fatalf("frame %d: Present() error = %v", frame, err)
		}
	}
	offscreen := sc.(*Swapchain)
	if got := offscreen.Presented(); got != 4 {
		t.Errorf("Presented() = %d, want 4", got)
	}

	if err := sc.Present(gpucore.QueuePresent, []gpucore.SemaphoreID{rendered}, 0); !errors.Is(err, ErrNoPendingSignal) {
		t.Errorf("Present() with consumed wait error = %v, want ErrNoPendingSignal", err)
	}
	if err := sc.Present(gpucore.QueuePresent, nil, 7); err == nil {
		t.Error("Present() of an out-of-range image should fail")
	}

	if err := d.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	sc.Destroy()
	if _, images := d.Live(); images != 0 {
		t.Errorf("%d images alive after swapchain Destroy", images)
	}
}

func TestOffscreenSurfaceRejects(t *testing.T) {
	d := newTestDevice(t)
	ws := NewWindowSystem()

	if _, err := ws.CreateWindow(&gpucore.WindowDescriptor{Width: 0, Height: 10}); err == nil {
		t.Error("CreateWindow with zero width should fail")
	}
	if _, err := ws.CreateSurface(d, 77); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("CreateSurface(unknown window) error = %v", err)
	}

	win, err := ws.CreateWindow(&gpucore.WindowDescriptor{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	surf, err := ws.CreateSurface(d, win)
	if err != nil {
		t.Fatal(err)
	}
	extent := gpucore.Extent2D{Width: 8, Height: 8}
	if _, err := surf.CreateSwapchain(&gpucore.SwapchainDescriptor{ImageCount: 5, PresentMode: gpucore.PresentModeFifo, Extent: extent}); err == nil {
		t.Error("CreateSwapchain with 5 images should fail")
	}
	if _, err := surf.CreateSwapchain(&gpucore.SwapchainDescriptor{ImageCount: 2, PresentMode: gpucore.PresentModeFifoRelaxed, Extent: extent}); err == nil {
		t.Error("CreateSwapchain with FifoRelaxed should fail")
	}
	surf.Destroy()
	if _, err := surf.CreateSwapchain(&gpucore.SwapchainDescriptor{ImageCount: 2, PresentMode: gpucore.PresentModeFifo, Extent: extent}); err == nil {
		t.Error("CreateSwapchain on a destroyed surface should fail")
	}
}
