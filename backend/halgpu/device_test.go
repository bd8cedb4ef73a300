// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpuframe/backend"
	"github.com/gogpu/gpuframe/gpucore"
)

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	device, queue := createNoopDevice(t)
	d, err := New(device, queue)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

func mustSemaphore(t *testing.T, d *Device) gpucore.SemaphoreID {
	t.Helper()
	id, err := d.CreateSemaphore()
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestNewRejectsNil(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil, nil) should fail")
	}
}

func TestSubmitSemaphoreChain(t *testing.T) {
	d := newTestDevice(t)
	first := mustSemaphore(t, d)
	second := mustSemaphore(t, d)

	if err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{
		Label:            "producer",
		SignalSemaphores: []gpucore.SemaphoreID{first},
	}); err != nil {
		t.Fatalf("Submit(producer) error = %v", err)
	}
	if err := d.Submit(gpucore.QueueTransfer, &gpucore.SubmitInfo{
		Label:            "consumer",
		WaitSemaphores:   []gpucore.SemaphoreID{first},
		WaitStages:       []gpucore.PipelineStage{gpucore.StageTransfer},
		SignalSemaphores: []gpucore.SemaphoreID{second},
	}); err != nil {
		t.Fatalf("Submit(consumer) error = %v", err)
	}

	// The signal of first was consumed by the consumer.
	err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{
		Label:          "again",
		WaitSemaphores: []gpucore.SemaphoreID{first},
		WaitStages:     []gpucore.PipelineStage{gpucore.StageTopOfPipe},
	})
	if !errors.Is(err, ErrNoPendingSignal) {
		t.Errorf("waiting on a consumed semaphore error = %v, want ErrNoPendingSignal", err)
	}

	err = d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{
		Label:            "double",
		SignalSemaphores: []gpucore.SemaphoreID{second},
	})
	if !errors.Is(err, ErrSemaphorePending) {
		t.Errorf("signaling a pending semaphore error = %v, want ErrSemaphorePending", err)
	}

	err = d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{
		Label:          "mismatch",
		WaitSemaphores: []gpucore.SemaphoreID{second},
	})
	if err == nil {
		t.Error("Submit with mismatched wait stages should fail")
	}

	if err := d.WaitIdle(); err != nil {
		t.Fatal(err)
	}
}

func TestFenceLifecycle(t *testing.T) {
	d := newTestDevice(t)
	f, err := d.CreateFence(true)
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := d.WaitFence(f, 0); !ok || err != nil {
		t.Fatalf("WaitFence(signaled) = %v, %v", ok, err)
	}

	if err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{Label: "unreset", Fence: f}); !errors.Is(err, ErrFenceInUse) {
		t.Errorf("Submit with signaled fence error = %v, want ErrFenceInUse", err)
	}

	if err := d.ResetFence(f); err != nil {
		t.Fatal(err)
	}
	if _, err := d.WaitFence(f, 0); !errors.Is(err, ErrFenceNotSubmitted) {
		t.Errorf("WaitFence(reset) error = %v, want ErrFenceNotSubmitted", err)
	}

	if err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{Label: "frame", Fence: f}); err != nil {
		t.Fatal(err)
	}
	if ok, err := d.WaitFence(f, gpucore.Infinite); !ok || err != nil {
		t.Fatalf("WaitFence(submitted) = %v, %v", ok, err)
	}
	if err := d.ResetFence(f); err != nil {
		t.Errorf("ResetFence after completion error = %v", err)
	}

	if _, err := d.WaitFence(gpucore.FenceID(9999), 0); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("WaitFence(unknown) error = %v", err)
	}
}

func TestWriteBuffer(t *testing.T) {
	d := newTestDevice(t)
	local, err := d.CreateBuffer(&gpucore.BufferDescriptor{Label: "local", Size: 16, Usage: gpucore.BufferUsageVertex})
	if err != nil {
		t.Fatal(err)
	}
	staging, err := d.CreateBuffer(&gpucore.BufferDescriptor{
		Label:       "staging",
		Size:        16,
		Usage:       gpucore.BufferUsageCopySrc,
		HostVisible: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := d.WriteBuffer(local, 0, []byte{1}); !errors.Is(err, ErrNotHostVisible) {
		t.Errorf("WriteBuffer(local) error = %v, want ErrNotHostVisible", err)
	}
	if err := d.WriteBuffer(staging, 8, make([]byte, 9)); err == nil {
		t.Error("WriteBuffer past the end should fail")
	}
	if err := d.WriteBuffer(staging, 0, make([]byte, 16)); err != nil {
		t.Errorf("WriteBuffer(staging) error = %v", err)
	}
	if _, err := d.CreateBuffer(&gpucore.BufferDescriptor{Label: "empty"}); err == nil {
		t.Error("CreateBuffer of size 0 should fail")
	}
}

func TestSubmitRecordsCommands(t *testing.T) {
	d := newTestDevice(t)
	staging, err := d.CreateBuffer(&gpucore.BufferDescriptor{
		Label: "staging", Size: 4 * 4, Usage: gpucore.BufferUsageCopySrc, HostVisible: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	dstBuf, err := d.CreateBuffer(&gpucore.BufferDescriptor{Label: "dst", Size: 16, Usage: gpucore.BufferUsageCopyDst})
	if err != nil {
		t.Fatal(err)
	}
	desc := &gpucore.ImageDescriptor{
		Label:  "albedo",
		Width:  2,
		Height: 2,
		Format: gpucore.TextureFormatRGBA8Unorm,
		Usage:  gpucore.ImageUsageSampled | gpucore.ImageUsageTransferDst | gpucore.ImageUsageTransferSrc,
	}
	src, err := d.CreateImage(desc)
	if err != nil {
		t.Fatal(err)
	}
	dst, err := d.CreateImage(desc)
	if err != nil {
		t.Fatal(err)
	}

	encoded := 0
	list := &gpucore.CommandList{
		Label: "upload",
		Commands: []gpucore.Command{
			gpucore.TransitionCommand{Image: src, OldLayout: gpucore.ImageLayoutUndefined, NewLayout: gpucore.ImageLayoutTransferDst},
			gpucore.CopyBufferToImageCommand{Buffer: staging, Image: src, Width: 2, Height: 2, BytesPerRow: 8},
			gpucore.TransitionCommand{Image: src, OldLayout: gpucore.ImageLayoutTransferDst, NewLayout: gpucore.ImageLayoutTransferSrc},
			gpucore.TransitionCommand{Image: dst, OldLayout: gpucore.ImageLayoutUndefined, NewLayout: gpucore.ImageLayoutTransferDst},
			gpucore.CopyImageToImageCommand{Src: src, Dst: dst, Width: 2, Height: 2},
			gpucore.CopyBufferToBufferCommand{Src: staging, Dst: dstBuf, Size: 16},
			gpucore.NativeCommand{Name: "draw", Payload: EncodeFunc(func(hal.CommandEncoder) error {
				encoded++
				return nil
			})},
			gpucore.NativeCommand{Name: "marker"},
		},
	}
	if err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{Label: "upload", CommandLists: []*gpucore.CommandList{list}}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if encoded != 1 {
		t.Errorf("native payload ran %d times, want 1", encoded)
	}

	// Release is deferred past the submission; WaitIdle drains it.
	d.DestroyImage(src)
	d.DestroyBuffer(staging)
	if err := d.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if buffers, images := d.Live(); buffers != 1 || images != 1 {
		t.Errorf("Live() = %d buffers, %d images, want 1, 1", buffers, images)
	}
}

func TestSubmitRejectsBadCommands(t *testing.T) {
	d := newTestDevice(t)
	tests := []struct {
		name string
		cmd  gpucore.Command
		want error
	}{
		{"unknown image", gpucore.TransitionCommand{Image: 4242}, ErrUnknownObject},
		{"unknown buffer", gpucore.CopyBufferToBufferCommand{Src: 4242, Dst: 4243, Size: 1}, ErrUnknownObject},
		{"foreign payload", gpucore.NativeCommand{Name: "draw", Payload: 42}, ErrUnsupportedCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{
				Label:        tt.name,
				CommandLists: []*gpucore.CommandList{{Label: tt.name, Commands: []gpucore.Command{tt.cmd}}},
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("Submit() error = %v, want %v", err, tt.want)
			}
		})
	}

	boom := errors.New("encode failed")
	err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{
		Label: "payload error",
		CommandLists: []*gpucore.CommandList{{Label: "draw", Commands: []gpucore.Command{
			gpucore.NativeCommand{Name: "draw", Payload: func(hal.CommandEncoder) error { return boom }},
		}}},
	})
	if !errors.Is(err, boom) {
		t.Errorf("Submit() error = %v, want payload error", err)
	}
}

func TestDestroyedDevice(t *testing.T) {
	device, queue := createNoopDevice(t)
	d, err := New(device, queue)
	if err != nil {
		t.Fatal(err)
	}
	d.Destroy()
	d.Destroy()

	if _, err := d.CreateSemaphore(); !errors.Is(err, ErrDeviceDestroyed) {
		t.Errorf("CreateSemaphore() after Destroy error = %v", err)
	}
	if err := d.Submit(gpucore.QueueGraphics, &gpucore.SubmitInfo{}); !errors.Is(err, ErrDeviceDestroyed) {
		t.Errorf("Submit() after Destroy error = %v", err)
	}
}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct{}

func (mockProvider) Device() gpucontext.Device             { return nil }
func (mockProvider) Queue() gpucontext.Queue               { return nil }
func (mockProvider) Adapter() gpucontext.Adapter           { return nil }
func (mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// halProvider additionally exposes HAL types, as gogpu windows do.
type halProvider struct {
	mockProvider
	device hal.Device
	queue  hal.Queue
}

func (p halProvider) HalDevice() any { return p.device }
func (p halProvider) HalQueue() any  { return p.queue }

func TestNewFromProvider(t *testing.T) {
	if _, err := NewFromProvider(mockProvider{}); !errors.Is(err, ErrProviderNotHAL) {
		t.Errorf("NewFromProvider(no HAL) error = %v, want ErrProviderNotHAL", err)
	}
	if _, err := NewFromProvider(halProvider{}); !errors.Is(err, ErrProviderNotHAL) {
		t.Errorf("NewFromProvider(nil HAL) error = %v, want ErrProviderNotHAL", err)
	}

	device, queue := createNoopDevice(t)
	d, err := NewFromProvider(halProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("NewFromProvider() error = %v", err)
	}
	defer d.Destroy()
	if d.HalDevice() != device || d.HalQueue() != queue {
		t.Error("provider device and queue not shared")
	}

	ws := NewWindowSystem()
	win, err := ws.CreateWindow(&gpucore.WindowDescriptor{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	surf, err := ws.CreateSurface(d, win)
	if err != nil {
		t.Fatal(err)
	}
	formats, err := surf.Formats()
	if err != nil {
		t.Fatal(err)
	}
	if formats[0].Format != gpucore.TextureFormatBGRA8Unorm || len(formats) != len(surfaceFormats) {
		t.Errorf("Formats() = %v, want provider format first", formats)
	}
}

func TestBackendRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendHAL) {
		t.Fatal("halgpu backend not registered")
	}
	if got := backend.Get(backend.BackendHAL).Name(); got != backend.BackendHAL {
		t.Errorf("Name() = %q", got)
	}
}

func TestBackendWithDevice(t *testing.T) {
	b := NewBackendWithDevice(newTestDevice(t))
	if b.Device() != nil || b.WindowSystem() != nil {
		t.Error("Device and WindowSystem should be nil before Init")
	}
	if err := b.Init(); err != nil {
		t.Fatal(err)
	}
	if b.Device() == nil || b.WindowSystem() == nil {
		t.Fatal("Init did not expose the device")
	}
	b.Close()
	if b.Device() != nil {
		t.Error("Device should be nil after Close")
	}
}
