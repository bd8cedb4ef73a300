// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package halgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpuframe/backend"
	"github.com/gogpu/gpuframe/gpucore"
)

// init registers the hardware backend on package import.
//
//	import _ "github.com/gogpu/gpuframe/backend/halgpu"
func init() {
	backend.Register(backend.BackendHAL, func() backend.DeviceBackend {
		return NewBackend()
	})
}

// Backend adapts a hardware Device and the offscreen WindowSystem to
// backend.DeviceBackend.
type Backend struct {
	mu   sync.Mutex
	open func() (*Device, error)
	dev  *Device
	ws   *WindowSystem
}

// NewBackend returns an uninitialized backend that opens a standalone
// device on Init.
func NewBackend() *Backend {
	return &Backend{open: Open}
}

// NewBackendWithDevice returns a backend around an existing device, for
// example one obtained from NewFromProvider. Close destroys it.
func NewBackendWithDevice(d *Device) *Backend {
	return &Backend{open: func() (*Device, error) { return d, nil }}
}

// Name returns backend.BackendHAL.
func (b *Backend) Name() string {
	return backend.BackendHAL
}

// Init opens the device. Calling it again is a no-op.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dev != nil {
		return nil
	}
	d, err := b.open()
	if err != nil {
		return fmt.Errorf("%w: %w", backend.ErrBackendNotAvailable, err)
	}
	b.dev = d
	b.ws = NewWindowSystem()
	return nil
}

// Device returns the hardware device, or nil before Init.
func (b *Backend) Device() gpucore.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// WindowSystem returns the offscreen window system, or nil before Init.
func (b *Backend) WindowSystem() gpucore.WindowSystem {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ws == nil {
		return nil
	}
	return b.ws
}

// Close destroys the device.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dev != nil {
		b.dev.Destroy()
		b.dev, b.ws = nil, nil
	}
}
