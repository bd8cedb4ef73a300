package sim

import (
	"sync"

	"github.com/gogpu/gpuframe/backend"
	"github.com/gogpu/gpuframe/gpucore"
)

// init registers the simulated backend on package import.
//
//	import _ "github.com/gogpu/gpuframe/backend/sim"
func init() {
	backend.Register(backend.BackendSim, func() backend.DeviceBackend {
		return NewBackend()
	})
}

// Backend adapts a simulated Device and WindowSystem to
// backend.DeviceBackend.
type Backend struct {
	mu   sync.Mutex
	opts []Option
	dev  *Device
	ws   *WindowSystem
}

// NewBackend returns an uninitialized backend whose device is created with
// opts.
func NewBackend(opts ...Option) *Backend {
	return &Backend{opts: opts}
}

// Name returns backend.BackendSim.
func (b *Backend) Name() string {
	return backend.BackendSim
}

// Init creates the simulated device. Calling it again is a no-op.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dev == nil {
		b.dev = New(b.opts...)
		b.ws = NewWindowSystem()
	}
	return nil
}

// Device returns the simulated device, or nil before Init.
func (b *Backend) Device() gpucore.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dev == nil {
		return nil
	}
	return b.dev
}

// SimDevice returns the concrete device for inspection, or nil before Init.
func (b *Backend) SimDevice() *Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dev
}

// WindowSystem returns the headless window system, or nil before Init.
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
