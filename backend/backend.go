package backend

import (
	"errors"

	"github.com/gogpu/gpuframe/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when a device is requested before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend name constants.
const (
	// BackendHAL is the gogpu/wgpu hardware backend (backend/halgpu).
	BackendHAL = "halgpu"

	// BackendSim is the simulated asynchronous GPU (backend/sim).
	BackendSim = "sim"
)

// DeviceBackend provides a device and, when it can create windows, a window
// system.
//
// Backends must be registered via Register() and are selected via Get() or
// Default().
type DeviceBackend interface {
	// Name returns the backend identifier.
	Name() string

	// Init opens the device. It must be called before Device.
	Init() error

	// Device returns the opened device, or nil before Init.
	Device() gpucore.Device

	// WindowSystem returns the backend's window system, or nil when the
	// backend cannot present.
	WindowSystem() gpucore.WindowSystem

	// Close releases the device. The backend must not be used afterwards.
	Close()
}
