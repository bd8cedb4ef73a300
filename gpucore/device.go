package gpucore

import (
	"errors"
	"time"
)

// ErrOutOfDate is returned by acquire and present when the swapchain no
// longer matches the surface and must be recreated.
var ErrOutOfDate = errors.New("gpucore: swapchain out of date")

// Infinite is the timeout used for effectively unbounded waits.
const Infinite = time.Duration(1<<63 - 1)

// Device is the GPU device boundary.
//
// Implementations must allow Submit, WaitFence and the Create/Destroy
// methods to be called from any goroutine, but gpuframe serializes Submit
// and presentation itself.
type Device interface {
	// CreateSemaphore creates an unsignaled semaphore.
	CreateSemaphore() (SemaphoreID, error)

	// DestroySemaphore releases a semaphore.
	DestroySemaphore(id SemaphoreID)

	// CreateFence creates a fence, optionally in the signaled state.
	CreateFence(signaled bool) (FenceID, error)

	// DestroyFence releases a fence.
	DestroyFence(id FenceID)

	// WaitFence blocks until the fence is signaled or the timeout elapses.
	// It returns false on timeout.
	WaitFence(id FenceID, timeout time.Duration) (bool, error)

	// ResetFence returns a fence to the unsignaled state.
	ResetFence(id FenceID) error

	// CreateBuffer allocates a buffer.
	CreateBuffer(desc *BufferDescriptor) (BufferID, error)

	// WriteBuffer copies host data into a host-visible buffer.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// CreateImage allocates an image in the Undefined layout.
	CreateImage(desc *ImageDescriptor) (ImageID, error)

	// DestroyImage releases an image.
	DestroyImage(id ImageID)

	// Submit queues command lists on the given queue.
	Submit(queue QueueType, info *SubmitInfo) error

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	// Destroy releases the device.
	Destroy()
}

// Surface is a presentable window surface.
type Surface interface {
	// Capabilities reports image count limits and the current extent.
	Capabilities() (SurfaceCapabilities, error)

	// Formats lists supported surface formats in platform preference order.
	Formats() ([]SurfaceFormat, error)

	// PresentModes lists supported present modes in platform preference order.
	PresentModes() ([]PresentMode, error)

	// CreateSwapchain creates a swapchain for this surface.
	CreateSwapchain(desc *SwapchainDescriptor) (Swapchain, error)

	// Destroy releases the surface.
	Destroy()
}

// SwapchainDescriptor describes a swapchain to create.
type SwapchainDescriptor struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	ImageCount  uint32
	Extent      Extent2D
}

// Swapchain is the set of presentable images of a surface.
type Swapchain interface {
	// Images returns the swapchain images.
	Images() []ImageID

	// Extent returns the swapchain image size.
	Extent() Extent2D

	// AcquireNextImage returns the index of the next presentable image and
	// arranges for signal to be signaled when it is ready for rendering.
	AcquireNextImage(timeout time.Duration, signal SemaphoreID) (uint32, error)

	// Present queues image index for presentation after waits are signaled.
	Present(queue QueueType, waits []SemaphoreID, index uint32) error

	// Destroy releases the swapchain.
	Destroy()
}

// WindowDescriptor describes an OS window to create.
type WindowDescriptor struct {
	Title  string
	Width  uint32
	Height uint32
}

// WindowSystem creates OS windows and their surfaces.
//
// Calls must be made from the thread that owns the window system; gpuframe
// routes them through its main-thread dispatcher.
type WindowSystem interface {
	// CreateWindow creates an OS window.
	CreateWindow(desc *WindowDescriptor) (WindowHandle, error)

	// CreateSurface creates a presentable surface for the window.
	CreateSurface(device Device, window WindowHandle) (Surface, error)

	// DestroyWindow destroys an OS window.
	DestroyWindow(window WindowHandle)
}
