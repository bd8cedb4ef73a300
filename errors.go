package gpuframe

import (
	"errors"

	"github.com/gogpu/gpuframe/gpucore"
	"github.com/gogpu/gpuframe/internal/swapchain"
)

// Frame loop and submission errors.
var (
	// ErrSubmitFailed wraps a queue submission failure. It indicates a broken
	// device and is never retried.
	ErrSubmitFailed = errors.New("gpuframe: queue submission failed")

	// ErrPresentFailed wraps a presentation failure.
	ErrPresentFailed = errors.New("gpuframe: present failed")

	// ErrAcquireFailed wraps a swapchain image acquisition failure.
	ErrAcquireFailed = errors.New("gpuframe: acquire failed")

	// ErrRecreateRequired is returned by RenderFrame after a failed
	// submission left an acquired image unpresented. Call [Window.Recreate]
	// before rendering again.
	ErrRecreateRequired = errors.New("gpuframe: swapchain must be recreated")

	// ErrOutOfDate reports a stale swapchain. Recreate the window's
	// swapchain with [Window.Recreate] and continue.
	ErrOutOfDate = gpucore.ErrOutOfDate

	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("gpuframe: context closed")
)

// Window errors.
var (
	// ErrWindowCreation wraps failures creating the OS window or its surface.
	ErrWindowCreation = errors.New("gpuframe: window creation failed")

	// ErrWindowNotOpen is returned by frame operations before Open.
	ErrWindowNotOpen = errors.New("gpuframe: window not open")

	// ErrWindowAlreadyOpen is returned by a second Open call.
	ErrWindowAlreadyOpen = errors.New("gpuframe: window already open")

	// ErrInvalidSampleCount is returned for sample counts other than
	// 1, 2, 4, 8, 16, 32 or 64.
	ErrInvalidSampleCount = swapchain.ErrInvalidSampleCount

	// ErrInvalidConfig is returned for malformed window configuration files.
	ErrInvalidConfig = errors.New("gpuframe: invalid window configuration")
)

// Resource errors.
var (
	// ErrCommandBufferConsumed is returned when a command buffer is reused
	// after submission.
	ErrCommandBufferConsumed = errors.New("gpuframe: command buffer already submitted")

	// ErrCommandBufferNotEnded is returned when submitting or ending a command
	// buffer in the wrong recording state.
	ErrCommandBufferNotEnded = errors.New("gpuframe: command buffer not in executable state")

	// ErrTransitionPending is returned when an image operation does not wait
	// on the image's previous, still pending, operation.
	ErrTransitionPending = errors.New("gpuframe: image has a pending transition")

	// ErrSemaphoreConsumed is returned when a semaphore whose ownership was
	// already handed to another submission or to the frame scheduler is
	// used as a wait again.
	ErrSemaphoreConsumed = errors.New("gpuframe: semaphore already consumed")

	// ErrEmptyPayload is returned by uploads without data.
	ErrEmptyPayload = errors.New("gpuframe: empty upload payload")

	// ErrImageLoad wraps failures decoding source pixel data.
	ErrImageLoad = errors.New("gpuframe: image load failed")

	// ErrPayloadSize is returned when an upload payload does not match the
	// size of its destination.
	ErrPayloadSize = errors.New("gpuframe: payload size mismatch")
)
