// Package gpucore defines the device boundary used by gpuframe.
//
// Everything gpuframe needs from a GPU API is expressed here as a small set
// of interfaces ([Device], [Surface], [Swapchain], [WindowSystem]) plus plain
// data types for recorded commands and surface configuration. Backends
// (backend/halgpu over gogpu/wgpu, backend/sim for tests) implement these
// interfaces; the frame scheduler and the transfer pipeline only ever talk
// to the interfaces.
//
// # Architecture
//
//	               +-----------------+
//	               |    gpuframe     |
//	               | (Window, Upload)|
//	               +--------+--------+
//	                        |
//	               +--------v--------+
//	               |     gpucore     |
//	               | Device/Surface  |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  halgpu backend |          |   sim backend   |
//	|  (hal.Device)   |          | (async CPU GPU) |
//	+--------+--------+          +-----------------+
//	         |
//	+--------v--------+
//	|   gogpu/wgpu    |
//	+-----------------+
//
// # Resource Management
//
// GPU objects are referred to via opaque IDs ([SemaphoreID], [FenceID],
// [BufferID], [ImageID]). Backends keep the mapping between IDs and their
// native objects. The zero ID is never handed out and means "none".
//
// # Synchronization Model
//
// Semaphores order GPU work against other GPU work: a submission lists the
// semaphores it waits on (each with a pipeline stage) and the semaphores it
// signals. Fences order GPU work against the CPU: [Device.WaitFence] blocks
// the calling goroutine until the GPU has signaled the fence.
//
// # Recorded Commands
//
// Command buffers are recorded as lists of [Command] values and translated
// by the backend at submission time. The built-in commands cover layout
// transitions and copies; render work is carried by [NativeCommand].
package gpucore
