package gpuframe

import (
	"sync/atomic"
	"time"

	"github.com/gogpu/gpuframe/gpucore"
	"github.com/gogpu/gpuframe/internal/lifetime"
)

// Destroyer is a resource that can be released.
type Destroyer = lifetime.Destroyer

// Semaphore is a GPU->GPU synchronization primitive.
//
// Ownership moves in one direction: the producer hands it to a submission
// that waits on it (which binds it to the semaphore that submission
// produces), to the frame scheduler as an extra dependency, or keeps it and
// destroys it. Resources attached with Bind are released when the semaphore
// is destroyed.
type Semaphore struct {
	ctx   *Context
	id    gpucore.SemaphoreID
	stage gpucore.PipelineStage

	consumed  atomic.Bool
	destroyed atomic.Bool
}

// ID returns the device handle.
func (s *Semaphore) ID() gpucore.SemaphoreID { return s.id }

// WaitStage returns the pipeline stage at which waits on s take effect.
func (s *Semaphore) WaitStage() gpucore.PipelineStage { return s.stage }

// SetWaitStage changes the wait stage and returns s.
func (s *Semaphore) SetWaitStage(stage gpucore.PipelineStage) *Semaphore {
	s.stage = stage
	return s
}

// Bind keeps res alive until s is destroyed.
func (s *Semaphore) Bind(res Destroyer) {
	s.ctx.bindings.Bind(uint64(s.id), res)
}

// Bound returns the number of resources bound to s.
func (s *Semaphore) Bound() int {
	return s.ctx.bindings.Bound(uint64(s.id))
}

// Consumed reports whether ownership of s was handed off.
func (s *Semaphore) Consumed() bool { return s.consumed.Load() }

// Destroyed reports whether s was destroyed.
func (s *Semaphore) Destroyed() bool { return s.destroyed.Load() }

// consume marks s as handed off. It fails if s was already handed off.
func (s *Semaphore) consume() error {
	if s.destroyed.Load() || !s.consumed.CompareAndSwap(false, true) {
		return ErrSemaphoreConsumed
	}
	return nil
}

// Destroy releases the semaphore and then every resource bound to it.
// The caller must know the GPU no longer uses it. Destroy is idempotent.
func (s *Semaphore) Destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	s.ctx.device.DestroySemaphore(s.id)
	s.ctx.bindings.Release(uint64(s.id))
}

// Fence is a GPU->CPU synchronization primitive.
type Fence struct {
	ctx       *Context
	id        gpucore.FenceID
	destroyed atomic.Bool
}

// ID returns the device handle.
func (f *Fence) ID() gpucore.FenceID { return f.id }

// Wait blocks until the fence is signaled or timeout elapses. It reports
// whether the fence was signaled.
func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	return f.ctx.device.WaitFence(f.id, timeout)
}

// Reset returns the fence to the unsignaled state.
func (f *Fence) Reset() error {
	return f.ctx.device.ResetFence(f.id)
}

// Destroy releases the fence. Destroy is idempotent.
func (f *Fence) Destroy() {
	if f.destroyed.CompareAndSwap(false, true) {
		f.ctx.device.DestroyFence(f.id)
	}
}
