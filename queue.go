package gpuframe

import (
	"fmt"

	"github.com/gogpu/gpuframe/gpucore"
)

// Queue submits command buffers to one device queue.
type Queue struct {
	ctx  *Context
	kind gpucore.QueueType
}

// Type returns the queue type.
func (q *Queue) Type() gpucore.QueueType { return q.kind }

// Submission describes one queue submission.
type Submission struct {
	Label          string
	CommandBuffers []*CommandBuffer

	// Waits are waited on at each semaphore's WaitStage.
	Waits []*Semaphore

	Signals []*Semaphore

	// Fence, if set, is signaled when the submission completes.
	Fence *Fence
}

// Submit hands the command buffers to the queue. The buffers must be
// executable and become consumed even when submission fails. Wait and
// signal semaphores stay owned by the caller.
func (q *Queue) Submit(s Submission) error {
	if q.ctx.closed.Load() {
		return ErrClosed
	}
	info, err := q.build(s)
	if err != nil {
		return err
	}
	return q.submit(info)
}

// SubmitAndSignal submits cbs gated on waits and returns a new semaphore that
// signals completion. Ownership of waits transfers to the returned
// semaphore: they are destroyed when it is destroyed.
func (q *Queue) SubmitAndSignal(label string, waits []*Semaphore, cbs ...*CommandBuffer) (*Semaphore, error) {
	if q.ctx.closed.Load() {
		return nil, ErrClosed
	}
	for _, w := range waits {
		if w.Consumed() || w.Destroyed() {
			return nil, fmt.Errorf("%w: %d", ErrSemaphoreConsumed, w.id)
		}
	}
	out, err := q.ctx.CreateSemaphore()
	if err != nil {
		return nil, err
	}
	info, err := q.build(Submission{Label: label, CommandBuffers: cbs, Waits: waits, Signals: []*Semaphore{out}})
	if err != nil {
		out.Destroy()
		return nil, err
	}
	if err := q.submit(info); err != nil {
		// The device is considered broken; nothing waits on out.
		out.Destroy()
		return nil, err
	}
	for _, w := range waits {
		// Checked above; a concurrent hand-off of the same semaphore is a
		// caller bug and keeps the first owner.
		if w.consume() == nil {
			out.Bind(w)
		}
	}
	for _, cb := range cbs {
		out.Bind(cb)
	}
	return out, nil
}

func (q *Queue) build(s Submission) (*gpucore.SubmitInfo, error) {
	for _, cb := range s.CommandBuffers {
		if err := cb.checkExecutable(); err != nil {
			return nil, err
		}
	}
	info := &gpucore.SubmitInfo{Label: s.Label}
	for _, cb := range s.CommandBuffers {
		info.CommandLists = append(info.CommandLists, cb.take())
	}
	for _, w := range s.Waits {
		info.WaitSemaphores = append(info.WaitSemaphores, w.id)
		info.WaitStages = append(info.WaitStages, w.stage)
	}
	for _, sig := range s.Signals {
		info.SignalSemaphores = append(info.SignalSemaphores, sig.id)
	}
	if s.Fence != nil {
		info.Fence = s.Fence.id
	}
	return info, nil
}

func (q *Queue) submit(info *gpucore.SubmitInfo) error {
	q.ctx.submitMu.Lock()
	err := q.ctx.device.Submit(q.kind, info)
	q.ctx.submitMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %s queue %q: %w", ErrSubmitFailed, q.kind, info.Label, err)
	}
	q.ctx.logger.Debug("gpuframe: submitted",
		"queue", q.kind,
		"label", info.Label,
		"lists", len(info.CommandLists),
		"waits", len(info.WaitSemaphores),
		"signals", len(info.SignalSemaphores))
	return nil
}
