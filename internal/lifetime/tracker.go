// Package lifetime tracks GPU-adjacent resources that must outlive a frame or
// a completion event.
//
// A [Tracker] holds entries tagged with the frame index that produced them;
// the frame scheduler reclaims one frame's batch once that frame's in-flight
// slot has retired. [Bindings] attach resources to the lifetime of an owner
// (a semaphore), releasing them when the owner is destroyed.
package lifetime

import (
	"slices"
	"sync"
)

// Tracker is a frame-indexed, append-only deferred resource queue.
//
// Callers may only add entries. Removal happens through Reclaim, which the
// frame scheduler calls once per frame. Tracker is safe for concurrent use.
type Tracker[T any] struct {
	mu      sync.Mutex
	entries map[int64][]T
	total   int
}

// NewTracker creates an empty tracker.
func NewTracker[T any]() *Tracker[T] {
	return &Tracker[T]{entries: make(map[int64][]T)}
}

// Register appends res to the batch for frame.
func (t *Tracker[T]) Register(frame int64, res T) {
	t.mu.Lock()
	t.entries[frame] = append(t.entries[frame], res)
	t.total++
	t.mu.Unlock()
}

// Reclaim removes and returns every entry tagged with exactly frame, in
// registration order. It returns nil when nothing is registered for frame.
func (t *Tracker[T]) Reclaim(frame int64) []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	batch, ok := t.entries[frame]
	if !ok {
		return nil
	}
	delete(t.entries, frame)
	t.total -= len(batch)
	return batch
}

// Entries returns a copy of the batch registered for frame.
func (t *Tracker[T]) Entries(frame int64) []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries[frame])
}

// Pending returns the number of entries registered for frame.
func (t *Tracker[T]) Pending(frame int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries[frame])
}

// Len returns the number of entries across all frames.
func (t *Tracker[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Drain removes every entry, oldest frame first, preserving registration
// order within a frame. Used at teardown after the device is idle.
func (t *Tracker[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := make([]int64, 0, len(t.entries))
	for f := range t.entries {
		frames = append(frames, f)
	}
	slices.Sort(frames)

	out := make([]T, 0, t.total)
	for _, f := range frames {
		out = append(out, t.entries[f]...)
	}
	clear(t.entries)
	t.total = 0
	return out
}
