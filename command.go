package gpuframe

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gpuframe/gpucore"
)

type commandBufferState uint8

const (
	stateInitial commandBufferState = iota
	stateRecording
	stateExecutable
	stateSubmitted
	stateReleased
)

func (s commandBufferState) String() string {
	switch s {
	case stateInitial:
		return "initial"
	case stateRecording:
		return "recording"
	case stateExecutable:
		return "executable"
	case stateSubmitted:
		return "submitted"
	case stateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// CommandBuffer is a single-use recorded sequence of GPU commands.
//
// It moves through initial -> recording -> executable -> submitted.
// Submitting hands the buffer to the queue; it cannot be recorded or
// submitted again.
type CommandBuffer struct {
	mu    sync.Mutex
	label string
	state commandBufferState
	cmds  []gpucore.Command
}

// Label returns the debug label.
func (cb *CommandBuffer) Label() string { return cb.label }

// BeginRecording moves the buffer into the recording state.
func (cb *CommandBuffer) BeginRecording() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateInitial:
		cb.state = stateRecording
		return nil
	case stateSubmitted, stateReleased:
		return ErrCommandBufferConsumed
	default:
		return fmt.Errorf("gpuframe: begin recording %q in state %s", cb.label, cb.state)
	}
}

// Record appends commands. The buffer must be recording.
func (cb *CommandBuffer) Record(cmds ...gpucore.Command) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != stateRecording {
		return fmt.Errorf("gpuframe: record into %q in state %s", cb.label, cb.state)
	}
	cb.cmds = append(cb.cmds, cmds...)
	return nil
}

// EndRecording makes the buffer executable.
func (cb *CommandBuffer) EndRecording() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != stateRecording {
		return fmt.Errorf("%w: end recording %q in state %s", ErrCommandBufferNotEnded, cb.label, cb.state)
	}
	cb.state = stateExecutable
	return nil
}

// Len returns the number of recorded commands.
func (cb *CommandBuffer) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.cmds)
}

// Submitted reports whether the buffer was handed to a queue.
func (cb *CommandBuffer) Submitted() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state >= stateSubmitted
}

// checkExecutable reports whether the buffer can be submitted.
func (cb *CommandBuffer) checkExecutable() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case stateExecutable:
		return nil
	case stateSubmitted, stateReleased:
		return fmt.Errorf("%w: %q", ErrCommandBufferConsumed, cb.label)
	default:
		return fmt.Errorf("%w: %q is %s", ErrCommandBufferNotEnded, cb.label, cb.state)
	}
}

// take marks the buffer submitted and returns its command list.
func (cb *CommandBuffer) take() *gpucore.CommandList {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = stateSubmitted
	return &gpucore.CommandList{Label: cb.label, Commands: slices.Clip(cb.cmds)}
}

// Destroy releases the recorded commands. The buffer can no longer be
// submitted. Destroy is idempotent.
func (cb *CommandBuffer) Destroy() {
	cb.mu.Lock()
	cb.state = stateReleased
	cb.cmds = nil
	cb.mu.Unlock()
}
