package sim

import (
	"slices"

	"github.com/gogpu/gpuframe/gpucore"
)

// Submission is what the device saw for one Submit call.
type Submission struct {
	Queue      gpucore.QueueType
	Label      string
	Waits      []gpucore.SemaphoreID
	WaitStages []gpucore.PipelineStage
	Signals    []gpucore.SemaphoreID
	Fence      gpucore.FenceID
	Lists      []string
	Commands   []gpucore.CommandKind
}

// HasCommand reports whether the submission recorded a command of kind k.
func (s Submission) HasCommand(k gpucore.CommandKind) bool {
	return slices.Contains(s.Commands, k)
}

// Waited reports whether the submission waited on id.
func (s Submission) Waited(id gpucore.SemaphoreID) bool {
	return slices.Contains(s.Waits, id)
}

func newSubmission(queue gpucore.QueueType, info *gpucore.SubmitInfo) Submission {
	s := Submission{
		Queue:      queue,
		Label:      info.Label,
		Waits:      slices.Clone(info.WaitSemaphores),
		WaitStages: slices.Clone(info.WaitStages),
		Signals:    slices.Clone(info.SignalSemaphores),
		Fence:      info.Fence,
	}
	for _, l := range info.CommandLists {
		s.Lists = append(s.Lists, l.Label)
		for _, cmd := range l.Commands {
			s.Commands = append(s.Commands, cmd.Kind())
		}
	}
	return s
}

// PresentRecord is one executed present.
type PresentRecord struct {
	Swapchain uint64
	Index     uint32
	Image     gpucore.ImageID
	Waits     []gpucore.SemaphoreID
}

// Transition is one executed layout transition.
type Transition struct {
	Image gpucore.ImageID
	From  gpucore.ImageLayout
	To    gpucore.ImageLayout
}

type records struct {
	submissions         []Submission
	executed            []string
	commands            []gpucore.CommandKind
	transitions         []Transition
	presents            []PresentRecord
	acquires            int
	fenceWaits          int
	waitIdles           int
	inFlight            int
	maxInFlight         int
	semaphoresCreated   int
	buffersCreated      int
	swapchainsCreated   int
	destroyedSemaphores []gpucore.SemaphoreID
	destroyedBuffers    []gpucore.BufferID
	violations          []string
}

// Submissions returns every accepted submission in submission order.
func (d *Device) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rec.submissions)
}

// Executed returns the labels of executed submissions and presents in
// execution order.
func (d *Device) Executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rec.executed)
}

// Transitions returns the executed layout transitions in order.
func (d *Device) Transitions() []Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rec.transitions)
}

// Presents returns the executed presents in order.
func (d *Device) Presents() []PresentRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rec.presents)
}

// Acquires returns the number of successful image acquisitions.
func (d *Device) Acquires() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.acquires
}

// FenceWaits returns the number of WaitFence calls.
func (d *Device) FenceWaits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.fenceWaits
}

// WaitIdles returns the number of WaitIdle calls.
func (d *Device) WaitIdles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.waitIdles
}

// MaxInFlight returns the largest number of fenced submissions that were
// submitted but not yet executed at any one time.
func (d *Device) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.maxInFlight
}

// SwapchainsCreated returns the number of swapchains created so far.
func (d *Device) SwapchainsCreated() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.swapchainsCreated
}

// DestroyedSemaphores returns destroyed semaphore IDs in destruction order.
func (d *Device) DestroyedSemaphores() []gpucore.SemaphoreID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rec.destroyedSemaphores)
}

// DestroyedBuffers returns destroyed buffer IDs in destruction order.
func (d *Device) DestroyedBuffers() []gpucore.BufferID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rec.destroyedBuffers)
}

// Violations returns every synchronization rule the device saw broken.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rec.violations)
}
