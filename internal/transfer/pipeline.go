// Package transfer sequences dependent GPU steps into a linear pipeline.
//
// Each [Stage] consumes the completion events of the previous stage (or the
// pipeline's initial waits) and produces exactly one new completion event.
// The [Pipeline] owns the chain: it hands every produced event to the next
// stage and reports each hand-off to an optional [Handoff] hook, which the
// caller uses to tie consumed events to the lifetime of the produced one.
package transfer

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNoStages is returned by Run on an empty pipeline.
var ErrNoStages = errors.New("transfer: pipeline has no stages")

// Stage is one GPU step. Run must submit its work gated on waits and return
// the event that signals when that work completes.
type Stage[S any] struct {
	Name string
	Run  func(waits []S) (S, error)
}

// Handoff is called after a stage produced out from the events in consumed.
type Handoff[S any] func(stage string, consumed []S, out S)

// Pipeline is an ordered list of stages.
type Pipeline[S any] struct {
	stages  []Stage[S]
	handoff Handoff[S]
}

// New creates a pipeline from stages, executed in the given order.
func New[S any](stages ...Stage[S]) *Pipeline[S] {
	return &Pipeline[S]{stages: stages}
}

// Then appends a stage.
func (p *Pipeline[S]) Then(name string, run func(waits []S) (S, error)) *Pipeline[S] {
	p.stages = append(p.stages, Stage[S]{Name: name, Run: run})
	return p
}

// OnHandoff installs the hand-off hook.
func (p *Pipeline[S]) OnHandoff(h Handoff[S]) *Pipeline[S] {
	p.handoff = h
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline[S]) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Result is the outcome of a pipeline run.
type Result[S any] struct {
	// Final is the event produced by the last stage.
	Final S

	// Trace lists the stages that completed, in order.
	Trace []string
}

// Run executes the stages in order. The first stage waits on initial; each
// later stage waits only on its predecessor's event.
//
// When a stage fails, Run stops. The returned Result still describes the
// stages that completed: if Trace is non-empty, Final is the last event
// produced and the caller owns it.
func (p *Pipeline[S]) Run(initial []S) (Result[S], error) {
	if len(p.stages) == 0 {
		return Result[S]{}, ErrNoStages
	}

	var res Result[S]
	waits := slices.Clone(initial)
	for _, st := range p.stages {
		out, err := st.Run(waits)
		if err != nil {
			return res, fmt.Errorf("transfer: stage %q: %w", st.Name, err)
		}
		if p.handoff != nil {
			p.handoff(st.Name, waits, out)
		}
		res.Trace = append(res.Trace, st.Name)
		res.Final = out
		waits = []S{out}
	}
	return res, nil
}
