package transfer

import (
	"errors"
	"slices"
	"testing"
)

// counter hands out increasing event IDs.
type counter struct{ next int }

func (c *counter) stage(name string, log *[]string, seen map[string][]int) Stage[int] {
	return Stage[int]{Name: name, Run: func(waits []int) (int, error) {
		*log = append(*log, name)
		seen[name] = slices.Clone(waits)
		c.next++
		return c.next, nil
	}}
}

func TestPipeline_RunsInOrderAndChainsWaits(t *testing.T) {
	var (
		c    = &counter{next: 100}
		log  []string
		seen = map[string][]int{}
	)
	p := New(
		c.stage("transition", &log, seen),
		c.stage("copy", &log, seen),
		c.stage("finalize", &log, seen),
	)

	res, err := p.Run([]int{7, 8})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"transition", "copy", "finalize"}
	if !slices.Equal(log, want) || !slices.Equal(res.Trace, want) {
		t.Errorf("order = %v, trace = %v, want %v", log, res.Trace, want)
	}
	if !slices.Equal(seen["transition"], []int{7, 8}) {
		t.Errorf("first stage waits = %v, want initial waits", seen["transition"])
	}
	if !slices.Equal(seen["copy"], []int{101}) || !slices.Equal(seen["finalize"], []int{102}) {
		t.Errorf("chained waits = %v / %v", seen["copy"], seen["finalize"])
	}
	if res.Final != 103 {
		t.Errorf("Final = %d, want 103", res.Final)
	}
}

func TestPipeline_Handoff(t *testing.T) {
	type edge struct {
		stage    string
		consumed []int
		out      int
	}
	var edges []edge

	c := &counter{}
	var log []string
	seen := map[string][]int{}
	p := New[int]().
		Then("a", c.stage("a", &log, seen).Run).
		Then("b", c.stage("b", &log, seen).Run).
		OnHandoff(func(stage string, consumed []int, out int) {
			edges = append(edges, edge{stage, slices.Clone(consumed), out})
		})

	if _, err := p.Run(nil); err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Fatalf("handoffs = %d, want 2", len(edges))
	}
	if len(edges[0].consumed) != 0 || edges[0].out != 1 {
		t.Errorf("first handoff = %+v", edges[0])
	}
	if !slices.Equal(edges[1].consumed, []int{1}) || edges[1].out != 2 {
		t.Errorf("second handoff = %+v", edges[1])
	}
	if got := p.Stages(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Stages() = %v", got)
	}
}

func TestPipeline_StageFailureStops(t *testing.T) {
	errSubmit := errors.New("submit failed")
	ran := 0
	p := New(
		Stage[int]{Name: "first", Run: func([]int) (int, error) { ran++; return 1, nil }},
		Stage[int]{Name: "second", Run: func([]int) (int, error) { ran++; return 0, errSubmit }},
		Stage[int]{Name: "third", Run: func([]int) (int, error) { ran++; return 3, nil }},
	)

	res, err := p.Run(nil)
	if !errors.Is(err, errSubmit) {
		t.Fatalf("err = %v, want wrapped submit error", err)
	}
	if ran != 2 {
		t.Errorf("stages run = %d, want 2", ran)
	}
	if !slices.Equal(res.Trace, []string{"first"}) || res.Final != 1 {
		t.Errorf("partial result = %+v, want first stage only", res)
	}
}

func TestPipeline_Empty(t *testing.T) {
	if _, err := New[int]().Run(nil); !errors.Is(err, ErrNoStages) {
		t.Errorf("err = %v, want ErrNoStages", err)
	}
}
