package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// Definition is a named, ordered list of prepared stages that can be edited like a
// slice and run any number of times with Flow.
type Definition struct {
	mu      sync.RWMutex
	name    string
	stages  []*Stage
	ordinal int
	opts    []RunOption
}

// New prepares specs in order (each with its own Kind) and returns a definition.
// opts are applied to every run started by Flow.
func New(name string, specs []StageSpec, opts ...RunOption) (*Definition, error) {
	d := &Definition{name: name, opts: opts}
	for _, spec := range specs {
		if _, err := d.Append(spec.Kind, spec); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Name returns the pipeline name.
func (d *Definition) Name() string { return d.name }

// Append prepares spec as a stage of the given kind and adds it at the end.
func (d *Definition) Append(kind Kind, spec any) (*Stage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ordinal++
	s, err := PrepareStage(d.ordinal, kind, spec)
	if err != nil {
		return nil, err
	}
	d.stages = append(d.stages, s)
	return s, nil
}

func (d *Definition) AddFlow(spec any) (*Stage, error)       { return d.Append(Flow, spec) }
func (d *Definition) AddMapFlow(spec any) (*Stage, error)    { return d.Append(MapFlow, spec) }
func (d *Definition) AddReduceFlow(spec any) (*Stage, error) { return d.Append(ReduceFlow, spec) }
func (d *Definition) AddFlowAsync(spec any) (*Stage, error)  { return d.Append(FlowAsync, spec) }

// Len returns the number of stages.
func (d *Definition) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stages)
}

// At returns the stage at i, or nil if i is out of range. Negative i counts from the end.
func (d *Definition) At(i int) *Stage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 {
		i += len(d.stages)
	}
	if i < 0 || i >= len(d.stages) {
		return nil
	}
	return d.stages[i]
}

// Stages returns a copy of the stage list.
func (d *Definition) Stages() []*Stage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Stage(nil), d.stages...)
}

// Push appends prepared stages and returns the new length.
func (d *Definition) Push(stages ...*Stage) (int, error) {
	if err := checkStages(stages); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stages = append(d.stages, stages...)
	return len(d.stages), nil
}

// Pop removes and returns the last stage, or nil if the definition is empty.
func (d *Definition) Pop() *Stage {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stages) == 0 {
		return nil
	}
	s := d.stages[len(d.stages)-1]
	d.stages = d.stages[:len(d.stages)-1]
	return s
}

// Shift removes and returns the first stage, or nil if the definition is empty.
func (d *Definition) Shift() *Stage {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stages) == 0 {
		return nil
	}
	s := d.stages[0]
	d.stages = append([]*Stage(nil), d.stages[1:]...)
	return s
}

// Unshift inserts prepared stages at the front and returns the new length.
func (d *Definition) Unshift(stages ...*Stage) (int, error) {
	if err := checkStages(stages); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stages = append(append([]*Stage(nil), stages...), d.stages...)
	return len(d.stages), nil
}

// RemoveAt removes and returns the stage at i.
func (d *Definition) RemoveAt(i int) (*Stage, error) {
	removed, err := d.Splice(i, 1)
	if err != nil {
		return nil, err
	}
	return removed[0], nil
}

// Splice removes deleteCount stages starting at start, inserts stages in their place
// and returns the removed ones. start may be negative to count from the end.
func (d *Definition) Splice(start, deleteCount int, stages ...*Stage) ([]*Stage, error) {
	if err := checkStages(stages); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.stages)
	if start < 0 {
		start += n
	}
	if start < 0 || start > n || deleteCount < 0 || start+deleteCount > n {
		return nil, fmt.Errorf("pipeline %q: splice [%d:+%d] out of range for %d stages", d.name, start, deleteCount, n)
	}
	removed := append([]*Stage(nil), d.stages[start:start+deleteCount]...)
	next := make([]*Stage, 0, n-deleteCount+len(stages))
	next = append(next, d.stages[:start]...)
	next = append(next, stages...)
	next = append(next, d.stages[start+deleteCount:]...)
	d.stages = next
	return removed, nil
}

// Slice returns a new definition holding stages [start, end), clamped to the list.
func (d *Definition) Slice(start, end int) *Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := len(d.stages)
	start, end = clamp(start, n), clamp(end, n)
	if end < start {
		end = start
	}
	return d.derive(append([]*Stage(nil), d.stages[start:end]...))
}

// Concat returns a new definition with the stages of d followed by those of others.
func (d *Definition) Concat(others ...*Definition) *Definition {
	stages := d.Stages()
	for _, o := range others {
		stages = append(stages, o.Stages()...)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.derive(stages)
}

// Filter returns a new definition holding the stages for which keep returns true.
func (d *Definition) Filter(keep func(s *Stage, i int) bool) *Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Stage
	for i, s := range d.stages {
		if keep(s, i) {
			out = append(out, s)
		}
	}
	return d.derive(out)
}

// Map returns a new definition holding fn applied to every stage. It fails if fn
// returns an invalid stage.
func (d *Definition) Map(fn func(s *Stage, i int) *Stage) (*Definition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Stage, len(d.stages))
	for i, s := range d.stages {
		out[i] = fn(s, i)
	}
	if err := checkStages(out); err != nil {
		return nil, err
	}
	return d.derive(out), nil
}

// Reduce folds the stage list.
func (d *Definition) Reduce(fn func(acc any, s *Stage, i int) any, initial any) any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc := initial
	for i, s := range d.stages {
		acc = fn(acc, s, i)
	}
	return acc
}

// Flow starts a run over input, replays every stage into it in order and finishes it.
// A stage failing synchronously ends the replay and its error is returned.
func (d *Definition) Flow(ctx context.Context, input any, opts ...RunOption) (Result, error) {
	d.mu.RLock()
	stages := append([]*Stage(nil), d.stages...)
	all := append([]RunOption{WithName(d.name)}, d.opts...)
	d.mu.RUnlock()

	r, err := NewRun(ctx, input, append(all, opts...)...)
	if err != nil {
		return Result{}, err
	}
	for _, s := range stages {
		if err := r.Dispatch(s); err != nil {
			return Result{}, err
		}
	}
	return r.Finish()
}

// derive returns a definition sharing d's name and options. Called with d.mu held.
func (d *Definition) derive(stages []*Stage) *Definition {
	return &Definition{name: d.name, stages: stages, ordinal: d.ordinal, opts: d.opts}
}

func checkStages(stages []*Stage) error {
	for _, s := range stages {
		if !s.valid() {
			name := ""
			var kind Kind
			if s != nil {
				name, kind = s.name, s.kind
			}
			return &InvalidStageError{Kind: kind, Name: name, Reason: "handler is missing"}
		}
	}
	return nil
}

func clamp(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
