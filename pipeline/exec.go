package pipeline

import (
	"context"
	"fmt"
)

func identity(_ context.Context, v any) (any, error) { return v, nil }

// stageInterceptors is the list applied around s: its own interceptors followed by
// the run's common ones. Called with r.mu held.
func (r *Run) stageInterceptors(s *Stage) []Interceptor {
	out := make([]Interceptor, 0, len(s.interceptors)+len(r.common))
	out = append(out, s.interceptors...)
	return append(out, r.common...)
}

// execSync dispatches a synchronous stage by kind.
func (r *Run) execSync(state PipeState) (PipeState, error) {
	switch state.Stage.kind {
	case MapFlow:
		return r.execMap(state)
	case ReduceFlow:
		return r.execReduce(state)
	case Flow:
		return r.execFlow(state)
	default:
		return state, &InvalidStageError{Kind: state.Stage.kind, Name: state.Stage.name, Reason: "not a synchronous stage"}
	}
}

// execFlow runs one synchronous stage: pre hooks, handler unless skipped, post hooks.
// Post hooks run in the same order as pre hooks.
func (r *Run) execFlow(state PipeState) (PipeState, error) {
	stage := state.Stage
	state = state.resetTrace()
	ics := r.stageInterceptors(stage)

	pre, err := applyHooks(r.ctx, ics, state, PhasePre, nil)
	if err != nil {
		return state, stageErr(stage, err)
	}
	out := pre
	out.Skip = false
	if !pre.Skip {
		h := pre.Stage.handler
		if h == nil {
			return state, &InvalidStageError{Kind: pre.Stage.kind, Name: pre.Stage.name, Reason: "handler is missing"}
		}
		v, err := h(r.ctx, pre.Value)
		if err != nil {
			return state, stageErr(pre.Stage, err)
		}
		out.Value = v
	} else {
		r.log.Debug().Str("stage", pre.Stage.name).Msg("stage skipped")
	}

	post, err := applyHooks(r.ctx, ics, out, PhasePost, nil)
	if err != nil {
		return state, stageErr(stage, err)
	}
	post.Skip = false
	return post, nil
}

// execMap runs execFlow once per entry of the coerced value. Entries rejected by the
// filter still pass through the interceptors, under a "-dropped" name with an
// identity handler, but are left out of the result.
func (r *Run) execMap(state PipeState) (PipeState, error) {
	stage := state.Stage
	shape := Coerce(state.Value)
	kept := make([]Entry, 0, len(shape.Entries))
	for _, e := range shape.Entries {
		keep := stage.filter == nil || stage.filter(e.Value, e.Key)
		entryStage := stage.WithName(fmt.Sprintf("%s-%v", stage.name, e.Key))
		if !keep {
			entryStage = entryStage.WithName(entryStage.name + "-dropped").WithHandler(identity)
		}
		in := state
		in.Stage = entryStage
		in.Value = e.Value
		out, err := r.execFlow(in)
		if err != nil {
			return state, err
		}
		if keep {
			kept = append(kept, Entry{Key: e.Key, Value: out.Value})
		}
	}
	state = state.resetTrace()
	state.Value = shape.Rebuild(kept)
	return state, nil
}

// execReduce runs a single execFlow whose handler coerces the value into entries, as
// MapFlow does, and folds them with the stage's reducer. Mapping keys reach the
// reducer as keys.
func (r *Run) execReduce(state PipeState) (PipeState, error) {
	stage := state.Stage
	reducer := stage.reducer
	initial, seeded := stage.initialValue, stage.hasInitial
	state.Stage = stage.WithHandler(func(ctx context.Context, v any) (any, error) {
		entries := Coerce(v).Entries
		acc := initial
		if !seeded {
			if len(entries) == 0 {
				return nil, ErrEmptyReduce
			}
			acc, entries = entries[0].Value, entries[1:]
		}
		for _, e := range entries {
			next, err := reducer(ctx, acc, e.Value, e.Key)
			if err != nil {
				return nil, err
			}
			acc = next
		}
		return acc, nil
	})
	out, err := r.execFlow(state)
	if err != nil {
		return state, err
	}
	out.Stage = stage
	return out, nil
}
