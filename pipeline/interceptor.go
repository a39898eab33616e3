package pipeline

import "context"

// Phase tells which side of a stage (or run) a hook belongs to.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// PipeState is the value-plus-metadata record threaded through interceptors. Hooks
// receive it by value and return the (possibly modified) state to pass on.
type PipeState struct {
	// Name is the pipeline name.
	Name  string
	RunID string
	Value any
	// Stage is the stage being executed. Hooks may replace it, e.g. with
	// Stage.WithHandler, to change what the stage does.
	Stage *Stage
	// Skip set by a pre hook bypasses the stage handler for this stage only.
	Skip bool
	// Trace records every hook applied during the current stage. It is reset at the
	// start of each stage and is never consulted by the executor.
	Trace []InterceptorRecord
}

// InterceptorRecord is one trace entry: a hook and the states around it.
type InterceptorRecord struct {
	Phase       Phase
	Interceptor string
	Input       PipeState
	Output      PipeState
}

// Hook observes or rewrites a PipeState. Returning an error fails the stage (or the
// run, for pipeline-scoped hooks).
type Hook func(ctx context.Context, state PipeState) (PipeState, error)

// Interceptor is a named pair of optional hooks. Pipeline-scoped interceptors run once
// per run around the whole pipeline; stage-scoped interceptors run around each stage
// they are attached to.
type Interceptor struct {
	Name string
	Pre  Hook
	Post Hook
	// Stage, on a pipeline-scoped interceptor, is added to the interceptors applied
	// around every stage of the run once this interceptor's pre phase has been reached.
	Stage *Interceptor
}

// resetTrace returns s with an empty trace.
func (s PipeState) resetTrace() PipeState {
	s.Trace = nil
	return s
}

// applyHooks runs the phase hook of every interceptor in order. seen is called for each
// interceptor before its hook, whether or not it defines one.
func applyHooks(ctx context.Context, interceptors []Interceptor, state PipeState, phase Phase, seen func(Interceptor)) (PipeState, error) {
	for _, ic := range interceptors {
		if err := assertState(ic, phase, state); err != nil {
			return state, err
		}
		if seen != nil {
			seen(ic)
		}
		hook := ic.Pre
		if phase == PhasePost {
			hook = ic.Post
		}
		if hook == nil {
			continue
		}
		in := state
		in.Trace = append([]InterceptorRecord(nil), state.Trace...)
		out, err := hook(ctx, in)
		if err != nil {
			return state, err
		}
		out.Trace = append(state.Trace, InterceptorRecord{
			Phase:       phase,
			Interceptor: ic.Name,
			Input:       in,
			Output:      out,
		})
		state = out
	}
	if n := len(interceptors); n > 0 && state.Stage == nil {
		return state, &AssertionError{Interceptor: interceptors[n-1].Name, Phase: phase, Reason: "hook dropped the stage"}
	}
	return state, nil
}

func assertState(ic Interceptor, phase Phase, state PipeState) error {
	if state.Stage == nil {
		return &AssertionError{Interceptor: ic.Name, Phase: phase, Reason: "state has no stage"}
	}
	if state.Value == nil {
		return &AssertionError{Interceptor: ic.Name, Phase: phase, Reason: "state has no value"}
	}
	return nil
}
