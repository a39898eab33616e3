package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Observer provides pre/post hooks for a run and for every stage it executes, so run
// state can be recorded for monitoring. BeforePipeline is called once the
// pipeline-scoped pre hooks have run. BeforeStage/AfterStage are called around each
// stage execution (one per entry for MapFlow). AfterPipeline is called once when the
// run settles, with the final value or the error that ended it.
//
// Errors from BeforePipeline and AfterPipeline fail the run; errors from the stage
// hooks fail the stage.
type Observer interface {
	BeforePipeline(ctx context.Context, runID, name string, payload any) error
	AfterPipeline(ctx context.Context, runID string, result any, err error) error
	BeforeStage(ctx context.Context, runID, stage string, input any) error
	AfterStage(ctx context.Context, runID, stage string, input, output any, skipped bool, duration time.Duration) error
}

// observeStages adapts obs to a stage interceptor. Hooks only ever run under the run
// lock, so inflight needs no locking of its own.
func observeStages(obs Observer, runID string) Interceptor {
	type started struct {
		at      time.Time
		input   any
		skipped bool
	}
	inflight := map[*Stage]started{}
	return Interceptor{
		Name: "observer",
		Pre: func(ctx context.Context, s PipeState) (PipeState, error) {
			if err := obs.BeforeStage(ctx, runID, s.Stage.name, s.Value); err != nil {
				return s, fmt.Errorf("before stage: %w", err)
			}
			inflight[s.Stage] = started{at: time.Now(), input: s.Value, skipped: s.Skip}
			return s, nil
		},
		Post: func(ctx context.Context, s PipeState) (PipeState, error) {
			st, ok := inflight[s.Stage]
			delete(inflight, s.Stage)
			var d time.Duration
			if ok {
				d = time.Since(st.at)
			}
			if err := obs.AfterStage(ctx, runID, s.Stage.name, st.input, s.Value, st.skipped, d); err != nil {
				return s, fmt.Errorf("after stage: %w", err)
			}
			return s, nil
		},
	}
}

// MultiObserver returns an Observer that forwards every call to each of obs in order.
// Errors are joined; one observer failing does not stop the others.
func MultiObserver(obs ...Observer) Observer {
	return multiObserver(obs)
}

type multiObserver []Observer

func (m multiObserver) BeforePipeline(ctx context.Context, runID, name string, payload any) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.BeforePipeline(ctx, runID, name, payload))
	}
	return errors.Join(errs...)
}

func (m multiObserver) AfterPipeline(ctx context.Context, runID string, result any, err error) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.AfterPipeline(ctx, runID, result, err))
	}
	return errors.Join(errs...)
}

func (m multiObserver) BeforeStage(ctx context.Context, runID, stage string, input any) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.BeforeStage(ctx, runID, stage, input))
	}
	return errors.Join(errs...)
}

func (m multiObserver) AfterStage(ctx context.Context, runID, stage string, input, output any, skipped bool, duration time.Duration) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.AfterStage(ctx, runID, stage, input, output, skipped, duration))
	}
	return errors.Join(errs...)
}
