package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing is a pipeline.Observer starting one span per run and a child span per
// stage execution. Stage spans still open when the run settles (stages that failed)
// are ended with the run error.
type Tracing struct {
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]*tracedRun
}

type tracedRun struct {
	ctx    context.Context
	span   trace.Span
	stages map[string][]trace.Span
}

// NewTracing returns a tracing observer using tracer.
func NewTracing(tracer trace.Tracer) *Tracing {
	return &Tracing{tracer: tracer, runs: make(map[string]*tracedRun)}
}

func (t *Tracing) BeforePipeline(ctx context.Context, runID, name string, payload any) error {
	ctx, span := t.tracer.Start(ctx, "pipeline "+name,
		trace.WithAttributes(
			attribute.String("pipeline.name", name),
			attribute.String("pipeline.run_id", runID),
		),
	)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[runID] = &tracedRun{ctx: ctx, span: span, stages: make(map[string][]trace.Span)}
	return nil
}

func (t *Tracing) AfterPipeline(ctx context.Context, runID string, result any, err error) error {
	t.mu.Lock()
	run, ok := t.runs[runID]
	delete(t.runs, runID)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	for _, open := range run.stages {
		for _, span := range open {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}
	if err != nil {
		run.span.RecordError(err)
		run.span.SetStatus(codes.Error, err.Error())
	} else {
		run.span.SetStatus(codes.Ok, "")
	}
	run.span.End()
	return nil
}

func (t *Tracing) BeforeStage(ctx context.Context, runID, stage string, input any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[runID]
	if !ok {
		return fmt.Errorf("run %q not traced", runID)
	}
	_, span := t.tracer.Start(run.ctx, "stage "+stage, trace.WithAttributes(attribute.String("pipeline.stage", stage)))
	run.stages[stage] = append(run.stages[stage], span)
	return nil
}

func (t *Tracing) AfterStage(ctx context.Context, runID, stage string, input, output any, skipped bool, duration time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[runID]
	if !ok {
		return fmt.Errorf("run %q not traced", runID)
	}
	open := run.stages[stage]
	if len(open) == 0 {
		return fmt.Errorf("run %q: stage %q was not started", runID, stage)
	}
	span := open[len(open)-1]
	if len(open) == 1 {
		delete(run.stages, stage)
	} else {
		run.stages[stage] = open[:len(open)-1]
	}
	span.SetAttributes(attribute.Bool("pipeline.stage.skipped", skipped))
	span.End()
	return nil
}
