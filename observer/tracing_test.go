package observer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dcshock/stageflow/pipeline"
)

func newTracing(t *testing.T) (*Tracing, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracing(tp.Tracer("stageflow-test")), exp
}

func TestTracing_Spans(t *testing.T) {
	tr, exp := newTracing(t)
	d, err := pipeline.New("traced", []pipeline.StageSpec{
		{Name: "inc", Handler: func(v any) any { return v.(int) + 1 }},
		{Name: "wait", Kind: pipeline.FlowAsync, Handler: pipeline.Delay(time.Millisecond, nil)},
	}, pipeline.WithRegistry(nil), pipeline.WithObserver(tr))
	require.NoError(t, err)

	res, err := d.Flow(context.Background(), 1)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := res.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	spans := exp.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "stage inc", spans[0].Name)
	assert.Equal(t, "stage wait", spans[1].Name)
	root := spans[2]
	assert.Equal(t, "pipeline traced", root.Name)
	assert.Equal(t, codes.Ok, root.Status.Code)
	for _, s := range spans[:2] {
		assert.Equal(t, root.SpanContext.SpanID(), s.Parent.SpanID())
	}
}

func TestTracing_FailedStage(t *testing.T) {
	tr, exp := newTracing(t)
	d, err := pipeline.New("traced", []pipeline.StageSpec{
		{Name: "fail", Handler: func(any) (any, error) { return nil, errors.New("boom") }},
	}, pipeline.WithRegistry(nil), pipeline.WithObserver(tr))
	require.NoError(t, err)

	_, err = d.Flow(context.Background(), 1)
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "stage fail", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestTracing_UnknownRun(t *testing.T) {
	tr, _ := newTracing(t)
	assert.Error(t, tr.BeforeStage(context.Background(), "missing", "s", 1))
	assert.Error(t, tr.AfterStage(context.Background(), "missing", "s", 1, 1, false, 0))
	assert.NoError(t, tr.AfterPipeline(context.Background(), "missing", nil, nil))
}
