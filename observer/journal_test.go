package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcshock/stageflow/pipeline"
)

func TestJournal_RecordsSyncRun(t *testing.T) {
	j := NewJournal()
	skip := pipeline.Interceptor{Name: "skip", Pre: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
		s.Skip = true
		return s, nil
	}}
	d, err := pipeline.New("numbers", []pipeline.StageSpec{
		{Name: "double", Handler: func(v any) any { return v.(int) * 2 }},
		{Name: "ignored", Handler: func(v any) any { return 0 }, Interceptors: []pipeline.Interceptor{skip}},
		{Name: "each", Kind: pipeline.MapFlow, Handler: func(v any) any { return v }},
	}, pipeline.WithRegistry(nil), pipeline.WithObserver(j), pipeline.WithRunID("r1"))
	require.NoError(t, err)

	res, err := d.Flow(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, []any{42}, res.Value())

	run, ok := j.Run("r1")
	require.True(t, ok)
	assert.Equal(t, "numbers", run.Name)
	assert.Equal(t, StatusSuccess, run.Status)
	assert.JSONEq(t, `21`, string(run.Payload))
	assert.JSONEq(t, `[42]`, string(run.Result))
	assert.False(t, run.FinishedAt.IsZero())

	require.Len(t, run.Stages, 3)
	assert.Equal(t, "double", run.Stages[0].Stage)
	assert.Equal(t, StatusSuccess, run.Stages[0].Status)
	assert.JSONEq(t, `42`, string(run.Stages[0].Output))
	assert.Equal(t, StatusSkipped, run.Stages[1].Status)
	assert.Equal(t, "each-0", run.Stages[2].Stage)
}

func TestJournal_RecordsAsyncFailure(t *testing.T) {
	j := NewJournal()
	boom := errors.New("boom")
	d, err := pipeline.New("failing", []pipeline.StageSpec{
		{Name: "fail", Kind: pipeline.FlowAsync, Handler: func(any) *pipeline.Future {
			return pipeline.After(time.Millisecond, func() (any, error) { return nil, boom })
		}},
	}, pipeline.WithRegistry(nil), pipeline.WithObserver(j), pipeline.WithRunID("r2"))
	require.NoError(t, err)

	res, err := d.Flow(context.Background(), "x")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = res.Await(ctx)
	require.ErrorIs(t, err, boom)

	run, ok := j.Run("r2")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
	require.Len(t, run.Stages, 1)
	assert.Equal(t, StatusFailed, run.Stages[0].Status)
}

func TestJournal_RunsOrderAndReset(t *testing.T) {
	j := NewJournal()
	ctx := context.Background()
	require.NoError(t, j.BeforePipeline(ctx, "a", "p", 1))
	require.NoError(t, j.BeforePipeline(ctx, "b", "p", 2))
	require.NoError(t, j.BeforePipeline(ctx, "a", "p", 3))

	runs := j.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].RunID)
	assert.JSONEq(t, `3`, string(runs[0].Payload))

	runs[0].Stages = append(runs[0].Stages, StageRecord{Stage: "x"})
	again, _ := j.Run("a")
	assert.Empty(t, again.Stages)

	j.Reset()
	assert.Empty(t, j.Runs())
}

func TestJournal_Errors(t *testing.T) {
	j := NewJournal()
	ctx := context.Background()
	assert.Error(t, j.AfterPipeline(ctx, "missing", nil, nil))
	assert.Error(t, j.BeforeStage(ctx, "missing", "s", 1))
	assert.Error(t, j.BeforePipeline(ctx, "r", "p", make(chan int)))

	require.NoError(t, j.BeforePipeline(ctx, "r", "p", 1))
	assert.Error(t, j.AfterStage(ctx, "r", "never-started", 1, 2, false, 0))
}

func TestLog_WritesEvents(t *testing.T) {
	var buf bytes.Buffer
	obs := Log{Logger: zerolog.New(&buf).Level(zerolog.DebugLevel)}
	d, err := pipeline.New("logged", []pipeline.StageSpec{{Name: "id", Handler: pipeline.Identity()}},
		pipeline.WithRegistry(nil), pipeline.WithObserver(obs))
	require.NoError(t, err)
	_, err = d.Flow(context.Background(), "v")
	require.NoError(t, err)

	var messages []string
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		messages = append(messages, entry["message"].(string))
	}
	assert.Equal(t, []string{"run started", "stage started", "stage finished", "run finished"}, messages)
}
