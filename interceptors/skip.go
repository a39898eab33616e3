package interceptors

import (
	"context"

	"github.com/dcshock/stageflow/pipeline"
)

// SkipWhen returns a stage interceptor that skips the stage handler whenever pred
// reports true for the incoming state.
func SkipWhen(name string, pred func(pipeline.PipeState) bool) pipeline.Interceptor {
	return pipeline.Interceptor{
		Name: name,
		Pre: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			if pred(s) {
				s.Skip = true
			}
			return s, nil
		},
	}
}
