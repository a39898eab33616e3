package interceptors

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dcshock/stageflow/pipeline"
)

// LoggerName is the name of the interceptor returned by Logger.
const LoggerName = "logger"

// Logger returns a pipeline-scoped interceptor that logs the start and end of a run
// at info level and contributes a stage interceptor logging every stage at debug
// level with its value and skip flag.
func Logger(l zerolog.Logger) pipeline.Interceptor {
	stage := StageLogger(l)
	return pipeline.Interceptor{
		Name: LoggerName,
		Pre: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			l.Info().Str("pipeline", s.Name).Str("run_id", s.RunID).Interface("input", s.Value).Msg("pipeline started")
			return s, nil
		},
		Post: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			l.Info().Str("pipeline", s.Name).Str("run_id", s.RunID).Interface("output", s.Value).Msg("pipeline finished")
			return s, nil
		},
		Stage: &stage,
	}
}

// StageLogger returns the stage interceptor used by Logger. It can be attached to
// single stages or registered as a common stage interceptor on its own.
func StageLogger(l zerolog.Logger) pipeline.Interceptor {
	return pipeline.Interceptor{
		Name: LoggerName + "-stage",
		Pre: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			l.Debug().Str("run_id", s.RunID).Str("stage", s.Stage.Name()).Str("kind", s.Stage.Kind().String()).
				Interface("value", s.Value).Bool("skip", s.Skip).Msg("stage pre")
			return s, nil
		},
		Post: func(_ context.Context, s pipeline.PipeState) (pipeline.PipeState, error) {
			l.Debug().Str("run_id", s.RunID).Str("stage", s.Stage.Name()).
				Interface("value", s.Value).Msg("stage post")
			return s, nil
		},
	}
}
