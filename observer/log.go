package observer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Log is a pipeline.Observer writing run and stage events to a zerolog.Logger.
// Stage events are logged at debug level, run events at info (errors at error).
type Log struct {
	Logger zerolog.Logger
}

func (o Log) BeforePipeline(ctx context.Context, runID, name string, payload any) error {
	o.Logger.Info().Str("run_id", runID).Str("pipeline", name).Msg("run started")
	return nil
}

func (o Log) AfterPipeline(ctx context.Context, runID string, result any, err error) error {
	if err != nil {
		o.Logger.Error().Str("run_id", runID).Err(err).Msg("run failed")
		return nil
	}
	o.Logger.Info().Str("run_id", runID).Interface("result", result).Msg("run finished")
	return nil
}

func (o Log) BeforeStage(ctx context.Context, runID, stage string, input any) error {
	o.Logger.Debug().Str("run_id", runID).Str("stage", stage).Interface("input", input).Msg("stage started")
	return nil
}

func (o Log) AfterStage(ctx context.Context, runID, stage string, input, output any, skipped bool, duration time.Duration) error {
	o.Logger.Debug().Str("run_id", runID).Str("stage", stage).
		Interface("output", output).Bool("skipped", skipped).Dur("duration", duration).
		Msg("stage finished")
	return nil
}
