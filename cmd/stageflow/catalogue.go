package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dcshock/stageflow/config"
	"github.com/dcshock/stageflow/interceptors"
	"github.com/dcshock/stageflow/observer"
	"github.com/dcshock/stageflow/pipeline"
)

// asyncDelay is how long the built-in async handlers wait before settling.
const asyncDelay = 10 * time.Millisecond

// catalogue returns the registry of built-in handlers, filters, interceptors and
// observers that YAML pipelines refer to by name.
func catalogue(log zerolog.Logger) *config.Registry {
	reg := config.NewRegistry()

	reg.RegisterHandler("identity", pipeline.Identity())
	reg.RegisterHandler("to-number", func(_ context.Context, v any) (any, error) {
		return interceptors.ToFloat(v)
	})
	reg.RegisterHandler("negate", numeric(func(f float64) (float64, error) { return -f, nil }))
	reg.RegisterHandler("invert", numeric(func(f float64) (float64, error) {
		if f == 0 {
			return 0, fmt.Errorf("invert: division by zero")
		}
		return 1 / f, nil
	}))
	reg.RegisterHandler("double", numeric(func(f float64) (float64, error) { return f * 2, nil }))
	reg.RegisterHandler("round", numeric(func(f float64) (float64, error) { return interceptors.RoundTo(f, 2) }))
	reg.RegisterHandler("double-async", pipeline.Delay(asyncDelay, numeric(func(f float64) (float64, error) { return f * 2, nil })))
	reg.RegisterHandler("delay", pipeline.Delay(asyncDelay, nil))
	reg.RegisterHandler("sum", pipeline.Reducer(func(_ context.Context, acc, item, _ any) (any, error) {
		a, err := interceptors.ToFloat(acc)
		if err != nil {
			return nil, err
		}
		b, err := interceptors.ToFloat(item)
		if err != nil {
			return nil, err
		}
		return a + b, nil
	}))

	reg.RegisterFilter("below-30", below(30))
	reg.RegisterFilter("positive", pipeline.Filter(func(v, _ any) bool {
		f, err := interceptors.ToFloat(v)
		return err == nil && f > 0
	}))

	reg.RegisterInterceptor(interceptors.ToNumber("to-number"))
	reg.RegisterInterceptor(interceptors.RoundNumber("round", 2))
	reg.RegisterInterceptor(interceptors.Logger(log))
	reg.RegisterInterceptor(interceptors.StageLogger(log))

	reg.RegisterObserver("log", observer.Log{Logger: log})
	return reg
}

// numeric lifts fn into a handler converting its input with interceptors.ToFloat.
func numeric(fn func(float64) (float64, error)) pipeline.Handler {
	return func(_ context.Context, v any) (any, error) {
		f, err := interceptors.ToFloat(v)
		if err != nil {
			return nil, err
		}
		return fn(f)
	}
}

func below(limit float64) pipeline.Filter {
	return func(v, _ any) bool {
		f, err := interceptors.ToFloat(v)
		return err == nil && f < limit
	}
}

func handlersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List the built-in handler catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printCatalogue(cmd.OutOrStdout(), catalogue(zerolog.Nop()))
			return nil
		},
	}
}

func printCatalogue(w io.Writer, reg *config.Registry) {
	for _, name := range reg.Names() {
		fmt.Fprintln(w, name)
	}
}
