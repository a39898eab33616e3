package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dcshock/stageflow/config"
	"github.com/dcshock/stageflow/logger"
	"github.com/dcshock/stageflow/observer"
	"github.com/dcshock/stageflow/pipeline"
	"github.com/dcshock/stageflow/store"
)

func runCmd(g *globalFlags) *cobra.Command {
	var (
		input     string
		storeKind string
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "run [pipelines.yaml] <pipeline>",
		Short: "Run one pipeline and commit its result to the store",
		Long: `Run executes a pipeline over the JSON --input value, waits for async stages,
commits the result to the configured store under "<pipeline>.<run id>" and prints
a JSON report. Without a file argument the settings' pipelines_file is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.settings()
			if err != nil {
				return err
			}
			if storeKind != "" {
				s.Store.Kind = storeKind
				if err := s.Validate(); err != nil {
					return err
				}
			}
			file, name := s.PipelinesFile, args[0]
			if len(args) == 2 {
				file, name = args[0], args[1]
			}
			if file == "" {
				return fmt.Errorf("no pipelines file: pass one or set %s_PIPELINES_FILE", config.EnvPrefix)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return executePipeline(ctx, cmd.OutOrStdout(), s, logger.New(s.Log, "stageflow"), runRequest{
				file:  file,
				name:  name,
				input: input,
				runID: runID,
			})
		},
	}

	cmd.Flags().StringVar(&input, "input", "null", "pipeline input as JSON")
	cmd.Flags().StringVar(&storeKind, "store", "", "override the store kind: memory or redis")
	cmd.Flags().StringVar(&runID, "run-id", "", "run ID (default: a new UUID)")
	return cmd
}

type runRequest struct {
	file, name, input, runID string
}

type runReport struct {
	Result any                `json:"result"`
	Key    string             `json:"key"`
	Run    observer.RunRecord `json:"run"`
}

func executePipeline(ctx context.Context, out io.Writer, s *config.Settings, log zerolog.Logger, req runRequest) error {
	multi, err := config.LoadFile(req.file)
	if err != nil {
		return err
	}
	cfg, ok := multi.Pipelines[req.name]
	if !ok {
		return fmt.Errorf("pipeline %q not found in %s (have: %s)", req.name, req.file, strings.Join(pipelineNames(multi), ", "))
	}
	if cfg.Name == "" {
		cfg.Name = req.name
	}

	var value any
	if err := json.Unmarshal([]byte(req.input), &value); err != nil {
		return fmt.Errorf("parse --input: %w", err)
	}

	journal := observer.NewJournal()
	opts := []pipeline.RunOption{
		pipeline.WithRegistry(nil),
		pipeline.WithLogger(log),
		pipeline.WithObserver(journal),
	}
	var metrics *prometheus.Registry
	if s.Metrics.Enabled {
		metrics = prometheus.NewRegistry()
		opts = append(opts, pipeline.WithObserver(observer.NewMetrics(metrics, s.Metrics.Namespace)))
	}
	if req.runID != "" {
		opts = append(opts, pipeline.WithRunID(req.runID))
	}
	d, err := config.BuildDefinition(catalogue(log), &cfg, opts...)
	if err != nil {
		return fmt.Errorf("pipeline %q: %w", req.name, err)
	}

	st, err := store.Open(ctx, store.Options{
		Kind:   s.Store.Kind,
		Addr:   s.Store.Addr,
		Prefix: s.Store.Prefix,
		TTL:    s.Store.TTL,
	})
	if err != nil {
		return err
	}
	if c, ok := st.(io.Closer); ok {
		defer c.Close()
	}

	res, err := d.Flow(ctx, value)
	if err != nil {
		return fmt.Errorf("run %q: %w", req.name, err)
	}
	log.Debug().Bool("async", res.IsAsync()).Msg("declarations finished")

	// the journal's run ID covers runs started without --run-id
	var rec observer.RunRecord
	if runs := journal.Runs(); len(runs) > 0 {
		rec = runs[len(runs)-1]
	}
	key := req.name + "." + rec.RunID
	result, err := store.Commit(ctx, st, key, res)
	if err != nil {
		return fmt.Errorf("run %q: %w", req.name, err)
	}
	rec, _ = journal.Run(rec.RunID)
	if metrics != nil {
		logMetrics(log, metrics)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(runReport{Result: result, Key: key, Run: rec})
}

func pipelineNames(multi *config.MultiPipelineConfig) []string {
	names := make([]string, 0, len(multi.Pipelines))
	for name := range multi.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func logMetrics(log zerolog.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			ev := log.Info().Str("metric", mf.GetName())
			for _, l := range m.GetLabel() {
				ev = ev.Str(l.GetName(), l.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				ev = ev.Float64("value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				ev = ev.Float64("value", m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				ev = ev.Uint64("count", m.GetHistogram().GetSampleCount()).Float64("sum", m.GetHistogram().GetSampleSum())
			}
			ev.Msg("metric")
		}
	}
}
