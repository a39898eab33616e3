// Package observer provides pipeline.Observer implementations.
//
//   - Journal: records each run and its stages in memory (statuses, JSON payloads,
//     durations) for monitoring, tests and the CLI's run report.
//   - Log: writes run and stage events to a zerolog.Logger.
//   - Metrics: Prometheus counters and histograms per pipeline.
//   - Tracing: OpenTelemetry spans for runs and stages.
//
// Combine several with pipeline.MultiObserver.
package observer
