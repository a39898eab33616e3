package observer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a pipeline.Observer recording Prometheus metrics for runs and stage
// executions, labelled by pipeline name.
type Metrics struct {
	RunsStarted   *prometheus.CounterVec
	RunsFinished  *prometheus.CounterVec
	RunsInflight  *prometheus.GaugeVec
	StagesTotal   *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	mu    sync.Mutex
	names map[string]string
}

// NewMetrics registers the pipeline metrics on reg under namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_started_total",
				Help:      "Total number of pipeline runs started",
			},
			[]string{"pipeline"},
		),

		RunsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_finished_total",
				Help:      "Total number of pipeline runs settled, by status",
			},
			[]string{"pipeline", "status"},
		),

		RunsInflight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_inflight",
				Help:      "Number of pipeline runs not yet settled",
			},
			[]string{"pipeline"},
		),

		StagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stage",
				Name:      "executions_total",
				Help:      "Total number of stage executions, by status",
			},
			[]string{"pipeline", "status"},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Time spent in a stage, interceptors included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pipeline"},
		),

		names: make(map[string]string),
	}
}

func (m *Metrics) BeforePipeline(ctx context.Context, runID, name string, payload any) error {
	m.mu.Lock()
	m.names[runID] = name
	m.mu.Unlock()
	m.RunsStarted.WithLabelValues(name).Inc()
	m.RunsInflight.WithLabelValues(name).Inc()
	return nil
}

func (m *Metrics) AfterPipeline(ctx context.Context, runID string, result any, err error) error {
	m.mu.Lock()
	name, ok := m.names[runID]
	delete(m.names, runID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailed
	}
	m.RunsFinished.WithLabelValues(name, string(status)).Inc()
	m.RunsInflight.WithLabelValues(name).Dec()
	return nil
}

func (m *Metrics) BeforeStage(ctx context.Context, runID, stage string, input any) error {
	return nil
}

func (m *Metrics) AfterStage(ctx context.Context, runID, stage string, input, output any, skipped bool, duration time.Duration) error {
	name := m.pipelineName(runID)
	status := StatusSuccess
	if skipped {
		status = StatusSkipped
	}
	m.StagesTotal.WithLabelValues(name, string(status)).Inc()
	m.StageDuration.WithLabelValues(name).Observe(duration.Seconds())
	return nil
}

func (m *Metrics) pipelineName(runID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names[runID]
}
