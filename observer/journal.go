package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Status of a run or a stage execution.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// RunRecord is one observed run.
type RunRecord struct {
	RunID      string          `json:"run_id"`
	Name       string          `json:"name"`
	Status     Status          `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
	Stages     []StageRecord   `json:"stages"`
}

// StageRecord is one stage execution within a run. MapFlow stages produce one
// record per entry.
type StageRecord struct {
	Stage    string          `json:"stage"`
	Status   Status          `json:"status"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Journal is an in-memory pipeline.Observer. Safe for concurrent use.
type Journal struct {
	mu    sync.Mutex
	runs  map[string]*RunRecord
	order []string
	now   func() time.Time
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{runs: make(map[string]*RunRecord), now: time.Now}
}

// BeforePipeline implements pipeline.Observer. A run observed again under the same
// run ID starts over.
func (j *Journal) BeforePipeline(ctx context.Context, runID, name string, payload any) error {
	payloadJSON, err := marshalOptional(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.runs[runID]; !ok {
		j.order = append(j.order, runID)
	}
	j.runs[runID] = &RunRecord{
		RunID:     runID,
		Name:      name,
		Status:    StatusRunning,
		Payload:   payloadJSON,
		StartedAt: j.now(),
	}
	return nil
}

// AfterPipeline implements pipeline.Observer. Stages still running when a run
// fails are marked failed.
func (j *Journal) AfterPipeline(ctx context.Context, runID string, result any, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	run, ok := j.runs[runID]
	if !ok {
		return fmt.Errorf("run %q not found", runID)
	}
	run.Status = StatusSuccess
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		for i := range run.Stages {
			if run.Stages[i].Status == StatusRunning {
				run.Stages[i].Status = StatusFailed
			}
		}
	}
	// results that cannot be encoded are left out rather than failing a finished run
	run.Result, _ = marshalOptional(result)
	run.FinishedAt = j.now()
	return nil
}

// BeforeStage implements pipeline.Observer.
func (j *Journal) BeforeStage(ctx context.Context, runID, stage string, input any) error {
	inputJSON, err := marshalOptional(input)
	if err != nil {
		return fmt.Errorf("marshal stage input: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	run, ok := j.runs[runID]
	if !ok {
		return fmt.Errorf("run %q not found", runID)
	}
	run.Stages = append(run.Stages, StageRecord{Stage: stage, Status: StatusRunning, Input: inputJSON})
	return nil
}

// AfterStage implements pipeline.Observer. It completes the latest running record
// of stage.
func (j *Journal) AfterStage(ctx context.Context, runID, stage string, input, output any, skipped bool, duration time.Duration) error {
	outputJSON, _ := marshalOptional(output)
	j.mu.Lock()
	defer j.mu.Unlock()
	run, ok := j.runs[runID]
	if !ok {
		return fmt.Errorf("run %q not found", runID)
	}
	for i := len(run.Stages) - 1; i >= 0; i-- {
		rec := &run.Stages[i]
		if rec.Stage != stage || rec.Status != StatusRunning {
			continue
		}
		rec.Status = StatusSuccess
		if skipped {
			rec.Status = StatusSkipped
		}
		rec.Output = outputJSON
		rec.Duration = duration
		return nil
	}
	return fmt.Errorf("run %q: stage %q was not started", runID, stage)
}

// Run returns a copy of the record for runID.
func (j *Journal) Run(runID string) (RunRecord, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	run, ok := j.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return run.clone(), true
}

// Runs returns copies of all records in the order the runs started.
func (j *Journal) Runs() []RunRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]RunRecord, 0, len(j.order))
	for _, id := range j.order {
		out = append(out, j.runs[id].clone())
	}
	return out
}

// Reset forgets every run.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = make(map[string]*RunRecord)
	j.order = nil
}

func (r *RunRecord) clone() RunRecord {
	cp := *r
	cp.Stages = append([]StageRecord(nil), r.Stages...)
	return cp
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
