package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunOption configures a Run.
type RunOption func(*runConfig)

type runConfig struct {
	name         string
	runID        string
	registry     *Registry
	pipeline     []Interceptor
	common       []Interceptor
	log          zerolog.Logger
	observers    []Observer
	skipRegistry bool
}

// WithName sets the pipeline name carried in PipeState.Name.
func WithName(name string) RunOption { return func(c *runConfig) { c.name = name } }

// WithRunID sets the run ID. If empty, a new UUID is generated.
func WithRunID(id string) RunOption { return func(c *runConfig) { c.runID = id } }

// WithRegistry replaces DefaultRegistry as the source of registered interceptors.
// A nil registry means no registered interceptors at all.
func WithRegistry(reg *Registry) RunOption {
	return func(c *runConfig) {
		c.registry = reg
		c.skipRegistry = reg == nil
	}
}

// WithInterceptors appends pipeline-scoped interceptors after the registered ones.
func WithInterceptors(ics ...Interceptor) RunOption {
	return func(c *runConfig) { c.pipeline = append(c.pipeline, ics...) }
}

// WithCommonStageInterceptors appends stage interceptors applied around every stage of
// the run, after the registered common ones.
func WithCommonStageInterceptors(ics ...Interceptor) RunOption {
	return func(c *runConfig) { c.common = append(c.common, ics...) }
}

// WithLogger sets the logger used for run lifecycle events. Default: zerolog.Nop().
func WithLogger(l zerolog.Logger) RunOption { return func(c *runConfig) { c.log = l } }

// WithObserver attaches observers to the run. Repeated options add to the list; all
// observers are called in order through MultiObserver.
func WithObserver(obs ...Observer) RunOption {
	return func(c *runConfig) {
		for _, o := range obs {
			if o != nil {
				c.observers = append(c.observers, o)
			}
		}
	}
}

// pending is one queued FlowAsync stage with the stages declared behind it.
type pending struct {
	stage         *Stage
	continuations []*Stage
	settled       bool
}

// Run is one execution of a pipeline over an input value. Stages are declared with
// Flow, MapFlow, ReduceFlow, FlowAsync or Dispatch and execute as soon as nothing
// asynchronous is in flight; otherwise they wait behind the last queued async stage.
// Finish ends the declaration phase.
//
// A Run is safe for concurrent use but declarations are expected from one goroutine.
type Run struct {
	mu       sync.Mutex
	deferred []func()

	ctx      context.Context
	log      zerolog.Logger
	name     string
	runID    string
	observer Observer
	observe  Interceptor
	pipeline []Interceptor
	common   []Interceptor
	ordinal  int

	state       PipeState
	queue       []*pending
	blocking    bool
	async       bool
	err         error
	failedAsync bool
	observed    bool

	finished      bool
	outcome       Result
	outcomeErr    error
	waiting       bool
	finishPost    []Interceptor
	resolveFinish func(any)
	rejectFinish  func(error)
}

// NewRun starts a run over input: pipeline-scoped pre hooks are applied once, in
// registration order, and the stage interceptors they contribute are collected.
func NewRun(ctx context.Context, input any, opts ...RunOption) (*Run, error) {
	cfg := runConfig{log: zerolog.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.registry == nil && !cfg.skipRegistry {
		cfg.registry = DefaultRegistry
	}
	if cfg.name == "" {
		cfg.name = "pipeline"
	}
	if cfg.runID == "" {
		cfg.runID = uuid.New().String()
	}

	r := &Run{
		ctx:   ctx,
		name:  cfg.name,
		runID: cfg.runID,
		log:   cfg.log.With().Str("pipeline", cfg.name).Str("run_id", cfg.runID).Logger(),
	}
	switch len(cfg.observers) {
	case 0:
	case 1:
		r.observer = cfg.observers[0]
	default:
		r.observer = MultiObserver(cfg.observers...)
	}
	r.pipeline = append(cfg.registry.PipelineInterceptors(), cfg.pipeline...)
	for i, ic := range r.pipeline {
		if ic.Name == "" {
			r.pipeline[i].Name = fmt.Sprintf("%s-interceptor-%d", cfg.name, i)
		}
	}

	// Pipeline-scoped hooks see a placeholder stage named after the pipeline.
	root := &Stage{name: cfg.name, kind: Flow, handler: identity}
	var contributed []Interceptor
	state, err := applyHooks(ctx, r.pipeline, PipeState{Name: cfg.name, RunID: cfg.runID, Value: input, Stage: root}, PhasePre, func(ic Interceptor) {
		if ic.Stage != nil {
			contributed = append(contributed, *ic.Stage)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", cfg.name, err)
	}
	state.Skip = false
	r.state = state.resetTrace()

	r.common = append(cfg.registry.CommonStageInterceptors(), cfg.common...)
	r.common = append(r.common, contributed...)
	if r.observer != nil {
		if err := r.observer.BeforePipeline(ctx, r.runID, r.name, r.state.Value); err != nil {
			return nil, fmt.Errorf("before pipeline: %w", err)
		}
		r.observe = observeStages(r.observer, r.runID)
		r.common = append(r.common, r.observe)
	}
	r.log.Debug().Int("common_interceptors", len(r.common)).Msg("run started")
	return r, nil
}

// RunID returns the run identifier.
func (r *Run) RunID() string { return r.runID }

// Async reports whether a FlowAsync stage has been declared on the run.
func (r *Run) Async() bool {
	r.mu.Lock()
	defer r.unlock()
	return r.async
}

// Flow declares a synchronous stage.
func (r *Run) Flow(spec any) error { return r.declare(Flow, spec) }

// MapFlow declares an element-wise stage.
func (r *Run) MapFlow(spec any) error { return r.declare(MapFlow, spec) }

// ReduceFlow declares a fold stage.
func (r *Run) ReduceFlow(spec any) error { return r.declare(ReduceFlow, spec) }

// FlowAsync declares an asynchronous stage.
func (r *Run) FlowAsync(spec any) error { return r.declare(FlowAsync, spec) }

func (r *Run) declare(kind Kind, spec any) error {
	r.mu.Lock()
	r.ordinal++
	ordinal := r.ordinal
	r.mu.Unlock()
	s, err := PrepareStage(ordinal, kind, spec)
	if err != nil {
		return err
	}
	return r.Dispatch(s)
}

// Dispatch executes a prepared stage, or defers it behind the in-flight async stage.
//
// An error arising while the stage runs synchronously is returned and fails the run.
// Errors from deferred work surface through the Finish future instead. Once a run has
// failed asynchronously, further declarations are discarded.
func (r *Run) Dispatch(s *Stage) error {
	r.mu.Lock()
	defer r.unlock()
	if !s.valid() {
		name := ""
		if s != nil {
			name = s.name
		}
		return &InvalidStageError{Name: name, Reason: "handler is missing"}
	}
	if r.finished {
		return errRunFinished
	}
	if r.err != nil {
		if r.failedAsync {
			r.log.Debug().Str("stage", s.name).Msg("declaration discarded after async failure")
			return nil
		}
		return r.err
	}

	if s.kind == FlowAsync {
		r.async = true
		r.queue = append(r.queue, &pending{stage: s})
		if r.blocking {
			return nil
		}
		if err := r.pump(); err != nil {
			r.fail(err, false)
			return err
		}
		return nil
	}
	if r.blocking {
		last := r.queue[len(r.queue)-1]
		last.continuations = append(last.continuations, s)
		return nil
	}
	in := r.state
	in.Stage = s
	out, err := r.execSync(in)
	if err != nil {
		r.fail(err, false)
		return err
	}
	r.state = out
	return nil
}

var errRunFinished = errors.New("pipeline: run already finished")

// pump starts the head of the async queue. Heads skipped by their pre hooks complete
// on the spot, value unchanged and without post hooks, and the next head is tried. With the queue empty, a waiting Finish is
// settled. Called with r.mu held.
func (r *Run) pump() error {
	for len(r.queue) > 0 {
		head := r.queue[0]
		ics := r.stageInterceptors(head.stage)
		in := r.state.resetTrace()
		in.Stage = head.stage
		pre, err := applyHooks(r.ctx, ics, in, PhasePre, nil)
		if err != nil {
			return stageErr(head.stage, err)
		}
		if pre.Skip {
			r.log.Debug().Str("stage", head.stage.name).Msg("async stage skipped")
			pre.Skip = false
			// Only the observer hears about the skip; post hooks stay out.
			if r.observe.Post != nil {
				if _, err := r.observe.Post(r.ctx, pre); err != nil {
					return stageErr(head.stage, err)
				}
			}
			r.state = pre
			if err := r.complete(head); err != nil {
				return err
			}
			continue
		}

		h := pre.Stage.async
		if h == nil {
			return &InvalidStageError{Kind: pre.Stage.kind, Name: pre.Stage.name, Reason: "async handler is missing"}
		}
		aw := h(r.ctx, pre.Value)
		if isNilAwaitable(aw) {
			return &AsyncContractError{Stage: pre.Stage.name}
		}
		if na, ok := aw.(notAwaitable); ok {
			return &AsyncContractError{Stage: pre.Stage.name, Got: na.got}
		}

		r.blocking = true
		r.log.Debug().Str("stage", head.stage.name).Int("queued", len(r.queue)).Msg("run blocked")
		// Resuming on a new goroutine keeps an already settled awaitable from
		// re-entering the run while r.mu is held.
		aw.Then(func(v any) { go r.fulfill(head, pre, ics, v) })
		aw.Catch(func(err error) { go r.reject(head, err) })
		return nil
	}
	r.drain()
	return nil
}

// complete runs the continuations of head and pops it from the queue.
func (r *Run) complete(head *pending) error {
	for _, s := range head.continuations {
		in := r.state
		in.Stage = s
		out, err := r.execSync(in)
		if err != nil {
			return err
		}
		r.state = out
	}
	head.continuations = nil
	r.queue = r.queue[1:]
	r.blocking = false
	return nil
}

func (r *Run) fulfill(head *pending, pre PipeState, ics []Interceptor, v any) {
	r.mu.Lock()
	defer r.unlock()
	if head.settled || r.err != nil || len(r.queue) == 0 || r.queue[0] != head {
		return
	}
	head.settled = true

	out := pre
	out.Skip = false
	out.Value = v
	post, err := applyHooks(r.ctx, ics, out, PhasePost, nil)
	if err != nil {
		r.fail(stageErr(head.stage, err), true)
		return
	}
	r.state = post
	if err := r.complete(head); err != nil {
		r.fail(err, true)
		return
	}
	if err := r.pump(); err != nil {
		r.fail(err, true)
	}
}

func (r *Run) reject(head *pending, err error) {
	r.mu.Lock()
	defer r.unlock()
	if head.settled || r.err != nil {
		return
	}
	head.settled = true
	if err == nil {
		err = fmt.Errorf("stage %q: rejected without a reason", head.stage.name)
	}
	r.fail(err, true)
}

// fail records err, drops everything still queued and rejects a waiting Finish.
// async marks failures reported through the Finish future rather than a declaration.
func (r *Run) fail(err error, async bool) {
	dropped := 0
	for _, p := range r.queue {
		dropped += 1 + len(p.continuations)
	}
	r.err = err
	r.failedAsync = async
	r.queue = nil
	r.blocking = false
	r.log.Debug().Err(err).Int("dropped_stages", dropped).Msg("run failed")
	r.afterPipeline(nil, err)
	if r.waiting {
		r.waiting = false
		reject := r.rejectFinish
		r.later(func() { reject(err) })
	}
}

// drain settles a waiting Finish once the queue is empty.
func (r *Run) drain() {
	if !r.waiting {
		return
	}
	r.waiting = false
	r.log.Debug().Msg("run drained")
	v, err := r.finalize()
	if err != nil {
		r.err, r.failedAsync = err, true
		reject := r.rejectFinish
		r.later(func() { reject(err) })
		return
	}
	resolve := r.resolveFinish
	r.later(func() { resolve(v) })
}

// finalize applies pipeline-scoped post hooks, then the post hooks given to Finish.
func (r *Run) finalize() (any, error) {
	ics := make([]Interceptor, 0, len(r.pipeline)+len(r.finishPost))
	ics = append(ics, r.pipeline...)
	ics = append(ics, r.finishPost...)
	in := r.state.resetTrace()
	if in.Stage == nil {
		in.Stage = &Stage{name: r.name, kind: Flow, handler: identity}
	}
	out, err := applyHooks(r.ctx, ics, in, PhasePost, nil)
	if err != nil {
		err = fmt.Errorf("pipeline %q: %w", r.name, err)
		r.afterPipeline(nil, err)
		return nil, err
	}
	r.state = out
	if err := r.afterPipeline(out.Value, nil); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// afterPipeline notifies the observer once per run.
func (r *Run) afterPipeline(result any, err error) error {
	if r.observer == nil || r.observed {
		return nil
	}
	r.observed = true
	if postErr := r.observer.AfterPipeline(r.ctx, r.runID, result, err); postErr != nil && err == nil {
		return fmt.Errorf("after pipeline: %w", postErr)
	}
	return nil
}

// Finish ends the declaration phase. If any FlowAsync stage was declared the Result
// holds a future that settles once the queue drains; otherwise pipeline post hooks
// run now and the Result holds the final value. post hooks run after the
// pipeline-scoped ones. Calling Finish again returns the first outcome.
func (r *Run) Finish(post ...Interceptor) (Result, error) {
	r.mu.Lock()
	defer r.unlock()
	if r.finished {
		return r.outcome, r.outcomeErr
	}
	r.finished = true
	r.finishPost = post

	if r.err != nil && !r.failedAsync {
		r.outcomeErr = r.err
		return Result{}, r.err
	}
	if !r.async && len(r.queue) == 0 {
		v, err := r.finalize()
		if err != nil {
			r.err, r.outcomeErr = err, err
			return Result{}, err
		}
		r.outcome = Result{value: v}
		return r.outcome, nil
	}

	f, resolve, reject := NewFuture()
	r.outcome = Result{future: f}
	switch {
	case r.err != nil:
		err := r.err
		r.later(func() { reject(err) })
	case r.blocking || len(r.queue) > 0:
		r.waiting = true
		r.resolveFinish, r.rejectFinish = resolve, reject
	default:
		v, err := r.finalize()
		if err != nil {
			r.err, r.failedAsync = err, true
			r.later(func() { reject(err) })
		} else {
			r.later(func() { resolve(v) })
		}
	}
	return r.outcome, nil
}

// later queues fn to run once r.mu is released, so future callbacks never run under
// the run lock.
func (r *Run) later(fn func()) { r.deferred = append(r.deferred, fn) }

func (r *Run) unlock() {
	fns := r.deferred
	r.deferred = nil
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Result is the outcome of Finish: a plain value when the run never declared an
// async stage, a future otherwise. Callers branch on IsAsync or use Await.
type Result struct {
	value  any
	future *Future
}

// IsAsync reports whether the result is a future.
func (r Result) IsAsync() bool { return r.future != nil }

// Value returns the synchronous value. It is nil for async results.
func (r Result) Value() any { return r.value }

// Future returns the future of an async result, or nil.
func (r Result) Future() *Future { return r.future }

// Await returns the value, waiting for the future if the result is async.
func (r Result) Await(ctx context.Context) (any, error) {
	if r.future == nil {
		return r.value, nil
	}
	return r.future.Await(ctx)
}
