// Package pipeline threads a value through an ordered list of stages. A stage is one
// of four kinds: Flow replaces the value with handler(value), MapFlow applies the
// handler to every entry of a sequence or mapping (with an optional filter), ReduceFlow
// folds the entries into one value, and FlowAsync runs a handler that returns an
// Awaitable (usually a *Future).
//
// A Definition holds prepared stages and can be edited like a slice (Push, Splice,
// Filter, Map...). Definition.Flow starts a Run, replays every stage into it and calls
// Finish. Runs can also be driven by hand with NewRun and the Flow, MapFlow,
// ReduceFlow and FlowAsync declaration methods.
//
// # Async stages
//
// While a FlowAsync stage is in flight, stages declared after it are queued behind it
// and run, in order, once it settles. Further FlowAsync stages wait their turn. If the
// awaitable rejects, everything still queued is dropped and the run fails with the
// rejection reason.
//
// Finish returns a Result. It holds a plain value when no FlowAsync stage was declared
// and a *Future otherwise; callers branch on Result.IsAsync or use Result.Await:
//
//	res, err := d.Flow(ctx, 10.0)
//	if err != nil {
//		return err
//	}
//	v, err := res.Await(ctx)
//
// # Interceptors
//
// Interceptors are named Pre/Post hook pairs working on a PipeState. Pipeline-scoped
// interceptors run once per run: Pre when the run starts, Post at Finish. Stage
// interceptors run around each stage they are attached to, followed by the common
// stage interceptors of the Registry and of the run. A pipeline-scoped interceptor may
// carry a Stage interceptor that is then applied around every stage of the run.
// Post hooks run in the same order as Pre hooks. A Pre hook setting PipeState.Skip
// bypasses the handler of that one stage; on a FlowAsync stage it bypasses the post
// hooks as well and the value moves on unchanged.
//
// Interceptors are registered on a Registry (DefaultRegistry unless WithRegistry is
// given) before runs start.
//
// # Observer
//
// WithObserver attaches pre/post hooks for the run and each executed stage, e.g. to
// record runs for monitoring. Package observer has an in-memory journal, a zerolog
// observer, Prometheus metrics and OpenTelemetry tracing.
package pipeline
