package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Kind selects the dispatch algorithm used for a stage.
type Kind int

const (
	// Flow replaces the value with handler(value).
	Flow Kind = iota
	// MapFlow runs the handler once per entry of a sequence or mapping.
	MapFlow
	// ReduceFlow folds the entries of a sequence or mapping into one value.
	ReduceFlow
	// FlowAsync runs a handler that returns an Awaitable; later stages wait for it.
	FlowAsync
)

func (k Kind) String() string {
	switch k {
	case Flow:
		return "flow"
	case MapFlow:
		return "mapFlow"
	case ReduceFlow:
		return "reduceFlow"
	case FlowAsync:
		return "flowAsync"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the names returned by Kind.String (case-insensitive). An empty
// string is Flow, matching the default kind of a stage entry.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "flow":
		return Flow, nil
	case "mapflow", "map":
		return MapFlow, nil
	case "reduceflow", "reduce":
		return ReduceFlow, nil
	case "flowasync", "async":
		return FlowAsync, nil
	default:
		return Flow, fmt.Errorf("unknown stage kind %q", s)
	}
}

// Handler transforms the value flowing through a Flow stage or through one entry of a
// MapFlow stage.
type Handler func(ctx context.Context, value any) (any, error)

// AsyncHandler starts asynchronous work for a FlowAsync stage. The returned Awaitable
// settles with the stage output or with the error that aborts the run.
type AsyncHandler func(ctx context.Context, value any) Awaitable

// Reducer folds one entry into the accumulator of a ReduceFlow stage. key is the
// entry's index in a sequence or its key in a mapping.
type Reducer func(ctx context.Context, acc, item, key any) (any, error)

// Filter decides whether a MapFlow entry is kept in the output. It sees the entry
// before the handler runs.
type Filter func(value, key any) bool

// StageSpec is the raw description of a stage. Handler, Filter and InitialValue are
// normalized by PrepareStage; see the package documentation for accepted shapes.
type StageSpec struct {
	Name         string
	Kind         Kind
	Handler      any
	Interceptors []Interceptor
	// Filter is used by MapFlow only.
	Filter any
	// InitialValue seeds a ReduceFlow fold. A nil InitialValue means "start from the
	// first entry" unless HasInitial is set, in which case nil is the seed.
	InitialValue any
	HasInitial   bool
}

// Stage is a prepared, immutable stage descriptor.
type Stage struct {
	name         string
	kind         Kind
	ordinal      int
	handler      Handler
	async        AsyncHandler
	reducer      Reducer
	filter       Filter
	initialValue any
	hasInitial   bool
	interceptors []Interceptor
}

// Name returns the stage name, "{ordinal}-{kind}" unless one was given.
func (s *Stage) Name() string { return s.name }

// Kind returns the stage kind.
func (s *Stage) Kind() Kind { return s.kind }

// Ordinal returns the position the stage was prepared at, starting at 1.
func (s *Stage) Ordinal() int { return s.ordinal }

// InitialValue returns the ReduceFlow seed, and whether one was set.
func (s *Stage) InitialValue() (any, bool) { return s.initialValue, s.hasInitial }

// Interceptors returns a copy of the stage-scoped interceptors.
func (s *Stage) Interceptors() []Interceptor {
	return append([]Interceptor(nil), s.interceptors...)
}

// WithName returns a copy of the stage with a different name.
func (s *Stage) WithName(name string) *Stage {
	cp := *s
	cp.name = name
	return &cp
}

// WithHandler returns a copy of the stage whose synchronous handler is h. Interceptors
// use it to substitute the work done by a stage.
func (s *Stage) WithHandler(h Handler) *Stage {
	cp := *s
	cp.handler = h
	return &cp
}

func (s *Stage) valid() bool {
	if s == nil {
		return false
	}
	switch s.kind {
	case Flow, MapFlow:
		return s.handler != nil
	case ReduceFlow:
		return s.reducer != nil
	case FlowAsync:
		return s.async != nil
	}
	return false
}

func (s *Stage) String() string { return s.name }

// PrepareStage normalizes raw into a Stage of the given kind. raw is a StageSpec,
// a *StageSpec or a bare handler function. ordinal numbers the stage within its
// definition and drives the default name "{ordinal}-{kind}". The Kind field of a
// StageSpec is ignored in favour of kind.
func PrepareStage(ordinal int, kind Kind, raw any) (*Stage, error) {
	var spec StageSpec
	switch v := raw.(type) {
	case nil:
		return nil, &InvalidStageError{Kind: kind, Reason: "stage is nil"}
	case StageSpec:
		spec = v
	case *StageSpec:
		if v == nil {
			return nil, &InvalidStageError{Kind: kind, Reason: "stage is nil"}
		}
		spec = *v
	case *Stage:
		if !v.valid() {
			return nil, &InvalidStageError{Kind: kind, Name: v.name, Reason: "handler is missing"}
		}
		return v, nil
	default:
		spec = StageSpec{Handler: raw}
	}
	if kind < Flow || kind > FlowAsync {
		return nil, &InvalidStageError{Kind: kind, Name: spec.Name, Reason: "unknown kind"}
	}

	s := &Stage{
		name:         spec.Name,
		kind:         kind,
		ordinal:      ordinal,
		initialValue: spec.InitialValue,
		hasInitial:   spec.HasInitial || spec.InitialValue != nil,
		interceptors: append([]Interceptor(nil), spec.Interceptors...),
	}
	if s.name == "" {
		s.name = fmt.Sprintf("%d-%s", ordinal, kind)
	}
	if spec.Handler == nil {
		return nil, &InvalidStageError{Kind: kind, Name: spec.Name, Reason: "handler is missing"}
	}

	var ok bool
	switch kind {
	case Flow, MapFlow:
		s.handler, ok = toHandler(spec.Handler)
	case ReduceFlow:
		s.reducer, ok = toReducer(spec.Handler)
	case FlowAsync:
		s.async, ok = toAsyncHandler(spec.Handler)
	}
	if !ok {
		return nil, &InvalidStageError{Kind: kind, Name: spec.Name, Reason: fmt.Sprintf("handler of type %T is not invocable", spec.Handler)}
	}

	if spec.Filter != nil {
		if kind != MapFlow {
			return nil, &InvalidStageError{Kind: kind, Name: spec.Name, Reason: "filter is only valid on mapFlow"}
		}
		if s.filter, ok = toFilter(spec.Filter); !ok {
			return nil, &InvalidStageError{Kind: kind, Name: spec.Name, Reason: fmt.Sprintf("filter of type %T is not invocable", spec.Filter)}
		}
	}
	for i, ic := range s.interceptors {
		if ic.Name == "" {
			s.interceptors[i].Name = fmt.Sprintf("%s-interceptor-%d", s.name, i)
		}
	}
	return s, nil
}

func toHandler(fn any) (Handler, bool) {
	switch h := fn.(type) {
	case Handler:
		return h, h != nil
	case func(context.Context, any) (any, error):
		return h, h != nil
	case func(any) (any, error):
		if h == nil {
			return nil, false
		}
		return func(_ context.Context, v any) (any, error) { return h(v) }, true
	case func(any) any:
		if h == nil {
			return nil, false
		}
		return func(_ context.Context, v any) (any, error) { return h(v), nil }, true
	}
	return nil, false
}

func toAsyncHandler(fn any) (AsyncHandler, bool) {
	switch h := fn.(type) {
	case AsyncHandler:
		return h, h != nil
	case func(context.Context, any) Awaitable:
		return h, h != nil
	case func(any) Awaitable:
		if h == nil {
			return nil, false
		}
		return func(_ context.Context, v any) Awaitable { return h(v) }, true
	case func(context.Context, any) *Future:
		if h == nil {
			return nil, false
		}
		return func(ctx context.Context, v any) Awaitable { return futureOrNil(h(ctx, v)) }, true
	case func(any) *Future:
		if h == nil {
			return nil, false
		}
		return func(_ context.Context, v any) Awaitable { return futureOrNil(h(v)) }, true
	case func(context.Context, any) any:
		if h == nil {
			return nil, false
		}
		return func(ctx context.Context, v any) Awaitable { return asAwaitable(h(ctx, v)) }, true
	case func(any) any:
		if h == nil {
			return nil, false
		}
		return func(_ context.Context, v any) Awaitable { return asAwaitable(h(v)) }, true
	}
	return nil, false
}

func toReducer(fn any) (Reducer, bool) {
	switch r := fn.(type) {
	case Reducer:
		return r, r != nil
	case func(context.Context, any, any, any) (any, error):
		return r, r != nil
	case func(any, any) (any, error):
		if r == nil {
			return nil, false
		}
		return func(_ context.Context, acc, item, _ any) (any, error) { return r(acc, item) }, true
	case func(any, any) any:
		if r == nil {
			return nil, false
		}
		return func(_ context.Context, acc, item, _ any) (any, error) { return r(acc, item), nil }, true
	}
	return nil, false
}

func toFilter(fn any) (Filter, bool) {
	switch f := fn.(type) {
	case Filter:
		return f, f != nil
	case func(any, any) bool:
		return f, f != nil
	case func(any) bool:
		if f == nil {
			return nil, false
		}
		return func(v, _ any) bool { return f(v) }, true
	}
	return nil, false
}

// asAwaitable returns v as an Awaitable, or a non-awaitable marker that makes
// dispatch fail with AsyncContractError naming the offending type.
func asAwaitable(v any) Awaitable {
	if f, ok := v.(*Future); ok {
		return futureOrNil(f)
	}
	if a, ok := v.(Awaitable); ok {
		return a
	}
	return notAwaitable{got: v}
}

// isNilAwaitable reports whether aw is nil or wraps a nil pointer, map, func or
// channel, which would panic on Then.
func isNilAwaitable(aw Awaitable) bool {
	if aw == nil {
		return true
	}
	switch rv := reflect.ValueOf(aw); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func futureOrNil(f *Future) Awaitable {
	if f == nil {
		return nil
	}
	return f
}

// notAwaitable carries a handler result that failed the async contract.
type notAwaitable struct{ got any }

func (n notAwaitable) Then(func(any)) Awaitable { return n }
func (n notAwaitable) Catch(func(error)) Awaitable { return n }
