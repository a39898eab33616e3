package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dcshock/stageflow/pipeline"
)

// Registry maps names used in pipeline documents to handlers, filters, interceptors
// and observers. Safe for concurrent use.
//
// Handlers are stored in any shape pipeline.PrepareStage accepts; the stage kind in
// the document decides how they are normalized (a reducer for reduceFlow, an
// awaitable-returning function for flowAsync).
type Registry struct {
	mu           sync.RWMutex
	handlers     map[string]any
	filters      map[string]any
	interceptors map[string]pipeline.Interceptor
	observers    map[string]pipeline.Observer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:     make(map[string]any),
		filters:      make(map[string]any),
		interceptors: make(map[string]pipeline.Interceptor),
		observers:    make(map[string]pipeline.Observer),
	}
}

// RegisterHandler adds a handler under name. Overwrites any existing registration.
func (r *Registry) RegisterHandler(name string, fn any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// RegisterFilter adds a mapFlow filter under name.
func (r *Registry) RegisterFilter(name string, fn any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters[name] = fn
}

// RegisterInterceptor adds ic under ic.Name.
func (r *Registry) RegisterInterceptor(ic pipeline.Interceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interceptors[ic.Name] = ic
}

// RegisterObserver adds an observer under name.
func (r *Registry) RegisterObserver(name string, obs pipeline.Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers[name] = obs
}

// Handler returns the handler for name.
func (r *Registry) Handler(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// MustHandler returns the handler for name, or panics if not found.
func (r *Registry) MustHandler(name string) any {
	h, ok := r.Handler(name)
	if !ok {
		panic(fmt.Sprintf("config: handler %q not registered", name))
	}
	return h
}

// Filter returns the filter for name.
func (r *Registry) Filter(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.filters[name]
	return f, ok
}

// Interceptor returns the interceptor for name.
func (r *Registry) Interceptor(name string) (pipeline.Interceptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ic, ok := r.interceptors[name]
	return ic, ok
}

// Observer returns the observer for name.
func (r *Registry) Observer(name string) (pipeline.Observer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.observers[name]
	return o, ok
}

// Names returns all registered handler names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
