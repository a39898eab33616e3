package pipeline

import "sync"

// Registry holds the pipeline-scoped interceptors and the common stage interceptors
// applied to every run that uses it. Registration is append-only and is expected to
// happen before runs start; runs take a snapshot when they are created.
type Registry struct {
	mu       sync.RWMutex
	pipeline []Interceptor
	common   []Interceptor
}

// NewRegistry returns an empty interceptor registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry is used by definitions created without WithRegistry.
var DefaultRegistry = NewRegistry()

// RegisterPipelineInterceptors appends pipeline-scoped interceptors.
func (r *Registry) RegisterPipelineInterceptors(interceptors ...Interceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipeline = append(r.pipeline, interceptors...)
}

// RegisterCommonStageInterceptors appends interceptors applied around every stage.
func (r *Registry) RegisterCommonStageInterceptors(interceptors ...Interceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.common = append(r.common, interceptors...)
}

// PipelineInterceptors returns a snapshot of the pipeline-scoped interceptors.
func (r *Registry) PipelineInterceptors() []Interceptor {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Interceptor(nil), r.pipeline...)
}

// CommonStageInterceptors returns a snapshot of the common stage interceptors.
func (r *Registry) CommonStageInterceptors() []Interceptor {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Interceptor(nil), r.common...)
}

// RegisterPipelineInterceptors appends to DefaultRegistry.
func RegisterPipelineInterceptors(interceptors ...Interceptor) {
	DefaultRegistry.RegisterPipelineInterceptors(interceptors...)
}

// RegisterCommonStageInterceptors appends to DefaultRegistry.
func RegisterCommonStageInterceptors(interceptors ...Interceptor) {
	DefaultRegistry.RegisterCommonStageInterceptors(interceptors...)
}
