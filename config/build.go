package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dcshock/stageflow/pipeline"
)

// BuildDefinition builds a pipeline.Definition from config and registry. Every name in
// cfg must be registered. opts are appended after the run options derived from cfg
// (interceptors, common interceptors, observers).
func BuildDefinition(reg *Registry, cfg *PipelineConfig, opts ...pipeline.RunOption) (*pipeline.Definition, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	runOpts, err := runOptions(reg, cfg)
	if err != nil {
		return nil, err
	}
	specs := make([]pipeline.StageSpec, 0, len(cfg.Stages))
	for i, ref := range cfg.Stages {
		spec, err := stageSpec(reg, ref)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return pipeline.New(cfg.Name, specs, append(runOpts, opts...)...)
}

func runOptions(reg *Registry, cfg *PipelineConfig) ([]pipeline.RunOption, error) {
	var opts []pipeline.RunOption
	pipe, err := interceptors(reg, cfg.Interceptors)
	if err != nil {
		return nil, fmt.Errorf("interceptors: %w", err)
	}
	common, err := interceptors(reg, cfg.CommonInterceptors)
	if err != nil {
		return nil, fmt.Errorf("common_interceptors: %w", err)
	}
	if len(pipe) > 0 {
		opts = append(opts, pipeline.WithInterceptors(pipe...))
	}
	if len(common) > 0 {
		opts = append(opts, pipeline.WithCommonStageInterceptors(common...))
	}
	if len(cfg.Observers) > 0 {
		list := make([]pipeline.Observer, 0, len(cfg.Observers))
		for i, name := range cfg.Observers {
			obs, ok := reg.Observer(name)
			if !ok {
				return nil, fmt.Errorf("observer %d: %q not in registry", i, name)
			}
			list = append(list, obs)
		}
		opts = append(opts, pipeline.WithObserver(list...))
	}
	return opts, nil
}

func stageSpec(reg *Registry, ref StageRef) (pipeline.StageSpec, error) {
	if ref.HandlerName() == "" {
		return pipeline.StageSpec{}, fmt.Errorf("name or handler required")
	}
	kind, err := pipeline.ParseKind(ref.Kind)
	if err != nil {
		return pipeline.StageSpec{}, fmt.Errorf("%q: %w", ref.Name, err)
	}
	h, ok := reg.Handler(ref.HandlerName())
	if !ok {
		return pipeline.StageSpec{}, fmt.Errorf("%q not in registry", ref.HandlerName())
	}
	spec := pipeline.StageSpec{Name: ref.Name, Kind: kind, Handler: h, InitialValue: ref.Initial}
	if ref.Filter != "" {
		f, ok := reg.Filter(ref.Filter)
		if !ok {
			return pipeline.StageSpec{}, fmt.Errorf("%q: filter %q not in registry", ref.Name, ref.Filter)
		}
		spec.Filter = f
	}
	if spec.Interceptors, err = interceptors(reg, ref.Interceptors); err != nil {
		return pipeline.StageSpec{}, fmt.Errorf("%q: %w", ref.Name, err)
	}
	return spec, nil
}

func interceptors(reg *Registry, names []string) ([]pipeline.Interceptor, error) {
	out := make([]pipeline.Interceptor, 0, len(names))
	for _, name := range names {
		ic, ok := reg.Interceptor(name)
		if !ok {
			return nil, fmt.Errorf("interceptor %q not in registry", name)
		}
		out = append(out, ic)
	}
	return out, nil
}

// BuildAllDefinitions builds a pipeline.Definition for each entry in multi. Keys are pipeline names.
// If a pipeline config's Name is empty, the map key is used as the pipeline name.
func BuildAllDefinitions(reg *Registry, multi *MultiPipelineConfig, opts ...pipeline.RunOption) (map[string]*pipeline.Definition, error) {
	if multi == nil {
		return nil, fmt.Errorf("MultiPipelineConfig is nil")
	}
	out := make(map[string]*pipeline.Definition, len(multi.Pipelines))
	for name, cfg := range multi.Pipelines {
		if cfg.Name == "" {
			cfg.Name = name
		}
		d, err := BuildDefinition(reg, &cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", name, err)
		}
		out[name] = d
	}
	return out, nil
}

// Check builds every pipeline in multi and returns all problems found, ordered by
// pipeline name. A nil result means the document is runnable against reg.
func Check(reg *Registry, multi *MultiPipelineConfig) error {
	if multi == nil || len(multi.Pipelines) == 0 {
		return fmt.Errorf("no pipelines defined")
	}
	names := make([]string, 0, len(multi.Pipelines))
	for name := range multi.Pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		cfg := multi.Pipelines[name]
		if cfg.Name == "" {
			cfg.Name = name
		}
		if len(cfg.Stages) == 0 {
			errs = append(errs, fmt.Errorf("pipeline %q: no stages", name))
			continue
		}
		if _, err := BuildDefinition(reg, &cfg); err != nil {
			errs = append(errs, fmt.Errorf("pipeline %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
