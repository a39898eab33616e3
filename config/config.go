package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is the root structure for a pipeline definition (e.g. from YAML).
type PipelineConfig struct {
	Name string `yaml:"name"`

	// Interceptors are pipeline-scoped interceptor names, applied in order.
	Interceptors []string `yaml:"interceptors"`

	// CommonInterceptors are stage interceptor names applied around every stage.
	CommonInterceptors []string `yaml:"common_interceptors"`

	// Observers are names of observers registered in the Registry, called in order.
	Observers []string `yaml:"observers"`

	Stages []StageRef `yaml:"stages"`
}

// StageRef is a single stage entry: either a plain handler name or a struct.
// In YAML, a stage can be written as:
//   - negate
//   - name: halve-small
//     kind: mapFlow
//     handler: invert
//     filter: below-30
//     interceptors: [round]
type StageRef struct {
	// Name of the stage. Also the handler name when Handler is empty.
	Name string `yaml:"name"`

	// Kind: flow (default), mapFlow, reduceFlow or flowAsync.
	Kind string `yaml:"kind"`

	Handler string `yaml:"handler"`

	// Filter names a registered filter. mapFlow only.
	Filter string `yaml:"filter"`

	// Initial is the reduceFlow initial value. Omitted means "start from the first entry".
	Initial any `yaml:"initial"`

	Interceptors []string `yaml:"interceptors"`
}

// UnmarshalYAML allows a stage to be a string (handler name only) or a struct.
func (s *StageRef) UnmarshalYAML(value *yaml.Node) error {
	var nameOnly string
	if err := value.Decode(&nameOnly); err == nil {
		s.Name = nameOnly
		return nil
	}
	type raw StageRef
	return value.Decode((*raw)(s))
}

// HandlerName returns the registry key of the stage handler.
func (s StageRef) HandlerName() string {
	if s.Handler != "" {
		return s.Handler
	}
	return s.Name
}

// ParsePipelineConfig parses YAML bytes into a single PipelineConfig.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MultiPipelineConfig is the root structure for a file that defines multiple pipelines.
// Top-level key is "pipelines"; each value is a pipeline (name + stages).
type MultiPipelineConfig struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

// ParseMultiPipelineConfig parses YAML bytes that contain a "pipelines" map from name to pipeline config.
// Example YAML:
//
//	pipelines:
//	  numbers:
//	    stages: [to-number, negate, invert]
//	  totals:
//	    stages:
//	      - name: sum
//	        kind: reduceFlow
//	        initial: 0
func ParseMultiPipelineConfig(data []byte) (*MultiPipelineConfig, error) {
	var cfg MultiPipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse accepts either a multi-pipeline document or a single pipeline document. A
// single pipeline is returned under its name ("default" if unnamed).
func Parse(data []byte) (*MultiPipelineConfig, error) {
	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if _, ok := probe["pipelines"]; ok {
		return ParseMultiPipelineConfig(data)
	}
	single, err := ParsePipelineConfig(data)
	if err != nil {
		return nil, err
	}
	name := single.Name
	if name == "" {
		name = "default"
	}
	return &MultiPipelineConfig{Pipelines: map[string]PipelineConfig{name: *single}}, nil
}

// LoadFile reads and parses a pipelines file with Parse.
func LoadFile(path string) (*MultiPipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipelines file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
