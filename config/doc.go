// Package config provides a name registry and human-readable pipeline configuration.
//
// Register handlers, filters, interceptors and observers by name, then define pipelines
// in YAML (or structs) that reference those names:
//
//	pipelines:
//	  numbers:
//	    interceptors: [logger]
//	    stages:
//	      - to-number
//	      - negate
//	      - name: slow-double
//	        kind: flowAsync
//	        handler: double-async
//	      - name: halve
//	        kind: mapFlow
//	        handler: invert
//	        filter: below-30
//	        interceptors: [round]
//	      - name: total
//	        kind: reduceFlow
//	        handler: sum
//	        initial: 0
//
// Build a definition with BuildDefinition(registry, config, opts...) or all of them
// with BuildAllDefinitions. Check reports every unresolved name in a document at once.
//
// Process settings (logging, pipelines file, store, metrics) are loaded by
// LoadSettings from an optional YAML file, an optional .env file and STAGEFLOW_*
// environment variables.
package config
