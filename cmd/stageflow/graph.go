package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/spf13/cobra"

	"github.com/dcshock/stageflow/config"
	"github.com/dcshock/stageflow/pipeline"
)

func graphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <pipelines.yaml> <pipeline>",
		Short: "Print the stages of a pipeline as text or Graphviz DOT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			multi, err := config.LoadFile(args[0])
			if err != nil {
				return err
			}
			cfg, ok := multi.Pipelines[args[1]]
			if !ok {
				return fmt.Errorf("pipeline %q not found in %s", args[1], args[0])
			}
			if cfg.Name == "" {
				cfg.Name = args[1]
			}

			switch strings.ToLower(format) {
			case "dot":
				dot, err := renderDOT(&cfg)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), dot)
			case "text", "":
				renderText(cmd.OutOrStdout(), &cfg)
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// stageKind returns the normalized kind name of ref, or its raw value if unknown.
func stageKind(ref config.StageRef) string {
	k, err := pipeline.ParseKind(ref.Kind)
	if err != nil {
		return ref.Kind
	}
	return k.String()
}

// stageLabel is the stage name, falling back to the "{ordinal}-{kind}" default.
func stageLabel(i int, ref config.StageRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	return fmt.Sprintf("%d-%s", i+1, stageKind(ref))
}

func renderText(w io.Writer, cfg *config.PipelineConfig) {
	fmt.Fprintf(w, "Pipeline: %s  (%d stages)\n", cfg.Name, len(cfg.Stages))
	if len(cfg.Interceptors) > 0 {
		fmt.Fprintf(w, "Interceptors: %s\n", strings.Join(cfg.Interceptors, ", "))
	}
	if len(cfg.CommonInterceptors) > 0 {
		fmt.Fprintf(w, "Common interceptors: %s\n", strings.Join(cfg.CommonInterceptors, ", "))
	}

	width := 5
	for i, ref := range cfg.Stages {
		if n := len(stageLabel(i, ref)); n > width {
			width = n
		}
	}
	fmt.Fprintf(w, "\nStages:\n")
	for i, ref := range cfg.Stages {
		var attrs []string
		if ref.Handler != "" {
			attrs = append(attrs, "handler="+ref.Handler)
		}
		if ref.Filter != "" {
			attrs = append(attrs, "filter="+ref.Filter)
		}
		if ref.Initial != nil {
			attrs = append(attrs, fmt.Sprintf("initial=%v", ref.Initial))
		}
		if len(ref.Interceptors) > 0 {
			attrs = append(attrs, "interceptors="+strings.Join(ref.Interceptors, ","))
		}
		fmt.Fprintf(w, "  %2d  %-*s  %-10s  %s\n", i+1, width, stageLabel(i, ref), stageKind(ref), strings.Join(attrs, " "))
	}
}

var kindShapes = map[string]map[string]string{
	"flow":       {"shape": "box"},
	"mapFlow":    {"shape": "box3d"},
	"reduceFlow": {"shape": "invtrapezium"},
	"flowAsync":  {"shape": "box", "style": "dashed"},
}

// renderDOT draws the stages as a chain from an input node to an output node.
func renderDOT(cfg *config.PipelineConfig) (string, error) {
	g := gographviz.NewGraph()
	name := strconv.Quote(cfg.Name)
	if err := g.SetName(name); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr(name, "rankdir", "LR"); err != nil {
		return "", err
	}

	label := "input"
	if len(cfg.Interceptors) > 0 {
		label += "\n" + strings.Join(cfg.Interceptors, ", ")
	}
	if err := g.AddNode(name, "input", map[string]string{"shape": "circle", "label": strconv.Quote(label)}); err != nil {
		return "", err
	}
	prev := "input"
	for i, ref := range cfg.Stages {
		id := fmt.Sprintf("s%d", i+1)
		kind := stageKind(ref)
		label := stageLabel(i, ref) + "\n" + kind
		if ref.Handler != "" && ref.Handler != ref.Name {
			label += "\n" + ref.Handler
		}
		attrs := map[string]string{"label": strconv.Quote(label)}
		for k, v := range kindShapes[kind] {
			attrs[k] = v
		}
		if err := g.AddNode(name, id, attrs); err != nil {
			return "", err
		}
		edge := map[string]string{}
		if ref.Filter != "" {
			edge["label"] = strconv.Quote(ref.Filter)
		}
		if err := g.AddEdge(prev, id, true, edge); err != nil {
			return "", err
		}
		prev = id
	}
	if err := g.AddNode(name, "output", map[string]string{"shape": "doublecircle"}); err != nil {
		return "", err
	}
	if err := g.AddEdge(prev, "output", true, nil); err != nil {
		return "", err
	}
	return g.String(), nil
}
