// Command stageflow runs, lints and draws pipelines described in YAML files.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcshock/stageflow/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	settingsFile string
	envFile      string
}

func (g *globalFlags) settings() (*config.Settings, error) {
	var opts []config.SettingsOption
	if g.settingsFile != "" {
		opts = append(opts, config.WithSettingsFile(g.settingsFile))
	}
	if g.envFile != "" {
		opts = append(opts, config.WithEnvFile(g.envFile))
	}
	return config.LoadSettings(opts...)
}

func rootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "stageflow",
		Short: "Run staged value pipelines from YAML",
		Long: `Stageflow runs pipelines of flow, mapFlow, reduceFlow and flowAsync stages
declared in YAML files. Stages reference the built-in handler catalogue by name
(see "stageflow handlers").`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.settingsFile, "config", "", "settings file (YAML); STAGEFLOW_* variables override it")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", ".env file loaded before reading the environment")

	root.AddCommand(runCmd(&g))
	root.AddCommand(lintCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(handlersCmd())
	return root
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
