package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dcshock/stageflow/config"
)

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <pipelines.yaml>",
		Short: "Check that every pipeline in a file can be built from the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			multi, err := config.LoadFile(args[0])
			if err != nil {
				return err
			}
			if err := config.Check(catalogue(zerolog.Nop()), multi); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d pipeline(s) valid: %v\n", len(multi.Pipelines), pipelineNames(multi))
			return nil
		},
	}
}
