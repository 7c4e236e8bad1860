package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tentscape.ai/internal/sim/catalogs"
)

func stagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Work with stage line-up files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a JSON or YAML stage file and print its digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalogs.LoadStages(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			name := cat.Name
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Fprintf(out, "%s: %d stage(s) digest=%s\n", name, len(cat.Stages), cat.Digest)
			for _, s := range cat.Stages {
				fmt.Fprintf(out, "  %-12s %-8s (%5.1f,%5.1f) %s\n", s.ID, s.Type, s.Position.X, s.Position.Y, s.Name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the stage list JSON schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write(catalogs.SchemaJSON())
			return err
		},
	})
	return cmd
}
