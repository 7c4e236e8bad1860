package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tentscape.ai/internal/persistence/indexdb"
)

func indexCmd() *cobra.Command {
	var (
		dataDir string
		worldID string
		dbPath  string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "List generations recorded in a world's SQLite index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := dbPath
			if path == "" {
				path = filepath.Join(dataDir, "worlds", worldID, "index", "world.sqlite")
			}
			if _, err := os.Stat(path); err != nil {
				return err
			}
			rows, err := indexdb.Generations(cmd.Context(), path, limit)
			if err != nil {
				return fmt.Errorf("query %s: %w", path, err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "GEN\tID\tROLE\tREASON\tSTART\tLAST\tENTITIES\tAVG_WALKING\tAVG_STEP_MS")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%.1f\t%.3f\n",
					r.Generation, r.GenerationID, r.Role, r.Reason, r.StartTick, r.LastTick,
					r.EntityCount, r.AvgWalking, r.AvgStepMS)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	cmd.Flags().StringVar(&worldID, "world", "festival_1", "world id")
	cmd.Flags().StringVar(&dbPath, "db", "", "index path (overrides --data/--world)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max generations (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
