// Command festctl inspects a running tentscape server and the data it writes.
package main

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var level string

	rootCmd := &cobra.Command{
		Use:          "festctl",
		Short:        "Watch, replay and inspect festival map simulations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			lvl, err := log.ParseLevel(level)
			if err != nil {
				return err
			}
			logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
				Level:           lvl,
				Prefix:          "festctl",
				ReportTimestamp: true,
				TimeFormat:      time.TimeOnly,
			})
			cmd.SetContext(withLogger(cmd.Context(), logger))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&level, "log_level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(indexCmd())
	return rootCmd
}
