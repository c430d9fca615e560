package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trialrun",
		Short: "Trialrun - tick-synchronized scenario execution and data extraction",
		Long: `trialrun executes scripted driving scenarios against a simulated world.

It advances a scenario's execution tree in lockstep with simulation frames,
evaluates pass/fail criteria continuously, records windowed per-frame data,
and reports the final verdict when the run ends.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace")
	rootCmd.PersistentFlags().String("output", "", "Output directory for windows and traces")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newValidateCmd(),
		newWindowsCmd(),
	)

	return rootCmd
}
