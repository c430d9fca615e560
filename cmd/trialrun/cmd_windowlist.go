package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/trialrun/internal/window"
)

func newWindowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "windows",
		Short: "List windows stored by the sqlite backend",
		Long: `List the frame windows recorded in <output>/windows.db by a run that
used the sqlite backend. Use --dump to print one window's payload.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			dump, _ := cmd.Flags().GetString("dump")

			sink, err := window.NewSQLiteSink(cfg.Output.Dir)
			if err != nil {
				return err
			}
			defer sink.Close()

			ctx := cmd.Context()

			if dump != "" {
				payload, err := sink.Payload(ctx, dump)
				if err != nil {
					return fmt.Errorf("window %s: %w", dump, err)
				}
				_, err = os.Stdout.Write(append(payload, '\n'))
				return err
			}

			names, err := sink.Windows(ctx)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"windows": names,
					"count":   len(names),
				})
			}

			if len(names) == 0 {
				fmt.Println("No windows stored yet.")
				return nil
			}
			fmt.Printf("Stored windows (%d):\n", len(names))
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().String("dump", "", "Print the payload of one window (by frame range name)")

	return cmd
}
