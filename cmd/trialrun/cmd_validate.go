package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/trialrun/internal/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check a scenario definition without running it",
		Long: `Parse a scenario definition, validate its configuration, and compile
its criterion expressions. Exits non-zero on the first problem found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			def, err := scenario.LoadDefinition(args[0])
			if err != nil {
				return err
			}

			// Compile against an empty environment; undefined variables are
			// allowed so evaluation is deferred to the run.
			if _, err := def.BuildCriteria(func() map[string]any { return nil }); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"status":   "valid",
					"scenario": def.Name,
					"timeout":  def.Timeout,
					"actors":   len(def.Actors) + 1,
					"criteria": len(def.Criteria),
				})
			}

			fmt.Printf("Scenario %q is valid.\n", def.Name)
			fmt.Printf("  Timeout:  %.1fs\n", def.Timeout)
			fmt.Printf("  Actors:   %d (including ego)\n", len(def.Actors)+1)
			fmt.Printf("  Criteria: %d\n", len(def.Criteria))
			return nil
		},
	}
}
