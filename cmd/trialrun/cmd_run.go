package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/trialrun/internal/config"
	"github.com/nvandessel/trialrun/internal/constants"
	"github.com/nvandessel/trialrun/internal/extract"
	"github.com/nvandessel/trialrun/internal/logging"
	"github.com/nvandessel/trialrun/internal/report"
	"github.com/nvandessel/trialrun/internal/runner"
	"github.com/nvandessel/trialrun/internal/scenario"
	"github.com/nvandessel/trialrun/internal/window"
)

// loadConfig resolves the effective configuration: defaults, then the config
// file, then environment variables, then command-line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if dir, _ := cmd.Flags().GetString("output"); dir != "" {
		cfg.Output.Dir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSink builds the window storage sink for the configured backend. The
// returned closer releases backend resources; for the file backend it is a
// no-op.
func newSink(cfg *config.Config) (window.Sink, func() error, error) {
	switch cfg.Output.Backend {
	case constants.BackendSQLite:
		sink, err := window.NewSQLiteSink(cfg.Output.Dir)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		sink, err := window.NewFileSink(filepath.Join(cfg.Output.Dir, "windows"))
		if err != nil {
			return nil, nil, err
		}
		return sink, func() error { return nil }, nil
	}
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute a scenario and report the verdict",
		Long: `Execute a scenario definition against the built-in world.

The run advances frame by frame: each new simulation frame ticks the
scenario's execution tree exactly once, evaluates every criterion, and
records a proximity-filtered snapshot of the entity population. Snapshots
are flushed in fixed-size windows named by their frame-id range.

The command exits non-zero when the verdict is FAILURE or TIMEOUT.

Example:
  trialrun run scenarios/follow.yaml --output _out --log-level debug`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")
			timeoutOverride, _ := cmd.Flags().GetFloat64("timeout")

			log := logging.NewLogger(cfg.Logging.Level, os.Stderr)
			ticks := logging.NewTickLogger(cfg.Output.Dir, cfg.Logging.Level)
			defer ticks.Close()

			def, err := scenario.LoadDefinition(args[0])
			if err != nil {
				return err
			}
			if timeoutOverride > 0 {
				def.Timeout = timeoutOverride
			}

			sim, ego := def.BuildSim()
			r := runner.New(log, ticks)

			vars := func() map[string]any {
				v := ego.Velocity()
				p := ego.Position()
				lane := ""
				if info, laneErr := sim.LaneAt(p); laneErr == nil {
					lane = string(info.Type)
				}
				return map[string]any{
					"speed":     v.Norm(),
					"speed_kmh": v.Norm() * constants.SpeedToKMH,
					"x":         p.X,
					"y":         p.Y,
					"z":         p.Z,
					"elapsed":   r.GameDuration(),
					"lane":      lane,
				}
			}

			crits, err := def.BuildCriteria(vars)
			if err != nil {
				return err
			}

			scn, err := scenario.New(def.Name, def.BuildBehavior(ego), scenario.Criteria{Flat: crits},
				def.Timeout, def.TerminateOnFailure, r.GameDuration)
			if err != nil {
				return err
			}

			sink, closeSink, err := newSink(cfg)
			if err != nil {
				return err
			}
			defer closeSink()

			w := window.NewWriter(sink, cfg.Output.WindowSize)
			ext := extract.New(sim, sim, ego, cfg.Extraction.ProximityMeters, w, log)

			err = r.Load(runner.Run{
				Scenario:     scn,
				Source:       sim,
				Registry:     sim,
				Extractor:    ext,
				Flusher:      w,
				PollInterval: cfg.Run.PollInterval,
			})
			if err != nil {
				return err
			}

			// Cleanup must run on every exit path, abnormal ones included,
			// so the trailing window still flushes.
			defer func() {
				if cerr := r.Cleanup(); cerr != nil {
					log.Error("cleanup failed", "error", cerr)
				}
			}()

			// Interrupts stop the run cleanly so buffered windows still flush.
			sigCh := make(chan os.Signal, 1)
			notifySignals(sigCh)
			go func() {
				<-sigCh
				log.Warn("interrupt received, stopping run")
				r.Stop()
			}()

			if err := r.Run(context.Background()); err != nil {
				return err
			}

			res := r.Analyze()
			if jsonOut {
				if err := report.WriteJSON(os.Stdout, res); err != nil {
					return err
				}
			} else {
				if err := report.Write(os.Stdout, res); err != nil {
					return err
				}
			}

			if !res.Verdict.Passed() {
				return fmt.Errorf("scenario %s did not pass: %s", def.Name, res.Verdict)
			}
			return nil
		},
	}

	cmd.Flags().Float64("timeout", 0, "Override the scenario timeout in simulated seconds (0 = use definition)")

	return cmd
}
