// Package runner schedules a scenario against a frame source. It owns the
// run loop: wait for a fresh frame, advance the clock and entity registry,
// tick the execution tree exactly once, extract the frame record, and stop
// when the tree resolves. After the run it aggregates the criteria into the
// final verdict.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvandessel/trialrun/internal/btree"
	"github.com/nvandessel/trialrun/internal/clock"
	"github.com/nvandessel/trialrun/internal/constants"
	"github.com/nvandessel/trialrun/internal/extract"
	"github.com/nvandessel/trialrun/internal/logging"
	"github.com/nvandessel/trialrun/internal/report"
	"github.com/nvandessel/trialrun/internal/scenario"
	"github.com/nvandessel/trialrun/internal/world"
)

// State is the runner's lifecycle phase.
type State int

const (
	// Idle means no scenario is loaded.
	Idle State = iota

	// Loaded means a scenario is wired up and ready to run.
	Loaded

	// Running means the run loop is executing.
	Running

	// Stopped means the run loop has exited. A new Load starts over.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Flusher drains buffered frame records at cleanup. The window writer
// implements it.
type Flusher interface {
	Flush() error
}

// Run wires one scenario to its world.
type Run struct {
	Scenario *scenario.Scenario
	Source   world.FrameSource
	Registry world.Registry

	// Extractor records per-frame data. Optional; extraction errors are
	// logged and never affect the verdict.
	Extractor *extract.Extractor

	// Flusher receives a final flush at cleanup so a trailing partial
	// window is not lost. Optional.
	Flusher Flusher

	// Agent drives the monitored entity. Optional; requires Monitored.
	Agent     world.Agent
	Monitored world.Entity

	// PollInterval is the sleep between frame polls. Zero uses the default.
	PollInterval time.Duration
}

// Runner executes scenarios one at a time.
type Runner struct {
	log   *slog.Logger
	ticks *logging.TickLogger

	// mu guards frame processing so overlapping tick deliveries cannot
	// interleave; the elapsed-time guard inside processFrame drops
	// duplicates outright.
	mu sync.Mutex

	state   State
	run     Run
	clock   *clock.Clock
	running atomic.Bool
	cleaned bool

	lastElapsed float64
	wallElapsed time.Duration
}

// New creates an idle runner. log must not be nil; ticks may be.
func New(log *slog.Logger, ticks *logging.TickLogger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		log:   log,
		ticks: ticks,
		clock: clock.New(),
	}
}

// State returns the runner's lifecycle phase.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Load wires a scenario for execution and resets the run clock. Only an idle
// or stopped runner can load.
func (r *Runner) Load(run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Running {
		return errors.New("cannot load while a scenario is running")
	}
	if run.Scenario == nil {
		return errors.New("run needs a scenario")
	}
	if run.Source == nil || run.Registry == nil {
		return errors.New("run needs a frame source and a registry")
	}
	if run.Agent != nil && run.Monitored == nil {
		return errors.New("an agent-driven run needs a monitored entity")
	}
	if run.PollInterval <= 0 {
		run.PollInterval = constants.DefaultPollIntervalMillis * time.Millisecond
	}

	if run.Agent != nil {
		if err := run.Agent.Setup(run.Monitored, false); err != nil {
			return fmt.Errorf("setting up agent: %w", err)
		}
	}

	r.run = run
	r.clock.Restart()
	r.lastElapsed = 0
	r.wallElapsed = 0
	r.cleaned = false
	r.state = Loaded

	r.log.Info("scenario loaded",
		"scenario", run.Scenario.Name(),
		"timeout_s", run.Scenario.Timeout().Limit())
	return nil
}

// Run executes the loaded scenario until its tree resolves, Stop is called,
// or ctx is canceled. It always leaves the runner in Stopped.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Loaded {
		r.mu.Unlock()
		return fmt.Errorf("cannot run from state %s", r.state)
	}
	r.state = Running
	r.mu.Unlock()

	r.running.Store(true)
	start := time.Now()
	defer func() {
		r.mu.Lock()
		r.state = Stopped
		r.wallElapsed = time.Since(start)
		r.mu.Unlock()
	}()

	for r.running.Load() {
		if err := ctx.Err(); err != nil {
			r.running.Store(false)
			return err
		}

		if !r.run.Source.HasNewFrame() {
			time.Sleep(r.run.PollInterval)
			continue
		}

		elapsed, frame := r.run.Source.CurrentFrame()
		r.processFrame(elapsed, frame)

		if r.run.Scenario.Status().Terminal() {
			r.running.Store(false)
			break
		}
		r.run.Source.Advance()
	}

	r.log.Info("scenario finished",
		"scenario", r.run.Scenario.Name(),
		"status", r.run.Scenario.Status().String(),
		"game_time_s", r.clock.Elapsed(),
		"frames", r.clock.Frame())
	return nil
}

// processFrame runs one scheduling step: clock, registry, agent, tree tick,
// extraction, control application. Frames whose elapsed time has not advanced
// past the last processed frame are dropped, so a replayed timestamp ticks
// the tree at most once.
func (r *Runner) processFrame(elapsed float64, frame int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elapsed <= r.lastElapsed {
		r.log.Debug("dropping stale frame", "frame", frame, "elapsed_s", elapsed)
		return
	}
	r.lastElapsed = elapsed

	r.clock.Update(elapsed, frame)
	r.run.Registry.Refresh()

	var ctl world.Control
	if r.run.Agent != nil {
		ctl = r.run.Agent.Act()
	}

	status := r.run.Scenario.Tick()

	if r.run.Extractor != nil {
		if err := r.run.Extractor.ExtractFrame(frame); err != nil {
			r.log.Debug("frame extraction skipped", "frame", frame, "error", err)
		}
	}

	if r.run.Agent != nil {
		if applier, ok := r.run.Monitored.(world.Applier); ok {
			applier.ApplyControl(ctl)
		}
	}

	r.ticks.Log(map[string]any{
		"frame":     frame,
		"elapsed_s": elapsed,
		"status":    status.String(),
	})
}

// Stop asks the run loop to exit after the current frame. Safe to call from
// any goroutine, at any time, repeatedly.
func (r *Runner) Stop() {
	r.running.Store(false)
}

// Cleanup terminates the scenario tree, releases the agent, and flushes any
// buffered frame records. Idempotent; only the first call does work.
func (r *Runner) Cleanup() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cleaned || r.run.Scenario == nil {
		return nil
	}
	r.cleaned = true

	r.run.Scenario.Terminate()
	if r.run.Agent != nil {
		r.run.Agent.Cleanup()
	}
	if r.run.Flusher != nil {
		if err := r.run.Flusher.Flush(); err != nil {
			return fmt.Errorf("flushing trailing window: %w", err)
		}
	}
	return nil
}

// GameDuration returns the simulated seconds covered by the run so far.
func (r *Runner) GameDuration() float64 {
	return r.clock.Elapsed()
}

// WallDuration returns the wall-clock time of the run loop. Before the loop
// exits it reports the live duration.
func (r *Runner) WallDuration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Running {
		return r.clock.SinceStartWall()
	}
	return r.wallElapsed
}

// Analyze aggregates the criteria into the final verdict. A latched check
// failure always beats a fired timeout; the timeout is only consulted once no
// required criterion has failed. Safe to call after Cleanup: check results
// and the timeout flag survive tree termination.
func (r *Runner) Analyze() report.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := report.Result{
		Scenario: r.run.Scenario.Name(),
		Verdict:  report.VerdictSuccess,
		GameTime: r.clock.Elapsed(),
		WallTime: r.wallElapsed.Seconds(),
		TimedOut: r.run.Scenario.Timeout().Fired(),
	}

	// No checks configured: trivially a success. The fired guard is still
	// recorded on the result, but there is nothing to judge the run by.
	crits := r.run.Scenario.Criteria()
	if len(crits) == 0 {
		r.log.Info("nothing to analyze", "scenario", res.Scenario)
		return res
	}

	failed := false
	acceptable := false
	for _, c := range crits {
		cr := report.CriterionResult{
			Name:     c.Name(),
			Status:   string(c.TestStatus),
			Optional: c.Optional,
		}
		if err := c.Err(); err != nil {
			cr.Error = err.Error()
		}
		res.Criteria = append(res.Criteria, cr)

		switch c.TestStatus {
		case btree.TestAcceptable:
			acceptable = true
		case btree.TestSuccess:
		default:
			// RUNNING or FAILURE: the check never proved a pass. An
			// optional criterion carries no verdict weight either way.
			if !c.Optional {
				failed = true
			}
		}
	}

	switch {
	case failed:
		res.Verdict = report.VerdictFailure
	case res.TimedOut:
		res.Verdict = report.VerdictTimeout
	case acceptable:
		res.Verdict = report.VerdictAcceptable
	}

	r.log.Info("scenario analyzed", "scenario", res.Scenario, "verdict", string(res.Verdict))
	return res
}
