package runner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/trialrun/internal/btree"
	"github.com/nvandessel/trialrun/internal/extract"
	"github.com/nvandessel/trialrun/internal/logging"
	"github.com/nvandessel/trialrun/internal/report"
	"github.com/nvandessel/trialrun/internal/scenario"
	"github.com/nvandessel/trialrun/internal/window"
	"github.com/nvandessel/trialrun/internal/world"
)

// scriptedSource replays a fixed list of frames, including deliberate
// duplicates.
type scriptedSource struct {
	frames []struct {
		elapsed float64
		frame   int64
	}
	idx      int
	consumed bool
}

func (s *scriptedSource) add(elapsed float64, frame int64) {
	s.frames = append(s.frames, struct {
		elapsed float64
		frame   int64
	}{elapsed, frame})
}

func (s *scriptedSource) HasNewFrame() bool {
	return s.idx < len(s.frames) && !s.consumed
}

func (s *scriptedSource) CurrentFrame() (float64, int64) {
	s.consumed = true
	f := s.frames[s.idx]
	return f.elapsed, f.frame
}

func (s *scriptedSource) Advance() {
	if s.idx < len(s.frames)-1 {
		s.idx++
		s.consumed = false
	}
}

// staticRegistry satisfies world.Registry with an empty population.
type staticRegistry struct{}

func (staticRegistry) Refresh() {}

func (staticRegistry) EntitiesOfKind(world.Kind) []world.Entity { return nil }

// countingAgent records lifecycle calls.
type countingAgent struct {
	monitored world.Entity
	acts      int
	cleanups  int
}

func (a *countingAgent) Setup(monitored world.Entity, debug bool) error {
	a.monitored = monitored
	return nil
}

func (a *countingAgent) Act() world.Control {
	a.acts++
	return world.Control{Throttle: 0.5}
}

func (a *countingAgent) Cleanup() { a.cleanups++ }

// countingFlusher records Flush calls.
type countingFlusher struct {
	flushes int
}

func (f *countingFlusher) Flush() error {
	f.flushes++
	return nil
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return New(logging.NewLogger("info", io.Discard), nil)
}

// newScenario builds a scenario whose timeout guard reads the runner's clock.
func newScenario(t *testing.T, r *Runner, behavior btree.Node, crits []*btree.Criterion, timeout float64, terminate bool) *scenario.Scenario {
	t.Helper()
	scn, err := scenario.New("test", behavior, scenario.Criteria{Flat: crits}, timeout, terminate, r.GameDuration)
	if err != nil {
		t.Fatalf("scenario.New: %v", err)
	}
	return scn
}

func succeedAfter(n int) (btree.Node, *int) {
	count := new(int)
	return btree.NewAction("behavior", func() btree.Status {
		*count++
		if *count >= n {
			return btree.Success
		}
		return btree.Running
	}), count
}

func TestRunner_LoadValidation(t *testing.T) {
	r := newTestRunner(t)
	scn := newScenario(t, r, nil, nil, 10, false)
	src := &scriptedSource{}

	if err := r.Load(Run{Source: src, Registry: staticRegistry{}}); err == nil {
		t.Error("load without a scenario must fail")
	}
	if err := r.Load(Run{Scenario: scn}); err == nil {
		t.Error("load without a source must fail")
	}
	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}, Agent: &countingAgent{}}); err == nil {
		t.Error("agent-driven load without a monitored entity must fail")
	}

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatalf("valid load: %v", err)
	}
	if r.State() != Loaded {
		t.Errorf("state = %s, want loaded", r.State())
	}
}

func TestRunner_RunRequiresLoad(t *testing.T) {
	r := newTestRunner(t)
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("run without load must fail")
	}
}

func TestRunner_DuplicateFrameTicksOnce(t *testing.T) {
	r := newTestRunner(t)
	behavior, ticks := succeedAfter(2)
	scn := newScenario(t, r, behavior, nil, 100, false)

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(1.0, 1) // replayed timestamp: must not tick the tree again
	src.add(2.0, 2)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if *ticks != 2 {
		t.Errorf("behavior ticked %d times, want 2", *ticks)
	}
	if r.GameDuration() != 2.0 {
		t.Errorf("game duration = %f, want 2.0", r.GameDuration())
	}
}

func TestRunner_TimeoutProducesTimeoutVerdict(t *testing.T) {
	r := newTestRunner(t)
	crit := btree.NewCriterion("always-ok", func() (bool, error) { return true, nil })
	scn := newScenario(t, r, nil, []*btree.Criterion{crit}, 0.9, false)

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(2.0, 2)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := r.Analyze()
	if res.Verdict != report.VerdictTimeout {
		t.Errorf("verdict = %s, want TIMEOUT", res.Verdict)
	}
	if !res.TimedOut {
		t.Error("result must record the fired guard")
	}
}

func TestRunner_FailureBeatsTimeout(t *testing.T) {
	r := newTestRunner(t)
	crit := btree.NewCriterion("always-broken", func() (bool, error) { return false, nil })
	scn := newScenario(t, r, nil, []*btree.Criterion{crit}, 0.9, false)

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(2.0, 2)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := r.Analyze()
	if res.Verdict != report.VerdictFailure {
		t.Errorf("verdict = %s, want FAILURE even though the guard fired", res.Verdict)
	}
	if !res.TimedOut {
		t.Error("the fired guard must still be recorded")
	}
}

func TestRunner_AcceptableViolationDowngrades(t *testing.T) {
	r := newTestRunner(t)
	behavior, _ := succeedAfter(2)
	crit := btree.NewCriterion("tolerated", func() (bool, error) { return false, nil }).
		WithViolationStatus(btree.TestAcceptable)
	scn := newScenario(t, r, behavior, []*btree.Criterion{crit}, 100, false)

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(2.0, 2)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := r.Analyze()
	if res.Verdict != report.VerdictAcceptable {
		t.Errorf("verdict = %s, want ACCEPTABLE", res.Verdict)
	}
	if !res.Verdict.Passed() {
		t.Error("an acceptable run counts as a pass")
	}
}

func TestRunner_TerminateOnFailureEndsRunEarly(t *testing.T) {
	r := newTestRunner(t)
	crit := btree.NewCriterion("broken", func() (bool, error) { return false, nil })
	scn := newScenario(t, r, nil, []*btree.Criterion{crit}, 100, true)

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(2.0, 2)
	src.add(3.0, 3)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := r.clock.Frame(); got != 1 {
		t.Errorf("run should end on frame 1, processed up to %d", got)
	}
	res := r.Analyze()
	if res.Verdict != report.VerdictFailure {
		t.Errorf("verdict = %s, want FAILURE", res.Verdict)
	}
	if res.TimedOut {
		t.Error("guard must not fire on an early failure")
	}
}

func TestRunner_OptionalFailureDoesNotDowngrade(t *testing.T) {
	r := newTestRunner(t)
	behavior, _ := succeedAfter(2)
	broken := btree.NewCriterion("tolerable-extra", func() (bool, error) { return false, nil })
	broken.Optional = true
	passing := btree.NewCriterion("required-ok", func() (bool, error) { return true, nil })
	scn := newScenario(t, r, behavior, []*btree.Criterion{broken, passing}, 100, false)

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(2.0, 2)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := r.Analyze()
	if res.Verdict != report.VerdictSuccess {
		t.Errorf("verdict = %s, want SUCCESS (optional failure carries no verdict weight)", res.Verdict)
	}
	if res.Criteria[0].Status != string(btree.TestFailure) {
		t.Errorf("the optional check's own result must still be reported, got %s", res.Criteria[0].Status)
	}
}

func TestRunner_NoCriteriaSuccessEvenOnTimeout(t *testing.T) {
	r := newTestRunner(t)
	scn := newScenario(t, r, nil, nil, 0.9, false)

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(2.0, 2)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := r.Analyze()
	if res.Verdict != report.VerdictSuccess {
		t.Errorf("verdict = %s, want SUCCESS when there is nothing to analyze", res.Verdict)
	}
	if !res.TimedOut {
		t.Error("the fired guard must still be recorded on the result")
	}
}

func TestRunner_NoCriteriaIsSuccess(t *testing.T) {
	r := newTestRunner(t)
	behavior, _ := succeedAfter(1)
	scn := newScenario(t, r, behavior, nil, 100, false)

	src := &scriptedSource{}
	src.add(1.0, 1)

	if err := r.Load(Run{Scenario: scn, Source: src, Registry: staticRegistry{}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if res := r.Analyze(); res.Verdict != report.VerdictSuccess {
		t.Errorf("verdict = %s, want SUCCESS", res.Verdict)
	}
}

func TestRunner_AgentLifecycleAndCleanupIdempotent(t *testing.T) {
	r := newTestRunner(t)
	behavior, _ := succeedAfter(2)
	scn := newScenario(t, r, behavior, nil, 100, false)

	sim := world.NewSim(1.0)
	ego := sim.Spawn(world.KindVehicle, "vehicle.test.car", world.Vec3{}, world.Vec3{X: 1})
	agent := &countingAgent{}
	flusher := &countingFlusher{}

	src := &scriptedSource{}
	src.add(1.0, 1)
	src.add(2.0, 2)

	err := r.Load(Run{
		Scenario:  scn,
		Source:    src,
		Registry:  sim,
		Agent:     agent,
		Monitored: ego,
		Flusher:   flusher,
	})
	if err != nil {
		t.Fatal(err)
	}
	if agent.monitored != ego {
		t.Error("load must bind the agent to the monitored entity")
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if agent.acts != 2 {
		t.Errorf("agent acted %d times, want once per processed frame (2)", agent.acts)
	}

	if err := r.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if err := r.Cleanup(); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
	if agent.cleanups != 1 {
		t.Errorf("agent cleaned up %d times, want 1", agent.cleanups)
	}
	if flusher.flushes != 1 {
		t.Errorf("flusher flushed %d times, want 1", flusher.flushes)
	}
}

func TestRunner_StopFromAnotherGoroutine(t *testing.T) {
	r := newTestRunner(t)
	behavior := btree.NewAction("forever", func() btree.Status { return btree.Running })
	scn := newScenario(t, r, behavior, nil, 1e9, false)

	sim := world.NewSim(0.01)
	sim.Spawn(world.KindVehicle, "vehicle.test.car", world.Vec3{}, world.Vec3{})

	if err := r.Load(Run{Scenario: scn, Source: sim, Registry: sim}); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Stop()
	}()

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.State() != Stopped {
		t.Errorf("state = %s, want stopped", r.State())
	}
}

func TestRunner_ContextCancelStopsRun(t *testing.T) {
	r := newTestRunner(t)
	behavior := btree.NewAction("forever", func() btree.Status { return btree.Running })
	scn := newScenario(t, r, behavior, nil, 1e9, false)

	sim := world.NewSim(0.01)

	if err := r.Load(Run{Scenario: scn, Source: sim, Registry: sim}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := r.Run(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunner_EndToEndExtractsAndFlushes(t *testing.T) {
	r := newTestRunner(t)

	sim := world.NewSim(0.5)
	ego := sim.Spawn(world.KindVehicle, "vehicle.test.car", world.Vec3{}, world.Vec3{X: 1})
	sim.Spawn(world.KindVehicle, "vehicle.test.other", world.Vec3{X: 10}, world.Vec3{})

	behavior := btree.NewAction("drive-past", func() btree.Status {
		if ego.Position().X >= 1.5 {
			return btree.Success
		}
		return btree.Running
	})
	crit := btree.NewCriterion("keeps-moving", func() (bool, error) {
		return ego.Velocity().Norm() > 0, nil
	})
	scn := newScenario(t, r, behavior, []*btree.Criterion{crit}, 100, false)

	dir := t.TempDir()
	sink, err := window.NewFileSink(dir)
	if err != nil {
		t.Fatal(err)
	}
	w := window.NewWriter(sink, 50)
	ext := extract.New(sim, sim, ego, 0, w, nil)

	err = r.Load(Run{
		Scenario:  scn,
		Source:    sim,
		Registry:  sim,
		Extractor: ext,
		Flusher:   w,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := r.Cleanup(); err != nil {
		t.Fatal(err)
	}

	if res := r.Analyze(); res.Verdict != report.VerdictSuccess {
		t.Errorf("verdict = %s, want SUCCESS", res.Verdict)
	}

	// Fewer frames than the window size: the records arrive via the final
	// flush at cleanup.
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one trailing window file, got %v", matches)
	}
	if _, err := os.Stat(matches[0]); err != nil {
		t.Errorf("window file not readable: %v", err)
	}
}
