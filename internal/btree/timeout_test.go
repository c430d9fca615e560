package btree

import "testing"

func TestTimeout_FiresAtLimit(t *testing.T) {
	elapsed := 0.0
	guard := NewTimeout("TimeOut", 5.0, func() float64 { return elapsed })

	if got := guard.Tick(); got != Running {
		t.Fatalf("first tick: expected RUNNING, got %s", got)
	}

	elapsed = 4.9
	if got := guard.Tick(); got != Running {
		t.Fatalf("below limit: expected RUNNING, got %s", got)
	}
	if guard.Fired() {
		t.Error("guard should not have fired below limit")
	}

	elapsed = 5.0
	if got := guard.Tick(); got != Success {
		t.Fatalf("at limit: expected SUCCESS, got %s", got)
	}
	if !guard.Fired() {
		t.Error("guard should report fired")
	}
}

func TestTimeout_MeasuresFromFirstTick(t *testing.T) {
	elapsed := 10.0
	guard := NewTimeout("TimeOut", 5.0, func() float64 { return elapsed })

	// Entering at elapsed=10 must not count the first 10 seconds.
	if got := guard.Tick(); got != Running {
		t.Fatalf("expected RUNNING on entry, got %s", got)
	}

	elapsed = 14.0
	if got := guard.Tick(); got != Running {
		t.Fatalf("4s since entry: expected RUNNING, got %s", got)
	}

	elapsed = 15.0
	if got := guard.Tick(); got != Success {
		t.Fatalf("5s since entry: expected SUCCESS, got %s", got)
	}
}

func TestTimeout_ResetPreservesFired(t *testing.T) {
	elapsed := 0.0
	guard := NewTimeout("TimeOut", 1.0, func() float64 { return elapsed })
	guard.Tick()
	elapsed = 2.0
	guard.Tick()

	guard.Reset()
	if guard.Status() != Invalid {
		t.Errorf("expected INVALID after reset, got %s", guard.Status())
	}
	if !guard.Fired() {
		t.Error("Fired must survive reset for post-run analysis")
	}
}
