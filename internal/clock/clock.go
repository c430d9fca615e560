// Package clock tracks simulated and wall time for a single scenario run.
// It mirrors the frame source's notion of elapsed time: the scheduler calls
// Update once per processed frame, and every other component reads from here
// instead of querying the frame source directly.
package clock

import "time"

// Clock holds the latest simulated timestamp and the run's wall-clock start.
// It is owned by the scheduler for the duration of one run and is not safe
// for concurrent mutation.
type Clock struct {
	elapsed   float64
	frame     int64
	startWall time.Time
	started   bool
}

// New returns a Clock in its reset state.
func New() *Clock {
	return &Clock{}
}

// Restart zeroes all state. Called by the scheduler when a scenario is loaded.
func (c *Clock) Restart() {
	c.elapsed = 0
	c.frame = 0
	c.startWall = time.Time{}
	c.started = false
}

// Update records the latest frame from the simulation. The first Update of a
// run also stamps the wall-clock start.
func (c *Clock) Update(elapsed float64, frame int64) {
	if !c.started {
		c.startWall = time.Now()
		c.started = true
	}
	c.elapsed = elapsed
	c.frame = frame
}

// Elapsed returns the simulated seconds of the most recent frame.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Frame returns the id of the most recent frame.
func (c *Clock) Frame() int64 {
	return c.frame
}

// SinceStartWall returns the wall-clock duration since the first Update.
// Returns zero before the first frame.
func (c *Clock) SinceStartWall() time.Duration {
	if !c.started {
		return 0
	}
	return time.Since(c.startWall)
}
