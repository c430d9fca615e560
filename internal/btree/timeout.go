package btree

// TimeFunc returns the current simulated elapsed seconds. The scheduler's
// clock provides it so guards never query the frame source directly.
type TimeFunc func() float64

// Timeout is a guard leaf that succeeds once simulated time has advanced by
// at least its limit since the node was first ticked. Because the scenario
// root uses SuccessOnOne, a fired timeout alone ends the run.
type Timeout struct {
	name   string
	limit  float64
	now    TimeFunc
	status Status
	start  float64
	fired  bool
}

// NewTimeout creates a timeout guard with the given limit in simulated seconds.
func NewTimeout(name string, limit float64, now TimeFunc) *Timeout {
	return &Timeout{
		name:  name,
		limit: limit,
		now:   now,
	}
}

func (t *Timeout) Name() string     { return t.name }
func (t *Timeout) Status() Status   { return t.status }
func (t *Timeout) Children() []Node { return nil }

// Fired reports whether the guard has reached its limit. The result
// aggregator reads this after the run to distinguish TIMEOUT from SUCCESS.
func (t *Timeout) Fired() bool {
	return t.fired
}

// Limit returns the configured bound in simulated seconds.
func (t *Timeout) Limit() float64 {
	return t.limit
}

// Reset returns the guard to Invalid without clearing Fired: the aggregator
// runs after cleanup has terminated the tree.
func (t *Timeout) Reset() {
	t.status = Invalid
}

// Tick records the start time on first entry and succeeds once the elapsed
// simulated time since entry reaches the limit.
func (t *Timeout) Tick() Status {
	if t.status.Terminal() {
		return t.status
	}

	if t.status == Invalid {
		t.start = t.now()
		t.status = Running
	}

	if t.now()-t.start >= t.limit {
		t.fired = true
		t.status = Success
	}

	return t.status
}
