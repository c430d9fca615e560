package btree

// ActionFunc is one step of an opaque domain behavior. It is called once per
// tick and returns the behavior's new status.
type ActionFunc func() Status

// Action is a leaf wrapping a domain-specific behavior. The core never
// inspects what the behavior does; it only schedules it.
type Action struct {
	name   string
	step   ActionFunc
	status Status
}

// NewAction creates an action leaf around step.
func NewAction(name string, step ActionFunc) *Action {
	return &Action{
		name: name,
		step: step,
	}
}

func (a *Action) Name() string     { return a.name }
func (a *Action) Status() Status   { return a.status }
func (a *Action) Children() []Node { return nil }

func (a *Action) Reset() {
	a.status = Invalid
}

func (a *Action) Tick() Status {
	if a.status.Terminal() {
		return a.status
	}
	a.status = a.step()
	return a.status
}
