package btree

// Policy selects how a Parallel group resolves from its children's statuses.
type Policy int

const (
	// SuccessOnOne resolves Success as soon as any child succeeds, and
	// Failure once every child has failed. A failing child that escalates
	// (a terminate-on-failure criterion) resolves Failure immediately.
	SuccessOnOne Policy = iota

	// SuccessOnAll resolves Failure as soon as any child fails, and
	// Success once every child has succeeded.
	SuccessOnAll
)

// Parallel ticks all of its children on every call and resolves according to
// its policy. An empty group contributes nothing: it stays Running forever.
type Parallel struct {
	name      string
	policy    Policy
	status    Status
	escalated bool
	children  []Node
}

// NewParallel creates a parallel group over the given children.
func NewParallel(name string, policy Policy, children ...Node) *Parallel {
	return &Parallel{
		name:     name,
		policy:   policy,
		children: children,
	}
}

// AddChild appends a child to the group.
func (p *Parallel) AddChild(n Node) {
	p.children = append(p.children, n)
}

func (p *Parallel) Name() string     { return p.name }
func (p *Parallel) Status() Status   { return p.status }
func (p *Parallel) Children() []Node { return p.children }

// Reset returns the group to Invalid. Descendants are reset separately via
// Flatten, so Reset itself does not recurse.
func (p *Parallel) Reset() {
	p.status = Invalid
	p.escalated = false
}

// EscalatesFailure reports whether the group's Failure was caused by an
// escalating descendant, so that an enclosing SuccessOnOne group resolves
// immediately as well.
func (p *Parallel) EscalatesFailure() bool {
	return p.escalated
}

// Tick advances every child once, then resolves the group status. Once the
// group is terminal it latches and children are no longer ticked.
func (p *Parallel) Tick() Status {
	if p.status.Terminal() {
		return p.status
	}
	p.status = Running

	if len(p.children) == 0 {
		return p.status
	}

	successes := 0
	failures := 0
	escalated := false

	for _, child := range p.children {
		st := child.Tick()
		switch st {
		case Success:
			successes++
		case Failure:
			failures++
			if esc, ok := child.(failureEscalator); ok && esc.EscalatesFailure() {
				escalated = true
			}
		}
	}

	switch p.policy {
	case SuccessOnOne:
		if successes > 0 {
			p.status = Success
		} else if failures == len(p.children) || escalated {
			p.status = Failure
		}
	case SuccessOnAll:
		if failures > 0 {
			p.status = Failure
		} else if successes == len(p.children) {
			p.status = Success
		}
	}

	if p.status == Failure && escalated {
		p.escalated = true
	}

	return p.status
}
