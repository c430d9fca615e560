// Package scenario composes the execution tree for one scripted test: a
// user behavior subtree, a timeout guard, and a group of pass/fail criteria
// under a single success-short-circuit root. The scheduler advances the tree
// once per frame; the aggregator reads the criteria after the run.
package scenario

import (
	"errors"
	"fmt"

	"github.com/nvandessel/trialrun/internal/btree"
)

// ErrConfiguration marks a malformed scenario definition. Surfaced at load
// time, fatal for that load attempt.
var ErrConfiguration = errors.New("invalid scenario configuration")

// Criteria supplies the scenario's checks in one of two forms: a flat list
// (wrapped in a new group; a scenario-level terminate-on-failure flag is
// stamped onto each entry) or a prebuilt group used as-is, unmodified.
// Supplying both is a configuration error.
type Criteria struct {
	Flat  []*btree.Criterion
	Group btree.Node
}

// Scenario owns the execution tree for one run.
type Scenario struct {
	name     string
	root     *btree.Parallel
	timeout  *btree.Timeout
	criteria btree.Node // group subtree; nil when the scenario has no checks
}

// New builds the scenario tree. The root is a SuccessOnOne parallel over
// [behavior?, timeout, criteria group?], so behavior completion, timeout, or
// an escalating criterion failure can each end the run. behavior may be nil.
func New(name string, behavior btree.Node, criteria Criteria, timeoutSeconds float64, terminateOnFailure bool, now btree.TimeFunc) (*Scenario, error) {
	if criteria.Flat != nil && criteria.Group != nil {
		return nil, fmt.Errorf("%w: criteria list and prebuilt group are mutually exclusive", ErrConfiguration)
	}
	if timeoutSeconds <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %f", ErrConfiguration, timeoutSeconds)
	}

	var group btree.Node
	switch {
	case criteria.Group != nil:
		group = criteria.Group
	case len(criteria.Flat) > 0:
		wrapped := btree.NewParallel("Test Criteria", btree.SuccessOnAll)
		for _, crit := range criteria.Flat {
			if terminateOnFailure {
				crit.TerminateOnFailure = true
			}
			wrapped.AddChild(crit)
		}
		group = wrapped
	}

	guard := btree.NewTimeout("TimeOut", timeoutSeconds, now)

	root := btree.NewParallel(name, btree.SuccessOnOne)
	if behavior != nil {
		root.AddChild(behavior)
	}
	root.AddChild(guard)
	if group != nil {
		root.AddChild(group)
	}

	return &Scenario{
		name:     name,
		root:     root,
		timeout:  guard,
		criteria: group,
	}, nil
}

// Name returns the scenario name.
func (s *Scenario) Name() string {
	return s.name
}

// Tick advances every node of the tree exactly once and returns the root
// status.
func (s *Scenario) Tick() btree.Status {
	return s.root.Tick()
}

// Status returns the root status without advancing the tree.
func (s *Scenario) Status() btree.Status {
	return s.root.Status()
}

// Timeout returns the scenario's guard node.
func (s *Scenario) Timeout() *btree.Timeout {
	return s.timeout
}

// HasCriteria reports whether the scenario carries any pass/fail checks.
func (s *Scenario) HasCriteria() bool {
	return s.criteria != nil
}

// Criteria returns every criterion leaf reachable from the criteria subtree,
// in traversal order. Empty when no criteria group exists or the subtree
// collapses to a childless group.
func (s *Scenario) Criteria() []*btree.Criterion {
	var out []*btree.Criterion
	for _, n := range btree.Flatten(s.criteria) {
		if crit, ok := n.(*btree.Criterion); ok {
			out = append(out, crit)
		}
	}
	return out
}

// Terminate forcibly resets every node in the tree to Invalid, including
// nested children, regardless of prior status. Safe to call repeatedly.
func (s *Scenario) Terminate() {
	for _, n := range btree.Flatten(s.root) {
		n.Reset()
	}
}
