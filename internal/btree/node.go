// Package btree implements the execution-node hierarchy that drives a
// scenario: parallel composites, timeout guards, opaque action leaves, and
// continuously evaluated pass/fail criteria. Nodes are advanced exactly once
// per simulation frame by the scheduler; "parallel" is a scheduling policy
// over siblings within one tick, not concurrent execution.
package btree

// Status is the execution state of a node.
type Status int

const (
	// Invalid means the node has never been entered, or was forcibly reset.
	Invalid Status = iota

	// Running means the node has been entered and not yet completed.
	Running

	// Success is a terminal status. A node never leaves it.
	Success

	// Failure is a terminal status. A node never leaves it.
	Failure
)

// String returns the canonical upper-case name of the status.
func (s Status) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Running:
		return "RUNNING"
	case Success:
		return "SUCCESS"
	case Failure:
		return "FAILURE"
	}
	return "UNKNOWN"
}

// Terminal reports whether the status is Success or Failure.
func (s Status) Terminal() bool {
	return s == Success || s == Failure
}

// Node is one unit of the behavior hierarchy. Parents own their children in
// an ordered sequence; the tree is strictly hierarchical, never shared.
type Node interface {
	// Name identifies the node in traces and reports.
	Name() string

	// Status returns the node's current status without advancing it.
	Status() Status

	// Tick advances the node by one step and returns the new status.
	// Ticking a terminal node is a no-op that returns the latched status.
	Tick() Status

	// Reset forcibly returns the node to Invalid, regardless of its
	// current status. It does not recurse; use Flatten for full-tree
	// termination.
	Reset()

	// Children returns the node's owned children, in order. Leaves
	// return nil.
	Children() []Node
}

// failureEscalator is implemented by leaves whose Failure should resolve an
// enclosing SuccessOnOne group immediately, rather than waiting for every
// sibling to fail. Criteria with TerminateOnFailure opt in.
type failureEscalator interface {
	EscalatesFailure() bool
}

// Flatten returns root and every descendant reachable from it, in
// breadth-first order. The traversal is iterative with a visited guard, so
// it handles arbitrary depth and never yields a node twice.
func Flatten(root Node) []Node {
	if root == nil {
		return nil
	}

	visited := make(map[Node]bool)
	queue := []Node{root}
	var nodes []Node

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == nil || visited[n] {
			continue
		}
		visited[n] = true
		nodes = append(nodes, n)
		queue = append(queue, n.Children()...)
	}

	return nodes
}
