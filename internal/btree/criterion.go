package btree

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// TestStatus is the pass/fail state of a criterion, tracked independently of
// the node's scheduling status: a criterion keeps running as a monitor even
// while its check is violated, and the verdict is aggregated after the run.
type TestStatus string

const (
	TestRunning    TestStatus = "RUNNING"
	TestSuccess    TestStatus = "SUCCESS"
	TestFailure    TestStatus = "FAILURE"
	TestAcceptable TestStatus = "ACCEPTABLE"
)

// EvalFunc evaluates a criterion's check for the current frame and reports
// whether it holds.
type EvalFunc func() (bool, error)

// Criterion is a leaf node carrying an independent, continuously evaluated
// pass/fail check. Its node status stays Running for the whole run unless
// TerminateOnFailure is set, in which case a violated check surfaces as node
// Failure and escalates through the enclosing groups to end the run.
type Criterion struct {
	name   string
	status Status

	// TestStatus is the latched check result. It starts at TestRunning,
	// moves to TestSuccess while the check holds, and latches at
	// TestFailure (or the configured violation status) on violation.
	TestStatus TestStatus

	// Optional criteria never force a FAILURE verdict.
	Optional bool

	// TerminateOnFailure ends the run as soon as the check is violated.
	TerminateOnFailure bool

	eval        EvalFunc
	onViolation TestStatus
	lastErr     error
}

// NewCriterion creates a criterion around an evaluation func. A violated
// check latches TestFailure.
func NewCriterion(name string, eval EvalFunc) *Criterion {
	return &Criterion{
		name:        name,
		TestStatus:  TestRunning,
		eval:        eval,
		onViolation: TestFailure,
	}
}

// NewExprCriterion compiles expression once and evaluates it against
// vars() on every tick. The expression must produce a bool.
func NewExprCriterion(name, expression string, vars func() map[string]any) (*Criterion, error) {
	program, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compiling criterion %q: %w", name, err)
	}
	return NewCriterion(name, exprEval(program, vars)), nil
}

func exprEval(program *vm.Program, vars func() map[string]any) EvalFunc {
	return func() (bool, error) {
		out, err := expr.Run(program, vars())
		if err != nil {
			return false, err
		}
		ok, isBool := out.(bool)
		if !isBool {
			return false, fmt.Errorf("criterion expression must evaluate to bool, got %T", out)
		}
		return ok, nil
	}
}

// WithViolationStatus sets the test status latched when the check is
// violated. TestAcceptable marks a tolerated violation: the verdict is
// downgraded but not failed.
func (c *Criterion) WithViolationStatus(ts TestStatus) *Criterion {
	c.onViolation = ts
	return c
}

func (c *Criterion) Name() string     { return c.name }
func (c *Criterion) Status() Status   { return c.status }
func (c *Criterion) Children() []Node { return nil }

// EscalatesFailure marks terminate-on-failure criteria so an enclosing
// SuccessOnOne group resolves as soon as this node fails.
func (c *Criterion) EscalatesFailure() bool {
	return c.TerminateOnFailure
}

// Err returns the last evaluation error, if any. An erroring check cannot
// prove a pass, so it is treated as a violation and the error kept for the
// report.
func (c *Criterion) Err() error {
	return c.lastErr
}

// Reset returns the node to Invalid. TestStatus is deliberately preserved:
// the aggregator inspects it after cleanup has terminated the tree.
func (c *Criterion) Reset() {
	c.status = Invalid
}

// Tick evaluates the check once. A violation latches the configured
// violation status; TestFailure additionally fails the node when
// TerminateOnFailure is set.
func (c *Criterion) Tick() Status {
	if c.status.Terminal() {
		return c.status
	}
	c.status = Running

	if c.eval == nil {
		return c.status
	}

	// Latched violations are not re-evaluated back to success.
	if c.TestStatus == TestFailure || c.TestStatus == TestAcceptable {
		if c.TestStatus == TestFailure && c.TerminateOnFailure {
			c.status = Failure
		}
		return c.status
	}

	ok, err := c.eval()
	if err != nil {
		c.lastErr = err
		ok = false
	}

	if ok {
		c.TestStatus = TestSuccess
	} else {
		c.TestStatus = c.onViolation
		if c.TestStatus == TestFailure && c.TerminateOnFailure {
			c.status = Failure
		}
	}

	return c.status
}
