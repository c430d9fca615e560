// Package report renders the outcome of a scenario run: the overall verdict,
// per-criterion results, and the run durations, as either a human-readable
// table or machine-readable JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Verdict is the overall outcome of a run.
type Verdict string

const (
	VerdictSuccess    Verdict = "SUCCESS"
	VerdictFailure    Verdict = "FAILURE"
	VerdictAcceptable Verdict = "ACCEPTABLE"
	VerdictTimeout    Verdict = "TIMEOUT"
)

// Passed reports whether the verdict counts as a pass. Tolerated violations
// pass; timeouts do not.
func (v Verdict) Passed() bool {
	return v == VerdictSuccess || v == VerdictAcceptable
}

// CriterionResult is the final state of one check.
type CriterionResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is the complete outcome of one scenario run.
type Result struct {
	Scenario string            `json:"scenario"`
	Verdict  Verdict           `json:"verdict"`
	GameTime float64           `json:"game_time_seconds"`
	WallTime float64           `json:"wall_time_seconds"`
	TimedOut bool              `json:"timed_out"`
	Criteria []CriterionResult `json:"criteria,omitempty"`
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, r Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Write renders the result as a human-readable table.
func Write(w io.Writer, r Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Scenario: %s\n", r.Scenario)
	fmt.Fprintf(&b, "Result:   %s\n", r.Verdict)
	fmt.Fprintf(&b, "Duration: game %.2fs / wall %.2fs\n", r.GameTime, r.WallTime)

	if len(r.Criteria) == 0 {
		fmt.Fprintln(&b, "No criteria to analyze.")
		_, err := io.WriteString(w, b.String())
		return err
	}

	nameWidth := len("Criterion")
	for _, c := range r.Criteria {
		if len(c.Name) > nameWidth {
			nameWidth = len(c.Name)
		}
	}

	fmt.Fprintf(&b, "\n%-*s  %-10s  %s\n", nameWidth, "Criterion", "Status", "Notes")
	fmt.Fprintf(&b, "%s\n", strings.Repeat("-", nameWidth+22))
	for _, c := range r.Criteria {
		notes := c.Error
		if c.Optional {
			if notes != "" {
				notes += ", "
			}
			notes += "optional"
		}
		fmt.Fprintf(&b, "%-*s  %-10s  %s\n", nameWidth, c.Name, c.Status, notes)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
