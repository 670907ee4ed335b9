package harness

import (
	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/verify"
)

// LaneTrace is the captured stream of one lane.
type LaneTrace struct {
	Name   string             `json:"name"`
	Kind   capture.Kind       `json:"kind"`
	Events []ir.CapturedEvent `json:"events"`
}

// Result is the outcome of a harness scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// RunID identifies the run in the harness store.
	RunID string `json:"run_id"`

	Seed uint64 `json:"seed"`

	// Lanes holds each lane's events in declaration order.
	Lanes []LaneTrace `json:"lanes"`

	// Reports holds the verifier report per lane name.
	Reports map[string]verify.Report `json:"reports"`

	// Warnings lists operations skipped while loading the scenario.
	Warnings []string `json:"warnings,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Lanes:   []LaneTrace{},
		Reports: make(map[string]verify.Report),
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddLane records a lane's stream and report.
func (r *Result) AddLane(trace LaneTrace, report verify.Report) {
	r.Lanes = append(r.Lanes, trace)
	r.Reports[trace.Name] = report
}

// Lane returns the named lane trace.
func (r *Result) Lane(name string) (LaneTrace, bool) {
	for _, l := range r.Lanes {
		if l.Name == name {
			return l, true
		}
	}
	return LaneTrace{}, false
}
