package verify

import (
	"fmt"
	"slices"
)

// Totals counts fidelity findings.
type Totals struct {
	Missing  int `json:"missing"`
	Extra    int `json:"extra"`
	Ordering int `json:"ordering"`
}

// LagStats summarises per-match lag in milliseconds.
// Percentiles use the nearest-rank method; Mean is truncated.
type LagStats struct {
	Max   int64 `json:"max"`
	Min   int64 `json:"min"`
	Mean  int64 `json:"mean"`
	P50   int64 `json:"p50"`
	P95   int64 `json:"p95"`
	P99   int64 `json:"p99"`
	Count int   `json:"count"`
}

// Match pairs an operation with the event that represents it.
type Match struct {
	// OpIndex is the operation's position in the canonical log.
	OpIndex int

	// EventIndex is the event's position in the lane.
	EventIndex int

	Lag int64

	// Reused is set when the event was already claimed by an earlier
	// operation of a coalesced window.
	Reused bool
}

// Report is the verifier's verdict for one lane.
type Report struct {
	Totals     Totals   `json:"totals"`
	Lag        LagStats `json:"lag"`
	Matched    int      `json:"matched"`
	Events     int      `json:"events"`
	Operations int      `json:"operations"`

	Mode    Mode    `json:"-"`
	Matches []Match `json:"-"`
}

// Expectation bounds an acceptable report. Nil fields are not checked.
type Expectation struct {
	Missing  *int   `json:"missing,omitempty" yaml:"missing,omitempty"`
	Extra    *int   `json:"extra,omitempty" yaml:"extra,omitempty"`
	Ordering *int   `json:"ordering,omitempty" yaml:"ordering,omitempty"`
	MaxLag   *int64 `json:"max_lag,omitempty" yaml:"max_lag,omitempty"`
}

// DefaultExpectation is what a lane of the given mode must satisfy:
// strict lanes must be exact, coalescing lanes must never fabricate events.
func DefaultExpectation(mode Mode) Expectation {
	zero := 0
	if mode.Coalescing {
		return Expectation{Extra: &zero}
	}
	return Expectation{Missing: &zero, Extra: &zero, Ordering: &zero}
}

// Verdict is the pass/fail view of a report.
type Verdict struct {
	Pass     bool     `json:"pass"`
	Failures []string `json:"failures,omitempty"`
}

// Pass checks the report against an expectation.
func (r Report) Pass(exp Expectation) Verdict {
	var failures []string
	check := func(name string, want *int, got int) {
		if want != nil && got != *want {
			failures = append(failures, fmt.Sprintf("%s: expected %d, got %d", name, *want, got))
		}
	}
	check("missing", exp.Missing, r.Totals.Missing)
	check("extra", exp.Extra, r.Totals.Extra)
	check("ordering", exp.Ordering, r.Totals.Ordering)

	if exp.MaxLag != nil && r.Lag.Max > *exp.MaxLag {
		failures = append(failures, fmt.Sprintf("max lag: expected <= %d, got %d", *exp.MaxLag, r.Lag.Max))
	}

	return Verdict{Pass: len(failures) == 0, Failures: failures}
}

// lagStats computes summary statistics. An empty input yields zero stats.
func lagStats(lags []int64) LagStats {
	if len(lags) == 0 {
		return LagStats{}
	}

	sorted := slices.Clone(lags)
	slices.Sort(sorted)

	var sum int64
	for _, l := range sorted {
		sum += l
	}

	n := len(sorted)
	return LagStats{
		Max:   sorted[n-1],
		Min:   sorted[0],
		Mean:  sum / int64(n),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		Count: n,
	}
}

// percentile returns the nearest-rank percentile of a sorted slice.
func percentile(sorted []int64, p int) int64 {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
