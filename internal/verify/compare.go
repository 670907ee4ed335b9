package verify

import (
	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
)

// Mode selects the matching rules.
type Mode struct {
	// Coalescing lets one event satisfy several operations on the same row.
	Coalescing bool

	// WindowMs bounds how long before an event an operation may have
	// happened and still be represented by it. Zero means unbounded.
	WindowMs int64
}

// Strict is one-to-one matching.
var Strict = Mode{}

func (m Mode) String() string {
	if m.Coalescing {
		return "coalescing"
	}
	return "strict"
}

// ModeFor picks the matching mode for an engine. Polling lanes coalesce
// within one poll interval; every other engine is strict.
func ModeFor(e capture.Engine) Mode {
	if p, ok := e.(*capture.Polling); ok {
		return Mode{Coalescing: true, WindowMs: p.Interval()}
	}
	if e.Kind() == capture.KindPolling {
		return Mode{Coalescing: true}
	}
	return Strict
}

// CompareLane compares an engine's events using the engine's mode.
func CompareLane(e capture.Engine, ops []ir.Operation, events []ir.CapturedEvent) Report {
	return Compare(ops, events, ModeFor(e))
}

type rowKey struct {
	table string
	id    string
}

// Compare matches operations to events and reports the findings.
func Compare(ops []ir.Operation, events []ir.CapturedEvent, mode Mode) Report {
	byRow := make(map[rowKey][]int)
	for i, ev := range events {
		k := rowKey{table: ev.Table, id: ev.PK}
		byRow[k] = append(byRow[k], i)
	}

	claimed := make([]bool, len(events))
	highest := -1
	report := Report{
		Events:     len(events),
		Operations: len(ops),
		Mode:       mode,
	}
	lags := make([]int64, 0, len(ops))

	for i, op := range ops {
		candidates := byRow[rowKey{table: op.Table, id: op.PK.ID}]

		var idx int
		if mode.Coalescing {
			idx = coalescingCandidate(op, events, candidates, mode.WindowMs)
		} else {
			idx = strictCandidate(op, events, candidates, claimed)
		}
		if idx < 0 {
			report.Totals.Missing++
			continue
		}

		reused := claimed[idx]
		if !reused {
			claimed[idx] = true
			if idx < highest {
				report.Totals.Ordering++
			} else {
				highest = idx
			}
		}

		lag := events[idx].TsMs - op.T
		lags = append(lags, lag)
		report.Matches = append(report.Matches, Match{OpIndex: i, EventIndex: idx, Lag: lag, Reused: reused})
	}

	for _, c := range claimed {
		if !c {
			report.Totals.Extra++
		}
	}
	report.Matched = len(report.Matches)
	report.Lag = lagStats(lags)
	return report
}

// strictCandidate returns the earliest unclaimed compatible event for the
// row emitted no earlier than the operation, or -1.
func strictCandidate(op ir.Operation, events []ir.CapturedEvent, candidates []int, claimed []bool) int {
	for _, idx := range candidates {
		ev := events[idx]
		if claimed[idx] || ev.TsMs < op.T || !ev.Compatible(op) {
			continue
		}
		return idx
	}
	return -1
}

// coalescingCandidate returns the event of the poll that observed the
// operation, or -1 if that poll emitted nothing for the row or emitted a
// class that cannot represent the operation.
func coalescingCandidate(op ir.Operation, events []ir.CapturedEvent, candidates []int, windowMs int64) int {
	for _, idx := range candidates {
		ev := events[idx]
		if ev.TsMs <= op.T {
			continue
		}
		if windowMs > 0 && ev.TsMs-windowMs > op.T {
			return -1
		}
		if !coalescedCompatible(ev, op) {
			return -1
		}
		return idx
	}
	return -1
}

// coalescedCompatible relaxes class matching for snapshot diffs: any
// operation that leaves a row image behind may surface as c, u or d, while
// a hard delete can only be represented by d.
func coalescedCompatible(ev ir.CapturedEvent, op ir.Operation) bool {
	if op.Op == ir.OpDelete && !op.IsSoftDelete() {
		return ev.Op == ir.EventDelete
	}
	return true
}
