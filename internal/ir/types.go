package ir

import (
	"math"
	"slices"
)

// MaxTimeMs bounds scheduled times, tick sizes and engine intervals. Any
// sum of a handful of such values stays within int64.
const MaxTimeMs int64 = math.MaxInt64 / 8

// OpKind is the kind of source mutation.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// ValidOpKinds defines the recognised source mutation kinds.
var ValidOpKinds = map[OpKind]bool{
	OpInsert: true,
	OpUpdate: true,
	OpDelete: true,
}

// EventOp is the operation class of a captured event.
type EventOp string

const (
	EventCreate EventOp = "c"
	EventUpdate EventOp = "u"
	EventDelete EventOp = "d"
)

// PrimaryKey identifies a row within a table.
type PrimaryKey struct {
	ID string `json:"id" yaml:"id"`
}

// Operation is one scheduled source mutation.
// T is the scenario-relative scheduled time in milliseconds.
type Operation struct {
	T      int64      `json:"t"`
	Op     OpKind     `json:"op"`
	Table  string     `json:"table"`
	PK     PrimaryKey `json:"pk"`
	Before IRObject   `json:"before,omitempty"`
	After  IRObject   `json:"after,omitempty"`
}

// IsSoftDelete reports whether a delete operation leaves the row in place
// with a new image (typically carrying a deleted marker).
func (o Operation) IsSoftDelete() bool {
	return o.Op == OpDelete && o.After != nil
}

// Scenario is a canonical, time-ordered sequence of source mutations.
type Scenario struct {
	ID string `json:"id"`

	// Tables lists the recognised tables. Empty means any table is accepted.
	Tables []string `json:"tables,omitempty"`

	Ops []Operation `json:"ops"`
}

// KnowsTable reports whether the scenario recognises the table.
func (s *Scenario) KnowsTable(table string) bool {
	if len(s.Tables) == 0 {
		return true
	}
	return slices.Contains(s.Tables, table)
}

// LastT returns the scheduled time of the latest operation, or 0 if empty.
func (s *Scenario) LastT() int64 {
	var last int64
	for _, op := range s.Ops {
		if op.T > last {
			last = op.T
		}
	}
	return last
}

// CapturedEvent is a change event emitted by a capture engine.
// Seq is the 1-based emission position within its lane.
type CapturedEvent struct {
	Seq    int64    `json:"seq"`
	Op     EventOp  `json:"op"`
	TsMs   int64    `json:"ts_ms"`
	Table  string   `json:"table"`
	PK     string   `json:"pk"`
	Before IRObject `json:"before,omitempty"`
	After  IRObject `json:"after,omitempty"`
}

// Compatible reports whether the event's class can represent the operation.
// Inserts and updates map to c or u; deletes map to d.
func (e CapturedEvent) Compatible(op Operation) bool {
	if op.Op == OpDelete {
		return e.Op == EventDelete
	}
	return e.Op == EventCreate || e.Op == EventUpdate
}

// SortOperations orders operations by scheduled time.
// The sort is stable so operations sharing a T keep producer order.
func SortOperations(ops []Operation) {
	slices.SortStableFunc(ops, func(a, b Operation) int {
		switch {
		case a.T < b.T:
			return -1
		case a.T > b.T:
			return 1
		}
		return 0
	})
}

// CountDeletes returns the number of delete operations.
func CountDeletes(ops []Operation) int {
	n := 0
	for _, op := range ops {
		if op.Op == OpDelete {
			n++
		}
	}
	return n
}

// CountEvents returns the number of events with the given class.
func CountEvents(events []CapturedEvent, op EventOp) int {
	n := 0
	for _, ev := range events {
		if ev.Op == op {
			n++
		}
	}
	return n
}
