package sim

import (
	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
)

// Lane records the events one engine emits during a run.
//
// The engine only emits; the lane owns the history. Events are kept in
// emission order, which is also their Seq order.
type Lane struct {
	name   string
	engine capture.Engine
	events []ir.CapturedEvent
}

// NewLane subscribes a new recorder to the engine.
func NewLane(name string, engine capture.Engine) *Lane {
	l := &Lane{name: name, engine: engine}
	engine.OnEvent(l.record)
	return l
}

func (l *Lane) record(ev ir.CapturedEvent) {
	l.events = append(l.events, ev)
}

// Name returns the lane name.
func (l *Lane) Name() string { return l.name }

// Engine returns the recorded engine.
func (l *Lane) Engine() capture.Engine { return l.engine }

// Events returns a copy of the recorded events in emission order.
func (l *Lane) Events() []ir.CapturedEvent {
	return append([]ir.CapturedEvent(nil), l.events...)
}

// Len returns the number of recorded events.
func (l *Lane) Len() int { return len(l.events) }

// Reset discards the recorded history.
func (l *Lane) Reset() {
	l.events = nil
}
