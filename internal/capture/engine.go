package capture

import (
	"fmt"

	"github.com/roach88/cdclab/internal/ir"
)

// Kind names a capture strategy.
type Kind string

const (
	KindPolling Kind = "polling"
	KindTrigger Kind = "trigger"
	KindLog     Kind = "log"
)

// Kinds lists the supported capture strategies in presentation order.
var Kinds = []Kind{KindPolling, KindTrigger, KindLog}

// ParseKind validates a strategy name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &ir.ConfigError{
		Code:    ir.ErrCodeUnknownEngine,
		Field:   "kind",
		Message: fmt.Sprintf("unknown engine kind %q (want polling, trigger or log)", s),
	}
}

// Handler receives emitted events. It runs synchronously inside Advance.
type Handler func(ir.CapturedEvent)

// Engine is one capture strategy instance.
//
// Operations must be ingested in non-decreasing t order, and only once the
// virtual clock has reached their t; the Runner guarantees both.
type Engine interface {
	// Kind reports the strategy.
	Kind() Kind

	// Configure validates and applies options, then resets the engine with
	// seed 0. Unknown keys are ignored; on error the engine is unchanged.
	Configure(opts Options) error

	// Reset clears all queued and snapshot state, rewinds the engine clock to
	// zero and reseeds any pseudo-randomness.
	Reset(seed uint64)

	// Ingest queues operations for capture. It never emits.
	Ingest(ops []ir.Operation)

	// Advance moves the engine clock forward, emitting any due events.
	Advance(deltaMs int64)

	// OnEvent registers a handler for emitted events.
	OnEvent(h Handler)

	// Horizon is the maximum delay between an operation's t and the emission
	// of its event, if any.
	Horizon() int64
}

// New constructs a configured engine of the given kind.
func New(kind Kind, opts Options) (Engine, error) {
	var e Engine
	switch kind {
	case KindPolling:
		e = &Polling{}
	case KindTrigger:
		e = &Trigger{}
	case KindLog:
		e = &Log{}
	default:
		_, err := ParseKind(string(kind))
		return nil, err
	}

	if err := e.Configure(opts); err != nil {
		return nil, err
	}
	return e, nil
}

// nextBoundary returns the first multiple of interval strictly after now.
func nextBoundary(now, interval int64) int64 {
	return (now/interval + 1) * interval
}

// emitter fans an event out to registered handlers and stamps emission order.
type emitter struct {
	handlers []Handler
	seq      int64
}

func (e *emitter) on(h Handler) {
	if h != nil {
		e.handlers = append(e.handlers, h)
	}
}

// emit gives every handler its own copy of the row images, so a handler
// that edits an image cannot reach the engine's state or other handlers.
func (e *emitter) emit(ev ir.CapturedEvent) {
	e.seq++
	ev.Seq = e.seq
	for _, h := range e.handlers {
		own := ev
		own.Before = ev.Before.Clone()
		own.After = ev.After.Clone()
		h(own)
	}
}

func (e *emitter) reset() {
	e.seq = 0
}

// eventOpFor maps a source operation kind to its one-to-one event class.
func eventOpFor(op ir.OpKind) ir.EventOp {
	switch op {
	case ir.OpInsert:
		return ir.EventCreate
	case ir.OpDelete:
		return ir.EventDelete
	default:
		return ir.EventUpdate
	}
}
