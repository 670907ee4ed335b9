package capture

import (
	"github.com/roach88/cdclab/internal/ir"
)

// Trigger option keys.
const (
	OptExtractInterval = "extract_interval_ms"
	OptTriggerOverhead = "trigger_overhead_ms"
)

// outboxRow is an operation captured by a row trigger, extractable once due.
type outboxRow struct {
	op  ir.Operation
	due int64
}

// Trigger captures every operation one-to-one through an outbox table.
//
// Each operation becomes extractable at t+overhead and is released at the
// first extraction boundary after that, stamped with its due time. Rows are
// released in source order and never coalesced.
type Trigger struct {
	interval int64
	overhead int64

	now    int64
	outbox []outboxRow

	out emitter
}

var _ Engine = (*Trigger)(nil)

func (tr *Trigger) Kind() Kind { return KindTrigger }

func (tr *Trigger) Configure(opts Options) error {
	interval, err := opts.RequiredInt(OptExtractInterval, 1)
	if err != nil {
		return err
	}
	overhead, err := opts.RequiredInt(OptTriggerOverhead, 0)
	if err != nil {
		return err
	}

	tr.interval = interval
	tr.overhead = overhead
	tr.Reset(0)
	return nil
}

// Reset empties the outbox. Triggers are deterministic, so the seed is unused.
func (tr *Trigger) Reset(uint64) {
	tr.now = 0
	tr.outbox = nil
	tr.out.reset()
}

func (tr *Trigger) Ingest(ops []ir.Operation) {
	for _, op := range ops {
		tr.outbox = append(tr.outbox, outboxRow{op: op, due: op.T + tr.overhead})
	}
}

func (tr *Trigger) Advance(deltaMs int64) {
	if deltaMs <= 0 {
		return
	}
	end := tr.now + deltaMs
	for b := nextBoundary(tr.now, tr.interval); b <= end; b += tr.interval {
		tr.extract(b)
	}
	tr.now = end
}

func (tr *Trigger) OnEvent(h Handler) { tr.out.on(h) }

func (tr *Trigger) Horizon() int64 { return tr.overhead + tr.interval }

// extract releases the outbox prefix due before boundary b.
func (tr *Trigger) extract(b int64) {
	n := 0
	for n < len(tr.outbox) && tr.outbox[n].due < b {
		row := tr.outbox[n]
		tr.out.emit(ir.CapturedEvent{
			Op:     eventOpFor(row.op.Op),
			TsMs:   row.due,
			Table:  row.op.Table,
			PK:     row.op.PK.ID,
			Before: row.op.Before.Clone(),
			After:  row.op.After.Clone(),
		})
		n++
	}
	tr.outbox = tr.outbox[n:]
}
