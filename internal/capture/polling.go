package capture

import (
	"github.com/roach88/cdclab/internal/ir"
)

// Polling option keys.
const (
	OptPollInterval       = "poll_interval_ms"
	OptIncludeSoftDeletes = "include_soft_deletes"
	OptSoftDeleteColumn   = "soft_delete_column"
)

// rowKey identifies a row across tables.
type rowKey struct {
	table string
	id    string
}

// Polling captures changes by diffing row images at fixed poll boundaries.
//
// Operations are applied to a current-image table when their poll boundary
// is crossed. Only the endpoint images of each window are compared, so
// intra-window history is lost, and a hard delete never changes the current
// table because the poller cannot observe a physically removed row.
type Polling struct {
	interval           int64
	includeSoftDeletes bool
	softDeleteColumn   string

	now      int64
	pending  []ir.Operation
	current  map[rowKey]ir.IRObject
	snapshot map[rowKey]ir.IRObject

	// changed lists keys in the order they were first modified in the
	// current window.
	changed    []rowKey
	changedSet map[rowKey]bool

	out emitter
}

var _ Engine = (*Polling)(nil)

func (p *Polling) Kind() Kind { return KindPolling }

// Interval returns the poll cadence in milliseconds.
func (p *Polling) Interval() int64 { return p.interval }

func (p *Polling) Configure(opts Options) error {
	interval, err := opts.RequiredInt(OptPollInterval, 1)
	if err != nil {
		return err
	}
	include, err := opts.Bool(OptIncludeSoftDeletes, false)
	if err != nil {
		return err
	}
	column, err := opts.String(OptSoftDeleteColumn, "deleted")
	if err != nil {
		return err
	}

	p.interval = interval
	p.includeSoftDeletes = include
	p.softDeleteColumn = column
	p.Reset(0)
	return nil
}

// Reset clears the current table and the snapshot. The poller has no
// randomness, so the seed is unused.
func (p *Polling) Reset(uint64) {
	p.now = 0
	p.pending = nil
	p.current = make(map[rowKey]ir.IRObject)
	p.snapshot = make(map[rowKey]ir.IRObject)
	p.changed = nil
	p.changedSet = make(map[rowKey]bool)
	p.out.reset()
}

func (p *Polling) Ingest(ops []ir.Operation) {
	p.pending = append(p.pending, ops...)
}

func (p *Polling) Advance(deltaMs int64) {
	if deltaMs <= 0 {
		return
	}
	end := p.now + deltaMs
	for b := nextBoundary(p.now, p.interval); b <= end; b += p.interval {
		p.applyBefore(b)
		p.poll(b)
	}
	p.now = end
}

func (p *Polling) OnEvent(h Handler) { p.out.on(h) }

func (p *Polling) Horizon() int64 { return p.interval }

// applyBefore applies queued operations scheduled before boundary b.
func (p *Polling) applyBefore(b int64) {
	n := 0
	for n < len(p.pending) && p.pending[n].T < b {
		p.apply(p.pending[n])
		n++
	}
	p.pending = p.pending[n:]
}

func (p *Polling) apply(op ir.Operation) {
	k := rowKey{table: op.Table, id: op.PK.ID}

	switch op.Op {
	case ir.OpInsert:
		img := op.After.Clone()
		if img == nil {
			img = ir.IRObject{}
		}
		p.current[k] = img
	case ir.OpUpdate:
		p.current[k] = p.current[k].Merge(op.After)
	case ir.OpDelete:
		if !op.IsSoftDelete() {
			return
		}
		p.current[k] = p.current[k].Merge(op.After)
	default:
		return
	}

	if !p.changedSet[k] {
		p.changedSet[k] = true
		p.changed = append(p.changed, k)
	}
}

// poll compares the rows modified in this window with the last snapshot.
func (p *Polling) poll(b int64) {
	for _, k := range p.changed {
		cur := p.current[k]
		prev, existed := p.snapshot[k]

		var op ir.EventOp
		switch {
		case p.includeSoftDeletes && cur.Truthy(p.softDeleteColumn) && !(existed && prev.Truthy(p.softDeleteColumn)):
			op = ir.EventDelete
		case !existed:
			op = ir.EventCreate
		case !ir.Equal(prev, cur):
			op = ir.EventUpdate
		default:
			continue
		}

		p.out.emit(ir.CapturedEvent{
			Op:     op,
			TsMs:   b,
			Table:  k.table,
			PK:     k.id,
			Before: prev.Clone(),
			After:  cur.Clone(),
		})
		p.snapshot[k] = cur.Clone()
	}

	p.changed = p.changed[:0]
	clear(p.changedSet)
}
