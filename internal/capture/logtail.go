package capture

import (
	"math/rand/v2"

	"github.com/roach88/cdclab/internal/ir"
)

// Log option keys.
const (
	OptFetchInterval = "fetch_interval_ms"
	OptMaxJitter     = "max_jitter_ms"
)

// DefaultMaxJitterMs bounds commit-to-visibility jitter when not configured.
const DefaultMaxJitterMs = 5

// logEntry is a committed operation awaiting the tailer.
type logEntry struct {
	op ir.Operation
	ts int64
}

// Log captures every operation one-to-one by tailing the commit log.
//
// Each operation is stamped with t plus a seeded jitter in [0, maxJitter],
// clamped so stamps never decrease, and released at the first fetch boundary
// after its stamp.
type Log struct {
	interval  int64
	maxJitter int64

	now    int64
	lastTs int64
	rng    *rand.Rand
	log    []logEntry

	out emitter
}

var _ Engine = (*Log)(nil)

func (l *Log) Kind() Kind { return KindLog }

func (l *Log) Configure(opts Options) error {
	interval, err := opts.RequiredInt(OptFetchInterval, 1)
	if err != nil {
		return err
	}
	jitter, err := opts.IntDefault(OptMaxJitter, DefaultMaxJitterMs, 0)
	if err != nil {
		return err
	}

	l.interval = interval
	l.maxJitter = min(jitter, interval)
	l.Reset(0)
	return nil
}

// Reset clears the log and reseeds the jitter source.
func (l *Log) Reset(seed uint64) {
	l.now = 0
	l.lastTs = 0
	l.rng = rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))
	l.log = nil
	l.out.reset()
}

func (l *Log) Ingest(ops []ir.Operation) {
	for _, op := range ops {
		ts := op.T
		if l.maxJitter > 0 {
			ts += l.rng.Int64N(l.maxJitter + 1)
		}
		ts = max(ts, l.lastTs)
		l.lastTs = ts
		l.log = append(l.log, logEntry{op: op, ts: ts})
	}
}

func (l *Log) Advance(deltaMs int64) {
	if deltaMs <= 0 {
		return
	}
	end := l.now + deltaMs
	for b := nextBoundary(l.now, l.interval); b <= end; b += l.interval {
		l.fetch(b)
	}
	l.now = end
}

func (l *Log) OnEvent(h Handler) { l.out.on(h) }

func (l *Log) Horizon() int64 { return l.interval + l.maxJitter }

// fetch releases log entries stamped before boundary b.
func (l *Log) fetch(b int64) {
	n := 0
	for n < len(l.log) && l.log[n].ts < b {
		e := l.log[n]
		l.out.emit(ir.CapturedEvent{
			Op:     eventOpFor(e.op.Op),
			TsMs:   e.ts,
			Table:  e.op.Table,
			PK:     e.op.PK.ID,
			Before: e.op.Before.Clone(),
			After:  e.op.After.Clone(),
		})
		n++
	}
	l.log = l.log[n:]
}
