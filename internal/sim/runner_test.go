package sim

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
)

// recordingEngine logs every call so tests can observe delivery order.
type recordingEngine struct {
	name    string
	journal *[]string
	seeds   []uint64
	batches [][]ir.Operation
	h       capture.Handler
}

func (e *recordingEngine) Kind() capture.Kind              { return capture.KindTrigger }
func (e *recordingEngine) Configure(capture.Options) error { return nil }
func (e *recordingEngine) OnEvent(h capture.Handler)       { e.h = h }
func (e *recordingEngine) Horizon() int64                  { return 0 }

func (e *recordingEngine) Reset(seed uint64) {
	e.seeds = append(e.seeds, seed)
	e.batches = nil
}

func (e *recordingEngine) Ingest(ops []ir.Operation) {
	*e.journal = append(*e.journal, e.name+":ingest")
	e.batches = append(e.batches, append([]ir.Operation(nil), ops...))
}

func (e *recordingEngine) Advance(int64) {
	*e.journal = append(*e.journal, e.name+":advance")
}

func lifecycleScenario() *ir.Scenario {
	return &ir.Scenario{
		ID: "lifecycle",
		Ops: []ir.Operation{
			{T: 0, Op: ir.OpInsert, Table: "orders", PK: ir.PrimaryKey{ID: "R-1"}, After: ir.IRObject{"status": ir.IRString("pending")}},
			{T: 50, Op: ir.OpUpdate, Table: "orders", PK: ir.PrimaryKey{ID: "R-1"}, After: ir.IRObject{"status": ir.IRString("done")}},
			{T: 90, Op: ir.OpDelete, Table: "orders", PK: ir.PrimaryKey{ID: "R-1"}},
		},
	}
}

func TestRunner_StateMachine(t *testing.T) {
	r := NewRunner()
	assert.Equal(t, StateIdle, r.State())

	assert.ErrorIs(t, r.Start(), ErrNoScenario)
	assert.ErrorIs(t, r.Pause(), ErrInvalidTransition)

	require.NoError(t, r.Load(lifecycleScenario()))
	assert.Equal(t, StateIdle, r.State())

	require.NoError(t, r.Start())
	assert.Equal(t, StateRunning, r.State())
	require.NoError(t, r.Start(), "start while running is a no-op")
	assert.Equal(t, StateRunning, r.State())

	require.NoError(t, r.Pause())
	assert.Equal(t, StatePaused, r.State())
	assert.ErrorIs(t, r.Pause(), ErrInvalidTransition, "paused is only reachable from running")

	require.NoError(t, r.Start())
	assert.Equal(t, StateRunning, r.State())

	r.Reset(1)
	assert.Equal(t, StateIdle, r.State())
}

func TestRunner_TickOutsideRunningIsNoop(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.Tick(10), "ticking with nothing loaded is not an error")

	require.NoError(t, r.Load(lifecycleScenario()))
	require.NoError(t, r.Tick(10))
	assert.Equal(t, int64(0), r.Now())

	require.NoError(t, r.Start())
	require.NoError(t, r.Tick(10))
	require.NoError(t, r.Pause())
	require.NoError(t, r.Tick(10))
	assert.Equal(t, int64(10), r.Now(), "paused ticks are ignored")
}

func TestRunner_NegativeTick(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.Load(lifecycleScenario()))
	require.NoError(t, r.Start())
	assert.ErrorIs(t, r.Tick(-1), ErrNegativeTick)
	assert.Equal(t, int64(0), r.Now())
}

func TestRunner_TickAboveTimeCeiling(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.Load(lifecycleScenario()))
	require.NoError(t, r.Start())
	require.NoError(t, r.Tick(10))

	assert.Error(t, r.Tick(math.MaxInt64-5))
	assert.Equal(t, int64(10), r.Now(), "a rejected tick leaves the clock alone")

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Tick(ir.MaxTimeMs))
	}
	assert.Error(t, r.Tick(ir.MaxTimeMs), "the clock stops short of overflowing")
	assert.Equal(t, 10+5*ir.MaxTimeMs, r.Now())
}

func TestRunner_LoadErrors(t *testing.T) {
	r := NewRunner()

	err := r.Load(nil)
	assert.Equal(t, ir.ErrCodeMalformedScenario, ir.ConfigErrorCodeOf(err))

	err = r.Load(&ir.Scenario{ID: "no-ops"})
	require.Error(t, err)
	var cfgErr *ir.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ops", cfgErr.Field)

	s := lifecycleScenario()
	s.Ops[1].T = -5
	err = r.Load(s)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ops[1].t", cfgErr.Field)

	s = lifecycleScenario()
	s.Ops[2].T = math.MaxInt64 - 100
	err = r.Load(s)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ir.ErrCodeMalformedScenario, cfgErr.Code)
	assert.Equal(t, "ops[2].t", cfgErr.Field)

	assert.Nil(t, r.Scenario(), "a failed load stores nothing")

	s = lifecycleScenario()
	s.Ops[2].T = ir.MaxTimeMs
	require.NoError(t, NewRunner().Load(s), "the ceiling itself is accepted")
}

func TestRunner_LoadSkipsMalformedOperations(t *testing.T) {
	var logs bytes.Buffer
	r := NewRunner(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	s := lifecycleScenario()
	s.Tables = []string{"orders"}
	s.Ops = append(s.Ops,
		ir.Operation{T: 5, Op: ir.OpInsert, PK: ir.PrimaryKey{ID: "X"}},
		ir.Operation{T: 6, Op: ir.OpInsert, Table: "audit", PK: ir.PrimaryKey{ID: "Y"}},
	)

	require.NoError(t, r.Load(s))
	assert.Len(t, r.Operations(), 3)
	require.Len(t, r.Warnings(), 2)
	assert.Equal(t, 3, r.Warnings()[0].Index)
	assert.Equal(t, 4, r.Warnings()[1].Index)
	assert.Contains(t, logs.String(), "skipping malformed operation")
}

func TestRunner_LoadSortsOperations(t *testing.T) {
	r := NewRunner()
	s := lifecycleScenario()
	s.Ops[0], s.Ops[2] = s.Ops[2], s.Ops[0]

	require.NoError(t, r.Load(s))
	ops := r.Operations()
	assert.Equal(t, []int64{0, 50, 90}, []int64{ops[0].T, ops[1].T, ops[2].T})
	assert.Equal(t, int64(90), s.Ops[0].T, "the caller's scenario is untouched")
}

func TestRunner_DeliversInLockstep(t *testing.T) {
	var journal []string
	a := &recordingEngine{name: "a", journal: &journal}
	b := &recordingEngine{name: "b", journal: &journal}

	r := NewRunner()
	r.Attach(a, b)
	require.NoError(t, r.Load(lifecycleScenario()))
	require.NoError(t, r.Start())

	require.NoError(t, r.Tick(50))
	assert.Equal(t, []string{"a:ingest", "b:ingest", "a:advance", "b:advance"}, journal)

	journal = journal[:0]
	require.NoError(t, r.Tick(10))
	assert.Equal(t, []string{"a:ingest", "b:ingest", "a:advance", "b:advance"}, journal)

	journal = journal[:0]
	require.NoError(t, r.Tick(10))
	assert.Equal(t, []string{"a:advance", "b:advance"}, journal, "no ops in [60, 70)")

	require.Len(t, a.batches, 2)
	assert.Equal(t, a.batches, b.batches, "every lane sees the same batches")
	assert.Len(t, a.batches[0], 1, "t=50 is outside [0, 50)")
	assert.Equal(t, int64(50), a.batches[1][0].T)
}

func TestRunner_ZeroTickDeliversNothing(t *testing.T) {
	var journal []string
	a := &recordingEngine{name: "a", journal: &journal}

	r := NewRunner()
	r.Attach(a)
	require.NoError(t, r.Load(lifecycleScenario()))
	require.NoError(t, r.Start())
	require.NoError(t, r.Tick(0))

	assert.Empty(t, journal)
	assert.False(t, r.Drained())
}

func TestRunner_OnTick(t *testing.T) {
	r := NewRunner()
	var seen []int64
	r.OnTick(func(now int64) { seen = append(seen, now) })

	require.NoError(t, r.Load(lifecycleScenario()))
	require.NoError(t, r.Tick(5))
	require.NoError(t, r.Start())
	require.NoError(t, r.Tick(5))
	require.NoError(t, r.Tick(20))

	assert.Equal(t, []int64{5, 25}, seen)
}

func TestRunner_ResetSeedsEnginesByIndex(t *testing.T) {
	var journal []string
	a := &recordingEngine{name: "a", journal: &journal}
	b := &recordingEngine{name: "b", journal: &journal}

	r := NewRunner()
	r.Attach(a, b)
	r.Reset(42)

	assert.Equal(t, LaneSeed(42, 0), a.seeds[len(a.seeds)-1])
	assert.Equal(t, LaneSeed(42, 1), b.seeds[len(b.seeds)-1])
	assert.NotEqual(t, a.seeds[len(a.seeds)-1], b.seeds[len(b.seeds)-1])
	assert.Equal(t, uint64(42), r.Seed())
}

func TestRunner_ResetRewindsDelivery(t *testing.T) {
	var journal []string
	a := &recordingEngine{name: "a", journal: &journal}

	r := NewRunner()
	r.Attach(a)
	require.NoError(t, r.Load(lifecycleScenario()))
	require.NoError(t, r.Start())
	require.NoError(t, r.Tick(100))
	assert.True(t, r.Drained())

	r.Reset(0)
	assert.Equal(t, int64(0), r.Now())
	assert.False(t, r.Drained())

	require.NoError(t, r.Start())
	require.NoError(t, r.Tick(100))
	require.Len(t, a.batches, 1)
	assert.Len(t, a.batches[0], 3)
}

func TestRunner_AttachWhileRunningJoinsSharedClock(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.Load(&ir.Scenario{
		ID:  "late",
		Ops: []ir.Operation{{T: 150, Op: ir.OpInsert, Table: "orders", PK: ir.PrimaryKey{ID: "R-1"}}},
	}))
	require.NoError(t, r.Start())
	require.NoError(t, r.Tick(100))

	e, err := capture.New(capture.KindPolling, capture.Options{capture.OptPollInterval: 200})
	require.NoError(t, err)
	var events []ir.CapturedEvent
	e.OnEvent(func(ev ir.CapturedEvent) { events = append(events, ev) })
	r.Attach(e)

	for r.Now() < 210 {
		require.NoError(t, r.Tick(10))
	}

	require.Len(t, events, 1, "the poll at t=200 lands while the runner crosses 200")
	assert.Equal(t, int64(200), events[0].TsMs)
	assert.Equal(t, ir.EventCreate, events[0].Op)
}

func TestLaneSeed_Distinct(t *testing.T) {
	seen := map[uint64]bool{}
	for seed := uint64(0); seed < 10; seed++ {
		for i := 0; i < 3; i++ {
			s := LaneSeed(seed, i)
			assert.False(t, seen[s], "collision at seed %d index %d", seed, i)
			seen[s] = true
		}
	}
}
