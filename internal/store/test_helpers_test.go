package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/testutil"
	"github.com/roach88/cdclab/internal/verify"
)

// createTestStore creates a new store in a temp dir with deterministic run ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithRunIDGenerator(testutil.NewFixedRunIDGenerator("")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a two-lane run over the lifecycle scenario with
// hand-written events.
func createTestRun(seed uint64) *Run {
	sc := testutil.Lifecycle()
	trigger := []ir.CapturedEvent{
		{Seq: 1, Op: ir.EventCreate, TsMs: 6, Table: "orders", PK: "R-1", After: ir.IRObject{"status": ir.IRString("pending")}},
		{Seq: 2, Op: ir.EventUpdate, TsMs: 56, Table: "orders", PK: "R-1",
			Before: ir.IRObject{"status": ir.IRString("pending")},
			After:  ir.IRObject{"status": ir.IRString("done")}},
		{Seq: 3, Op: ir.EventDelete, TsMs: 96, Table: "orders", PK: "R-1", Before: ir.IRObject{"status": ir.IRString("done")}},
	}
	return &Run{
		Scenario: sc,
		Seed:     seed,
		TickMs:   10,
		EndMs:    400,
		Lanes: []Lane{
			{
				Name:    "trigger",
				Kind:    capture.KindTrigger,
				Options: capture.Options{capture.OptTriggerOverhead: int64(6), capture.OptExtractInterval: int64(150)},
				Report:  verify.Compare(sc.Ops, trigger, verify.Strict),
				Events:  trigger,
			},
			{
				Name:    "poll",
				Kind:    capture.KindPolling,
				Options: capture.Options{capture.OptPollInterval: int64(200)},
				Report:  verify.Compare(sc.Ops, nil, verify.Mode{Coalescing: true, WindowMs: 200}),
				Events:  []ir.CapturedEvent{},
			},
		},
	}
}
