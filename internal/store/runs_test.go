package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/config"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/testutil"
)

func TestWriteRun_AssignsIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestRun(1)
	require.NoError(t, s.WriteRun(ctx, first))
	second := createTestRun(2)
	require.NoError(t, s.WriteRun(ctx, second))

	assert.Equal(t, "test-run-1", first.ID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, "test-run-2", second.ID)
	assert.Equal(t, int64(2), second.Seq)

	assert.Equal(t, "order-lifecycle", first.ScenarioID)
	assert.Equal(t, ir.SimulatorVersion, first.SimulatorVersion)
	assert.Equal(t, ir.IRVersion, first.IRVersion)
	assert.Equal(t, first.ScenarioHash, second.ScenarioHash, "same scenario, same hash")
	assert.Equal(t, ir.MustStreamDigest(first.Lanes[0].Events), first.Lanes[0].StreamHash)
}

func TestWriteRun_RequiresScenario(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteRun(context.Background(), &Run{TickMs: 10})
	assert.ErrorContains(t, err, "scenario is required")
}

func TestWriteRun_RollsBackOnLaneError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun(1)
	run.Lanes[1].Name = run.Lanes[0].Name // primary key clash

	require.Error(t, s.WriteRun(ctx, run))

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, runs, "failed write must not leave a partial run")
}

func TestReadRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Seeds above MaxInt64 are stored as their two's complement bit pattern.
	run := createTestRun(1<<63 + 5)
	require.NoError(t, s.WriteRun(ctx, run))

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.Seq, got.Seq)
	assert.Equal(t, run.Seed, got.Seed)
	assert.Equal(t, int64(10), got.TickMs)
	assert.Equal(t, int64(400), got.EndMs)
	assert.Equal(t, run.Scenario, got.Scenario)

	require.Len(t, got.Lanes, 2)
	for i, lane := range got.Lanes {
		want := run.Lanes[i]
		assert.Equal(t, want.Name, lane.Name, "lanes keep write order")
		assert.Equal(t, want.Kind, lane.Kind)
		assert.Equal(t, want.Events, lane.Events)
		assert.Equal(t, want.StreamHash, lane.StreamHash)
		assert.Equal(t, want.Report.Totals, lane.Report.Totals)
		assert.Equal(t, want.Report.Lag, lane.Report.Lag)
		assert.Equal(t, want.Report.Matched, lane.Report.Matched)
		assert.Equal(t, ir.MustStreamDigest(lane.Events), lane.StreamHash,
			"events read back hash to the stored digest")
	}
}

func TestReadRun_OptionsReconfigureEngine(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun(1)
	require.NoError(t, s.WriteRun(ctx, run))

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)

	lane := got.Lanes[0]
	overhead, ok, err := lane.Options.Int(capture.OptTriggerOverhead)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(6), overhead)

	e, err := capture.New(lane.Kind, lane.Options)
	require.NoError(t, err)
	assert.Equal(t, int64(156), e.Horizon())
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestReadLaneEvents_Empty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun(1)
	require.NoError(t, s.WriteRun(ctx, run))

	events, err := s.ReadLaneEvents(ctx, run.ID, "poll")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	require.NoError(t, s.WriteRun(ctx, createTestRun(1)))
	other := createTestRun(2)
	other.Scenario = testutil.NewScenario("other").
		Insert(0, "R-9", ir.IRObject{"status": ir.IRString("new")}).
		Build()
	require.NoError(t, s.WriteRun(ctx, other))
	require.NoError(t, s.WriteRun(ctx, createTestRun(3)))

	runs, err = s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{runs[0].Seq, runs[1].Seq, runs[2].Seq})
	assert.Equal(t, 2, runs[0].Lanes)
	assert.Equal(t, uint64(3), runs[2].Seed)

	runs, err = s.ListRuns(ctx, "order-lifecycle")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "test-run-1", runs[0].ID)
	assert.Equal(t, "test-run-3", runs[1].ID)
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun(1)
	require.NoError(t, s.WriteRun(ctx, run))
	require.NoError(t, s.DeleteRun(ctx, run.ID))

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM lane_events`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM lane_reports`).Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, s.DeleteRun(ctx, run.ID), ErrRunNotFound)
}

func TestNewRun_FromSession(t *testing.T) {
	lab := config.Default()
	session, err := lab.NewSession()
	require.NoError(t, err)

	res, err := session.Run(testutil.Lifecycle(), 7, lab.TickMs)
	require.NoError(t, err)

	run := NewRun(res, lab.LaneOptions())
	require.Len(t, run.Lanes, 3)
	for _, lane := range run.Lanes {
		assert.Zero(t, lane.Report.Totals.Extra, "lane %s", lane.Name)
		if lane.Kind == capture.KindPolling {
			// The hard delete lands before the first poll.
			assert.Equal(t, 1, lane.Report.Totals.Missing)
			continue
		}
		assert.Zero(t, lane.Report.Totals.Missing, "lane %s", lane.Name)
	}

	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, run))
	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.ID, 36, "default ids are hyphenated UUIDs")
	for i := range run.Lanes {
		assert.Equal(t, run.Lanes[i].Events, got.Lanes[i].Events)
	}
}
