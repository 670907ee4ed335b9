package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdclab/internal/store"
)

// recordRuns simulates the lifecycle scenario once per seed into a fresh
// database and returns its path.
func recordRuns(t *testing.T, seeds ...string) string {
	t.Helper()

	dir := t.TempDir()
	scenarioPath := writeFile(t, dir, "lifecycle.yaml", lifecycleOps)
	db := filepath.Join(dir, "runs.db")
	for _, seed := range seeds {
		_, _, err := executeCommand(t, "simulate", scenarioPath, "--db", db, "--seed", seed)
		require.NoError(t, err)
	}
	return db
}

func TestHistory_ListsRuns(t *testing.T) {
	db := recordRuns(t, "1", "2")

	out, _, err := executeCommand(t, "history", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   []HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, uint64(1), resp.Data[0].Seed)
	assert.Equal(t, uint64(2), resp.Data[1].Seed)
	assert.Equal(t, "order-lifecycle", resp.Data[1].ScenarioID)
	assert.Equal(t, 3, resp.Data[1].Lanes)

	out, _, err = executeCommand(t, "history", "--db", db, "--scenario", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestHistory_MissingDatabase(t *testing.T) {
	_, _, err := executeCommand(t, "history", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_RecordsRunID(t *testing.T) {
	dir := t.TempDir()
	scenarioPath := writeFile(t, dir, "lifecycle.yaml", lifecycleOps)

	out, _, err := executeCommand(t, "simulate", scenarioPath, "--db", filepath.Join(dir, "runs.db"), "--format", "json")
	require.NoError(t, err)

	resp := decodeSimulate(t, out)
	assert.Len(t, resp.Data.RunID, 36)
}

func TestReplay_AllRunsDeterministic(t *testing.T) {
	db := recordRuns(t, "5", "6")

	out, _, err := executeCommand(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 2 run(s)")
	assert.Contains(t, out, "✓ All runs verified deterministic")
}

func TestReplay_DetectsDrift(t *testing.T) {
	db := recordRuns(t, "5")

	st, err := store.Open(db)
	require.NoError(t, err)
	runs, err := st.ListRuns(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	_, err = st.DB().Exec(`UPDATE lane_reports SET stream_hash = 'tampered' WHERE lane = 'log'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := executeCommand(t, "replay", "--db", db, "--run", runs[0].ID, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)
	require.Len(t, resp.Data.Runs, 1)
	require.Len(t, resp.Data.Runs[0].Drift, 1)
	assert.Equal(t, "log", resp.Data.Runs[0].Drift[0].Lane)
	assert.Equal(t, "tampered", resp.Data.Runs[0].Drift[0].Stored)
}

func TestReplay_UnknownRun(t *testing.T) {
	db := recordRuns(t, "5")

	_, _, err := executeCommand(t, "replay", "--db", db, "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: no-such-run")
}
