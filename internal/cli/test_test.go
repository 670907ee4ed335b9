package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lifecycleHarness = `name: lifecycle
description: "Trigger captures every change; polling loses the hard delete"
seed: 7
lanes:
  - name: trigger
    kind: trigger
    options: { trigger_overhead_ms: 6, extract_interval_ms: 150 }
  - name: polling
    kind: polling
    options: { poll_interval_ms: 200 }
scenario:
  id: order-lifecycle
  tables: [orders]
  ops:
    - { t: 0, op: insert, table: orders, pk: { id: R-1 }, after: { status: pending } }
    - { t: 50, op: update, table: orders, pk: { id: R-1 }, after: { status: done } }
    - { t: 90, op: delete, table: orders, pk: { id: R-1 } }
assertions:
  - type: timestamps
    lane: trigger
    timestamps: [6, 56, 96]
  - type: totals
    lane: polling
    missing: 1
    extra: 0
`

const failingHarness = `name: wrong_count
description: "Expects polling to see every change"
scenario_file: ops/lifecycle.yaml
lanes:
  - name: polling
    kind: polling
    options: { poll_interval_ms: 200 }
assertions:
  - type: event_count
    lane: polling
    count: 3
`

func scenariosDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "lifecycle.yaml", lifecycleHarness)
	writeFile(t, dir, "ops/lifecycle.yaml", lifecycleOps)
	return dir
}

func TestTest_AllPass(t *testing.T) {
	dir := scenariosDir(t)

	out, _, err := executeCommand(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lifecycle")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTest_FailureExitsOne(t *testing.T) {
	dir := scenariosDir(t)
	writeFile(t, dir, "wrong_count.yaml", failingHarness)

	out, _, err := executeCommand(t, "test", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)

	// Files run in name order.
	failed := resp.Data.Scenarios[1]
	assert.Equal(t, "wrong_count", failed.Name)
	assert.False(t, failed.Pass)
	require.NotEmpty(t, failed.Errors)
	assert.Contains(t, failed.Errors[0], "Assertion failed: event_count (lane polling)")
}

func TestTest_Filter(t *testing.T) {
	dir := scenariosDir(t)
	writeFile(t, dir, "wrong_count.yaml", failingHarness)

	out, _, err := executeCommand(t, "test", dir, "--filter", "life*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")

	out, _, err = executeCommand(t, "test", dir, "--filter", "nothing-*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_GoldenUpdateAndCompare(t *testing.T) {
	dir := scenariosDir(t)
	goldenPath := filepath.Join(dir, "golden", "lifecycle.golden")

	out, _, err := executeCommand(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ lifecycle (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"lifecycle"`)
	assert.Contains(t, string(golden), `"ts_ms":96`)

	_, _, err = executeCommand(t, "test", dir)
	require.NoError(t, err, "fresh golden must match")

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"lanes":[]}`), 0644))
	out, _, err = executeCommand(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "lane streams do not match golden file")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, _, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_LoadErrorCountsAsFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nunknown_key: 1\n")

	out, _, err := executeCommand(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}
