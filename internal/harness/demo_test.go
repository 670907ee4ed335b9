package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarioFiles runs every harness file under testdata/scenarios.
// These double as reference examples of the harness format.
func TestScenarioFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err, "failed to load scenario from %s", path)
			assert.NotEmpty(t, s.Description, "scenario should have description")

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario %s failed:\n%v", s.Name, result.Errors)
		})
	}
}

func TestScenarioFiles_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "default_lanes.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Lanes, second.Lanes, "same seed, same streams")
	assert.Equal(t, first.RunID, second.RunID, "each run gets a fresh store")
}
