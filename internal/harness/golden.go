package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cdclab/internal/ir"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// Only lane streams and totals are included; lag statistics follow from
// the streams.
func Snapshot(name string, result *Result) ([]byte, error) {
	lanes := make(ir.IRArray, len(result.Lanes))
	for i, lane := range result.Lanes {
		events := make(ir.IRArray, len(lane.Events))
		for j, ev := range lane.Events {
			events[j] = ir.EventObject(ev)
		}
		totals := result.Reports[lane.Name].Totals
		lanes[i] = ir.IRObject{
			"name":   ir.IRString(lane.Name),
			"kind":   ir.IRString(lane.Kind),
			"events": events,
			"totals": ir.IRObject{
				"missing":  ir.IRInt(totals.Missing),
				"extra":    ir.IRInt(totals.Extra),
				"ordering": ir.IRInt(totals.Ordering),
			},
		}
	}

	return ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(name),
		"seed":          ir.IRInt(int64(result.Seed)),
		"lanes":         lanes,
	})
}

// RunWithGolden executes a scenario and compares the lane streams against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the streams don't match the golden file.
func RunWithGolden(t *testing.T, s *Scenario) error {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		return err
	}
	return AssertGolden(t, s.Name, result)
}

// AssertGolden compares the given result's lane streams against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
