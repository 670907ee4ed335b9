// Package harness provides conformance testing for capture lanes.
//
// A harness scenario pairs a source operation log with a set of lanes and
// assertions about what each lane captured. Every run is recorded in an
// in-memory store so determinism can be checked by replaying the stored run.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: lifecycle_lanes
//	description: "Trigger captures every change, polling loses the hard delete"
//	seed: 7
//	tick_ms: 10
//	lanes:
//	  - name: trigger
//	    kind: trigger
//	    options: { trigger_overhead_ms: 6, extract_interval_ms: 150 }
//	  - name: polling
//	    kind: polling
//	    options: { poll_interval_ms: 200 }
//	scenario:
//	  id: order-lifecycle
//	  ops:
//	    - { t: 0, op: insert, table: orders, pk: { id: R-1 }, after: { status: pending } }
//	    - { t: 90, op: delete, table: orders, pk: { id: R-1 } }
//	assertions:
//	  - type: totals
//	    lane: polling
//	    missing: 1
//	  - type: deterministic
//
// The operation log may live in a separate file named by scenario_file,
// resolved relative to the harness file. Omitting lanes runs the default
// polling, trigger and log lanes.
//
// # Assertion Types
//
//   - totals: Verifies a lane's missing, extra and ordering counts
//   - max_lag: Verifies a lane's maximum matched lag does not exceed max
//   - event_count: Verifies the number of events, optionally of one class
//   - timestamps: Verifies the exact event timestamps of a lane in order
//   - same_deletes: Verifies the listed lanes captured equally many deletes
//   - deterministic: Replays the stored run and compares stream digests
//
// # Usage
//
//	s, err := harness.LoadScenario("testdata/scenarios/lifecycle.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(s)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
