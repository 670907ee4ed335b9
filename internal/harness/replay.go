package harness

import (
	"context"
	"fmt"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/sim"
	"github.com/roach88/cdclab/internal/store"
)

// LaneDrift is a lane whose replayed stream differs from the stored one.
type LaneDrift struct {
	Lane     string `json:"lane"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
}

// ReplayResult compares a stored run with a fresh execution of it.
type ReplayResult struct {
	Run    *store.Run
	Replay *sim.RunResult
	Drift  []LaneDrift
}

// Identical reports whether every lane replayed to the stored digest.
func (r *ReplayResult) Identical() bool {
	return len(r.Drift) == 0
}

// Replay re-executes a stored run with its recorded scenario, seed, tick
// and lane options, and compares per-lane stream digests.
func Replay(ctx context.Context, st *store.Store, runID string, opts ...sim.RunnerOption) (*ReplayResult, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	session := sim.NewSession(opts...)
	for _, lane := range run.Lanes {
		e, err := capture.New(lane.Kind, lane.Options)
		if err != nil {
			return nil, fmt.Errorf("replay lane %q: %w", lane.Name, err)
		}
		session.AddLane(lane.Name, e)
	}

	res, err := session.RunContext(ctx, run.Scenario, run.Seed, run.TickMs)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", run.ID, err)
	}

	out := &ReplayResult{Run: run, Replay: res}
	for i, lane := range run.Lanes {
		digest, err := ir.StreamDigest(res.Lanes[i].Events)
		if err != nil {
			return nil, fmt.Errorf("replay lane %q: %w", lane.Name, err)
		}
		if digest != lane.StreamHash {
			out.Drift = append(out.Drift, LaneDrift{Lane: lane.Name, Stored: lane.StreamHash, Replayed: digest})
		}
	}
	return out, nil
}
