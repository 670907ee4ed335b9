package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/sim"
	"github.com/roach88/cdclab/internal/verify"
)

// Run is a stored simulation run.
type Run struct {
	ID  string
	Seq int64

	ScenarioID   string
	ScenarioHash string
	Scenario     *ir.Scenario

	Seed   uint64
	TickMs int64
	EndMs  int64

	SimulatorVersion string
	IRVersion        string

	Lanes []Lane
}

// Lane is one lane of a stored run.
type Lane struct {
	Name       string
	Kind       capture.Kind
	Options    capture.Options
	StreamHash string
	Report     verify.Report

	// Events is only populated by WriteRun callers and ReadRun.
	Events []ir.CapturedEvent
}

// RunSummary is a run without its scenario and events.
type RunSummary struct {
	ID           string
	Seq          int64
	ScenarioID   string
	ScenarioHash string
	Seed         uint64
	TickMs       int64
	Lanes        int
}

// NewRun builds a storable run from a session result, verifying every lane
// against the canonical scenario. options maps lane names to the options
// their engines were configured with; missing entries are stored empty.
func NewRun(res *sim.RunResult, options map[string]capture.Options) *Run {
	run := &Run{
		Scenario: res.Scenario,
		Seed:     res.Seed,
		TickMs:   res.TickMs,
		EndMs:    res.EndMs,
		Lanes:    make([]Lane, len(res.Lanes)),
	}
	for i, l := range res.Lanes {
		run.Lanes[i] = Lane{
			Name:    l.Name,
			Kind:    l.Kind,
			Options: options[l.Name],
			Report:  verify.CompareLane(l.Engine, res.Scenario.Ops, l.Events),
			Events:  l.Events,
		}
	}
	return run
}

// WriteRun stores a run with its lanes and events in one transaction.
//
// An empty run.ID is filled from the store's run id generator, and Seq is
// assigned as the next logical run number. Both are written back into run.
// Stream and scenario hashes are computed when missing.
func (s *Store) WriteRun(ctx context.Context, run *Run) error {
	if run.Scenario == nil {
		return fmt.Errorf("write run: scenario is required")
	}
	if run.ID == "" {
		run.ID = s.runID.Generate()
	}
	if run.SimulatorVersion == "" {
		run.SimulatorVersion = ir.SimulatorVersion
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	run.ScenarioID = run.Scenario.ID

	scenarioJSON, err := marshalScenario(run.Scenario)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if run.ScenarioHash == "" {
		if run.ScenarioHash, err = ir.ScenarioDigest(run.Scenario); err != nil {
			return fmt.Errorf("write run: %w", err)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
			return fmt.Errorf("write run: next seq: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs
			(id, seq, scenario_id, scenario_hash, scenario, seed, tick_ms, end_ms, simulator_version, ir_version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			run.Seq,
			run.ScenarioID,
			run.ScenarioHash,
			scenarioJSON,
			int64(run.Seed),
			run.TickMs,
			run.EndMs,
			run.SimulatorVersion,
			run.IRVersion,
		)
		if err != nil {
			return fmt.Errorf("write run: %w", err)
		}

		for i := range run.Lanes {
			if err := writeLane(ctx, tx, run.ID, i, &run.Lanes[i]); err != nil {
				return fmt.Errorf("write run: lane %q: %w", run.Lanes[i].Name, err)
			}
		}
		return nil
	})
}

func writeLane(ctx context.Context, tx *sql.Tx, runID string, position int, lane *Lane) error {
	optionsJSON, err := marshalOptions(lane.Options)
	if err != nil {
		return err
	}
	reportJSON, err := marshalReport(lane.Report)
	if err != nil {
		return err
	}
	if lane.StreamHash == "" {
		if lane.StreamHash, err = ir.StreamDigest(lane.Events); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lane_reports (run_id, lane, position, kind, options, stream_hash, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, lane.Name, position, string(lane.Kind), optionsJSON, lane.StreamHash, reportJSON)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lane_events (run_id, lane, seq, op, ts_ms, table_name, pk, before, after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range lane.Events {
		before, err := marshalRow(ev.Before)
		if err != nil {
			return err
		}
		after, err := marshalRow(ev.After)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, runID, lane.Name, ev.Seq, string(ev.Op), ev.TsMs, ev.Table, ev.PK, before, after); err != nil {
			return fmt.Errorf("event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

// ListRuns returns run summaries ordered by run seq.
// An empty scenarioID lists every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, scenarioID string) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, r.scenario_id, r.scenario_hash, r.seed, r.tick_ms,
		       (SELECT COUNT(*) FROM lane_reports l WHERE l.run_id = r.id)
		FROM runs r
		WHERE ? = '' OR r.scenario_id = ?
		ORDER BY r.seq ASC
	`, scenarioID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var seed int64
		if err := rows.Scan(&r.ID, &r.Seq, &r.ScenarioID, &r.ScenarioHash, &seed, &r.TickMs, &r.Lanes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Seed = uint64(seed)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun loads a run with its lanes and events.
// Returns ErrRunNotFound if the id is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	var scenarioJSON string
	var seed int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, scenario_id, scenario_hash, scenario, seed, tick_ms, end_ms, simulator_version, ir_version
		FROM runs
		WHERE id = ?
	`, id).Scan(
		&run.ID,
		&run.Seq,
		&run.ScenarioID,
		&run.ScenarioHash,
		&scenarioJSON,
		&seed,
		&run.TickMs,
		&run.EndMs,
		&run.SimulatorVersion,
		&run.IRVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	run.Seed = uint64(seed)

	if run.Scenario, err = unmarshalScenario(scenarioJSON); err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}

	if run.Lanes, err = s.readLanes(ctx, id); err != nil {
		return nil, err
	}
	for i := range run.Lanes {
		if run.Lanes[i].Events, err = s.ReadLaneEvents(ctx, id, run.Lanes[i].Name); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func (s *Store) readLanes(ctx context.Context, runID string) ([]Lane, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lane, kind, options, stream_hash, report
		FROM lane_reports
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query lanes: %w", err)
	}
	defer rows.Close()

	var lanes []Lane
	for rows.Next() {
		var lane Lane
		var kind, optionsJSON, reportJSON string
		if err := rows.Scan(&lane.Name, &kind, &optionsJSON, &lane.StreamHash, &reportJSON); err != nil {
			return nil, fmt.Errorf("scan lane: %w", err)
		}
		lane.Kind = capture.Kind(kind)
		if lane.Options, err = unmarshalOptions(optionsJSON); err != nil {
			return nil, err
		}
		if lane.Report, err = unmarshalReport(reportJSON); err != nil {
			return nil, err
		}
		lanes = append(lanes, lane)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lanes: %w", err)
	}
	return lanes, nil
}

// ReadLaneEvents returns a lane's events in emission order.
//
// Returns an empty slice (not nil) if the lane recorded nothing.
func (s *Store) ReadLaneEvents(ctx context.Context, runID, lane string) ([]ir.CapturedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, ts_ms, table_name, pk, before, after
		FROM lane_events
		WHERE run_id = ? AND lane = ?
		ORDER BY seq ASC
	`, runID, lane)
	if err != nil {
		return nil, fmt.Errorf("query lane events: %w", err)
	}
	defer rows.Close()

	events := []ir.CapturedEvent{}
	for rows.Next() {
		var ev ir.CapturedEvent
		var op string
		var before, after sql.NullString
		if err := rows.Scan(&ev.Seq, &op, &ev.TsMs, &ev.Table, &ev.PK, &before, &after); err != nil {
			return nil, fmt.Errorf("scan lane event: %w", err)
		}
		ev.Op = ir.EventOp(op)
		if ev.Before, err = unmarshalRow(before); err != nil {
			return nil, err
		}
		if ev.After, err = unmarshalRow(after); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lane events: %w", err)
	}
	return events, nil
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
