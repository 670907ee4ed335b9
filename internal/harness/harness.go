package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/cdclab/internal/sim"
	"github.com/roach88/cdclab/internal/store"
	"github.com/roach88/cdclab/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh in-memory store with fixed run ids.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger routes runner and harness logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Build one engine per lane
// 2. Drive the operation log until every lane has drained
// 3. Verify each lane and record the run in the store
// 4. Evaluate assertions and return the result
func Run(s *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), s, opts...)
}

// RunContext is Run with cancellation checked between ticks.
func RunContext(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	if err := validateScenario(s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	st, err := store.Open(":memory:", store.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(s.Name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.DiscardHandler), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}

	result, err := h.execute(ctx, s)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  st,
		RunID:  result.RunID,
		Logger: h.logger,
	}
	for _, msg := range EvaluateAssertions(result, s.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", s.Name,
		"run_id", result.RunID,
		"pass", result.Pass,
		"failures", len(result.Errors),
	)
	return result, nil
}

// execute runs the lanes, verifies them and stores the run.
func (h *Harness) execute(ctx context.Context, s *Scenario) (*Result, error) {
	lab, err := s.lab()
	if err != nil {
		return nil, err
	}

	session, err := lab.NewSession(sim.WithLogger(h.logger))
	if err != nil {
		return nil, err
	}

	res, err := session.RunContext(ctx, s.Source, lab.Seed, lab.TickMs)
	if err != nil {
		return nil, fmt.Errorf("failed to run scenario: %w", err)
	}

	run := store.NewRun(res, lab.LaneOptions())
	if err := h.store.WriteRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	result := NewResult()
	result.RunID = run.ID
	result.Seed = res.Seed
	for _, w := range s.SourceWarnings {
		result.Warnings = append(result.Warnings, w.String())
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, w.String())
	}
	for _, lane := range run.Lanes {
		result.AddLane(LaneTrace{Name: lane.Name, Kind: lane.Kind, Events: lane.Events}, lane.Report)

		h.logger.Debug("lane verified",
			"lane", lane.Name,
			"kind", lane.Kind,
			"events", len(lane.Events),
			"missing", lane.Report.Totals.Missing,
			"extra", lane.Report.Totals.Extra,
			"ordering", lane.Report.Totals.Ordering,
		)
	}
	return result, nil
}
