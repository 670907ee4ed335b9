package sim

import (
	"context"
	"fmt"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/scenario"
)

// Session bundles a Runner with named lanes for whole-scenario runs.
type Session struct {
	runner *Runner
	lanes  []*Lane
}

// NewSession creates a session with an empty runner.
func NewSession(opts ...RunnerOption) *Session {
	return &Session{runner: NewRunner(opts...)}
}

// AddLane attaches an engine to the runner and records it under name.
func (s *Session) AddLane(name string, engine capture.Engine) *Lane {
	lane := NewLane(name, engine)
	s.runner.Attach(engine)
	s.lanes = append(s.lanes, lane)
	return lane
}

// Runner exposes the underlying runner for interactive control.
func (s *Session) Runner() *Runner { return s.runner }

// Lanes returns the lanes in attachment order.
func (s *Session) Lanes() []*Lane {
	return append([]*Lane(nil), s.lanes...)
}

// Reset resets the runner and clears every lane.
func (s *Session) Reset(seed uint64) {
	s.runner.Reset(seed)
	for _, l := range s.lanes {
		l.Reset()
	}
}

// LaneResult is one lane's output from a run.
type LaneResult struct {
	Name   string
	Kind   capture.Kind
	Engine capture.Engine
	Events []ir.CapturedEvent
}

// RunResult is the output of a complete run.
type RunResult struct {
	// Scenario is the canonical scenario the lanes observed.
	Scenario *ir.Scenario
	Warnings []scenario.Warning
	Seed     uint64
	TickMs   int64

	// EndMs is the virtual time at which the run stopped.
	EndMs int64

	Lanes []LaneResult
}

// Lane returns the named lane result.
func (r *RunResult) Lane(name string) (LaneResult, bool) {
	for _, l := range r.Lanes {
		if l.Name == name {
			return l, true
		}
	}
	return LaneResult{}, false
}

// Run loads the scenario, resets with seed and ticks by tickMs until every
// lane has had time to emit the events of the last operation.
func (s *Session) Run(sc *ir.Scenario, seed uint64, tickMs int64) (*RunResult, error) {
	return s.RunContext(context.Background(), sc, seed, tickMs)
}

// RunContext is Run with cancellation checked between ticks.
func (s *Session) RunContext(ctx context.Context, sc *ir.Scenario, seed uint64, tickMs int64) (*RunResult, error) {
	if tickMs <= 0 || tickMs > ir.MaxTimeMs {
		return nil, fmt.Errorf("tick must be within 1..%d, got %d", ir.MaxTimeMs, tickMs)
	}
	if err := s.runner.Load(sc); err != nil {
		return nil, err
	}
	s.Reset(seed)
	if err := s.runner.Start(); err != nil {
		return nil, err
	}

	until := s.runner.Scenario().LastT() + s.Horizon() + tickMs
	for s.runner.Now() < until {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run cancelled at %dms: %w", s.runner.Now(), err)
		}
		if err := s.runner.Tick(tickMs); err != nil {
			return nil, err
		}
	}

	result := &RunResult{
		Scenario: s.runner.Scenario(),
		Warnings: s.runner.Warnings(),
		Seed:     seed,
		TickMs:   tickMs,
		EndMs:    s.runner.Now(),
		Lanes:    make([]LaneResult, len(s.lanes)),
	}
	for i, l := range s.lanes {
		result.Lanes[i] = LaneResult{
			Name:   l.Name(),
			Kind:   l.Engine().Kind(),
			Engine: l.Engine(),
			Events: l.Events(),
		}
	}
	return result, nil
}

// Horizon returns the largest engine horizon.
func (s *Session) Horizon() int64 {
	var h int64
	for _, e := range s.runner.engines {
		h = max(h, e.Horizon())
	}
	return h
}
