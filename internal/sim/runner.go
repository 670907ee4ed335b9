package sim

import (
	"fmt"
	"log/slog"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/scenario"
)

// State is the runner's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// TickFunc observes the virtual time after each effective tick.
type TickFunc func(nowMs int64)

// Runner feeds a scenario's operations to attached engines in lockstep.
//
// Runner is single-threaded: every engine callback runs synchronously inside
// Tick and nothing happens between calls.
type Runner struct {
	logger *slog.Logger
	clock  *Clock
	state  State
	seed   uint64

	engines   []capture.Engine
	observers []TickFunc

	scenario *ir.Scenario
	warnings []scenario.Warning
	cursor   int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger used for malformed-operation warnings and
// state transitions. The default discards all records.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates an idle runner with no engines and no scenario.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: slog.New(slog.DiscardHandler),
		clock:  NewClock(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach registers engines to receive the operation feed. Each engine is
// reset with the runner's current seed mixed with its attachment index, then
// advanced to the runner's current time so its boundaries line up with the
// shared clock. Operations delivered before the attach are not replayed.
func (r *Runner) Attach(engines ...capture.Engine) {
	for _, e := range engines {
		e.Reset(LaneSeed(r.seed, len(r.engines)))
		if now := r.clock.Now(); now > 0 {
			e.Advance(now)
		}
		r.engines = append(r.engines, e)
	}
}

// Engines returns the attached engines in attachment order.
func (r *Runner) Engines() []capture.Engine {
	return append([]capture.Engine(nil), r.engines...)
}

// Load validates a scenario and stores its canonical operation log.
//
// A nil scenario, a missing ops list or a t outside [0, ir.MaxTimeMs] is a
// configuration error. Malformed operations are skipped with warnings. Load resets the
// runner to idle with the current seed; it never emits.
func (r *Runner) Load(s *ir.Scenario) error {
	if s == nil {
		return ir.NewMalformedScenarioError("", "scenario is nil")
	}
	if s.Ops == nil {
		return ir.NewMalformedScenarioError("ops", "ops list is required")
	}
	for i, op := range s.Ops {
		if op.T < 0 {
			return ir.NewMalformedScenarioError(fmt.Sprintf("ops[%d].t", i), "t must be non-negative, got %d", op.T)
		}
		if op.T > ir.MaxTimeMs {
			return ir.NewMalformedScenarioError(fmt.Sprintf("ops[%d].t", i), "t must be at most %d, got %d", ir.MaxTimeMs, op.T)
		}
	}

	canonical, warnings := scenario.Canonicalize(s, r.logger)
	r.scenario = canonical
	r.warnings = warnings
	r.Reset(r.seed)

	r.logger.Debug("scenario loaded",
		"scenario", canonical.ID,
		"ops", len(canonical.Ops),
		"skipped", len(warnings),
	)
	return nil
}

// Scenario returns the loaded canonical scenario, or nil.
func (r *Runner) Scenario() *ir.Scenario {
	return r.scenario
}

// Operations returns the canonical operation log.
func (r *Runner) Operations() []ir.Operation {
	if r.scenario == nil {
		return nil
	}
	return r.scenario.Ops
}

// Warnings returns the operations skipped by the last Load.
func (r *Runner) Warnings() []scenario.Warning {
	return r.warnings
}

// Reset returns the runner to idle at time 0 and reseeds every engine.
func (r *Runner) Reset(seed uint64) {
	r.seed = seed
	r.state = StateIdle
	r.clock.Reset()
	r.cursor = 0
	for i, e := range r.engines {
		e.Reset(LaneSeed(seed, i))
	}
}

// OnTick registers an observer called after every effective tick.
func (r *Runner) OnTick(fn TickFunc) {
	if fn != nil {
		r.observers = append(r.observers, fn)
	}
}

// Start moves the runner to running. Starting a running runner is a no-op.
func (r *Runner) Start() error {
	if r.scenario == nil {
		return ErrNoScenario
	}
	if r.state == StateRunning {
		return nil
	}
	r.logger.Debug("runner started", "from", r.state, "now_ms", r.clock.Now())
	r.state = StateRunning
	return nil
}

// Pause freezes a running runner.
func (r *Runner) Pause() error {
	if r.state != StateRunning {
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, r.state)
	}
	r.state = StatePaused
	r.logger.Debug("runner paused", "now_ms", r.clock.Now())
	return nil
}

// maxClockMs caps the virtual clock, leaving room for engine intervals and
// overheads on top of it.
const maxClockMs = 6 * ir.MaxTimeMs

// Tick advances virtual time by deltaMs. It is a no-op unless running.
//
// Operations with t in [now, now+deltaMs) are delivered to every engine in
// one pass before any engine advances.
func (r *Runner) Tick(deltaMs int64) error {
	if deltaMs < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeTick, deltaMs)
	}
	if deltaMs > ir.MaxTimeMs {
		return fmt.Errorf("tick delta must be at most %d, got %d", ir.MaxTimeMs, deltaMs)
	}
	if r.state != StateRunning || deltaMs == 0 {
		return nil
	}

	if r.clock.Now() > maxClockMs-deltaMs {
		return fmt.Errorf("tick of %d would move the clock past %d", deltaMs, maxClockMs)
	}
	end := r.clock.Now() + deltaMs
	ops := r.scenario.Ops
	next := r.cursor
	for next < len(ops) && ops[next].T < end {
		next++
	}

	if batch := ops[r.cursor:next]; len(batch) > 0 {
		for _, e := range r.engines {
			e.Ingest(batch)
		}
	}
	r.cursor = next

	for _, e := range r.engines {
		e.Advance(deltaMs)
	}

	now := r.clock.Advance(deltaMs)
	for _, fn := range r.observers {
		fn(now)
	}
	return nil
}

// Now returns the current virtual time in milliseconds.
func (r *Runner) Now() int64 {
	return r.clock.Now()
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return r.state
}

// Seed returns the seed of the last Reset.
func (r *Runner) Seed() uint64 {
	return r.seed
}

// Drained reports whether every operation has been delivered.
func (r *Runner) Drained() bool {
	return r.scenario == nil || r.cursor >= len(r.scenario.Ops)
}

// LaneSeed derives an engine's seed from the run seed and its attachment
// index using the SplitMix64 finalizer.
func LaneSeed(seed uint64, index int) uint64 {
	z := seed + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
