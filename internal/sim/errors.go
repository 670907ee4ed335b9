package sim

import "errors"

var (
	// ErrInvalidTransition is returned for a state change the runner does not allow.
	ErrInvalidTransition = errors.New("invalid runner state transition")

	// ErrNoScenario is returned when starting a runner with nothing loaded.
	ErrNoScenario = errors.New("no scenario loaded")

	// ErrNegativeTick is returned when Tick is given a negative delta.
	ErrNegativeTick = errors.New("tick delta must be non-negative")
)
