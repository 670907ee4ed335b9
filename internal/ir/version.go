package ir

// Version constants for the data model and simulator.
const (
	// IRVersion is the scenario/event schema version.
	IRVersion = "1"

	// SimulatorVersion is the cdclab simulator version recorded with stored runs.
	SimulatorVersion = "0.1.0"
)
