// Package sim drives capture engines over a scenario on a virtual clock.
//
// The Runner owns the clock and the canonical operation log. Each Tick
// delivers the operations scheduled in [now, now+delta) to every attached
// engine in a single pass, then advances every engine by delta, so no lane
// ever sees an operation before another.
//
// State machine:
//
//	idle --Start--> running --Pause--> paused --Start--> running
//	  ^                                                     |
//	  +---------------------- Reset ------------------------+
//
// Ticks outside running are no-ops. Reset destroys all engine state and
// reseeds each engine from the run seed mixed with its attachment index, so
// (scenario, seed, tick sequence) fully determines every lane's events.
//
// Lanes are caller-owned recorders of one engine's emissions; Session bundles
// a Runner with named lanes for batch runs.
package sim
