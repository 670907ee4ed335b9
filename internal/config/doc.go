// Package config loads lab configuration from CUE.
//
// A lab file names the lanes to run and their engine options:
//
//	seed:    42
//	tick_ms: 10
//	lanes: {
//		polling: {kind: "polling", options: {poll_interval_ms: 200}}
//		trigger: {kind: "trigger", options: {trigger_overhead_ms: 6, extract_interval_ms: 150}}
//		log:     {kind: "log", options: {fetch_interval_ms: 25}}
//	}
//
// The file is unified with the embedded #Lab schema, so unknown top-level
// fields, unknown engine kinds and float option values are rejected before
// any engine is built. Lanes keep their declaration order. A file that
// declares no lanes gets the default trio.
package config
