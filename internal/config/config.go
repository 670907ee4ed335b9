package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/sim"
)

//go:embed schema.cue
var schemaSource string

// Lane is one configured capture lane.
type Lane struct {
	Name    string          `json:"name" yaml:"name"`
	Kind    capture.Kind    `json:"kind" yaml:"kind"`
	Options capture.Options `json:"options" yaml:"options"`
}

// Lab is a complete simulation setup.
type Lab struct {
	Seed   uint64 `json:"seed"`
	TickMs int64  `json:"tick_ms"`
	Lanes  []Lane `json:"lanes"`
}

// Default returns the canonical three-lane lab.
func Default() *Lab {
	return &Lab{
		Seed:   0,
		TickMs: 10,
		Lanes:  DefaultLanes(),
	}
}

// DefaultLanes returns polling, trigger and log lanes with the reference
// cadences.
func DefaultLanes() []Lane {
	return []Lane{
		{Name: "polling", Kind: capture.KindPolling, Options: capture.Options{
			capture.OptPollInterval: int64(200),
		}},
		{Name: "trigger", Kind: capture.KindTrigger, Options: capture.Options{
			capture.OptTriggerOverhead: int64(6),
			capture.OptExtractInterval: int64(150),
		}},
		{Name: "log", Kind: capture.KindLog, Options: capture.Options{
			capture.OptFetchInterval: int64(25),
		}},
	}
}

// Error is a lab configuration error with source position when available.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads and validates a CUE lab file.
func Load(path string) (*Lab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lab file: %w", err)
	}
	return Parse(data, path)
}

// Parse validates CUE lab source against the #Lab schema.
func Parse(data []byte, filename string) (*Lab, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("embedded lab schema: %w", err)
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := schema.LookupPath(cue.ParsePath("#Lab")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	lab := &Lab{}

	seed, err := v.LookupPath(cue.ParsePath("seed")).Uint64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	lab.Seed = seed

	tick, err := v.LookupPath(cue.ParsePath("tick_ms")).Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	lab.TickMs = tick

	lab.Lanes, err = parseLanes(v.LookupPath(cue.ParsePath("lanes")))
	if err != nil {
		return nil, err
	}
	if len(lab.Lanes) == 0 {
		lab.Lanes = DefaultLanes()
	}

	return lab, nil
}

// parseLanes extracts lanes in declaration order.
func parseLanes(v cue.Value) ([]Lane, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var lanes []Lane
	for iter.Next() {
		laneVal := iter.Value()
		lane := Lane{Name: iter.Label(), Options: capture.Options{}}

		kind, err := laneVal.LookupPath(cue.ParsePath("kind")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		lane.Kind = capture.Kind(kind)

		optIter, err := laneVal.LookupPath(cue.ParsePath("options")).Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for optIter.Next() {
			val, err := optionValue(optIter.Value())
			if err != nil {
				return nil, err
			}
			lane.Options[optIter.Label()] = val
		}

		lanes = append(lanes, lane)
	}
	return lanes, nil
}

// optionValue converts a concrete CUE scalar to the Go value engines expect.
func optionValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	default:
		return nil, &Error{
			Field:   v.Path().String(),
			Message: fmt.Sprintf("unsupported option kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// formatCUEError keeps the first error's position and renders every error
// with its details.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	out := &Error{
		Field:   "cue",
		Message: errors.Details(err, nil),
	}
	if positions := errors.Positions(errs[0]); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}

// Lane returns the named lane.
func (l *Lab) Lane(name string) (Lane, bool) {
	for _, lane := range l.Lanes {
		if lane.Name == name {
			return lane, true
		}
	}
	return Lane{}, false
}

// NewSession builds a session with one configured engine per lane.
func (l *Lab) NewSession(opts ...sim.RunnerOption) (*sim.Session, error) {
	s := sim.NewSession(opts...)
	seen := make(map[string]bool, len(l.Lanes))
	for _, lane := range l.Lanes {
		if seen[lane.Name] {
			return nil, fmt.Errorf("lane %q: duplicate lane name", lane.Name)
		}
		seen[lane.Name] = true

		e, err := capture.New(lane.Kind, lane.Options)
		if err != nil {
			return nil, fmt.Errorf("lane %q: %w", lane.Name, err)
		}
		s.AddLane(lane.Name, e)
	}
	return s, nil
}

// LaneOptions maps each lane name to its engine options.
func (l *Lab) LaneOptions() map[string]capture.Options {
	out := make(map[string]capture.Options, len(l.Lanes))
	for _, lane := range l.Lanes {
		out[lane.Name] = lane.Options
	}
	return out
}
