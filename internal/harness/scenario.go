package harness

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/config"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/scenario"
)

// DefaultTickMs is the tick used when a scenario does not set tick_ms.
const DefaultTickMs = 10

// Scenario defines a conformance test scenario.
// Scenarios drive an operation log through a set of lanes and assert on
// the captured streams and verifier reports.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Seed   uint64 `yaml:"seed,omitempty"`
	TickMs int64  `yaml:"tick_ms,omitempty"`

	// Lanes to run. If empty, the default polling, trigger and log lanes
	// are used.
	Lanes []LaneSpec `yaml:"lanes,omitempty"`

	// Inline is the operation log document, in scenario file format.
	Inline yaml.Node `yaml:"scenario,omitempty"`

	// File names an operation log document instead of Inline.
	// Relative paths are resolved against the harness file's directory.
	File string `yaml:"scenario_file,omitempty"`

	// Assertions validate the captured streams.
	Assertions []Assertion `yaml:"assertions"`

	// Source is the decoded operation log. LoadScenario fills it from
	// Inline or File; programmatic scenarios set it directly.
	Source *ir.Scenario `yaml:"-"`

	// SourceWarnings lists operations skipped while decoding Source.
	SourceWarnings []scenario.Warning `yaml:"-"`
}

// LaneSpec declares one lane.
type LaneSpec struct {
	Name    string         `yaml:"name"`
	Kind    string         `yaml:"kind"`
	Options map[string]any `yaml:"options,omitempty"`
}

// Assertion validates a lane's stream or report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "totals": Check a lane's missing/extra/ordering counts
	// - "max_lag": Check a lane's maximum lag
	// - "event_count": Check how many events a lane emitted
	// - "timestamps": Check a lane's exact event timestamps
	// - "same_deletes": Check lanes captured equally many deletes
	// - "deterministic": Replay the run and compare digests
	Type string `yaml:"type"`

	// Lane is the lane under test (all types except same_deletes and
	// deterministic).
	Lane string `yaml:"lane,omitempty"`

	// Lanes are compared by same_deletes.
	Lanes []string `yaml:"lanes,omitempty"`

	// Missing, Extra and Ordering are exact expectations for totals.
	// Unset fields are not checked.
	Missing  *int `yaml:"missing,omitempty"`
	Extra    *int `yaml:"extra,omitempty"`
	Ordering *int `yaml:"ordering,omitempty"`

	// Max is the lag bound for max_lag.
	Max *int64 `yaml:"max,omitempty"`

	// Op restricts event_count to one event class (c, u or d).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of events for event_count.
	Count *int `yaml:"count,omitempty"`

	// Timestamps are the expected ts_ms values for timestamps.
	Timestamps []int64 `yaml:"timestamps,omitempty"`
}

// Assertion type constants.
const (
	AssertTotals        = "totals"
	AssertMaxLag        = "max_lag"
	AssertEventCount    = "event_count"
	AssertTimestamps    = "timestamps"
	AssertSameDeletes   = "same_deletes"
	AssertDeterministic = "deterministic"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving scenario_file relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos like "assertion:")
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if s.File != "" && !filepath.IsAbs(s.File) && basePath != "" {
		s.File = filepath.Join(basePath, s.File)
	}

	if err := s.decodeSource(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &s, nil
}

// decodeSource fills Source from File or Inline.
func (s *Scenario) decodeSource() error {
	hasInline := s.Inline.Kind != 0
	switch {
	case hasInline && s.File != "":
		return fmt.Errorf("scenario and scenario_file are mutually exclusive")
	case s.File != "":
		loaded, err := scenario.LoadFile(s.File, slog.New(slog.DiscardHandler))
		if err != nil {
			return fmt.Errorf("scenario_file: %w", err)
		}
		s.Source, s.SourceWarnings = loaded.Scenario, loaded.Warnings
	case hasInline:
		data, err := yaml.Marshal(&s.Inline)
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		loaded, err := scenario.Load(data, slog.New(slog.DiscardHandler))
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		s.Source, s.SourceWarnings = loaded.Scenario, loaded.Warnings
	}
	return nil
}

// lab returns the lanes, seed and tick the scenario runs with.
func (s *Scenario) lab() (*config.Lab, error) {
	lab := &config.Lab{Seed: s.Seed, TickMs: s.TickMs}
	if lab.TickMs == 0 {
		lab.TickMs = DefaultTickMs
	}
	if len(s.Lanes) == 0 {
		lab.Lanes = config.DefaultLanes()
		return lab, nil
	}
	for i, l := range s.Lanes {
		kind, err := capture.ParseKind(l.Kind)
		if err != nil {
			return nil, fmt.Errorf("lanes[%d]: %w", i, err)
		}
		opts := capture.Options{}
		for k, v := range l.Options {
			opts[k] = v
		}
		lab.Lanes = append(lab.Lanes, config.Lane{Name: l.Name, Kind: kind, Options: opts})
	}
	return lab, nil
}

// laneNames returns the names of the lanes the scenario runs.
func (s *Scenario) laneNames() map[string]bool {
	names := make(map[string]bool)
	if len(s.Lanes) == 0 {
		for _, l := range config.DefaultLanes() {
			names[l.Name] = true
		}
		return names
	}
	for _, l := range s.Lanes {
		names[l.Name] = true
	}
	return names
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Source == nil {
		return fmt.Errorf("scenario or scenario_file is required")
	}

	if s.TickMs < 0 {
		return fmt.Errorf("tick_ms must be positive, got %d", s.TickMs)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Lanes))
	for i, lane := range s.Lanes {
		if lane.Name == "" {
			return fmt.Errorf("lanes[%d]: name is required", i)
		}
		if seen[lane.Name] {
			return fmt.Errorf("lanes[%d]: duplicate lane name %q", i, lane.Name)
		}
		seen[lane.Name] = true
		if _, err := capture.ParseKind(lane.Kind); err != nil {
			return fmt.Errorf("lanes[%d]: %w", i, err)
		}
	}

	lanes := s.laneNames()
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, lanes); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, lanes map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTotals, AssertMaxLag, AssertEventCount, AssertTimestamps:
		if a.Lane == "" {
			return fmt.Errorf("assertions[%d]: lane is required for %s", index, a.Type)
		}
		if !lanes[a.Lane] {
			return fmt.Errorf("assertions[%d]: unknown lane %q", index, a.Lane)
		}
	}

	switch a.Type {
	case AssertTotals:
		if a.Missing == nil && a.Extra == nil && a.Ordering == nil {
			return fmt.Errorf("assertions[%d]: totals needs missing, extra or ordering", index)
		}
	case AssertMaxLag:
		if a.Max == nil {
			return fmt.Errorf("assertions[%d]: max is required for max_lag", index)
		}
	case AssertEventCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
		switch ir.EventOp(a.Op) {
		case "", ir.EventCreate, ir.EventUpdate, ir.EventDelete:
		default:
			return fmt.Errorf("assertions[%d]: op must be c, u or d, got %q", index, a.Op)
		}
	case AssertTimestamps:
		if a.Timestamps == nil {
			return fmt.Errorf("assertions[%d]: timestamps list is required", index)
		}
	case AssertSameDeletes:
		if len(a.Lanes) < 2 {
			return fmt.Errorf("assertions[%d]: same_deletes needs at least two lanes", index)
		}
		for _, name := range a.Lanes {
			if !lanes[name] {
				return fmt.Errorf("assertions[%d]: unknown lane %q", index, name)
			}
		}
	case AssertDeterministic:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
