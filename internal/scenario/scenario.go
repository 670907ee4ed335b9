package scenario

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cdclab/internal/ir"
)

// Warning describes an operation skipped during loading.
type Warning struct {
	// Index is the operation's position in the source document.
	Index int `json:"index"`

	// Reason explains why the operation was skipped.
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("ops[%d]: %s", w.Index, w.Reason)
}

// Loaded is a canonical scenario plus the warnings produced while loading it.
type Loaded struct {
	Scenario *ir.Scenario
	Warnings []Warning
}

// document mirrors the on-disk scenario format.
type document struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description,omitempty"`
	Tables      []string        `yaml:"tables,omitempty"`
	Ops         *[]rawOperation `yaml:"ops"`
}

// rawOperation keeps t and column values untyped so that type problems can
// be classified as configuration errors or malformed operations.
type rawOperation struct {
	T      any            `yaml:"t"`
	Op     string         `yaml:"op"`
	Table  string         `yaml:"table"`
	PK     map[string]any `yaml:"pk"`
	Before map[string]any `yaml:"before,omitempty"`
	After  map[string]any `yaml:"after,omitempty"`
}

// LoadFile reads, parses and canonicalizes a scenario file.
func LoadFile(path string, logger *slog.Logger) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Load(data, logger)
}

// Load parses and canonicalizes scenario bytes.
func Load(data []byte, logger *slog.Logger) (*Loaded, error) {
	s, parseWarnings, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for _, w := range parseWarnings {
		logWarning(logger, s.ID, w)
	}
	canonical, warnings := canonicalize(s, indexes(len(s.Ops), parseWarnings), logger)
	return &Loaded{
		Scenario: canonical,
		Warnings: mergeWarnings(parseWarnings, warnings),
	}, nil
}

// Parse decodes a scenario document without canonicalizing it.
//
// Operations whose column values cannot be represented (floats, non-scalar
// primary keys) are dropped and reported as warnings; every other operation
// is returned in document order for Canonicalize to judge.
func Parse(data []byte) (*ir.Scenario, []Warning, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos like "opps:")
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil, ir.NewMalformedScenarioError("", "scenario document is empty")
		}
		return nil, nil, &ir.ConfigError{
			Code:    ir.ErrCodeMalformedScenario,
			Message: fmt.Sprintf("failed to parse scenario: %v", err),
		}
	}

	if doc.Ops == nil {
		return nil, nil, ir.NewMalformedScenarioError("ops", "ops list is required")
	}

	s := &ir.Scenario{
		ID:     doc.ID,
		Tables: doc.Tables,
		Ops:    make([]ir.Operation, 0, len(*doc.Ops)),
	}

	var warnings []Warning
	for i, raw := range *doc.Ops {
		t, err := parseTime(raw.T)
		if err != nil {
			return nil, nil, ir.NewMalformedScenarioError(fmt.Sprintf("ops[%d].t", i), "%v", err)
		}

		op, reason := convertOperation(t, raw)
		if reason != "" {
			warnings = append(warnings, Warning{Index: i, Reason: reason})
			continue
		}
		s.Ops = append(s.Ops, op)
	}

	return s, warnings, nil
}

// parseTime validates a scheduled time. YAML decodes integers as int, but
// JSON-style producers may emit whole floats such as 50.0.
func parseTime(v any) (int64, error) {
	var t int64
	switch val := v.(type) {
	case nil:
		return 0, fmt.Errorf("t is required")
	case int:
		t = int64(val)
	case int64:
		t = val
	case uint64:
		if val > math.MaxInt64 {
			return 0, fmt.Errorf("t out of range: %d", val)
		}
		t = int64(val)
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.IsNaN(val) {
			return 0, fmt.Errorf("t must be an integer number of milliseconds, got %v", val)
		}
		if val > float64(ir.MaxTimeMs) {
			return 0, fmt.Errorf("t must be at most %d, got %v", ir.MaxTimeMs, val)
		}
		t = int64(val)
	default:
		return 0, fmt.Errorf("t must be numeric, got %T", v)
	}
	if t < 0 {
		return 0, fmt.Errorf("t must be non-negative, got %d", t)
	}
	if t > ir.MaxTimeMs {
		return 0, fmt.Errorf("t must be at most %d, got %d", ir.MaxTimeMs, t)
	}
	return t, nil
}

// convertOperation turns a raw operation into an ir.Operation. A non-empty
// reason means the operation cannot be represented and must be skipped.
func convertOperation(t int64, raw rawOperation) (ir.Operation, string) {
	op := ir.Operation{
		T:     t,
		Op:    ir.OpKind(raw.Op),
		Table: raw.Table,
	}

	if raw.PK != nil {
		switch id := raw.PK["id"].(type) {
		case nil:
		case string:
			op.PK.ID = id
		case int, int64, uint64:
			op.PK.ID = fmt.Sprintf("%d", id)
		default:
			return ir.Operation{}, fmt.Sprintf("pk.id must be a string or integer, got %T", id)
		}
	}

	var err error
	if op.Before, err = ir.ObjectFromGo(raw.Before); err != nil {
		return ir.Operation{}, fmt.Sprintf("before: %v", err)
	}
	if op.After, err = ir.ObjectFromGo(raw.After); err != nil {
		return ir.Operation{}, fmt.Sprintf("after: %v", err)
	}
	return op, ""
}

// Canonicalize returns the canonical operation log for a scenario: malformed
// operations are skipped with warnings and the rest are sorted stably by t.
// The input scenario is not modified.
func Canonicalize(s *ir.Scenario, logger *slog.Logger) (*ir.Scenario, []Warning) {
	return canonicalize(s, indexes(len(s.Ops), nil), logger)
}

func canonicalize(s *ir.Scenario, docIndex []int, logger *slog.Logger) (*ir.Scenario, []Warning) {
	out := &ir.Scenario{
		ID:     s.ID,
		Tables: append([]string(nil), s.Tables...),
		Ops:    make([]ir.Operation, 0, len(s.Ops)),
	}

	var warnings []Warning
	for i, op := range s.Ops {
		if reason := malformedReason(s, op); reason != "" {
			w := Warning{Index: docIndex[i], Reason: reason}
			warnings = append(warnings, w)
			logWarning(logger, s.ID, w)
			continue
		}
		out.Ops = append(out.Ops, op)
	}

	ir.SortOperations(out.Ops)
	return out, warnings
}

// malformedReason reports why an operation cannot take part in a run.
func malformedReason(s *ir.Scenario, op ir.Operation) string {
	switch {
	case op.Table == "":
		return "table is required"
	case op.PK.ID == "":
		return "pk.id is required"
	case !ir.ValidOpKinds[op.Op]:
		return fmt.Sprintf("unknown op %q", op.Op)
	case !s.KnowsTable(op.Table):
		return fmt.Sprintf("unrecognized table %q", op.Table)
	}
	return ""
}

// indexes maps positions in a parsed scenario back to document positions,
// accounting for operations Parse already dropped.
func indexes(n int, dropped []Warning) []int {
	out := make([]int, 0, n)
	skip := make(map[int]bool, len(dropped))
	for _, w := range dropped {
		skip[w.Index] = true
	}
	for i := 0; len(out) < n; i++ {
		if !skip[i] {
			out = append(out, i)
		}
	}
	return out
}

// mergeWarnings combines warning lists in document order.
func mergeWarnings(a, b []Warning) []Warning {
	out := make([]Warning, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if j >= len(b) || (i < len(a) && a[i].Index < b[j].Index) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	return out
}

func logWarning(logger *slog.Logger, scenarioID string, w Warning) {
	if logger == nil {
		return
	}
	logger.Warn("skipping malformed operation",
		"scenario", scenarioID,
		"index", w.Index,
		"reason", w.Reason,
	)
}

// Marshal renders a scenario as YAML in the on-disk format.
func Marshal(s *ir.Scenario) ([]byte, error) {
	ops := make([]rawOperation, len(s.Ops))
	for i, op := range s.Ops {
		ops[i] = rawOperation{
			T:     op.T,
			Op:    string(op.Op),
			Table: op.Table,
			PK:    map[string]any{"id": op.PK.ID},
		}
		if op.Before != nil {
			ops[i].Before = ir.ToGo(op.Before).(map[string]any)
		}
		if op.After != nil {
			ops[i].After = ir.ToGo(op.After).(map[string]any)
		}
	}
	doc := document{ID: s.ID, Tables: s.Tables, Ops: &ops}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode scenario: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode scenario: %w", err)
	}
	return buf.Bytes(), nil
}
