package store

import (
	"database/sql"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/cdclab/internal/capture"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/verify"
)

// jsonAPI decodes stored documents. UseNumber keeps integers out of float64
// so engine options and row values survive a round trip exactly.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// marshalRow converts a row image to canonical JSON TEXT, or NULL for nil.
func marshalRow(row ir.IRObject) (sql.NullString, error) {
	if row == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(row)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal row: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalRow parses a stored row image. NULL yields nil.
func unmarshalRow(data sql.NullString) (ir.IRObject, error) {
	if !data.Valid {
		return nil, nil
	}
	var row ir.IRObject
	if err := jsonAPI.UnmarshalFromString(data.String, &row); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	return row, nil
}

// marshalScenario stores the canonical scenario so replays see the exact
// operation log the run observed.
func marshalScenario(s *ir.Scenario) (string, error) {
	data, err := ir.MarshalScenarioCanonical(s)
	if err != nil {
		return "", fmt.Errorf("marshal scenario: %w", err)
	}
	return string(data), nil
}

func unmarshalScenario(data string) (*ir.Scenario, error) {
	var s ir.Scenario
	if err := jsonAPI.UnmarshalFromString(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal scenario: %w", err)
	}
	if s.Ops == nil {
		s.Ops = []ir.Operation{}
	}
	return &s, nil
}

func marshalOptions(opts capture.Options) (string, error) {
	if opts == nil {
		opts = capture.Options{}
	}
	data, err := jsonAPI.MarshalToString(opts)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return data, nil
}

func unmarshalOptions(data string) (capture.Options, error) {
	opts := capture.Options{}
	if err := jsonAPI.UnmarshalFromString(data, &opts); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return opts, nil
}

func marshalReport(r verify.Report) (string, error) {
	data, err := jsonAPI.MarshalToString(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return data, nil
}

func unmarshalReport(data string) (verify.Report, error) {
	var r verify.Report
	if err := jsonAPI.UnmarshalFromString(data, &r); err != nil {
		return verify.Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return r, nil
}
