package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/verify"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]int{"events": 3})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"lane": "trigger"}
	err := formatter.Error(ErrCodeConfig, "missing option extract_interval_ms", details)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
	assert.Equal(t, "missing option extract_interval_ms", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			err := formatter.Error(ErrCodeScenario, "scenario has no ops", map[string]string{"file": "s.yaml"})
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Error [E_SCENARIO]: scenario has no ops")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	formatter.VerboseLog("simulating %s", "lifecycle")

	assert.Empty(t, out.String())
	assert.Equal(t, "simulating lifecycle\n", errOut.String())

	formatter.Verbose = false
	formatter.VerboseLog("dropped")
	assert.NotContains(t, errOut.String(), "dropped")
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit error", NewExitError(ExitCommandError, "database not found"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitFailure, "drift")), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to record run", inner)

	assert.Equal(t, "failed to record run: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "validation failed", NewExitError(ExitFailure, "validation failed").Error())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeScenario, errorCode(ir.NewMalformedScenarioError("ops", "required")))
	assert.Equal(t, ErrCodeConfig, errorCode(fmt.Errorf("lane: %w", ir.NewMissingOptionError("poll_interval_ms"))))
	assert.Equal(t, ErrCodeGeneric, errorCode(errors.New("read failed")))
}

func TestWriteLaneTable(t *testing.T) {
	buf := &bytes.Buffer{}
	writeLaneTable(buf, []LaneSummary{{
		Name:   "polling",
		Kind:   "polling",
		Events: 1,
		Report: verify.Report{
			Totals: verify.Totals{Missing: 2},
			Lag:    verify.LagStats{P50: 150, P95: 190, P99: 190, Max: 190},
		},
	}})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "MISSING")
	assert.Regexp(t, `^polling\s+polling\s+1\s+2\s+0\s+0\s+150/190/190/190$`, string(lines[1]))
}

func TestWriteStream(t *testing.T) {
	buf := &bytes.Buffer{}
	writeStream(buf, "trigger", []ir.CapturedEvent{
		{Seq: 1, Op: ir.EventCreate, TsMs: 6, Table: "orders", PK: "R-1"},
	})
	writeStream(buf, "polling", nil)

	assert.Equal(t,
		"=== trigger ===\n  [1] c orders/R-1 @6ms\n=== polling ===\n  (no events)\n",
		buf.String())
}
