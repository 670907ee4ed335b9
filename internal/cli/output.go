package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/verify"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Verification failure (scenarios failed, replay drift, invalid input)
	ExitCommandError = 2 // Command error (unreadable files, database not found, etc.)
)

// Error codes reported in JSON error responses.
const (
	ErrCodeConfig   = "E_CONFIG"   // Lab configuration or engine options rejected
	ErrCodeScenario = "E_SCENARIO" // Scenario document unusable
	ErrCodeStore    = "E_STORE"    // Run history unavailable
	ErrCodeGeneric  = "E_GENERIC"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errorCode classifies an error for JSON responses.
func errorCode(err error) string {
	switch ir.ConfigErrorCodeOf(err) {
	case "":
		return ErrCodeGeneric
	case ir.ErrCodeMalformedScenario:
		return ErrCodeScenario
	default:
		return ErrCodeConfig
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E_CONFIG", "E_SCENARIO", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// LaneSummary is one lane's row in simulate and replay output.
type LaneSummary struct {
	Name       string             `json:"name"`
	Kind       string             `json:"kind"`
	Events     int                `json:"events"`
	StreamHash string             `json:"stream_hash"`
	Report     verify.Report      `json:"report"`
	Stream     []ir.CapturedEvent `json:"stream,omitempty"`
}

// writeLaneTable prints lane summaries as an aligned table.
func writeLaneTable(w io.Writer, lanes []LaneSummary) {
	fmt.Fprintf(w, "%-12s %-8s %6s %7s %5s %8s  %s\n",
		"LANE", "KIND", "EVENTS", "MISSING", "EXTRA", "ORDERING", "LAG p50/p95/p99/max (ms)")
	for _, l := range lanes {
		lag := l.Report.Lag
		fmt.Fprintf(w, "%-12s %-8s %6d %7d %5d %8d  %d/%d/%d/%d\n",
			l.Name, l.Kind, l.Events,
			l.Report.Totals.Missing, l.Report.Totals.Extra, l.Report.Totals.Ordering,
			lag.P50, lag.P95, lag.P99, lag.Max)
	}
}

// writeStream prints a lane's events one per line.
func writeStream(w io.Writer, lane string, events []ir.CapturedEvent) {
	fmt.Fprintf(w, "=== %s ===\n", lane)
	if len(events) == 0 {
		fmt.Fprintln(w, "  (no events)")
		return
	}
	for _, ev := range events {
		fmt.Fprintf(w, "  [%d] %s %s/%s @%dms\n", ev.Seq, ev.Op, ev.Table, ev.PK, ev.TsMs)
	}
}
