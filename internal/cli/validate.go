package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cdclab/internal/scenario"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool               `json:"valid"`
	ScenarioID string             `json:"scenario_id,omitempty"`
	Ops        int                `json:"ops"`
	Lanes      []string           `json:"lanes,omitempty"`
	Skipped    []scenario.Warning `json:"skipped,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Validate a scenario and lab configuration without running",
		Long: `Load a scenario file and, optionally, a CUE lab configuration, and report
errors without running the simulation.

Skipped operations (unknown op, missing table or primary key) are listed
but do not make the scenario invalid. Engine options are checked by
constructing every configured lane.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE lab configuration file")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	result := ValidationResult{Valid: true}

	loaded, err := scenario.LoadFile(path, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("scenario: %v", err))
	} else {
		result.ScenarioID = loaded.Scenario.ID
		result.Ops = len(loaded.Scenario.Ops)
		result.Skipped = loaded.Warnings
	}

	lab, err := loadLab(opts.Config)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("config: %v", err))
	} else if _, err := lab.NewSession(); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("config: %v", err))
	} else {
		for _, lane := range lab.Lanes {
			result.Lanes = append(result.Lanes, lane.Name)
		}
	}

	result.Valid = len(result.Errors) == 0

	if opts.Format == "json" {
		return outputValidateJSON(opts.newFormatter(cmd), result)
	}
	return outputValidateText(cmd.OutOrStdout(), result)
}

func outputValidateJSON(f *OutputFormatter, result ValidationResult) error {
	if result.Valid {
		return f.Success(result)
	}
	if err := f.Error(ErrCodeScenario, "validation failed", result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "validation failed")
}

func outputValidateText(w io.Writer, result ValidationResult) error {
	for _, s := range result.Skipped {
		fmt.Fprintf(w, "Skipped %s\n", s)
	}

	if !result.Valid {
		fmt.Fprintf(w, "✗ Validation failed with %d error(s):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	fmt.Fprintf(w, "✓ Scenario %s is valid (%d ops, %d skipped, lanes: %v)\n",
		result.ScenarioID, result.Ops, len(result.Skipped), result.Lanes)
	return nil
}
