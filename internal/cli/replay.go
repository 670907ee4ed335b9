package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cdclab/internal/harness"
	"github.com/roach88/cdclab/internal/sim"
	"github.com/roach88/cdclab/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string              `json:"run_id"`
	ScenarioID    string              `json:"scenario_id"`
	Seed          uint64              `json:"seed"`
	Lanes         int                 `json:"lanes"`
	Deterministic bool                `json:"deterministic"`
	Drift         []harness.LaneDrift `json:"drift,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded runs and verify determinism",
		Long: `Re-run recorded runs with their stored scenario, seed, tick and lane
options, and check that every lane reproduces its recorded stream digest.

Exit codes:
  0 - All runs reproduced identically
  1 - Determinism verification failed (stream drift detected)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  cdclab replay --db ./runs.db
  cdclab replay --db ./runs.db --run 0192f0c4-...
  cdclab replay --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}

	logger := opts.logger(cmd.ErrOrStderr())
	for _, id := range runIDs {
		rr, err := harness.Replay(ctx, st, id, sim.WithLogger(logger))
		if errors.Is(err, store.ErrRunNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}

		result.Runs = append(result.Runs, ReplayRunResult{
			RunID:         rr.Run.ID,
			ScenarioID:    rr.Run.ScenarioID,
			Seed:          rr.Run.Seed,
			Lanes:         len(rr.Run.Lanes),
			Deterministic: rr.Identical(),
			Drift:         rr.Drift,
		})
		if !rr.Identical() {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(opts.newFormatter(cmd), result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := f.encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s\n", status, run.RunID)
		if verbose {
			fmt.Fprintf(w, "  Scenario: %s\n", run.ScenarioID)
			fmt.Fprintf(w, "  Seed: %d\n", run.Seed)
		}
		fmt.Fprintf(w, "  Lanes: %d\n", run.Lanes)

		for _, d := range run.Drift {
			fmt.Fprintf(w, "  Drift in lane %s: stored %s, replayed %s\n", d.Lane, d.Stored, d.Replayed)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
