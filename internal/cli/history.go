package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cdclab/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Scenario string // optional - one scenario only
}

// HistoryEntry is one stored run in history output.
type HistoryEntry struct {
	ID           string `json:"id"`
	Seq          int64  `json:"seq"`
	ScenarioID   string `json:"scenario_id"`
	ScenarioHash string `json:"scenario_hash"`
	Seed         uint64 `json:"seed"`
	TickMs       int64  `json:"tick_ms"`
	Lanes        int    `json:"lanes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded with simulate --db, oldest first.

Examples:
  cdclab history --db ./runs.db
  cdclab history --db ./runs.db --scenario lifecycle
  cdclab history --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only runs of this scenario id")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(context.Background(), opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	entries := make([]HistoryEntry, len(runs))
	for i, r := range runs {
		entries[i] = HistoryEntry{
			ID:           r.ID,
			Seq:          r.Seq,
			ScenarioID:   r.ScenarioID,
			ScenarioHash: r.ScenarioHash,
			Seed:         r.Seed,
			TickMs:       r.TickMs,
			Lanes:        r.Lanes,
		}
	}

	if opts.Format == "json" {
		return opts.newFormatter(cmd).Success(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-4s %-36s %-20s %-20s %6s %5s\n", "SEQ", "RUN", "SCENARIO", "SEED", "TICK", "LANES")
	for _, e := range entries {
		fmt.Fprintf(w, "%-4d %-36s %-20s %-20d %6d %5d\n", e.Seq, e.ID, e.ScenarioID, e.Seed, e.TickMs, e.Lanes)
	}
	return nil
}

// openExistingStore opens a database that must already exist.
// store.Open would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// persistRun records run in the database at path, creating it if needed.
func persistRun(ctx context.Context, path string, run *store.Run) error {
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if err := st.WriteRun(ctx, run); err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}
	return nil
}
