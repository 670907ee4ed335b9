package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cdclab/internal/config"
	"github.com/roach88/cdclab/internal/ir"
	"github.com/roach88/cdclab/internal/scenario"
	"github.com/roach88/cdclab/internal/sim"
	"github.com/roach88/cdclab/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Config   string // CUE lab file (optional)
	Seed     uint64
	TickMs   int64
	Database string // persist the run when set
	Events   bool   // print every lane's stream
}

// SimulateResult is the JSON payload of the simulate command.
type SimulateResult struct {
	RunID      string             `json:"run_id,omitempty"`
	ScenarioID string             `json:"scenario_id"`
	Seed       uint64             `json:"seed"`
	TickMs     int64              `json:"tick_ms"`
	EndMs      int64              `json:"end_ms"`
	Warnings   []scenario.Warning `json:"warnings,omitempty"`
	Lanes      []LaneSummary      `json:"lanes"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario>",
		Short: "Run a scenario through every capture lane",
		Long: `Run a scenario file through the configured capture lanes and report
missing, extra and out-of-order events plus lag statistics per lane.

Without --config the lab has three lanes: polling (200ms), trigger
(6ms overhead, 150ms extraction) and log (25ms fetch).

Exit codes:
  0 - Run completed
  1 - Invalid scenario or lab configuration
  2 - Command error (unreadable files, database errors, etc.)

Examples:
  cdclab simulate scenario.yaml
  cdclab simulate scenario.yaml --config lab.cue --seed 7
  cdclab simulate scenario.yaml --db runs.db --events
  cdclab simulate scenario.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE lab configuration file")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "random seed (overrides the lab seed)")
	cmd.Flags().Int64Var(&opts.TickMs, "tick", 0, "tick size in ms (overrides the lab tick)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to record the run in")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "print every lane's event stream")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	lab, err := loadLab(opts.Config)
	if err != nil {
		return loadFailure(formatter, ErrCodeConfig, err)
	}
	if cmd.Flags().Changed("seed") {
		lab.Seed = opts.Seed
	}
	if cmd.Flags().Changed("tick") {
		lab.TickMs = opts.TickMs
	}

	loaded, err := scenario.LoadFile(path, logger)
	if err != nil {
		return loadFailure(formatter, ErrCodeScenario, err)
	}

	session, err := lab.NewSession(sim.WithLogger(logger))
	if err != nil {
		return reportFailure(formatter, errorCode(err), err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	formatter.VerboseLog("simulating %s: %d ops, %d lanes, seed %d, tick %dms",
		loaded.Scenario.ID, len(loaded.Scenario.Ops), len(lab.Lanes), lab.Seed, lab.TickMs)

	res, err := session.RunContext(ctx, loaded.Scenario, lab.Seed, lab.TickMs)
	if err != nil {
		return WrapExitError(ExitCommandError, "simulation failed", err)
	}

	run := store.NewRun(res, lab.LaneOptions())
	if opts.Database != "" {
		if err := persistRun(ctx, opts.Database, run); err != nil {
			return err
		}
		formatter.VerboseLog("recorded run %s (#%d) in %s", run.ID, run.Seq, opts.Database)
	}

	result := SimulateResult{
		RunID:      run.ID,
		ScenarioID: res.Scenario.ID,
		Seed:       res.Seed,
		TickMs:     res.TickMs,
		EndMs:      res.EndMs,
		Warnings:   append(loaded.Warnings, res.Warnings...),
		Lanes:      make([]LaneSummary, len(run.Lanes)),
	}
	for i, lane := range run.Lanes {
		hash := lane.StreamHash
		if hash == "" {
			if hash, err = ir.StreamDigest(lane.Events); err != nil {
				return WrapExitError(ExitCommandError, "failed to hash lane stream", err)
			}
		}
		result.Lanes[i] = LaneSummary{
			Name:       lane.Name,
			Kind:       string(lane.Kind),
			Events:     len(lane.Events),
			StreamHash: hash,
			Report:     lane.Report,
		}
		if opts.Events {
			result.Lanes[i].Stream = lane.Events
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputSimulateText(cmd, result, opts.Events)
	return nil
}

func outputSimulateText(cmd *cobra.Command, result SimulateResult, showEvents bool) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Scenario %s: seed %d, tick %dms, ended at %dms\n",
		result.ScenarioID, result.Seed, result.TickMs, result.EndMs)
	if result.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", result.RunID)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "Skipped %s\n", warn)
	}
	fmt.Fprintln(w)

	writeLaneTable(w, result.Lanes)

	if !showEvents {
		return
	}
	for _, lane := range result.Lanes {
		fmt.Fprintln(w)
		writeStream(w, lane.Name, lane.Stream)
	}
}

// loadLab reads a CUE lab file, or returns the default lab for an empty path.
func loadLab(path string) (*config.Lab, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// loadFailure reports rejected input as exit 1 and unreadable files as exit 2.
func loadFailure(f *OutputFormatter, code string, err error) error {
	var labErr *config.Error
	if ir.IsConfigError(err) || errors.As(err, &labErr) {
		return reportFailure(f, code, err)
	}
	return WrapExitError(ExitCommandError, "failed to load input", err)
}

// reportFailure writes err through the formatter and returns an exit-1 error.
func reportFailure(f *OutputFormatter, code string, err error) error {
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	return NewExitError(ExitFailure, err.Error())
}
