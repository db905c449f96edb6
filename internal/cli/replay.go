package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/runtrace/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID           string `json:"run_id"`
	Events          int    `json:"events"`
	TraceDigest     string `json:"trace_digest,omitempty"`
	Deterministic   bool   `json:"deterministic"`
	RecordingIntact bool   `json:"recording_intact"`
}

// Verified reports whether the run passed every check.
func (r ReplayRunResult) Verified() bool {
	return r.Deterministic && r.RecordingIntact
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs        []ReplayRunResult `json:"runs"`
	TotalRuns   int               `json:"total_runs"`
	AllVerified bool              `json:"all_verified"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded runs and verify determinism",
		Long: `Replay stored runs to verify that their traces are reproducible.

Each run's events are replayed twice through fresh observers and the two
trace digests are compared. Finished runs are also checked against the
recording digest written when they were recorded.

Exit codes:
  0 - All runs are deterministic and intact
  1 - Verification failed (replays differ or a recording was modified)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  runtrace replay --db ./runs.db
  runtrace replay --db ./runs.db --run nightly-1
  runtrace replay --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := ReplayResult{
		Runs:        make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:   len(runIDs),
		AllVerified: true,
	}

	if len(runIDs) == 0 {
		if out.JSON() {
			return out.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
		return nil
	}

	for _, id := range runIDs {
		out.VerboseLog("replaying %s", id)
		verify, err := st.VerifyRun(ctx, id)
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("unknown run %s", id), err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}

		r := ReplayRunResult{
			RunID:           verify.RunID,
			Events:          verify.Events,
			TraceDigest:     verify.TraceDigest,
			Deterministic:   verify.Deterministic,
			RecordingIntact: verify.RecordingIntact,
		}
		result.Runs = append(result.Runs, r)
		if !r.Verified() {
			result.AllVerified = false
		}
	}

	if out.JSON() {
		return outputReplayJSON(out, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(out *OutputFormatter, result ReplayResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	code, message := replayFailure(result)
	if code != "" {
		resp.Status = "error"
		resp.Error = &CLIError{Code: code, Message: message}
	}
	if err := out.Respond(resp); err != nil {
		return err
	}
	if code != "" {
		return NewExitError(ExitFailure, message)
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, r := range result.Runs {
		status := "✓"
		if !r.Verified() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s\n", status, r.RunID)
		fmt.Fprintf(w, "  Events: %d\n", r.Events)
		if verbose && r.TraceDigest != "" {
			fmt.Fprintf(w, "  Trace digest: %s\n", r.TraceDigest)
		}
		if !r.Deterministic {
			fmt.Fprintln(w, "  Warning: Non-deterministic replay detected!")
		}
		if !r.RecordingIntact {
			fmt.Fprintln(w, "  Warning: Recording does not match its digest!")
		}
		fmt.Fprintln(w)
	}

	if result.AllVerified {
		fmt.Fprintln(w, "✓ All runs verified")
		return nil
	}

	_, message := replayFailure(result)
	fmt.Fprintf(w, "✗ %s\n", message)
	return NewExitError(ExitFailure, message)
}

// replayFailure returns the error code and message for a failed
// verification, or empty strings when every run passed.
func replayFailure(result ReplayResult) (string, string) {
	for _, r := range result.Runs {
		if !r.Deterministic {
			return CodeNotDeterministic, "determinism verification failed"
		}
	}
	for _, r := range result.Runs {
		if !r.RecordingIntact {
			return CodeTampered, "recording verification failed"
		}
	}
	return "", ""
}
