package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/runtrace/internal/graphspec"
	"github.com/roach88/runtrace/internal/harness"
	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/store"
	"github.com/roach88/runtrace/internal/telemetry"
	"github.com/roach88/runtrace/internal/trace"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - overrides the scenario's run id
	Strict   bool   // fail when the observer rejects an event
}

// RecordResult summarizes a recorded run.
type RecordResult struct {
	RunID    string `json:"run_id"`
	Title    string `json:"title,omitempty"`
	Recorded int    `json:"recorded"`
	Rejected int    `json:"rejected"`
	Status   string `json:"status"`
	Digest   string `json:"digest"`
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <scenario.yaml>",
		Short: "Record a scripted event stream into a database",
		Long: `Feed the events of a scenario file through a live trace observer and
store every accepted event as a new run.

Events the observer rejects (for example a nodestart before any graph has
started) are logged and left out of the recording.

Exit codes:
  0 - Run recorded
  1 - Events were rejected and --strict is set
  2 - Command error (scenario or graph invalid, database error, duplicate run)

Examples:
  runtrace record ./scenarios/summarize.yaml --db ./runs.db
  runtrace record ./scenarios/summarize.yaml --db ./runs.db --run-id nightly-1
  runtrace record ./scenarios/summarize.yaml --db ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "id to record the run under (default: scenario run_id or a new UUIDv7)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit with status 1 when any event is rejected")

	return cmd
}

func runRecord(ctx context.Context, opts *RecordOptions, scenarioPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	var graph *ir.GraphDescriptor
	if path := scenario.GraphPath(); path != "" {
		graph, err = graphspec.LoadGraph(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load graph", err)
		}
	}

	events, err := harness.BuildEvents(scenario.Events, graph, trace.SystemClock{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build events", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runID := recordRunID(opts, scenario)
	if _, err := st.ReadRun(ctx, runID); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s already exists", runID))
	} else if !errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	registry := prometheus.NewRegistry()
	obs := trace.New(trace.WithMetrics(telemetry.NewPrometheusMetrics(registry)))
	obs.SetGraph(graph)

	rec, err := store.NewRecorder(ctx, st, runID, graph)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create run", err)
	}

	result := RecordResult{RunID: runID}
	if graph != nil {
		result.Title = graph.Title
	}
	for i, e := range events {
		if err := obs.Handle(e); err != nil {
			result.Rejected++
			out.VerboseLog("skipped events[%d] (%s): %v", i, e.Kind, err)
			continue
		}
		if err := rec.Record(ctx, e); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to record events[%d]", i), err)
		}
		result.Recorded++
	}

	result.Digest, err = rec.Finish(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to finish run", err)
	}
	result.Status = string(obs.Status())
	logMetrics(registry)

	if out.JSON() {
		resp := CLIResponse{Status: "ok", Data: result, TraceID: runID}
		if opts.Strict && result.Rejected > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: CodeRejected, Message: fmt.Sprintf("%d event(s) rejected", result.Rejected)}
		}
		if err := out.Respond(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Recorded run %s\n", result.RunID)
		if result.Title != "" {
			fmt.Fprintf(w, "  Graph:    %s\n", result.Title)
		}
		fmt.Fprintf(w, "  Events:   %d recorded, %d rejected\n", result.Recorded, result.Rejected)
		fmt.Fprintf(w, "  Status:   %s\n", result.Status)
		fmt.Fprintf(w, "  Digest:   %s\n", result.Digest)
	}

	if opts.Strict && result.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d event(s) rejected", result.Rejected))
	}
	return nil
}

// recordRunID picks the run id: the flag, then the scenario, then a new
// UUIDv7.
func recordRunID(opts *RecordOptions, scenario *harness.Scenario) string {
	if opts.RunID != "" {
		return opts.RunID
	}
	if scenario.RunID != "" {
		return scenario.RunID
	}
	return trace.UUIDv7Generator{}.Generate()
}

// logMetrics writes the observer metrics of a finished recording at debug
// level.
func logMetrics(registry *prometheus.Registry) {
	families, err := registry.Gather()
	if err != nil {
		slog.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			attrs := []any{"metric", mf.GetName()}
			for _, lp := range m.GetLabel() {
				attrs = append(attrs, lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				attrs = append(attrs, "value", m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				attrs = append(attrs, "value", m.GetGauge().GetValue())
			}
			slog.Debug("observer metric", attrs...)
		}
	}
}
