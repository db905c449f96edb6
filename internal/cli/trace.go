package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/runtrace/internal/graphspec"
	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/store"
	"github.com/roach88/runtrace/internal/telemetry"
	"github.com/roach88/runtrace/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Graph    string // optional - CUE graph whose edges are listed
	OTel     bool   // export spans to stdout (stderr with --format json)
}

// EdgeValuesLine lists the values transmitted across one edge.
type EdgeValuesLine struct {
	Edge   string          `json:"edge"`
	Values json.RawMessage `json:"values"`
}

// TraceResult holds the reconstructed trace of a run.
type TraceResult struct {
	RunID       string           `json:"run_id"`
	Title       string           `json:"title,omitempty"`
	Status      string           `json:"status"`
	CurrentStep string           `json:"current_step,omitempty"`
	Digest      string           `json:"digest"`
	EdgeValues  []EdgeValuesLine `json:"edge_values"`
	Trace       json.RawMessage  `json:"trace"`
	Spans       int              `json:"spans,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the reconstructed trace of a run",
		Long: `Replay a stored run and print its trace.

The output includes:
- Log: steps, edges and errors in trace order
- Edge values: every value transmitted across each edge
- Status and current step of the run

With --otel the trace is also exported as OpenTelemetry spans: one span for
the run and one child span per visible step.

Examples:
  runtrace trace --db ./runs.db --run nightly-1
  runtrace trace --db ./runs.db --run nightly-1 --graph ./graphs/summarize.cue
  runtrace trace --db ./runs.db --run nightly-1 --otel
  runtrace trace --db ./runs.db --run nightly-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "CUE graph file or package whose edges are listed")
	cmd.Flags().BoolVar(&opts.OTel, "otel", false, "export the trace as OpenTelemetry spans")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("unknown run %s", opts.RunID), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	obs, err := st.ReplayRun(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay run", err)
	}
	snap := obs.Current()
	if snap == nil {
		snap = trace.EntrySnapshot(run.Graph)
	}

	graph := snap.Graph
	if opts.Graph != "" {
		graph, err = graphspec.LoadGraph(opts.Graph)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load graph", err)
		}
	}

	result, err := buildTraceResult(run, snap, graph)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode trace", err)
	}

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if out.JSON() {
		if opts.OTel {
			if result.Spans, err = exportSpans(ctx, cmd.ErrOrStderr(), run.ID, snap); err != nil {
				return WrapExitError(ExitCommandError, "failed to export spans", err)
			}
		}
		return out.Respond(CLIResponse{Status: "ok", Data: result, TraceID: run.ID})
	}

	outputTraceText(cmd.OutOrStdout(), result, snap, opts.Verbose)
	if opts.OTel {
		if _, err := exportSpans(ctx, cmd.OutOrStdout(), run.ID, snap); err != nil {
			return WrapExitError(ExitCommandError, "failed to export spans", err)
		}
	}
	return nil
}

func buildTraceResult(run store.Run, snap *trace.Snapshot, graph *ir.GraphDescriptor) (TraceResult, error) {
	encoding, err := snap.Encode()
	if err != nil {
		return TraceResult{}, err
	}
	result := TraceResult{
		RunID:      run.ID,
		Title:      run.Title,
		Status:     string(snap.Status),
		Digest:     ir.TraceDigest(encoding),
		EdgeValues: []EdgeValuesLine{},
		Trace:      encoding,
	}
	if snap.CurrentStep != nil {
		result.CurrentStep = snap.CurrentStep.ID
	}

	for _, edge := range traceEdges(snap, graph) {
		values := snap.EdgeValues.ValuesFor(edge)
		arr := make(ir.Array, len(values))
		copy(arr, values)
		data, err := ir.MarshalCanonical(arr)
		if err != nil {
			return TraceResult{}, fmt.Errorf("edge %s: %w", trace.KeyOf(edge), err)
		}
		result.EdgeValues = append(result.EdgeValues, EdgeValuesLine{
			Edge:   formatEdge(edge),
			Values: data,
		})
	}
	return result, nil
}

// traceEdges returns the graph's edges, or the edges that carried values
// when no graph is known.
func traceEdges(snap *trace.Snapshot, graph *ir.GraphDescriptor) []ir.Edge {
	if graph != nil {
		return graph.Edges
	}
	keys := snap.EdgeValues.Keys()
	edges := make([]ir.Edge, len(keys))
	for i, k := range keys {
		edges[i] = ir.Edge{From: k.From, Out: k.Out, To: k.To, In: k.In, Constant: k.Constant}
	}
	return edges
}

func exportSpans(ctx context.Context, w io.Writer, runID string, snap *trace.Snapshot) (int, error) {
	provider, err := telemetry.NewStdoutProvider(w)
	if err != nil {
		return 0, err
	}
	n := telemetry.ExportSpans(ctx, provider.Tracer("runtrace"), runID, snap)
	if err := provider.Shutdown(ctx); err != nil {
		return n, fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return n, nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, snap *trace.Snapshot, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	if result.Title != "" {
		fmt.Fprintf(w, "Graph: %s\n", result.Title)
	}
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	if result.CurrentStep != "" {
		fmt.Fprintf(w, "Current step: %s\n", result.CurrentStep)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Log ===")
	if len(snap.Log) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, entry := range snap.Log {
		formatEntry(w, entry, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Edge Values ===")
	if len(result.EdgeValues) == 0 {
		fmt.Fprintln(w, "  (no edges)")
	}
	for _, line := range result.EdgeValues {
		fmt.Fprintf(w, "  %s: %s\n", line.Edge, line.Values)
	}

	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Digest: %s\n", result.Digest)
	}
}

// formatEntry writes one log entry. Hidden steps are only shown with
// --verbose.
func formatEntry(w io.Writer, entry trace.Entry, verbose bool) {
	switch e := entry.(type) {
	case *trace.StepEntry:
		if e.Hidden && !verbose {
			return
		}
		fmt.Fprintf(w, "  [%d] STEP %s %s (%s) %s\n",
			e.Seq(), e.ID, e.Title(), e.Descriptor.Type, formatSpan(e.Start, e.End))
		if e.Inputs != nil {
			fmt.Fprintf(w, "       Inputs: %s\n", formatPayload(e.Inputs))
		}
		for _, item := range e.Activity {
			fmt.Fprintf(w, "       - %s %s: %s\n", item.Kind, item.Path.ID(), item.Description)
		}

	case *trace.EdgeEntry:
		state := "pending"
		if !e.Pending() {
			state = fmt.Sprintf("@%d", *e.End)
		}
		value := "(empty)"
		if e.HasValue() {
			value = formatPayload(e.Value)
		}
		fmt.Fprintf(w, "  [%d] EDGE %s %s\n", e.Seq(), state, value)
		if verbose && e.Schema != nil {
			fmt.Fprintf(w, "       Schema: %s\n", formatPayload(e.Schema))
		}

	case *trace.ErrorEntry:
		fmt.Fprintf(w, "  [%d] ERROR %s\n", e.Seq(), trace.FormatError(e.Error))
		if len(e.Path) > 0 {
			fmt.Fprintf(w, "       At: %s\n", e.Path.ID())
		}
	}
}

func formatSpan(start int64, end *int64) string {
	if end == nil {
		return fmt.Sprintf("%d..running", start)
	}
	return fmt.Sprintf("%d..%d", start, *end)
}

// formatPayload renders a payload as canonical JSON.
func formatPayload(obj ir.Object) string {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

// formatEdge renders an edge as "from.out -> to.in"; empty ports are left
// out.
func formatEdge(e ir.Edge) string {
	s := port(e.From, e.Out) + " -> " + port(e.To, e.In)
	if e.Constant {
		s += " (constant)"
	}
	return s
}

func port(node, name string) string {
	if name == "" {
		return node
	}
	return node + "." + name
}
