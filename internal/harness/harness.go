package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/runtrace/internal/graphspec"
	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/store"
	"github.com/roach88/runtrace/internal/testutil"
	"github.com/roach88/runtrace/internal/trace"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Load the graph, if the scenario names one
// 2. Feed each event to a live observer and record the accepted ones
// 3. Replay the recording and compare it with the live trace
// 4. Evaluate assertions against the live trace
func Run(scenario *Scenario) (*Result, error) {
	var graph *ir.GraphDescriptor
	if path := scenario.GraphPath(); path != "" {
		g, err := graphspec.LoadGraph(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph: %w", err)
		}
		graph = g
	}

	clock := testutil.NewDeterministicClock()
	events, err := BuildEvents(scenario.Events, graph, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to build events: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	runID := testutil.NewFixedRunIDGenerator(scenario.RunID).Generate()
	rec, err := store.NewRecorder(ctx, st, runID, graph)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	result := NewResult()
	result.RunID = runID

	obs := trace.New(trace.WithClock(clock))
	obs.SetGraph(graph)
	for i, e := range events {
		handleErr := obs.Handle(e)
		if want := scenario.Events[i].ExpectError; want != "" {
			checkExpectedError(result, i, e, handleErr, want)
			continue
		}
		if handleErr != nil {
			result.AddError(fmt.Sprintf("events[%d] (%s): %v", i, e.Kind, handleErr))
			continue
		}
		if err := rec.Record(ctx, e); err != nil {
			return nil, fmt.Errorf("failed to record events[%d]: %w", i, err)
		}
	}

	digest, err := rec.Finish(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to finish recording: %w", err)
	}
	result.RecordingDigest = digest

	snap := obs.Current()
	if snap == nil {
		snap = trace.EntrySnapshot(graph)
	}
	result.Snapshot = snap
	if result.Encoding, err = snap.Encode(); err != nil {
		return nil, err
	}

	if err := compareReplay(ctx, st, runID, graph, result); err != nil {
		return nil, err
	}

	counts, err := st.CountEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for kind, n := range counts {
		result.Counts[string(kind)] = n
	}

	actx := &AssertionContext{Store: st, Ctx: ctx, RunID: runID}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	slog.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "entries", len(snap.Log))
	return result, nil
}

func checkExpectedError(result *Result, index int, e ir.Event, err error, want string) {
	var (
		got string
		ie  *trace.IntegrationError
	)
	if errors.As(err, &ie) {
		got = string(ie.Code)
	} else if err != nil {
		got = err.Error()
	}
	if got != want {
		result.AddError(fmt.Sprintf("events[%d] (%s): expected error %s, got %q", index, e.Kind, want, got))
	}
}

// compareReplay replays the recording and fails the result when the
// replayed trace differs from the live one.
func compareReplay(ctx context.Context, st *store.Store, runID string, graph *ir.GraphDescriptor, result *Result) error {
	replayed, err := st.ReplayRun(ctx, runID)
	if err != nil {
		result.AddError(fmt.Sprintf("replay: %v", err))
		return nil
	}

	snap := replayed.Current()
	if snap == nil {
		snap = trace.EntrySnapshot(graph)
	}
	encoding, err := snap.Encode()
	if err != nil {
		return err
	}
	if !bytes.Equal(encoding, result.Encoding) {
		result.AddError(fmt.Sprintf("replay diverged from live trace:\n  live:   %s\n  replay: %s", result.Encoding, encoding))
	}

	verify, err := st.VerifyRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to verify run: %w", err)
	}
	if !verify.Deterministic {
		result.AddError("replay is not deterministic")
	}
	if !verify.RecordingIntact {
		result.AddError("recording does not match its digest")
	}
	return nil
}

// BuildEvents converts scenario steps to event records. Timestamps left at
// zero are taken from clock.
func BuildEvents(steps []EventStep, graph *ir.GraphDescriptor, clock trace.Clock) ([]ir.Event, error) {
	events := make([]ir.Event, 0, len(steps))
	for i, step := range steps {
		e, err := buildEvent(step, graph, clock)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func buildEvent(step EventStep, graph *ir.GraphDescriptor, clock trace.Clock) (ir.Event, error) {
	e := ir.Event{
		Kind:      ir.Kind(step.Kind),
		Path:      ir.Path(step.Path),
		Timestamp: step.Timestamp,
		Bubbled:   step.Bubbled,
	}
	if e.Timestamp == 0 {
		e.Timestamp = clock.Now()
	}

	var err error
	if e.Inputs, err = ir.ObjectFromGo(step.Inputs); err != nil {
		return e, fmt.Errorf("inputs: %w", err)
	}
	if e.Outputs, err = ir.ObjectFromGo(step.Outputs); err != nil {
		return e, fmt.Errorf("outputs: %w", err)
	}
	if e.Value, err = ir.ObjectFromGo(step.Value); err != nil {
		return e, fmt.Errorf("value: %w", err)
	}

	if step.Node != "" {
		e.Node = resolveNode(step, graph)
	}
	if e.Kind == ir.KindGraphStart && len(e.Path) == 0 {
		e.Graph = graph
	}
	if step.Edge != nil {
		edge := step.Edge.Edge()
		e.Edge = &edge
		e.To = ir.Path(step.To)
	}
	if step.Error != nil {
		details, err := ir.ObjectFromGo(step.Error.Details)
		if err != nil {
			return e, fmt.Errorf("error details: %w", err)
		}
		e.Error = &ir.RunError{Message: step.Error.Message, Node: step.Error.Node, Details: details}
	}

	if e.Kind == ir.KindNodeEnd {
		e.Opportunities = opportunities(step, graph)
	}
	return e, nil
}

func resolveNode(step EventStep, graph *ir.GraphDescriptor) *ir.NodeDescriptor {
	if len(step.Path) <= 1 {
		if n, ok := graph.Node(step.Node); ok {
			n = n.Clone()
			return &n
		}
	}
	return &ir.NodeDescriptor{ID: step.Node, Type: step.NodeType}
}

// opportunities returns the edges listed on the step, or the graph's
// outgoing edges of a top-level node.
func opportunities(step EventStep, graph *ir.GraphDescriptor) []ir.Edge {
	if len(step.Opportunities) > 0 {
		edges := make([]ir.Edge, len(step.Opportunities))
		for i, spec := range step.Opportunities {
			edges[i] = spec.Edge()
		}
		return edges
	}
	if graph == nil || len(step.Path) != 1 {
		return nil
	}
	var edges []ir.Edge
	for _, edge := range graph.Edges {
		if edge.From == step.Node {
			edges = append(edges, edge)
		}
	}
	return edges
}
