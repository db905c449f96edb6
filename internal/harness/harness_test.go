package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/testutil"
	"github.com/roach88/runtrace/internal/trace"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"summarize", "llm-then-output", "ask-user", "integration-errors"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.NotEmpty(t, result.RecordingDigest)
			assert.NotEmpty(t, result.Encoding)
		})
	}
}

func TestRun_Summarize(t *testing.T) {
	result, err := Run(loadScenario(t, "summarize"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "test-run-summarize", result.RunID)
	assert.Equal(t, 17, sumCounts(result.Counts))
	assert.Equal(t, 1, result.Counts["edge"])

	snap := result.Snapshot
	require.NotNil(t, snap.Graph)
	assert.Equal(t, "Summarize", snap.Graph.Title)
	assert.Equal(t, trace.StatusStopped, snap.Status)
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func TestRun_RejectedEventsAreNotRecorded(t *testing.T) {
	result, err := Run(loadScenario(t, "integration-errors"))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, map[string]int{"graphstart": 1, "error": 1}, result.Counts)
}

func TestRun_FailingAssertions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
events:
  - kind: graphstart
  - kind: start
assertions:
  - type: status
    status: paused
  - type: error_count
    count: 2
  - type: activity
    step: e-9
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Assertion failed: status")
	assert.Contains(t, result.Errors[0], "Expected: paused")
	assert.Contains(t, result.Errors[0], "Actual: running")
	assert.Contains(t, result.Errors[1], "2 error entries")
	assert.Contains(t, result.Errors[2], "not found in log")
}

func TestRun_UnexpectedIntegrationErrorFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: early
events:
  - kind: output
    path: [0]
    node: show
    node_type: output
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "NO_GRAPH")
}

func TestRun_WrongExpectedErrorFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: mismatch
events:
  - kind: graphstart
  - kind: graphend
    expect_error: NO_GRAPH
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected error NO_GRAPH, got ""`)
}

func TestRun_NoGraphStartUsesEntrySnapshot(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: idle
events:
  - kind: pause
assertions:
  - type: log_kinds
    kinds: []
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Snapshot.Log)
}

func TestRun_MissingGraphFile(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: nograph
graph: does-not-exist.cue
events:
  - kind: graphstart
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load graph")
}

func TestBuildEvents(t *testing.T) {
	graph := &ir.GraphDescriptor{
		Nodes: []ir.NodeDescriptor{
			{ID: "ask", Type: "input", Metadata: &ir.NodeMetadata{Title: "Ask"}},
			{ID: "show", Type: "output"},
		},
		Edges: []ir.Edge{
			{From: "ask", Out: "text", To: "show", In: "text"},
		},
	}
	steps := []EventStep{
		{Kind: "graphstart"},
		{Kind: "nodeend", Path: []int{0}, Node: "ask", Outputs: map[string]any{"text": "hi", "n": 2}},
		{Kind: "nodestart", Path: []int{0, 1}, Node: "ask", NodeType: "llm-call", Timestamp: 40},
		{Kind: "error", Error: &ErrorSpec{Message: "boom", Details: map[string]any{"code": 7}}},
	}

	events, err := BuildEvents(steps, graph, testutil.NewDeterministicClock())
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, graph, events[0].Graph, "top-level graphstart carries the graph")
	assert.Equal(t, int64(1), events[0].Timestamp)

	end := events[1]
	assert.Equal(t, int64(2), end.Timestamp)
	assert.Equal(t, "Ask", end.Node.Title(), "top-level nodes resolve against the graph")
	assert.Equal(t, ir.Object{"text": ir.String("hi"), "n": ir.Int(2)}, end.Outputs)
	assert.Equal(t, graph.Edges, end.Opportunities)

	nested := events[2]
	assert.Equal(t, int64(40), nested.Timestamp)
	assert.Equal(t, "llm-call", nested.Node.Type, "nested nodes use node_type")

	assert.Equal(t, &ir.RunError{Message: "boom", Details: ir.Object{"code": ir.Int(7)}}, events[3].Error)
}

func TestBuildEvents_RejectsFloats(t *testing.T) {
	steps := []EventStep{
		{Kind: "nodeend", Path: []int{0}, Node: "llm", Outputs: map[string]any{"score": 0.5}},
	}
	_, err := BuildEvents(steps, nil, testutil.NewDeterministicClock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events[0]: outputs")
}
