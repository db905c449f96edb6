package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/testutil"
)

// createTestStore opens a store in a fresh temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleRun is a short run: one input step whose value flows to an output
// step.
func sampleRun() (*ir.GraphDescriptor, []ir.Event) {
	graph := &ir.GraphDescriptor{
		Title: "Echo",
		Nodes: []ir.NodeDescriptor{
			{ID: "ask", Type: "input"},
			{ID: "show", Type: "output"},
		},
		Edges: []ir.Edge{
			{From: "ask", Out: "text", To: "show", In: "text"},
		},
	}
	ask := testutil.Node("ask", "input")
	show := testutil.Node("show", "output")

	start := testutil.GraphStart(1)
	start.Graph = graph

	askEnd := testutil.NodeEnd(5, ask, ir.Object{"text": ir.String("hello")}, 0)
	askEnd.Opportunities = []ir.Edge{graph.Edges[0]}

	return graph, []ir.Event{
		start,
		testutil.Signal(ir.KindStart, 1),
		testutil.NodeStart(2, ask, 0),
		testutil.Input(3, ask, ir.Object{"schema": ir.Object{"type": ir.String("object")}}, false, 0),
		testutil.Signal(ir.KindPause, 3),
		testutil.Resume(4, ir.Object{"text": ir.String("hello")}),
		askEnd,
		testutil.EdgeEvent(5, graph.Edges[0], ir.Object{"text": ir.String("hello")}, 1),
		testutil.NodeStart(6, show, 1),
		testutil.Output(7, show, ir.Object{"text": ir.String("hello")}, false, 1),
		testutil.NodeEnd(8, show, ir.Object{}, 1),
		testutil.GraphEnd(9),
		testutil.Signal(ir.KindEnd, 9),
	}
}
