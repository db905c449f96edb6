package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/testutil"
)

func TestEntrySnapshot(t *testing.T) {
	graph := &ir.GraphDescriptor{Title: "g"}
	snap := EntrySnapshot(graph)

	assert.Empty(t, snap.Log)
	assert.Nil(t, snap.CurrentStep)
	assert.Same(t, graph, snap.Graph)
	assert.Equal(t, StatusStopped, snap.Status)
	assert.Equal(t, 0, snap.EdgeValues.Len())
	assert.False(t, snap.NodeInformation.CanRun("anything"))
}

func TestSnapshot_Encode(t *testing.T) {
	o := New()
	llm := testutil.Node("generate", "llm-call")
	out := testutil.Node("result", "output")
	handleAll(t, o,
		testutil.GraphStart(1),
		testutil.NodeStart(2, llm, 0),
		testutil.NodeEnd(3, llm, nil, 0),
		testutil.Output(4, out, ir.Object{"result": ir.String("ok")}, false, 1),
		testutil.GraphEnd(5),
	)

	data, err := o.Current().Encode()
	require.NoError(t, err)

	expected := `{"currentStep":null,"edgeValues":{},"log":[` +
		`{"activity":[],"descriptor":{"id":"generate","type":"llm-call"},"end":3,"id":"e-0","kind":"step","start":2,"title":"generate"},` +
		`{"end":4,"kind":"edge","value":{"result":"ok"}},` +
		`{"activity":[],"descriptor":{"id":"result","type":"output"},"end":4,"id":"e-1","inputs":{"result":"ok"},"kind":"step","start":4,"title":"result"}` +
		`],"status":"stopped"}`
	assert.Equal(t, expected, string(data))

	digest, err := o.Current().Digest()
	require.NoError(t, err)
	assert.Len(t, digest, 64)
}

func TestSnapshot_Filters(t *testing.T) {
	end := int64(1)
	snap := &Snapshot{Log: []Entry{
		&StepEntry{seq: 1},
		&EdgeEntry{seq: 2, End: &end},
		&ErrorEntry{seq: 3},
	}}

	assert.Len(t, snap.Steps(), 1)
	assert.Len(t, snap.Edges(), 1)
	assert.Len(t, snap.Errors(), 1)
}
