package trace

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runtrace/internal/ir"
)

func step(seq int64) *StepEntry {
	return &StepEntry{seq: seq, ID: "s", Descriptor: ir.NodeDescriptor{ID: "s", Type: "step"}}
}

func emptyEdge(seq int64) *EdgeEntry {
	return &EdgeEntry{seq: seq}
}

func valuedEdge(seq int64) *EdgeEntry {
	end := seq
	return &EdgeEntry{seq: seq, End: &end, Value: ir.Object{"v": ir.Int(seq)}}
}

func kinds(log []Entry) []EntryKind {
	out := make([]EntryKind, len(log))
	for i, e := range log {
		out[i] = e.Kind()
	}
	return out
}

func hasAdjacentEdges(log []Entry) bool {
	for i := 1; i < len(log); i++ {
		if isEdge(log[i-1]) && isEdge(log[i]) {
			return true
		}
	}
	return false
}

func TestPlaceOutput_EmptyLogAppends(t *testing.T) {
	edge := valuedEdge(1)
	log := PlaceOutput(nil, edge)

	require.Len(t, log, 1)
	assert.Same(t, edge, log[0])
}

func TestPlaceOutput_ReplacesPendingBeforeLastStep(t *testing.T) {
	s := step(2)
	log := []Entry{step(1), emptyEdge(3), s}
	edge := valuedEdge(4)

	out := PlaceOutput(log, edge)

	require.Len(t, out, 3)
	assert.Same(t, edge, out[1])
	assert.Same(t, s, out[2])
	// The input log is untouched.
	assert.Equal(t, int64(3), log[1].Seq())
}

func TestPlaceOutput_PendingThenStepAtStart(t *testing.T) {
	// [EdgeEntry(pending), StepEntry]: the step is not first, so the
	// pending entry is replaced in place.
	log := []Entry{emptyEdge(1), step(2)}
	edge := valuedEdge(3)

	out := PlaceOutput(log, edge)

	require.Len(t, out, 2)
	assert.Same(t, edge, out[0])
}

func TestPlaceOutput_LastStepFirstPrepends(t *testing.T) {
	log := []Entry{step(1), emptyEdge(2)}
	edge := valuedEdge(3)

	out := PlaceOutput(log, edge)

	assert.Equal(t, []EntryKind{EntryEdge, EntryStep, EntryEdge}, kinds(out))
	assert.Same(t, edge, out[0])
}

func TestPlaceOutput_InsertsBeforeLastStep(t *testing.T) {
	log := []Entry{step(1), step(2)}
	edge := valuedEdge(3)

	out := PlaceOutput(log, edge)

	assert.Equal(t, []EntryKind{EntryStep, EntryEdge, EntryStep}, kinds(out))
	assert.Same(t, edge, out[1])
}

func TestPlaceOutput_SkipsNextToExistingEdge(t *testing.T) {
	t.Run("preceding valued edge", func(t *testing.T) {
		log := []Entry{step(1), valuedEdge(2), step(3), emptyEdge(4)}
		out := PlaceOutput(log, valuedEdge(5))
		assert.Equal(t, kinds(log), kinds(out))
		assert.Equal(t, int64(2), out[1].Seq())
	})

	t.Run("succeeding edge", func(t *testing.T) {
		log := []Entry{step(1), step(2), emptyEdge(3)}
		out := PlaceOutput(log, valuedEdge(4))
		assert.Len(t, out, 3)
	})
}

func TestPlaceOutput_ContinuesBubbleSequence(t *testing.T) {
	log := []Entry{step(1), valuedEdge(2)}
	edge := valuedEdge(3)

	out := PlaceOutput(log, edge)

	assert.Equal(t, []EntryKind{EntryStep, EntryEdge, EntryStep, EntryEdge}, kinds(out))
	sep := out[2].(*StepEntry)
	assert.True(t, sep.Hidden)
	assert.Equal(t, StepTypeBubble, sep.Descriptor.Type)
	assert.Equal(t, int64(3), sep.Start)
	assert.Same(t, edge, out[3])
}

func TestPlaceOutput_NoStepReplacesTrailingEmptyEdge(t *testing.T) {
	log := []Entry{emptyEdge(1)}
	out := PlaceOutput(log, emptyEdge(2))

	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].Seq())
}

func TestPlaceInput(t *testing.T) {
	t.Run("replaces trailing empty edge", func(t *testing.T) {
		log := []Entry{step(1), emptyEdge(2)}
		edge := emptyEdge(3)
		out := PlaceInput(log, edge)
		require.Len(t, out, 2)
		assert.Same(t, edge, out[1])
		assert.Equal(t, int64(2), log[1].Seq())
	})

	t.Run("appends after step", func(t *testing.T) {
		out := PlaceInput([]Entry{step(1)}, emptyEdge(2))
		assert.Equal(t, []EntryKind{EntryStep, EntryEdge}, kinds(out))
	})

	t.Run("appends to empty log", func(t *testing.T) {
		out := PlaceInput(nil, emptyEdge(1))
		assert.Len(t, out, 1)
	})

	t.Run("separates from valued edge", func(t *testing.T) {
		out := PlaceInput([]Entry{step(1), valuedEdge(2)}, emptyEdge(3))
		assert.Equal(t, []EntryKind{EntryStep, EntryEdge, EntryStep, EntryEdge}, kinds(out))
		assert.False(t, hasAdjacentEdges(out))
	})
}

// buildLog turns generated codes into a log without adjacent edges.
// 0 = step, 1 = empty edge, 2 = valued edge, 3 = error.
func buildLog(codes []int) []Entry {
	var log []Entry
	for i, c := range codes {
		seq := int64(i + 1)
		var e Entry
		switch c {
		case 0:
			e = step(seq)
		case 1:
			e = emptyEdge(seq)
		case 2:
			e = valuedEdge(seq)
		default:
			e = &ErrorEntry{seq: seq}
		}
		if len(log) > 0 && isEdge(log[len(log)-1]) && isEdge(e) {
			continue
		}
		log = append(log, e)
	}
	return log
}

func TestPlacement_NoAdjacentEdges_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)
	codes := gen.SliceOf(gen.IntRange(0, 3))

	properties.Property("PlaceOutput keeps edges apart", prop.ForAll(
		func(codes []int, valued bool) bool {
			edge := emptyEdge(1000)
			if valued {
				edge = valuedEdge(1000)
			}
			return !hasAdjacentEdges(PlaceOutput(buildLog(codes), edge))
		},
		codes,
		gen.Bool(),
	))

	properties.Property("PlaceInput keeps edges apart", prop.ForAll(
		func(codes []int) bool {
			return !hasAdjacentEdges(PlaceInput(buildLog(codes), emptyEdge(1000)))
		},
		codes,
	))

	properties.Property("placement never modifies its input", prop.ForAll(
		func(codes []int) bool {
			log := buildLog(codes)
			before := make([]int64, len(log))
			for i, e := range log {
				before[i] = e.Seq()
			}
			PlaceOutput(log, valuedEdge(1000))
			PlaceInput(log, emptyEdge(1001))
			for i, e := range log {
				if e.Seq() != before[i] {
					return false
				}
			}
			return true
		},
		codes,
	))

	properties.TestingRun(t)
}
