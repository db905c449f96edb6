package trace

import "github.com/roach88/runtrace/internal/ir"

// PlaceOutput splices an output edge into log and returns the new log.
// The input log is never modified.
//
// Until the first bubbled input the edge goes before the last step,
// replacing an empty edge there when one exists. Once the log ends in a
// valued edge, output edges continue that sequence at the end.
//
// The returned log never holds two adjacent edges: where the edge would
// follow another edge it is either merged into an empty one, dropped, or
// separated from it by a hidden bubble step.
func PlaceOutput(log []Entry, edge *EdgeEntry) []Entry {
	n := len(log)
	if n > 0 && isValuedEdge(log[n-1]) {
		return appendEntries(log, bubbleSeparator(edge), edge)
	}

	lastStep := findLast(log, EntryStep)
	switch {
	case lastStep == -1:
		if n > 0 && isEmptyEdge(log[n-1]) {
			return replaceAt(log, n-1, edge)
		}
		if n > 0 && isEdge(log[n-1]) {
			return appendEntries(log, bubbleSeparator(edge), edge)
		}
		return appendEntries(log, edge)
	case lastStep == 0:
		return insertAt(log, 0, edge)
	}

	if isEmptyEdge(log[lastStep-1]) {
		return replaceAt(log, lastStep-1, edge)
	}
	if isEdge(log[lastStep-1]) || (lastStep+1 < n && isEdge(log[lastStep+1])) {
		return log
	}
	return insertAt(log, lastStep, edge)
}

// PlaceInput splices an input edge into log and returns the new log.
// A trailing empty edge is replaced; otherwise the edge is appended.
func PlaceInput(log []Entry, edge *EdgeEntry) []Entry {
	n := len(log)
	if n > 0 && isEmptyEdge(log[n-1]) {
		return replaceAt(log, n-1, edge)
	}
	if n > 0 && isEdge(log[n-1]) {
		return appendEntries(log, bubbleSeparator(edge), edge)
	}
	return appendEntries(log, edge)
}

// bubbleSeparator is a hidden zero-duration step that keeps two valued
// edges of a bubble sequence apart.
func bubbleSeparator(edge *EdgeEntry) *StepEntry {
	var ts int64
	if edge.End != nil {
		ts = *edge.End
	}
	end := ts
	return &StepEntry{
		ID:         "bubble",
		Descriptor: ir.NodeDescriptor{ID: StepTypeBubble, Type: StepTypeBubble},
		Start:      ts,
		End:        &end,
		Hidden:     true,
		Bubbled:    true,
		Activity:   []ActivityItem{},
	}
}

func appendEntries(log []Entry, entries ...Entry) []Entry {
	out := make([]Entry, 0, len(log)+len(entries))
	out = append(out, log...)
	return append(out, entries...)
}

func insertAt(log []Entry, i int, e Entry) []Entry {
	out := make([]Entry, 0, len(log)+1)
	out = append(out, log[:i]...)
	out = append(out, e)
	return append(out, log[i:]...)
}

func replaceAt(log []Entry, i int, e Entry) []Entry {
	out := make([]Entry, len(log))
	copy(out, log)
	out[i] = e
	return out
}
