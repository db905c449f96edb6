package trace

import (
	"slices"

	"github.com/roach88/runtrace/internal/ir"
)

// EntryKind discriminates the Trace Log entry variants.
type EntryKind string

const (
	EntryStep  EntryKind = "step"
	EntryEdge  EntryKind = "edge"
	EntryError EntryKind = "error"
)

// Step types synthesized by the observer.
const (
	StepTypeUser   = "user"
	StepTypeEnd    = "end"
	StepTypeBubble = "bubble"
)

// ActivityStoppedTitle titles the terminal step appended on abort.
const ActivityStoppedTitle = "Activity stopped"

// Entry is one item of the Trace Log. The set of implementations is closed:
// *StepEntry, *EdgeEntry and *ErrorEntry.
//
// Entries are immutable once they are part of a published log; the observer
// completes an entry by replacing it with an updated copy that keeps the
// same Seq.
type Entry interface {
	Kind() EntryKind
	Seq() int64
	Object() ir.Object
	isEntry()
}

// StepEntry records one step of the run.
type StepEntry struct {
	seq int64

	// ID is derived from the step's event path, e.g. "e-3".
	ID         string
	Descriptor ir.NodeDescriptor
	Start      int64

	// End is nil while the step is running. It is set at most once and is
	// never earlier than Start.
	End *int64

	Hidden  bool
	Bubbled bool

	// Inputs holds the input arguments (user steps) or the emitted values
	// (output steps).
	Inputs ir.Object

	// Previous holds the values a user supplied to this step in a prior run.
	Previous ir.Object

	Activity []ActivityItem
}

func (*StepEntry) isEntry() {}

// Kind returns EntryStep.
func (*StepEntry) Kind() EntryKind { return EntryStep }

// Seq returns the entry's sequence number.
func (s *StepEntry) Seq() int64 { return s.seq }

// Title returns the display title.
func (s *StepEntry) Title() string {
	if s.Descriptor.Type == StepTypeUser {
		return "User"
	}
	return s.Descriptor.Title()
}

// Running reports whether the step has not ended.
func (s *StepEntry) Running() bool {
	return s.End == nil
}

func (s *StepEntry) clone() *StepEntry {
	c := *s
	c.Descriptor = s.Descriptor.Clone()
	c.Activity = slices.Clone(s.Activity)
	if s.End != nil {
		end := *s.End
		c.End = &end
	}
	return &c
}

// withEnd returns a copy ended at ts. A step that already ended is
// returned unchanged.
func (s *StepEntry) withEnd(ts int64) *StepEntry {
	if s.End != nil {
		return s
	}
	c := s.clone()
	end := max(ts, s.Start)
	c.End = &end
	return c
}

// Object returns the canonical view of the entry.
func (s *StepEntry) Object() ir.Object {
	obj := ir.Object{
		"kind":       ir.String(EntryStep),
		"id":         ir.String(s.ID),
		"title":      ir.String(s.Title()),
		"descriptor": s.Descriptor.Object(),
		"start":      ir.Int(s.Start),
		"end":        optionalInt(s.End),
		"activity":   activityArray(s.Activity),
	}
	if s.Hidden {
		obj["hidden"] = ir.Bool(true)
	}
	if s.Bubbled {
		obj["bubbled"] = ir.Bool(true)
	}
	if s.Inputs != nil {
		obj["inputs"] = s.Inputs
	}
	if s.Previous != nil {
		obj["previous"] = s.Previous
	}
	return obj
}

// EdgeEntry records data flowing between steps. An entry with a nil End is
// pending; an entry with a nil Value is empty.
type EdgeEntry struct {
	seq int64

	// ID is set for input edges, from the input event's path.
	ID     string
	End    *int64
	Schema ir.Object
	Value  ir.Object

	// Bubbled marks values surfaced from a nested graph.
	Bubbled bool
}

func (*EdgeEntry) isEntry() {}

// Kind returns EntryEdge.
func (*EdgeEntry) Kind() EntryKind { return EntryEdge }

// Seq returns the entry's sequence number.
func (e *EdgeEntry) Seq() int64 { return e.seq }

// Pending reports whether the edge has not completed.
func (e *EdgeEntry) Pending() bool { return e.End == nil }

// HasValue reports whether a value (possibly an empty bundle) is attached.
func (e *EdgeEntry) HasValue() bool { return e.Value != nil }

func (e *EdgeEntry) clone() *EdgeEntry {
	c := *e
	if e.End != nil {
		end := *e.End
		c.End = &end
	}
	return &c
}

// completed returns a copy finished at ts carrying value.
func (e *EdgeEntry) completed(ts int64, schema, value ir.Object) *EdgeEntry {
	c := e.clone()
	c.End = &ts
	if schema != nil {
		c.Schema = schema
	}
	if value == nil {
		value = ir.Object{}
	}
	c.Value = value
	return c
}

// Object returns the canonical view of the entry.
func (e *EdgeEntry) Object() ir.Object {
	obj := ir.Object{
		"kind": ir.String(EntryEdge),
		"end":  optionalInt(e.End),
	}
	if e.ID != "" {
		obj["id"] = ir.String(e.ID)
	}
	if e.Schema != nil {
		obj["schema"] = e.Schema
	}
	if e.Value != nil {
		obj["value"] = e.Value
	}
	if e.Bubbled {
		obj["bubbled"] = ir.Bool(true)
	}
	return obj
}

// ErrorEntry records an error reported by the observed run.
type ErrorEntry struct {
	seq int64

	Error ir.RunError

	// Path is the deepest nested path known to have failed, or empty.
	Path ir.Path
}

func (*ErrorEntry) isEntry() {}

// Kind returns EntryError.
func (*ErrorEntry) Kind() EntryKind { return EntryError }

// Seq returns the entry's sequence number.
func (e *ErrorEntry) Seq() int64 { return e.seq }

// Object returns the canonical view of the entry.
func (e *ErrorEntry) Object() ir.Object {
	return ir.Object{
		"kind":  ir.String(EntryError),
		"error": e.Error.Object(),
		"path":  e.Path.Array(),
	}
}

func optionalInt(v *int64) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return ir.Int(*v)
}

// findLast returns the index of the last entry of kind, or -1.
func findLast(log []Entry, kind EntryKind) int {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Kind() == kind {
			return i
		}
	}
	return -1
}

// indexOf returns the index of the entry with seq, or -1.
func indexOf(log []Entry, seq int64) int {
	if seq == 0 {
		return -1
	}
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Seq() == seq {
			return i
		}
	}
	return -1
}

// isEdge reports whether e is an EdgeEntry.
func isEdge(e Entry) bool {
	return e != nil && e.Kind() == EntryEdge
}

// isEmptyEdge reports whether e is an EdgeEntry without a value.
func isEmptyEdge(e Entry) bool {
	edge, ok := e.(*EdgeEntry)
	return ok && !edge.HasValue()
}

// isValuedEdge reports whether e is an EdgeEntry carrying a value.
func isValuedEdge(e Entry) bool {
	edge, ok := e.(*EdgeEntry)
	return ok && edge.HasValue()
}
