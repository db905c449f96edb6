package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the type of a run event record.
type Kind string

// Event kinds produced by the execution engine.
const (
	KindGraphStart Kind = "graphstart"
	KindGraphEnd   Kind = "graphend"
	KindNodeStart  Kind = "nodestart"
	KindNodeEnd    Kind = "nodeend"
	KindInput      Kind = "input"
	KindOutput     Kind = "output"
	KindEdge       Kind = "edge"
	KindError      Kind = "error"
)

// Lifecycle signals. They carry no path.
const (
	KindStart  Kind = "start"
	KindPause  Kind = "pause"
	KindResume Kind = "resume"
	KindEnd    Kind = "end"
	KindAbort  Kind = "abort"
)

var validKinds = map[Kind]bool{
	KindGraphStart: true,
	KindGraphEnd:   true,
	KindNodeStart:  true,
	KindNodeEnd:    true,
	KindInput:      true,
	KindOutput:     true,
	KindEdge:       true,
	KindError:      true,
	KindStart:      true,
	KindPause:      true,
	KindResume:     true,
	KindEnd:        true,
	KindAbort:      true,
}

// Valid reports whether k is a known event kind.
func (k Kind) Valid() bool {
	return validKinds[k]
}

// IsLifecycle reports whether k is an out-of-band lifecycle signal.
func (k Kind) IsLifecycle() bool {
	switch k {
	case KindStart, KindPause, KindResume, KindEnd, KindAbort:
		return true
	}
	return false
}

// Path locates an event within the (possibly nested) run.
// The top-level graph has an empty path, its steps have length 1, steps of
// a graph invoked by a top-level step have length 2, and so on.
type Path []int

// Depth returns the nesting depth of a step path: 0 for top-level steps.
func (p Path) Depth() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// ID renders the path as a stable entry identifier, e.g. "e-1-2".
func (p Path) ID() string {
	var b strings.Builder
	b.WriteString("e")
	for _, i := range p {
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// Clone returns a copy that does not share backing storage with p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Array converts the path to a payload array.
func (p Path) Array() Array {
	arr := make(Array, len(p))
	for i, n := range p {
		arr[i] = Int(n)
	}
	return arr
}

// Event is one record of the execution stream. Which fields are set
// depends on Kind; payloads are carried through without interpretation.
type Event struct {
	Kind      Kind  `json:"kind"`
	Path      Path  `json:"path,omitempty"`
	Timestamp int64 `json:"timestamp"`

	// Node is set for nodestart, nodeend, input and output.
	Node *NodeDescriptor `json:"node,omitempty"`

	// Graph is set for graphstart.
	Graph *GraphDescriptor `json:"graph,omitempty"`

	// Inputs holds nodestart inputs, input arguments (including "schema")
	// and the values supplied on resume.
	Inputs Object `json:"inputs"`

	// Outputs holds nodeend and output values.
	Outputs Object `json:"outputs"`

	// Bubbled marks input/output surfaced from a nested graph.
	Bubbled bool `json:"bubbled,omitempty"`

	// Edge, To and Value describe an edge event. To is the path of the
	// receiving step.
	Edge  *Edge  `json:"edge,omitempty"`
	To    Path   `json:"to,omitempty"`
	Value Object `json:"value"`

	// Opportunities lists the edges a finished step fired (nodeend).
	Opportunities []Edge `json:"opportunities,omitempty"`

	// Error is set for error events.
	Error *RunError `json:"error,omitempty"`
}

// Validate checks that the fields required by the event kind are present.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	switch e.Kind {
	case KindNodeStart, KindNodeEnd, KindInput, KindOutput:
		if e.Node == nil {
			return fmt.Errorf("%s event requires a node descriptor", e.Kind)
		}
		if e.Node.ID == "" {
			return fmt.Errorf("%s event node descriptor has empty id", e.Kind)
		}
	case KindEdge:
		if e.Edge == nil {
			return fmt.Errorf("edge event requires an edge")
		}
	case KindError:
		if e.Error == nil {
			return fmt.Errorf("error event requires an error payload")
		}
	}
	if e.Kind.IsLifecycle() && len(e.Path) > 0 {
		return fmt.Errorf("%s signal must not carry a path", e.Kind)
	}
	return nil
}

// Object returns the canonical payload view of the event, used for digests.
func (e Event) Object() Object {
	obj := Object{
		"kind":      String(e.Kind),
		"path":      e.Path.Array(),
		"timestamp": Int(e.Timestamp),
	}
	if e.Node != nil {
		obj["node"] = e.Node.Object()
	}
	if e.Graph != nil {
		obj["graph"] = e.Graph.Object()
	}
	if e.Inputs != nil {
		obj["inputs"] = e.Inputs
	}
	if e.Outputs != nil {
		obj["outputs"] = e.Outputs
	}
	if e.Bubbled {
		obj["bubbled"] = Bool(true)
	}
	if e.Edge != nil {
		obj["edge"] = e.Edge.Object()
	}
	if e.To != nil {
		obj["to"] = e.To.Array()
	}
	if e.Value != nil {
		obj["value"] = e.Value
	}
	if len(e.Opportunities) > 0 {
		arr := make(Array, len(e.Opportunities))
		for i, edge := range e.Opportunities {
			arr[i] = edge.Object()
		}
		obj["opportunities"] = arr
	}
	if e.Error != nil {
		obj["error"] = e.Error.Object()
	}
	return obj
}

// RunError is the error payload reported by the observed pipeline.
type RunError struct {
	Message string `json:"message"`

	// Node is the id of the step that failed, when known.
	Node string `json:"node,omitempty"`

	Details Object `json:"details,omitempty"`
}

// Object returns the canonical payload view of the error.
func (r RunError) Object() Object {
	obj := Object{"message": String(r.Message)}
	if r.Node != "" {
		obj["node"] = String(r.Node)
	}
	if r.Details != nil {
		obj["details"] = r.Details
	}
	return obj
}
