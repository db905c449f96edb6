package testutil

import "github.com/roach88/runtrace/internal/ir"

// Node returns a node descriptor with the given id and type.
func Node(id, typ string) *ir.NodeDescriptor {
	return &ir.NodeDescriptor{ID: id, Type: typ}
}

// GraphStart returns a graphstart event. An empty path is the top-level graph.
func GraphStart(ts int64, path ...int) ir.Event {
	return ir.Event{Kind: ir.KindGraphStart, Path: ir.Path(path), Timestamp: ts}
}

// GraphEnd returns a graphend event.
func GraphEnd(ts int64, path ...int) ir.Event {
	return ir.Event{Kind: ir.KindGraphEnd, Path: ir.Path(path), Timestamp: ts}
}

// NodeStart returns a nodestart event for node at path.
func NodeStart(ts int64, node *ir.NodeDescriptor, path ...int) ir.Event {
	return ir.Event{Kind: ir.KindNodeStart, Path: ir.Path(path), Timestamp: ts, Node: node}
}

// NodeEnd returns a nodeend event for node at path.
func NodeEnd(ts int64, node *ir.NodeDescriptor, outputs ir.Object, path ...int) ir.Event {
	return ir.Event{Kind: ir.KindNodeEnd, Path: ir.Path(path), Timestamp: ts, Node: node, Outputs: outputs}
}

// Input returns an input event.
func Input(ts int64, node *ir.NodeDescriptor, inputs ir.Object, bubbled bool, path ...int) ir.Event {
	return ir.Event{Kind: ir.KindInput, Path: ir.Path(path), Timestamp: ts, Node: node, Inputs: inputs, Bubbled: bubbled}
}

// Output returns an output event.
func Output(ts int64, node *ir.NodeDescriptor, outputs ir.Object, bubbled bool, path ...int) ir.Event {
	return ir.Event{Kind: ir.KindOutput, Path: ir.Path(path), Timestamp: ts, Node: node, Outputs: outputs, Bubbled: bubbled}
}

// EdgeEvent returns an edge event delivering value to the step at to.
func EdgeEvent(ts int64, edge ir.Edge, value ir.Object, to ...int) ir.Event {
	return ir.Event{Kind: ir.KindEdge, Timestamp: ts, Edge: &edge, Value: value, To: ir.Path(to)}
}

// Error returns an error event.
func Error(ts int64, message string) ir.Event {
	return ir.Event{Kind: ir.KindError, Timestamp: ts, Error: &ir.RunError{Message: message}}
}

// Signal returns a lifecycle signal (start, pause, resume, end, abort).
func Signal(kind ir.Kind, ts int64) ir.Event {
	return ir.Event{Kind: kind, Timestamp: ts}
}

// Resume returns a resume signal carrying the values supplied by the user.
func Resume(ts int64, inputs ir.Object) ir.Event {
	return ir.Event{Kind: ir.KindResume, Timestamp: ts, Inputs: inputs}
}
