package trace

import (
	"maps"
	"slices"

	"github.com/roach88/runtrace/internal/ir"
)

// ActivityKind classifies nested activity within a step.
type ActivityKind string

const (
	ActivityInput  ActivityKind = "input"
	ActivityOutput ActivityKind = "output"
	ActivityNode   ActivityKind = "node"
	ActivityGraph  ActivityKind = "graph"
	ActivityError  ActivityKind = "error"
)

// ActivityItem is one piece of nested activity recorded against a top-level
// step.
type ActivityItem struct {
	Kind        ActivityKind
	Path        ir.Path
	Description string

	// RunPath is the path of the nested run a graph item stands for.
	RunPath ir.Path
}

// Object returns the canonical view of the item.
func (a ActivityItem) Object() ir.Object {
	obj := ir.Object{
		"kind":        ir.String(a.Kind),
		"path":        a.Path.Array(),
		"description": ir.String(a.Description),
	}
	if a.RunPath != nil {
		obj["runPath"] = a.RunPath.Array()
	}
	return obj
}

func activityArray(items []ActivityItem) ir.Array {
	arr := make(ir.Array, len(items))
	for i, item := range items {
		arr[i] = item.Object()
	}
	return arr
}

// activityKindOf maps a nested step type to its activity kind.
func activityKindOf(stepType string) ActivityKind {
	switch stepType {
	case "input":
		return ActivityInput
	case "output":
		return ActivityOutput
	default:
		return ActivityNode
	}
}

// NodeActivityTracker maps step ids to their nested activity history.
// Like EdgeValueStore it is persistent: updates return a new tracker.
type NodeActivityTracker struct {
	items map[string][]ActivityItem
}

// NewNodeActivityTracker returns an empty tracker.
func NewNodeActivityTracker() *NodeActivityTracker {
	return &NodeActivityTracker{items: map[string][]ActivityItem{}}
}

// With returns a tracker where stepID's history is items.
func (t *NodeActivityTracker) With(stepID string, items []ActivityItem) *NodeActivityTracker {
	next := t.clone()
	next.items[stepID] = slices.Clone(items)
	return next
}

// Without returns a tracker with stepID's history removed.
func (t *NodeActivityTracker) Without(stepID string) *NodeActivityTracker {
	if _, ok := t.items[stepID]; !ok {
		return t
	}
	next := t.clone()
	delete(next.items, stepID)
	return next
}

// For returns stepID's history.
func (t *NodeActivityTracker) For(stepID string) ([]ActivityItem, bool) {
	if t == nil {
		return nil, false
	}
	items, ok := t.items[stepID]
	return items, ok
}

func (t *NodeActivityTracker) clone() *NodeActivityTracker {
	return &NodeActivityTracker{items: maps.Clone(t.items)}
}

// NodeInformation answers per-step questions about a run for callers that
// decide what can be resumed. It is a read-only view.
type NodeInformation struct {
	activity map[string][]ActivityItem
	canRun   map[string]bool
}

// NewNodeInformation composes the given mappings. The maps are copied.
func NewNodeInformation(activity map[string][]ActivityItem, canRun map[string]bool) NodeInformation {
	return NodeInformation{
		activity: maps.Clone(activity),
		canRun:   maps.Clone(canRun),
	}
}

// ActivityFor returns the nested activity recorded for stepID.
func (n NodeInformation) ActivityFor(stepID string) ([]ActivityItem, bool) {
	items, ok := n.activity[stepID]
	return items, ok
}

// CanRun reports whether stepID was reached in this run. Unknown steps
// cannot run.
func (n NodeInformation) CanRun(stepID string) bool {
	return n.canRun[stepID]
}

// StepIDs returns the ids of steps with recorded activity, sorted.
func (n NodeInformation) StepIDs() []string {
	return slices.Sorted(maps.Keys(n.activity))
}
