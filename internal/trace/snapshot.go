package trace

import "github.com/roach88/runtrace/internal/ir"

// Status is the run status reported in snapshots.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// Snapshot is an immutable view of an observer at one instant.
// None of its fields are modified after it is handed out.
type Snapshot struct {
	Log             []Entry
	CurrentStep     *StepEntry
	EdgeValues      *EdgeValueStore
	NodeInformation NodeInformation
	Graph           *ir.GraphDescriptor
	Status          Status
}

// EntrySnapshot returns the snapshot of a run that has not started: an
// empty log, no edge values, and no step that can run.
func EntrySnapshot(graph *ir.GraphDescriptor) *Snapshot {
	return &Snapshot{
		Log:             []Entry{},
		EdgeValues:      NewEdgeValueStore(),
		NodeInformation: NewNodeInformation(nil, nil),
		Graph:           graph,
		Status:          StatusStopped,
	}
}

// Steps returns the step entries of the log, hidden ones included.
func (s *Snapshot) Steps() []*StepEntry {
	steps := []*StepEntry{}
	for _, e := range s.Log {
		if step, ok := e.(*StepEntry); ok {
			steps = append(steps, step)
		}
	}
	return steps
}

// Edges returns the edge entries of the log.
func (s *Snapshot) Edges() []*EdgeEntry {
	edges := []*EdgeEntry{}
	for _, e := range s.Log {
		if edge, ok := e.(*EdgeEntry); ok {
			edges = append(edges, edge)
		}
	}
	return edges
}

// Errors returns the error entries of the log.
func (s *Snapshot) Errors() []*ErrorEntry {
	errs := []*ErrorEntry{}
	for _, e := range s.Log {
		if ee, ok := e.(*ErrorEntry); ok {
			errs = append(errs, ee)
		}
	}
	return errs
}
