package trace

import (
	"maps"

	"github.com/roach88/runtrace/internal/ir"
)

// RunDetails carries the values users supplied in a prior run, keyed by
// the id of the input step. An observer uses them to seed the synthetic
// user steps of the next run.
type RunDetails struct {
	inputs map[string]ir.Object
}

// NewRunDetails returns details over a copy of inputs.
func NewRunDetails(inputs map[string]ir.Object) *RunDetails {
	return &RunDetails{inputs: maps.Clone(inputs)}
}

// LastInput returns the values supplied to stepID in the prior run.
func (d *RunDetails) LastInput(stepID string) (ir.Object, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.inputs[stepID]
	return v, ok
}

// Len returns the number of steps with recorded inputs.
func (d *RunDetails) Len() int {
	if d == nil {
		return 0
	}
	return len(d.inputs)
}

// RunDetailsFromSnapshot harvests the user inputs of a finished run: each
// user step followed by a valued edge contributes that value. Later values
// for the same step win.
func RunDetailsFromSnapshot(s *Snapshot) *RunDetails {
	inputs := map[string]ir.Object{}
	if s == nil {
		return &RunDetails{inputs: inputs}
	}
	for i, e := range s.Log {
		step, ok := e.(*StepEntry)
		if !ok || step.Descriptor.Type != StepTypeUser || i+1 >= len(s.Log) {
			continue
		}
		if edge, ok := s.Log[i+1].(*EdgeEntry); ok && edge.HasValue() {
			inputs[step.Descriptor.ID] = edge.Value
		}
	}
	return &RunDetails{inputs: inputs}
}
