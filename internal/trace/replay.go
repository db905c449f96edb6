package trace

import (
	"fmt"

	"github.com/roach88/runtrace/internal/ir"
)

// FromRun replays a recorded event sequence through a fresh observer.
//
// The replaying observer runs exactly the handlers a live observer runs.
// The one difference is that the top-level graphstart also captures the
// graph description, which a live caller supplies with SetGraph.
func FromRun(events []ir.Event, opts ...Option) (*Observer, error) {
	o := New(opts...)
	o.replay = true
	for i, e := range events {
		if err := o.Handle(e); err != nil {
			return nil, fmt.Errorf("replay event %d (%s): %w", i, e.Kind, err)
		}
	}
	return o, nil
}
