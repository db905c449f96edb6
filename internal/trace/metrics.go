package trace

import "github.com/roach88/runtrace/internal/ir"

// Metrics receives observer counters. Implementations must be cheap; they
// are called synchronously from the event handlers.
type Metrics interface {
	// EventHandled is called once per accepted event.
	EventHandled(kind ir.Kind)

	// EventRejected is called when an event produced an integration error.
	EventRejected(kind ir.Kind, code ErrorCode)

	// LogChanged is called with the new log length after a structural change.
	LogChanged(length int)

	// RunStopped is called when an error event or abort stops the run.
	RunStopped(reason string)
}

type noopMetrics struct{}

func (noopMetrics) EventHandled(ir.Kind)             {}
func (noopMetrics) EventRejected(ir.Kind, ErrorCode) {}
func (noopMetrics) LogChanged(int)                   {}
func (noopMetrics) RunStopped(string)                {}
