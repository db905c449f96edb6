package trace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/runtrace/internal/ir"
)

// Feed is an unbounded FIFO of events between an execution engine and an
// observer. Producers never block, so engine callbacks can push from any
// goroutine while a single Follow loop applies the events in order.
type Feed struct {
	mu     sync.Mutex
	events []ir.Event
	closed bool
	signal chan struct{} // buffered, size 1; closed by Close
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{
		events: make([]ir.Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Push appends an event. It returns false once the feed is closed.
func (f *Feed) Push(e ir.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}
	f.events = append(f.events, e)

	// Non-blocking: the buffer of 1 coalesces wakeups.
	select {
	case f.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes and returns the oldest event without blocking.
func (f *Feed) TryPop() (ir.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.events) == 0 {
		return ir.Event{}, false
	}
	e := f.events[0]

	// Clear the slot so the payload maps can be collected.
	f.events[0] = ir.Event{}
	if len(f.events) == 1 {
		f.events = f.events[:0]
	} else {
		f.events = f.events[1:]
	}
	return e, true
}

// Wait returns a channel that fires when events may be available, and
// stays ready once the feed is closed.
func (f *Feed) Wait() <-chan struct{} {
	return f.signal
}

// Len returns the number of queued events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// Close marks the end of the stream. Queued events are still delivered.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	close(f.signal)
}

// drained reports whether the feed is closed and empty.
func (f *Feed) drained() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed && len(f.events) == 0
}

// Follow applies events from f until it is closed and drained, an event is
// rejected, or ctx is cancelled. Cancellation aborts the run.
func (o *Observer) Follow(ctx context.Context, f *Feed) error {
	for {
		if e, ok := f.TryPop(); ok {
			if err := o.Handle(e); err != nil {
				return err
			}
			continue
		}
		if f.drained() {
			slog.Debug("observer stopping: feed closed")
			return nil
		}

		select {
		case <-ctx.Done():
			slog.Info("observer stopping: context cancelled")
			o.Abort()
			return ctx.Err()
		case <-f.Wait():
		}
	}
}
