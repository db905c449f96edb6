package trace

import "time"

// Clock supplies timestamps (milliseconds) for an external abort, which
// arrives without an event.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current Unix time in milliseconds.
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// sequence stamps log entries with strictly increasing numbers.
//
// Entries are replaced (never mutated) when completed, so the sequence
// number is what identifies "the same entry" across log versions. Live and
// replayed observers issue identical sequences for identical event streams.
// Owned by one Observer, so it needs no locking.
type sequence struct {
	n int64
}

// next returns the next sequence number. The first call returns 1.
func (s *sequence) next() int64 {
	s.n++
	return s.n
}
