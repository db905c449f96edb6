// Package trace rebuilds a run trace from a stream of execution events.
//
// An Observer consumes events one at a time (graphstart, nodestart, input,
// output, edge, error, lifecycle signals) and maintains:
//   - the Trace Log: an ordered sequence of StepEntry, EdgeEntry and
//     ErrorEntry values that interleaves "what ran" with "what flowed"
//   - an EdgeValueStore with the values transmitted across each edge
//   - per-step nested activity and can-run state
//
// Readers call Current() to obtain an immutable Snapshot. Every state change
// supersedes the cached snapshot instead of mutating it, so a snapshot handed
// out earlier stays valid and may be read from any goroutine.
//
// FromRun replays a recorded event sequence through the same handlers and
// produces a trace structurally equal to the one captured live.
//
// Thread-safety: an Observer is owned by a single producer. Handle, Abort and
// the other mutating methods must not be called concurrently.
package trace
