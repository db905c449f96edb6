package store

import (
	"context"
	"fmt"

	"github.com/roach88/runtrace/internal/ir"
	"github.com/roach88/runtrace/internal/trace"
)

// ReplayRun rebuilds the trace of a stored run.
func (s *Store) ReplayRun(ctx context.Context, runID string, opts ...trace.Option) (*trace.Observer, error) {
	if _, err := s.ReadRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	o, err := trace.FromRun(events, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}
	return o, nil
}

// ReplayResult reports whether a stored run replays deterministically.
type ReplayResult struct {
	RunID  string
	Events int

	// TraceDigest is the digest of the replayed snapshot encoding. Empty
	// when the recording never started a graph.
	TraceDigest string

	// Deterministic is true when two independent replays agree.
	Deterministic bool

	// RecordingIntact is true when the stored events still match the digest
	// written by FinishRun. Always true for runs that are not finished.
	RecordingIntact bool
}

// VerifyRun replays a run twice and compares the results, and checks the
// events against the stored recording digest.
func (s *Store) VerifyRun(ctx context.Context, runID string) (ReplayResult, error) {
	result := ReplayResult{RunID: runID, RecordingIntact: true}

	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return result, fmt.Errorf("verify: %w", err)
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return result, fmt.Errorf("verify: %w", err)
	}
	result.Events = len(events)

	if run.Status == RunFinished {
		digest, err := ir.RecordingDigest(events)
		if err != nil {
			return result, fmt.Errorf("verify: %w", err)
		}
		result.RecordingIntact = digest == run.Digest
	}

	first, err := replayDigest(events)
	if err != nil {
		return result, fmt.Errorf("verify %s: %w", runID, err)
	}
	second, err := replayDigest(events)
	if err != nil {
		return result, fmt.Errorf("verify %s: %w", runID, err)
	}

	result.TraceDigest = first
	result.Deterministic = first == second
	return result, nil
}

func replayDigest(events []ir.Event) (string, error) {
	o, err := trace.FromRun(events)
	if err != nil {
		return "", err
	}
	snap := o.Current()
	if snap == nil {
		return "", nil
	}
	return snap.Digest()
}
