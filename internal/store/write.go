package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/runtrace/internal/ir"
)

// RunStatus is the lifecycle state of a recording.
type RunStatus string

const (
	RunRecording RunStatus = "recording"
	RunFinished  RunStatus = "finished"
)

// CreateRun inserts a run record. The graph may be nil.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) CreateRun(ctx context.Context, id string, graph *ir.GraphDescriptor) error {
	graphJSON, err := marshalGraph(graph)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	title := ""
	if graph != nil {
		title = graph.Title
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, title, graph, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, title, graphJSON, string(RunRecording))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// AppendEvent stores one event at position seq of a run.
// Uses ON CONFLICT DO NOTHING: writing the same position twice is ignored.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) AppendEvent(ctx context.Context, runID string, seq int64, e ir.Event) error {
	payload, err := marshalEvent(e)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	path, err := marshalPath(e.Path)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, seq, kind, path, timestamp, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, runID, seq, string(e.Kind), path, e.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// AppendEvents stores events after the run's last stored position, in one
// transaction. Returns the seq of the last event written.
func (s *Store) AppendEvents(ctx context.Context, runID string, events []ir.Event) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var last int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM events WHERE run_id = ?
	`, runID).Scan(&last); err != nil {
		return 0, fmt.Errorf("append events: last seq: %w", err)
	}

	for _, e := range events {
		payload, err := marshalEvent(e)
		if err != nil {
			return 0, fmt.Errorf("append events: %w", err)
		}
		path, err := marshalPath(e.Path)
		if err != nil {
			return 0, fmt.Errorf("append events: %w", err)
		}
		last++
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (run_id, seq, kind, path, timestamp, payload)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, last, string(e.Kind), path, e.Timestamp, payload); err != nil {
			return 0, fmt.Errorf("append events: seq %d: %w", last, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append events: commit: %w", err)
	}
	return last, nil
}

// FinishRun marks a run finished and stores the digest of its events.
// Returns the digest.
func (s *Store) FinishRun(ctx context.Context, runID string) (string, error) {
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("finish run: %w", err)
	}
	digest, err := ir.RecordingDigest(events)
	if err != nil {
		return "", fmt.Errorf("finish run: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, recording_digest = ? WHERE id = ?
	`, string(RunFinished), digest, runID)
	if err != nil {
		return "", fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}

	slog.Debug("run finished", "run", runID, "events", len(events), "digest", digest)
	return digest, nil
}

// Recorder appends events to one run as they are observed, numbering them
// from 1. It is owned by the producer feeding the observer.
type Recorder struct {
	store *Store
	runID string
	seq   int64
}

// NewRecorder creates the run and returns a recorder for it.
func NewRecorder(ctx context.Context, s *Store, runID string, graph *ir.GraphDescriptor) (*Recorder, error) {
	if err := s.CreateRun(ctx, runID, graph); err != nil {
		return nil, err
	}
	return &Recorder{store: s, runID: runID}, nil
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record appends e at the next position.
func (r *Recorder) Record(ctx context.Context, e ir.Event) error {
	r.seq++
	return r.store.AppendEvent(ctx, r.runID, r.seq, e)
}

// Finish marks the run finished and returns its recording digest.
func (r *Recorder) Finish(ctx context.Context) (string, error) {
	return r.store.FinishRun(ctx, r.runID)
}
