package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/runtrace/internal/ir"
)

// marshalEvent converts an event record to JSON TEXT for storage.
// ir.Object marshals with sorted keys, so identical events store identical
// text.
func marshalEvent(e ir.Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

// unmarshalEvent parses a stored event payload.
func unmarshalEvent(payload string) (ir.Event, error) {
	var e ir.Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return e, nil
}

// marshalPath converts a path to canonical JSON TEXT, e.g. "[0,1]".
func marshalPath(p ir.Path) (string, error) {
	data, err := ir.MarshalCanonical(p.Array())
	if err != nil {
		return "", fmt.Errorf("marshal path: %w", err)
	}
	return string(data), nil
}

// marshalGraph converts a graph descriptor to JSON TEXT. A nil graph is
// stored as NULL.
func marshalGraph(g *ir.GraphDescriptor) (sql.NullString, error) {
	if g == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal graph: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalGraph parses a stored graph descriptor.
func unmarshalGraph(s sql.NullString) (*ir.GraphDescriptor, error) {
	if !s.Valid {
		return nil, nil
	}
	var g ir.GraphDescriptor
	if err := json.Unmarshal([]byte(s.String), &g); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return &g, nil
}
