package trace

import (
	"fmt"

	"github.com/roach88/runtrace/internal/ir"
)

// LogObject returns the canonical view of a Trace Log.
func LogObject(log []Entry) ir.Array {
	arr := make(ir.Array, len(log))
	for i, e := range log {
		arr[i] = e.Object()
	}
	return arr
}

// EdgeValuesObject returns the canonical view of an EdgeValueStore, keyed
// by EdgeKey.String().
func EdgeValuesObject(s *EdgeValueStore) ir.Object {
	obj := ir.Object{}
	for _, k := range s.Keys() {
		values := s.values[k]
		arr := make(ir.Array, len(values))
		copy(arr, values)
		obj[k.String()] = arr
	}
	return obj
}

// Object returns the canonical view of the snapshot. Two snapshots with the
// same Object are structurally equal: same entry kinds, values and order.
func (s *Snapshot) Object() ir.Object {
	obj := ir.Object{
		"status":     ir.String(s.Status),
		"log":        LogObject(s.Log),
		"edgeValues": EdgeValuesObject(s.EdgeValues),
	}
	if s.CurrentStep != nil {
		obj["currentStep"] = ir.String(s.CurrentStep.ID)
	} else {
		obj["currentStep"] = ir.Null{}
	}
	if current, ok := s.EdgeValues.Current(); ok {
		obj["currentEdge"] = ir.String(KeyOf(current).String())
	}
	if s.Graph != nil {
		obj["graph"] = s.Graph.Object()
	}
	return obj
}

// Encode returns the canonical JSON encoding of the snapshot.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := ir.MarshalCanonical(s.Object())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Digest returns the content digest of the snapshot encoding.
func (s *Snapshot) Digest() (string, error) {
	data, err := s.Encode()
	if err != nil {
		return "", err
	}
	return ir.TraceDigest(data), nil
}
