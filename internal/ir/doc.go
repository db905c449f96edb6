// Package ir defines the records exchanged between the execution engine and
// the trace observer: event records, graph descriptors and payload values.
//
// Payloads are restricted to a sealed set of value types (no floats) so that
// a recorded run can be serialized, stored and replayed with byte-identical
// results. MarshalCanonical is the single canonical (RFC 8785) encoder used
// for trace encodings and content digests.
package ir
