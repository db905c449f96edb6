package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix leaves room for
// algorithm migration.
const (
	DomainRecording = "runtrace/recording/v1"
	DomainTrace     = "runtrace/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RecordingDigest returns a content digest of an ordered event sequence.
// Two recordings with the same events in the same order share a digest.
func RecordingDigest(events []Event) (string, error) {
	arr := make(Array, len(events))
	for i, e := range events {
		arr[i] = e.Object()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("RecordingDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecording, canonical), nil
}

// TraceDigest returns a digest of an already canonical trace encoding.
func TraceDigest(canonical []byte) string {
	return hashWithDomain(DomainTrace, canonical)
}
