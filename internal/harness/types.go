package harness

import "github.com/roach88/runtrace/internal/trace"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// RunID is the id the run was recorded under.
	RunID string `json:"run_id"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the live observer's final snapshot.
	Snapshot *trace.Snapshot `json:"-"`

	// Encoding is the canonical encoding of Snapshot.
	Encoding []byte `json:"-"`

	// RecordingDigest is the digest stored when the recording finished.
	RecordingDigest string `json:"recording_digest"`

	// Counts holds the number of recorded events per kind.
	Counts map[string]int `json:"counts"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Counts: map[string]int{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
