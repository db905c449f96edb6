package testutil

// FixedRunIDGenerator returns the same run id every time, so a scenario
// recorded twice lands under a predictable id.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
// Implements trace.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
