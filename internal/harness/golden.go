package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/runtrace/internal/ir"
)

// TraceSnapshot captures the final trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Trace        ir.Object
}

// toCanonicalObject converts the snapshot to a payload object for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalObject() ir.Object {
	obj := ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         s.Trace,
	}
	if s.RunID != "" {
		obj["run_id"] = ir.String(s.RunID)
	}
	return obj
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := GoldenBytes(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

// GoldenBytes returns the canonical golden encoding of a scenario result.
func GoldenBytes(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Trace:        result.Snapshot.Object(),
	}
	return ir.MarshalCanonical(snapshot.toCanonicalObject())
}
