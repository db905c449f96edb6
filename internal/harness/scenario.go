package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/runtrace/internal/ir"
)

// Scenario is a scripted event stream with expectations about the
// resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario covers.
	Description string `yaml:"description"`

	// Graph is an optional path to a CUE graph file or package, relative to
	// the scenario file.
	Graph string `yaml:"graph,omitempty"`

	// RunID is the id the run is recorded under.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Events is the stream fed to the observer, in order.
	Events []EventStep `yaml:"events"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory of the scenario file, used to resolve Graph.
	dir string
}

// EventStep is one event of a scenario.
type EventStep struct {
	Kind      string `yaml:"kind"`
	Path      []int  `yaml:"path,omitempty"`
	Timestamp int64  `yaml:"timestamp,omitempty"`

	// Node is the id of the node the event concerns.
	Node string `yaml:"node,omitempty"`

	// NodeType is the descriptor type used when the graph does not
	// declare Node.
	NodeType string `yaml:"node_type,omitempty"`

	Inputs  map[string]any `yaml:"inputs,omitempty"`
	Outputs map[string]any `yaml:"outputs,omitempty"`
	Bubbled bool           `yaml:"bubbled,omitempty"`

	// Edge, To and Value describe an edge event.
	Edge  *EdgeSpec      `yaml:"edge,omitempty"`
	To    []int          `yaml:"to,omitempty"`
	Value map[string]any `yaml:"value,omitempty"`

	// Opportunities lists the edges fired by a nodeend.
	Opportunities []EdgeSpec `yaml:"opportunities,omitempty"`

	Error *ErrorSpec `yaml:"error,omitempty"`

	// ExpectError is the integration error code the observer must reject
	// this event with (e.g. "NO_GRAPH").
	ExpectError string `yaml:"expect_error,omitempty"`
}

// EdgeSpec describes a graph edge.
type EdgeSpec struct {
	From     string `yaml:"from"`
	Out      string `yaml:"out,omitempty"`
	To       string `yaml:"to"`
	In       string `yaml:"in,omitempty"`
	Constant bool   `yaml:"constant,omitempty"`
}

// Edge converts the spec to an ir.Edge.
func (e EdgeSpec) Edge() ir.Edge {
	return ir.Edge{From: e.From, Out: e.Out, To: e.To, In: e.In, Constant: e.Constant}
}

// ErrorSpec describes the payload of an error event.
type ErrorSpec struct {
	Message string         `yaml:"message"`
	Node    string         `yaml:"node,omitempty"`
	Details map[string]any `yaml:"details,omitempty"`
}

// Assertion validates the final trace.
type Assertion struct {
	// Type specifies the assertion type (see the package documentation).
	Type string `yaml:"type"`

	// Status is the expected run status (status).
	Status string `yaml:"status,omitempty"`

	// Kinds lists entry kinds (log_kinds) or activity kinds (activity).
	Kinds []string `yaml:"kinds,omitempty"`

	// Titles lists visible step titles (step_titles).
	Titles []string `yaml:"titles,omitempty"`

	// Edge selects an edge (edge_values).
	Edge *EdgeSpec `yaml:"edge,omitempty"`

	// Values are the expected edge values (edge_values).
	Values []any `yaml:"values,omitempty"`

	// Step is a step id (current_step, activity).
	Step string `yaml:"step,omitempty"`

	// Kind is an event kind (recorded_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number (error_count, recorded_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus        = "status"
	AssertLogKinds      = "log_kinds"
	AssertStepTitles    = "step_titles"
	AssertEdgeValues    = "edge_values"
	AssertCurrentStep   = "current_step"
	AssertErrorCount    = "error_count"
	AssertActivity      = "activity"
	AssertRecordedCount = "recorded_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. A relative Graph path is resolved
// against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// GraphPath returns the resolved graph path, or "" if the scenario has none.
func (s *Scenario) GraphPath() string {
	if s.Graph == "" {
		return ""
	}
	if filepath.IsAbs(s.Graph) || s.dir == "" {
		return s.Graph
	}
	return filepath.Join(s.dir, s.Graph)
}

// validateScenario checks required fields and field combinations.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events must contain at least one event")
	}

	for i, step := range s.Events {
		if err := validateEventStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateEventStep(index int, e *EventStep) error {
	kind := ir.Kind(e.Kind)
	if e.Kind == "" {
		return fmt.Errorf("events[%d]: kind is required", index)
	}
	if !kind.Valid() {
		return fmt.Errorf("events[%d]: unknown event kind %q", index, e.Kind)
	}

	switch kind {
	case ir.KindNodeStart, ir.KindNodeEnd, ir.KindInput, ir.KindOutput:
		if e.Node == "" && e.ExpectError == "" {
			return fmt.Errorf("events[%d]: node is required for %s", index, e.Kind)
		}
	case ir.KindEdge:
		if e.Edge == nil {
			return fmt.Errorf("events[%d]: edge is required for edge", index)
		}
	case ir.KindError:
		if e.Error == nil {
			return fmt.Errorf("events[%d]: error is required for error", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for status", index)
		}
	case AssertLogKinds:
		if a.Kinds == nil {
			return fmt.Errorf("assertions[%d]: kinds list is required for log_kinds", index)
		}
	case AssertStepTitles:
		if a.Titles == nil {
			return fmt.Errorf("assertions[%d]: titles list is required for step_titles", index)
		}
	case AssertEdgeValues:
		if a.Edge == nil {
			return fmt.Errorf("assertions[%d]: edge is required for edge_values", index)
		}
	case AssertCurrentStep:
	case AssertErrorCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for error_count", index)
		}
	case AssertActivity:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for activity", index)
		}
	case AssertRecordedCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for recorded_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for recorded_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
