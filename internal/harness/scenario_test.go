package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "summarize.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "summarize", s.Name)
	assert.Equal(t, "test-run-summarize", s.RunID)
	assert.Len(t, s.Events, 17)
	assert.Len(t, s.Assertions, 9)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "..", "graphs", "summarize.cue"), s.GraphPath())

	nested := s.Events[9]
	assert.Equal(t, "nodestart", nested.Kind)
	assert.Equal(t, []int{1, 0}, nested.Path)
	assert.Equal(t, "llm-call", nested.NodeType)

	edge := s.Events[7]
	require.NotNil(t, edge.Edge)
	assert.Equal(t, "agent", edge.Edge.To)
	assert.Equal(t, []int{1}, edge.To)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: typo
events:
  - kind: graphstart
assertion:
  - type: status
    status: stopped
`), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "events:\n  - kind: graphstart\n",
			wantErr: "name is required",
		},
		{
			name:    "no events",
			yaml:    "name: x\n",
			wantErr: "events must contain at least one event",
		},
		{
			name:    "missing kind",
			yaml:    "name: x\nevents:\n  - path: [0]\n",
			wantErr: "events[0]: kind is required",
		},
		{
			name:    "unknown kind",
			yaml:    "name: x\nevents:\n  - kind: nodebegin\n",
			wantErr: `events[0]: unknown event kind "nodebegin"`,
		},
		{
			name:    "node event without node",
			yaml:    "name: x\nevents:\n  - kind: nodestart\n    path: [0]\n",
			wantErr: "events[0]: node is required for nodestart",
		},
		{
			name:    "edge event without edge",
			yaml:    "name: x\nevents:\n  - kind: edge\n",
			wantErr: "events[0]: edge is required for edge",
		},
		{
			name:    "error event without payload",
			yaml:    "name: x\nevents:\n  - kind: error\n",
			wantErr: "events[0]: error is required for error",
		},
		{
			name:    "assertion without type",
			yaml:    "name: x\nevents:\n  - kind: graphstart\nassertions:\n  - status: stopped\n",
			wantErr: "assertions[0]: type is required",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\nevents:\n  - kind: graphstart\nassertions:\n  - type: final_state\n",
			wantErr: `assertions[0]: unknown assertion type "final_state"`,
		},
		{
			name:    "edge_values without edge",
			yaml:    "name: x\nevents:\n  - kind: graphstart\nassertions:\n  - type: edge_values\n",
			wantErr: "assertions[0]: edge is required for edge_values",
		},
		{
			name:    "recorded_count without kind",
			yaml:    "name: x\nevents:\n  - kind: graphstart\nassertions:\n  - type: recorded_count\n    count: 1\n",
			wantErr: "assertions[0]: kind is required for recorded_count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_ExpectErrorAllowsMissingNode(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: x
events:
  - kind: nodestart
    expect_error: INVALID_EVENT
`))
	require.NoError(t, err)
	assert.Equal(t, "INVALID_EVENT", s.Events[0].ExpectError)
	assert.Empty(t, s.GraphPath())
}
