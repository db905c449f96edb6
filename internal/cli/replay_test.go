package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runtrace/internal/store"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayNonExistentDatabase(t *testing.T) {
	_, _, err := execute(t, "replay", "--db", "/nonexistent/path/runs.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestReplayEmptyDatabase(t *testing.T) {
	out, _, err := execute(t, "replay", "--db", tempDB(t))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestReplayAllRuns(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "summarize")
	recordScenario(t, db, "ask-user")

	out, _, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 2 run(s)")
	assert.Contains(t, out, "✓ Run: test-run-summarize")
	assert.Contains(t, out, "✓ Run: test-run-ask-user")
	assert.Contains(t, out, "Events: 17")
	assert.Contains(t, out, "✓ All runs verified")
}

func TestReplaySingleRun(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "summarize")
	recordScenario(t, db, "ask-user")

	out, _, err := execute(t, "replay", "--db", db, "--run", "test-run-ask-user", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 1 run(s)")
	assert.Contains(t, out, "Trace digest:")
	assert.NotContains(t, out, "test-run-summarize")
}

func TestReplayUnknownRun(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "summarize")

	_, _, err := execute(t, "replay", "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestReplayDetectsModifiedRecording(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "llm-then-output")

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE events SET timestamp = 99,
		payload = json_set(payload, '$.timestamp', 99)
		WHERE run_id = 'test-run-llm-output' AND seq = 2`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(t, "replay", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Run: test-run-llm-output")
	assert.Contains(t, out, "Recording does not match its digest!")
	assert.Contains(t, out, "✗ recording verification failed")
}

func TestReplayJSON(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "llm-then-output")

	out, _, err := execute(t, "replay", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.AllVerified)
	require.Len(t, resp.Data.Runs, 1)
	r := resp.Data.Runs[0]
	assert.Equal(t, "test-run-llm-output", r.RunID)
	assert.Equal(t, 7, r.Events)
	assert.True(t, r.Deterministic)
	assert.True(t, r.RecordingIntact)
	assert.Len(t, r.TraceDigest, 64)
}

func TestReplayJSONFailure(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "ask-user")

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE events SET payload = json_set(payload, '$.timestamp', 42)
		WHERE run_id = 'test-run-ask-user' AND seq = 2`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(t, "replay", "--db", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTampered, resp.Error.Code)
}

func TestReplayFailure(t *testing.T) {
	tests := []struct {
		name     string
		runs     []ReplayRunResult
		wantCode string
	}{
		{"all verified", []ReplayRunResult{{Deterministic: true, RecordingIntact: true}}, ""},
		{"tampered", []ReplayRunResult{{Deterministic: true, RecordingIntact: false}}, CodeTampered},
		{"diverged wins", []ReplayRunResult{
			{Deterministic: true, RecordingIntact: false},
			{Deterministic: false, RecordingIntact: true},
		}, CodeNotDeterministic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := replayFailure(ReplayResult{Runs: tt.runs})
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
