package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/runtrace/internal/store"
)

func TestRecordMissingDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, "record", scenarioPath("summarize"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRecordMissingScenario(t *testing.T) {
	_, _, err := execute(t, "record", "does-not-exist.yaml", "--db", tempDB(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRecordScenario(t *testing.T) {
	db := tempDB(t)
	out := recordScenario(t, db, "summarize")

	assert.Contains(t, out, "Recorded run test-run-summarize")
	assert.Contains(t, out, "Graph:    Summarize")
	assert.Contains(t, out, "17 recorded, 0 rejected")
	assert.Contains(t, out, "Status:   stopped")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "test-run-summarize")
	require.NoError(t, err)
	assert.Equal(t, store.RunFinished, run.Status)
	assert.Equal(t, "Summarize", run.Title)
	assert.Equal(t, 17, run.EventCount)
	assert.NotEmpty(t, run.Digest)
	assert.Contains(t, out, run.Digest)
}

func TestRecordRunIDOverride(t *testing.T) {
	db := tempDB(t)
	out := recordScenario(t, db, "ask-user", "--run-id", "custom-1")
	assert.Contains(t, out, "Recorded run custom-1")
	assert.Contains(t, out, "Status:   paused")
}

func TestRecordGeneratesRunID(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "integration-errors")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].ID, 36)
	assert.Equal(t, 2, runs[0].EventCount)
}

func TestRecordDuplicateRun(t *testing.T) {
	db := tempDB(t)
	recordScenario(t, db, "llm-then-output")

	_, _, err := execute(t, "record", scenarioPath("llm-then-output"), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run test-run-llm-output already exists")
}

func TestRecordRejectedEvents(t *testing.T) {
	db := tempDB(t)
	out := recordScenario(t, db, "integration-errors")
	assert.Contains(t, out, "2 recorded, 2 rejected")
}

func TestRecordStrict(t *testing.T) {
	out, _, err := execute(t, "record", scenarioPath("integration-errors"), "--db", tempDB(t), "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 event(s) rejected")
	assert.Contains(t, out, "2 recorded, 2 rejected")
}

func TestRecordJSON(t *testing.T) {
	out, _, err := execute(t, "record", scenarioPath("llm-then-output"), "--db", tempDB(t), "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status  string       `json:"status"`
		Data    RecordResult `json:"data"`
		TraceID string       `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-run-llm-output", resp.TraceID)
	assert.Equal(t, "test-run-llm-output", resp.Data.RunID)
	assert.Equal(t, 7, resp.Data.Recorded)
	assert.Equal(t, 0, resp.Data.Rejected)
	assert.Equal(t, "stopped", resp.Data.Status)
	assert.Len(t, resp.Data.Digest, 64)
}

func TestRecordStrictJSON(t *testing.T) {
	out, _, err := execute(t, "record", scenarioPath("integration-errors"), "--db", tempDB(t), "--strict", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeRejected, resp.Error.Code)
}
