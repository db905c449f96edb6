package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// scenarioPath returns the path of a harness scenario fixture.
func scenarioPath(name string) string {
	return filepath.Join(scenariosDir(), name+".yaml")
}

func scenariosDir() string {
	return filepath.Join("..", "harness", "testdata", "scenarios")
}

// tempDB returns a database path in a fresh temp directory.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "runs.db")
}

// recordScenario records a harness scenario into db.
func recordScenario(t *testing.T, db, name string, extra ...string) string {
	t.Helper()
	args := append([]string{"record", scenarioPath(name), "--db", db}, extra...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)
	return out
}
