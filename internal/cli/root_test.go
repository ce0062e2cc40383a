package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addProgram = "begin push.5 push.7 add end"

// addProgramHash is the hash of addProgram.
const addProgramHash = "eefd8f5d63ae3faa8e206580bf38378dd0b9ebe39b93f984be5e02203acaac61"

// execute runs the root command with args and returns its output streams.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// decodeResponse decodes a JSON CLI response, re-decoding its data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	_, _, err := execute(t, "run", path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown --format "xml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"compile", "run", "trace", "prove", "test", "history"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_VerboseLogsToStderr(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	stdout, stderr, err := execute(t, "run", path, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Stack: [12")
	assert.Contains(t, stderr, "test compiled")
	assert.Contains(t, stderr, "ran in 5 cycles")
}
