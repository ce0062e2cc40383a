package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	stdout, _, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Stack: [12, 0,")
	assert.Contains(t, stdout, "Cycles: 5")
}

func TestRunCommand_StackInputsLastOnTop(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", "begin sub end")

	stdout, _, err := execute(t, "run", path, "--stack", "10,3", "--format", "json")
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, stdout, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Stack, 16)
	assert.Equal(t, uint64(7), result.Stack[0])
	assert.Equal(t, 3, result.Cycles)
}

func TestRunCommand_Advice(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", "begin adv_push.2 add end")

	stdout, _, err := execute(t, "run", path, "--advice", "4,5", "--format", "json")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, stdout, &result)
	assert.Equal(t, uint64(9), result.Stack[0])
}

func TestRunCommand_ExecutionError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", "begin push.1 push.0 div end")

	stdout, _, err := execute(t, "run", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeExecution, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "DIVISION_BY_ZERO")
}

func TestRunCommand_InvalidInputs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	_, stderr, err := execute(t, "run", path, "--stack", "18446744073709551615")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "Error [E_INVALID_ARGUMENT]")
}

func TestRunCommand_BadStackFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	_, _, err := execute(t, "run", path, "--stack", "one")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --stack")
}
