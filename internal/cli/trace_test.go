package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceCommand_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	stdout, _, err := execute(t, "trace", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 9, "hash, header, 6 states, cycles")
	assert.Equal(t, "Program hash: "+addProgramHash, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "CLK"))
	assert.Contains(t, lines[3], "<span>")
	assert.Contains(t, lines[4], "push(5)")
	assert.Contains(t, lines[6], "add")
	assert.Contains(t, lines[6], "[12]")
	assert.Contains(t, lines[7], "<end>")
	assert.Equal(t, "Cycles: 5", lines[8])
}

func TestTraceCommand_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	stdout, _, err := execute(t, "trace", path, "--format", "json")
	require.NoError(t, err)

	var result TraceResult
	resp := decodeResponse(t, stdout, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, addProgramHash, result.ProgramHash)
	assert.Equal(t, 5, result.Cycles)
	require.Len(t, result.Trace, 6)
	assert.Equal(t, 0, result.Trace[0].Clk)
	assert.Equal(t, uint64(1073741824), result.Trace[0].FMP)
	assert.Equal(t, "span", result.Trace[1].Marker)
	assert.Equal(t, "push(7)", result.Trace[3].Op)
	assert.Equal(t, []uint64{7, 5}, result.Trace[3].Stack)
	assert.Empty(t, result.Trace[3].Asm, "asm ops need debug mode")
}

func TestTraceCommand_Debug(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", addProgram)

	stdout, _, err := execute(t, "trace", path, "--debug", "--format", "json")
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, stdout, &result)
	require.Len(t, result.Trace, 6)
	assert.Equal(t, "push.5", result.Trace[2].Asm)
	assert.Equal(t, "add", result.Trace[4].Asm)

	text, _, err := execute(t, "trace", path, "--debug")
	require.NoError(t, err)
	assert.Contains(t, text, "ASM")
	assert.Contains(t, text, "push.5")
}

func TestTraceCommand_ExecutionErrorKeepsPartialTrace(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", "begin push.1 push.0 div end")

	stdout, _, err := execute(t, "trace", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeExecution, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "division by zero at clock cycle 4")

	details, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok, "details carry the partial trace")
	assert.Len(t, details["trace"], 4, "initial, span, push, push")
	assert.Equal(t, float64(0), details["cycles"], "cycles are zero for failed runs")

	text, stderr, err := execute(t, "trace", path)
	require.Error(t, err)
	assert.Contains(t, text, "push(0)")
	assert.NotContains(t, text, "Cycles:")
	assert.Contains(t, stderr, "DIVISION_BY_ZERO")
}

func TestTraceCommand_CompileError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prog.masm", "begin push.1")

	_, stderr, err := execute(t, "trace", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, "missing end")
}
