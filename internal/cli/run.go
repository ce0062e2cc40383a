package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ProgramFlags
}

// RunResult is the output of the run command.
type RunResult struct {
	ProgramHash string   `json:"program_hash"`
	Cycles      int      `json:"cycles"`
	Stack       []uint64 `json:"stack"` // visible stack, top first
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a program and print its final stack",
		Long: `Execute a program and print the visible stack after the last cycle.

Stack inputs are pushed in order, so the last value starts on top.

Exit codes:
  0 - Program ran to completion
  1 - Execution failed
  2 - Command error (missing file, compile error, invalid inputs)

Examples:
  stackvm run ./prog.masm --stack 5,7
  stackvm run ./prog.masm --advice 1,2,3 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd, opts, args[0])
		},
	}

	opts.ProgramFlags.register(cmd, true)

	return cmd
}

func runProgram(cmd *cobra.Command, opts *RunOptions, path string) error {
	f := newFormatter(cmd, opts.RootOptions)

	test, err := opts.buildTest(path)
	if err != nil {
		return err
	}
	trace, err := test.Execute()
	if err != nil {
		code, exit := codeFor(err)
		return f.Fail(exit, code, "execution failed", err)
	}

	result := RunResult{
		ProgramHash: trace.ProgramHash().Hex(),
		Cycles:      trace.Cycles(),
		Stack:       trace.StackOutputs(),
	}
	f.VerboseLog("program %s ran in %d cycles", result.ProgramHash, result.Cycles)

	text := fmt.Sprintf("Stack: [%s]\nCycles: %d\n", joinValues(result.Stack), result.Cycles)
	return f.Success(result, text)
}

func joinValues(values []uint64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
