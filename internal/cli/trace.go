package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stackvm/internal/harness"
	"github.com/roach88/stackvm/internal/processor"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	ProgramFlags
}

// TraceResult is the output of the trace command.
type TraceResult struct {
	ProgramHash string               `json:"program_hash"`
	Cycles      int                  `json:"cycles"`
	Trace       []harness.TraceEvent `json:"trace"`
	Error       string               `json:"error,omitempty"` // execution error that ended the trace
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Print the machine state after every cycle",
		Long: `Step through a program and print the machine state after every clock
cycle, starting with the initial state at cycle 0.

With --debug each row also shows the source instruction an operation came
from. A failing program prints the states up to the failing cycle.

Examples:
  stackvm trace ./prog.masm --stack 5,7
  stackvm trace ./prog.masm --debug
  stackvm trace ./prog.masm --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts, args[0])
		},
	}

	opts.ProgramFlags.register(cmd, true)

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions, path string) error {
	f := newFormatter(cmd, opts.RootOptions)

	test, err := opts.buildTest(path)
	if err != nil {
		return err
	}
	program, err := test.Compile()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, "compilation failed", err)
	}
	it := processor.ExecuteIter(program, test.Inputs)
	defer it.Close()

	result := TraceResult{
		ProgramHash: program.Hash().Hex(),
		Trace:       []harness.TraceEvent{},
	}
	for state := range it.All() {
		result.Trace = append(result.Trace, harness.NewTraceEvent(state))
	}
	execErr := it.Err()
	if execErr != nil {
		result.Error = execErr.Error()
	} else if n := len(result.Trace); n > 0 {
		result.Cycles = result.Trace[n-1].Clk
	}

	if execErr == nil {
		return f.Success(result, formatTrace(result, test.InDebugMode))
	}

	code, exit := codeFor(execErr)
	if f.JSON() {
		if err := f.Error(code, execErr.Error(), result); err != nil {
			return err
		}
	} else {
		fmt.Fprint(f.Writer, formatTrace(result, test.InDebugMode))
		f.Error(code, execErr.Error(), nil)
	}
	return WrapExitError(exit, "execution failed", execErr)
}

func formatTrace(result TraceResult, debug bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Program hash: %s\n", result.ProgramHash)

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	header := "CLK\tCTX\tOP\tFMP\tSTACK"
	if debug {
		header = "CLK\tCTX\tOP\tASM\tFMP\tSTACK"
	}
	fmt.Fprintln(tw, header)
	for _, ev := range result.Trace {
		op := ev.Op
		if op == "" && ev.Marker != "" {
			op = "<" + ev.Marker + ">"
		}
		stack := "[" + joinValues(ev.Stack) + "]"
		if debug {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%s\n", ev.Clk, ev.Ctx, op, ev.Asm, ev.FMP, stack)
		} else {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", ev.Clk, ev.Ctx, op, ev.FMP, stack)
		}
	}
	tw.Flush()

	if result.Error == "" {
		fmt.Fprintf(&b, "Cycles: %d\n", result.Cycles)
	}
	return b.String()
}
