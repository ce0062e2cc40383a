package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stackvm/internal/assembly"
	"github.com/roach88/stackvm/internal/harness"
	"github.com/roach88/stackvm/internal/processor"
)

// ProgramFlags are the flags shared by commands that build a program.
type ProgramFlags struct {
	Kernel string // path to a kernel module source
	Debug  bool   // compile in debug mode
	Stack  string // comma-separated stack inputs, last value on top
	Advice string // comma-separated advice tape
}

func (p *ProgramFlags) register(cmd *cobra.Command, withInputs bool) {
	cmd.Flags().StringVar(&p.Kernel, "kernel", "", "path to a kernel module")
	cmd.Flags().BoolVar(&p.Debug, "debug", false, "compile in debug mode")
	if withInputs {
		cmd.Flags().StringVar(&p.Stack, "stack", "", "comma-separated stack inputs (last value on top)")
		cmd.Flags().StringVar(&p.Advice, "advice", "", "comma-separated advice tape")
	}
}

// buildTest reads the program at path and applies the flags to it.
// Failures are command errors.
func (p *ProgramFlags) buildTest(path string) (*harness.Test, error) {
	source, err := readSource(path)
	if err != nil {
		return nil, err
	}
	test := harness.NewTest(source, p.Debug)

	if p.Kernel != "" {
		kernel, err := readSource(p.Kernel)
		if err != nil {
			return nil, err
		}
		test = test.WithKernel(kernel)
	}

	stack, err := parseValues(p.Stack)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --stack", err)
	}
	advice, err := parseValues(p.Advice)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --advice", err)
	}
	return test.WithStack(stack...).WithAdvice(advice...), nil
}

// readSource reads a source file, reporting a missing file as a command error.
func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewExitError(ExitCommandError, fmt.Sprintf("file not found: %s", path))
		}
		return "", WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", path), err)
	}
	return string(data), nil
}

// parseValues parses a comma-separated list of unsigned integers. Values may
// be decimal or 0x-prefixed hex. An empty string is an empty list.
func parseValues(s string) ([]uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	values := make([]uint64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		v, err := strconv.ParseUint(part, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", part, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// codeFor maps a failure while building or running a program to an error
// code and exit code. Compile failures and unusable inputs are command
// errors; execution failures are program failures.
func codeFor(err error) (string, int) {
	switch {
	case assembly.IsAssemblyError(err):
		return ErrCodeCompile, ExitCommandError
	case processor.HasCode(err, processor.ErrCodeInvalidInputs):
		return ErrCodeInvalidArg, ExitCommandError
	default:
		return ErrCodeExecution, ExitFailure
	}
}
