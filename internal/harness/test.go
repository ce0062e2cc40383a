package harness

import (
	"fmt"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stackvm/internal/assembly"
	"github.com/roach88/stackvm/internal/field"
	"github.com/roach88/stackvm/internal/processor"
	"github.com/roach88/stackvm/internal/prover"
	"github.com/roach88/stackvm/internal/stdlib"
)

// Test is a program under test together with its inputs.
//
// A Test is read-only once built: every method compiles and runs it afresh,
// and the With* methods return modified copies.
type Test struct {
	// Source is the program source; it must contain a begin block.
	Source string

	// Kernel is the kernel module source. Empty means no kernel.
	Kernel string

	// Inputs seed the stack and advice tape.
	Inputs processor.ProgramInputs

	// InDebugMode records assembly-op provenance and debug decorators.
	InDebugMode bool
}

// NewTest creates a test with no kernel and no inputs.
func NewTest(source string, inDebugMode bool) *Test {
	return &Test{
		Source:      source,
		Inputs:      processor.NoInputs(),
		InDebugMode: inDebugMode,
	}
}

// BuildTest creates a test with the given stack inputs in push order: the
// last value starts on top of the stack.
func BuildTest(source string, stack ...uint64) *Test {
	return NewTest(source, false).WithStack(stack...)
}

// BuildDebugTest is BuildTest in debug mode.
func BuildDebugTest(source string, stack ...uint64) *Test {
	return NewTest(source, true).WithStack(stack...)
}

// WithKernel returns a copy of the test that installs kernel.
func (t *Test) WithKernel(kernel string) *Test {
	c := t.clone()
	c.Kernel = kernel
	return c
}

// WithInputs returns a copy of the test with the given inputs.
func (t *Test) WithInputs(inputs processor.ProgramInputs) *Test {
	c := t.clone()
	c.Inputs = processor.ProgramInputs{
		Stack:  slices.Clone(inputs.Stack),
		Advice: slices.Clone(inputs.Advice),
	}
	return c
}

// WithStack returns a copy of the test with the given stack inputs.
func (t *Test) WithStack(values ...uint64) *Test {
	c := t.clone()
	c.Inputs.Stack = slices.Clone(values)
	return c
}

// WithAdvice returns a copy of the test with the given advice tape.
func (t *Test) WithAdvice(values ...uint64) *Test {
	c := t.clone()
	c.Inputs.Advice = slices.Clone(values)
	return c
}

func (t *Test) clone() *Test {
	c := *t
	c.Inputs.Stack = slices.Clone(t.Inputs.Stack)
	c.Inputs.Advice = slices.Clone(t.Inputs.Advice)
	return &c
}

// Compile assembles the test source against the standard library, installing
// the kernel first when one is set.
func (t *Test) Compile() (*assembly.Program, error) {
	asm := assembly.New(stdlib.Default()).WithDebugMode(t.InDebugMode)
	if t.Kernel != "" {
		withKernel, err := asm.WithKernel(t.Kernel)
		if err != nil {
			return nil, fmt.Errorf("kernel compilation failed: %w", err)
		}
		asm = withKernel
	}

	program, err := asm.Compile(t.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile test source: %w", err)
	}
	slog.Debug("test compiled",
		"program_hash", program.Hash().Short(),
		"debug", t.InDebugMode,
		"kernel_procs", len(program.Kernel().ProcHashes()),
	)
	return program, nil
}

// Execute compiles the test and runs it to completion.
func (t *Test) Execute() (*processor.ExecutionTrace, error) {
	program, err := t.Compile()
	if err != nil {
		return nil, err
	}
	return processor.Execute(program, t.Inputs)
}

// ExecuteIter compiles the test and returns an iterator over its machine
// states. Execution errors surface through the iterator's Err once Next
// returns false.
func (t *Test) ExecuteIter() (*processor.VmStateIterator, error) {
	program, err := t.Compile()
	if err != nil {
		return nil, err
	}
	return processor.ExecuteIter(program, t.Inputs), nil
}

// LastStackState runs the test and returns the visible stack after the
// last cycle, top first.
func (t *Test) LastStackState() ([W]field.Felt, error) {
	trace, err := t.Execute()
	if err != nil {
		return [W]field.Felt{}, err
	}
	return trace.LastStackState(), nil
}

// CheckProveAndVerify proves an execution of the test and verifies the
// proof against pubInputs. When testFail is set the first output is
// tampered with and verification is required to fail instead.
func (t *Test) CheckProveAndVerify(pubInputs []uint64, testFail bool) error {
	program, err := t.Compile()
	if err != nil {
		return err
	}
	outputs, proof, err := prover.Prove(program, t.Inputs, prover.DefaultOptions())
	if err != nil {
		return fmt.Errorf("proof generation failed: %w", err)
	}

	if testFail {
		outputs.TamperFirst()
		if err := prover.Verify(program.Hash(), pubInputs, outputs, proof); err == nil {
			return &AssertionError{
				Type:     "prove_and_verify",
				Expected: "verification to fail for tampered outputs",
				Actual:   fmt.Sprintf("proof verified against outputs %v", outputs.Stack()),
			}
		}
		return nil
	}

	if err := prover.Verify(program.Hash(), pubInputs, outputs, proof); err != nil {
		return &AssertionError{
			Type:     "prove_and_verify",
			Expected: "verification to succeed",
			Actual:   fmt.Sprintf("error: %v", err),
		}
	}
	return nil
}

// ProveAndVerify is CheckProveAndVerify failing tb on error.
func (t *Test) ProveAndVerify(tb testing.TB, pubInputs []uint64, testFail bool) {
	tb.Helper()
	require.NoError(tb, t.CheckProveAndVerify(pubInputs, testFail))
}
