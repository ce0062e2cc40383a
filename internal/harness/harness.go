package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/stackvm/internal/field"
	"github.com/roach88/stackvm/internal/processor"
)

// Harness runs scenarios.
type Harness struct {
	logger *slog.Logger
}

// New creates a harness logging to logger. A nil logger discards output.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{logger: logger}
}

// Run executes a scenario with a discarding logger.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the program, recording its hash
//  2. Step through execution, recording the trace
//  3. Check each declared expectation
//
// Failed expectations are collected in the result; the returned error is
// reserved for scenarios that cannot be run at all.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	test := scenario.Test()
	result := NewResult()
	log := h.logger.With("scenario", scenario.Name)

	if err := h.record(test, result); err != nil {
		log.Debug("trace recording stopped", "error", err)
	}

	expect := scenario.Expect
	if expect.Error != nil {
		expected := TestError{Kind: TestErrorKind(expect.Error.Kind), Substring: expect.Error.Contains}
		if err := test.CheckError(expected); err != nil {
			result.AddError(err.Error())
		}
		log.Debug("scenario finished", "pass", result.Pass, "cycles", result.Cycles)
		return result, nil
	}

	if expect.Memory != nil {
		if err := test.CheckStackAndMemory(expect.Stack, expect.Memory.Address, expect.Memory.Word); err != nil {
			result.AddError(err.Error())
		}
	} else if expect.Stack != nil {
		if err := test.CheckStack(expect.Stack); err != nil {
			result.AddError(err.Error())
		}
	}

	if expect.Prove != nil {
		if err := test.CheckProveAndVerify(expect.Prove.PublicInputs, expect.Prove.Tamper); err != nil {
			result.AddError(err.Error())
		}
	}

	log.Debug("scenario finished",
		"program_hash", result.ProgramHash,
		"pass", result.Pass,
		"cycles", result.Cycles,
	)
	return result, nil
}

// record compiles the test and steps through its execution, filling the
// result's program hash, cycle count and trace. Errors are returned rather
// than recorded: whether they are failures is for the expectations to say.
func (h *Harness) record(test *Test, result *Result) error {
	program, err := test.Compile()
	if err != nil {
		return err
	}
	result.ProgramHash = program.Hash().Hex()

	it := processor.ExecuteIter(program, test.Inputs)
	defer it.Close()
	for state := range it.All() {
		result.Trace = append(result.Trace, NewTraceEvent(state))
	}
	if err := it.Err(); err != nil {
		return err
	}
	if n := len(result.Trace); n > 0 {
		result.Cycles = result.Trace[n-1].Clk
	}
	return nil
}

// trimZeros converts a stack to integers and drops trailing zeros.
func trimZeros(stack []field.Felt) []uint64 {
	out := field.Uint64s(stack)
	for len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	return out
}
