package processor

import (
	"fmt"

	"github.com/roach88/stackvm/internal/field"
)

// DefaultMaxCycles bounds execution when no other limit is configured.
const DefaultMaxCycles = 1 << 20

// ProgramInputs seeds the machine before execution.
type ProgramInputs struct {
	// Stack holds initial stack values in push order: the last value ends
	// up on top of the stack.
	Stack []uint64

	// Advice is the advice tape, consumed front first by adv_push and
	// adv_loadw.
	Advice []uint64
}

// NoInputs returns empty inputs: a zero stack and an empty advice tape.
func NoInputs() ProgramInputs {
	return ProgramInputs{}
}

// NewInputs validates and builds program inputs.
func NewInputs(stack, advice []uint64) (ProgramInputs, error) {
	in := ProgramInputs{Stack: stack, Advice: advice}
	if err := in.Validate(); err != nil {
		return ProgramInputs{}, err
	}
	return in, nil
}

// Validate checks the stack fits the visible stack and every value is a
// canonical field element.
func (in ProgramInputs) Validate() error {
	if len(in.Stack) > field.StackTopSize {
		return &ExecutionError{
			Code:    ErrCodeInvalidInputs,
			Message: fmt.Sprintf("%d stack inputs exceed the limit of %d", len(in.Stack), field.StackTopSize),
		}
	}
	for _, v := range in.Stack {
		if v >= field.Modulus {
			return &ExecutionError{
				Code:    ErrCodeInvalidInputs,
				Message: fmt.Sprintf("stack input %d is not a valid field element", v),
			}
		}
	}
	for _, v := range in.Advice {
		if v >= field.Modulus {
			return &ExecutionError{
				Code:    ErrCodeInvalidInputs,
				Message: fmt.Sprintf("advice value %d is not a valid field element", v),
			}
		}
	}
	return nil
}

// ExecutionOptions configures a run.
type ExecutionOptions struct {
	// MaxCycles aborts execution once this many cycles have run.
	MaxCycles int
}

// DefaultExecutionOptions returns options with a 2^20 cycle limit.
func DefaultExecutionOptions() ExecutionOptions {
	return ExecutionOptions{MaxCycles: DefaultMaxCycles}
}
