package processor

import (
	"errors"
	"fmt"
)

// ExecutionErrorCode categorizes execution errors.
type ExecutionErrorCode string

const (
	// ErrCodeDivisionByZero indicates div, inv or u32 division by zero.
	ErrCodeDivisionByZero ExecutionErrorCode = "DIVISION_BY_ZERO"

	// ErrCodeFailedAssertion indicates assert, assertz or assert_eq failed.
	ErrCodeFailedAssertion ExecutionErrorCode = "FAILED_ASSERTION"

	// ErrCodeNotU32 indicates a u32 operation received a value >= 2^32.
	ErrCodeNotU32 ExecutionErrorCode = "NOT_U32_VALUE"

	// ErrCodeNotBinary indicates a boolean operation or branch condition
	// that is neither 0 nor 1.
	ErrCodeNotBinary ExecutionErrorCode = "NOT_BINARY_VALUE"

	// ErrCodeAdviceEmpty indicates the advice tape ran out.
	ErrCodeAdviceEmpty ExecutionErrorCode = "ADVICE_TAPE_EMPTY"

	// ErrCodeInvalidAddress indicates a memory address outside u32 range.
	ErrCodeInvalidAddress ExecutionErrorCode = "INVALID_MEMORY_ADDRESS"

	// ErrCodeInvalidFmp indicates the free memory pointer left its range.
	ErrCodeInvalidFmp ExecutionErrorCode = "INVALID_FMP"

	// ErrCodeInvalidPow2 indicates a pow2 exponent above 63.
	ErrCodeInvalidPow2 ExecutionErrorCode = "INVALID_POW2_EXPONENT"

	// ErrCodeSyscallTarget indicates a syscall to a procedure outside the kernel.
	ErrCodeSyscallTarget ExecutionErrorCode = "SYSCALL_TARGET_NOT_IN_KERNEL"

	// ErrCodeCycleLimit indicates the program exceeded ExecutionOptions.MaxCycles.
	ErrCodeCycleLimit ExecutionErrorCode = "CYCLE_LIMIT_EXCEEDED"

	// ErrCodeInvalidInputs indicates program inputs that cannot seed the stack.
	ErrCodeInvalidInputs ExecutionErrorCode = "INVALID_INPUTS"
)

// ExecutionError is returned when a program cannot run to completion.
type ExecutionError struct {
	// Code identifies the error category.
	Code ExecutionErrorCode

	// Message is a human-readable description.
	Message string

	// Clk is the clock cycle that failed; 0 for input validation errors.
	Clk int
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Clk > 0 {
		return fmt.Sprintf("%s: %s at clock cycle %d", e.Code, e.Message, e.Clk)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsExecutionError returns true if err is or wraps an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// HasCode returns true if err is an *ExecutionError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code ExecutionErrorCode) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
