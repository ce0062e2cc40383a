package assembly

import (
	"errors"
	"fmt"
)

// AssemblyErrorCode categorizes assembly errors.
type AssemblyErrorCode string

const (
	// ErrCodeUndefinedInstruction indicates an unknown instruction mnemonic.
	ErrCodeUndefinedInstruction AssemblyErrorCode = "UNDEFINED_INSTRUCTION"

	// ErrCodeUndefinedProcedure indicates exec/call of an unknown procedure.
	ErrCodeUndefinedProcedure AssemblyErrorCode = "UNDEFINED_PROCEDURE"

	// ErrCodeUndefinedModule indicates an import the provider cannot supply,
	// or a call through an alias that was never imported.
	ErrCodeUndefinedModule AssemblyErrorCode = "UNDEFINED_MODULE"

	// ErrCodeUndefinedKernelProcedure indicates a syscall to a procedure the
	// kernel does not export.
	ErrCodeUndefinedKernelProcedure AssemblyErrorCode = "UNDEFINED_KERNEL_PROCEDURE"

	// ErrCodeInvalidParameter indicates a malformed or out-of-range
	// instruction parameter.
	ErrCodeInvalidParameter AssemblyErrorCode = "INVALID_PARAMETER"

	// ErrCodeMalformedBlock indicates unbalanced begin/end, if/else or loops.
	ErrCodeMalformedBlock AssemblyErrorCode = "MALFORMED_BLOCK"

	// ErrCodeUnexpectedToken indicates a token that is not valid where it appears.
	ErrCodeUnexpectedToken AssemblyErrorCode = "UNEXPECTED_TOKEN"

	// ErrCodeDuplicateProcedure indicates two procedures with the same name.
	ErrCodeDuplicateProcedure AssemblyErrorCode = "DUPLICATE_PROCEDURE"

	// ErrCodeInvalidProcedureName indicates a procedure name that is not an identifier.
	ErrCodeInvalidProcedureName AssemblyErrorCode = "INVALID_PROCEDURE_NAME"

	// ErrCodeCircularImport indicates modules that import each other.
	ErrCodeCircularImport AssemblyErrorCode = "CIRCULAR_IMPORT"

	// ErrCodeMissingProgram indicates source without a begin block.
	ErrCodeMissingProgram AssemblyErrorCode = "MISSING_PROGRAM"

	// ErrCodeInvalidKernel indicates a kernel module with a begin block or
	// without exported procedures.
	ErrCodeInvalidKernel AssemblyErrorCode = "INVALID_KERNEL"
)

// AssemblyError is returned by the assembler when source text cannot be
// turned into a program.
type AssemblyError struct {
	// Code identifies the error category.
	Code AssemblyErrorCode

	// Message is a human-readable description.
	Message string

	// Module is the path of the library module the error occurred in.
	// Empty for the program source itself.
	Module string

	// Line is the 1-based source line, 0 when unknown.
	Line int
}

// Error implements the error interface.
func (e *AssemblyError) Error() string {
	switch {
	case e.Module != "" && e.Line > 0:
		return fmt.Sprintf("%s: %s (module %s, line %d)", e.Code, e.Message, e.Module, e.Line)
	case e.Line > 0:
		return fmt.Sprintf("%s: %s (line %d)", e.Code, e.Message, e.Line)
	case e.Module != "":
		return fmt.Sprintf("%s: %s (module %s)", e.Code, e.Message, e.Module)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func newError(code AssemblyErrorCode, line int, format string, args ...any) *AssemblyError {
	return &AssemblyError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
	}
}

// IsAssemblyError returns true if err is or wraps an *AssemblyError.
func IsAssemblyError(err error) bool {
	var ae *AssemblyError
	return errors.As(err, &ae)
}

// HasCode returns true if err is an *AssemblyError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code AssemblyErrorCode) bool {
	var ae *AssemblyError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
