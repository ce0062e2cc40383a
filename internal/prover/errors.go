package prover

import (
	"errors"
	"fmt"
)

// VerifyErrorCode categorizes verification failures.
type VerifyErrorCode string

const (
	// ErrCodeMalformedProof indicates a structurally invalid proof.
	ErrCodeMalformedProof VerifyErrorCode = "MALFORMED_PROOF"

	// ErrCodeInsufficientWork indicates the grinding nonce is invalid.
	ErrCodeInsufficientWork VerifyErrorCode = "INSUFFICIENT_PROOF_OF_WORK"

	// ErrCodeQueryMismatch indicates openings at positions the seed did not select.
	ErrCodeQueryMismatch VerifyErrorCode = "QUERY_POSITION_MISMATCH"

	// ErrCodeMerklePath indicates an opening that is not under the trace root.
	ErrCodeMerklePath VerifyErrorCode = "INVALID_MERKLE_PATH"

	// ErrCodeInputMismatch indicates the first row disagrees with the public inputs.
	ErrCodeInputMismatch VerifyErrorCode = "INPUT_MISMATCH"

	// ErrCodeOutputMismatch indicates the last row disagrees with the outputs.
	ErrCodeOutputMismatch VerifyErrorCode = "OUTPUT_MISMATCH"
)

// VerifyError is returned by Verify when a proof is rejected.
type VerifyError struct {
	Code    VerifyErrorCode
	Message string
}

// Error implements the error interface.
func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func verifyErr(code VerifyErrorCode, format string, args ...any) *VerifyError {
	return &VerifyError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsVerifyError returns true if err is or wraps a *VerifyError.
func IsVerifyError(err error) bool {
	var ve *VerifyError
	return errors.As(err, &ve)
}
