package services

import (
	"errors"
	"fmt"
)

// ErrCodeNotFound is returned when a verification code is unknown or expired.
var ErrCodeNotFound = errors.New("verification code not found")

// InvalidInputError signals an out-of-range or malformed request value. The
// caller fixes the request; retrying does not help.
type InvalidInputError struct {
	Message string
}

// Error satisfies error interface for InvalidInputError
func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// ThresholdNotMetError is a legitimate business rejection, not a fault. The
// engine never produces a proof of a false claim, so a GPA below the threshold
// stops here.
type ThresholdNotMetError struct {
	ScaledGpa       int64
	ScaledThreshold int64
}

// Error satisfies error interface for ThresholdNotMetError
func (e *ThresholdNotMetError) Error() string {
	return "gpa does not meet the threshold requirement"
}

// ProvingTimeoutError is returned when the proving backend exceeds its
// (generous) deadline.
type ProvingTimeoutError struct {
	Cause error
}

// Error satisfies error interface for ProvingTimeoutError
func (e *ProvingTimeoutError) Error() string {
	return fmt.Sprintf("proving timed out: %v", e.Cause)
}

// Unwrap exposes the underlying deadline error.
func (e *ProvingTimeoutError) Unwrap() error { return e.Cause }

// ProverFaultError wraps any non-timeout failure of the proving backend.
type ProverFaultError struct {
	Cause error
}

// Error satisfies error interface for ProverFaultError
func (e *ProverFaultError) Error() string {
	return fmt.Sprintf("prover fault: %v", e.Cause)
}

// Unwrap exposes the underlying prover error.
func (e *ProverFaultError) Unwrap() error { return e.Cause }

// LedgerUnavailableError is a transient connectivity or timeout fault against
// the ledger RPC endpoint. Retryable by the caller.
type LedgerUnavailableError struct {
	Cause error
}

// Error satisfies error interface for LedgerUnavailableError
func (e *LedgerUnavailableError) Error() string {
	return fmt.Sprintf("ledger unavailable: %v", e.Cause)
}

// Unwrap exposes the underlying transport error.
func (e *LedgerUnavailableError) Unwrap() error { return e.Cause }

// LedgerRejectedError is a permanent rejection: the contract reverted the
// call. AlreadyUsed marks the one recoverable sub-case, a code that already
// has an attestation; callers resolve the existing record instead of failing.
type LedgerRejectedError struct {
	Reason      string
	AlreadyUsed bool
}

// Error satisfies error interface for LedgerRejectedError
func (e *LedgerRejectedError) Error() string {
	return fmt.Sprintf("ledger rejected submission: %s", e.Reason)
}

// ExtractionError wraps a failure of the document extraction collaborator.
// It is propagated to the caller and never reaches the proof engine.
type ExtractionError struct {
	Cause error
}

// Error satisfies error interface for ExtractionError
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("document extraction failed: %v", e.Cause)
}

// Unwrap exposes the underlying extraction error.
func (e *ExtractionError) Unwrap() error { return e.Cause }
