package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrAuthInvalid   = fmt.Errorf("authentication failed")
	ErrRateLimit     = fmt.Errorf("rate limit exceeded")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrNotFound      = fmt.Errorf("not found")
	ErrLockConflict  = fmt.Errorf("shape is locked by another user")
	ErrToolNotFound  = fmt.Errorf("tool not found")
	ErrAlreadyUndone = fmt.Errorf("operation already undone")
	ErrIrreversible  = fmt.Errorf("operation cannot be reversed")
	ErrProviderError = fmt.Errorf("llm provider error")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "ShapeStore.Patch")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeAuthInvalid   ErrorCode = "AUTH_INVALID"
	CodeRateLimit     ErrorCode = "RATE_LIMIT"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeLockConflict  ErrorCode = "LOCK_CONFLICT"
	CodeToolNotFound  ErrorCode = "TOOL_NOT_FOUND"
	CodeAlreadyUndone ErrorCode = "ALREADY_UNDONE"
	CodeIrreversible  ErrorCode = "IRREVERSIBLE"
	CodeProviderError ErrorCode = "PROVIDER_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrAuthInvalid:   CodeAuthInvalid,
	ErrRateLimit:     CodeRateLimit,
	ErrInvalidInput:  CodeInvalidInput,
	ErrNotFound:      CodeNotFound,
	ErrLockConflict:  CodeLockConflict,
	ErrToolNotFound:  CodeToolNotFound,
	ErrAlreadyUndone: CodeAlreadyUndone,
	ErrIrreversible:  CodeIrreversible,
	ErrProviderError: CodeProviderError,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and walks the error chain with errors.Is.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	if code, ok := errorCodeMap[err]; ok {
		return code
	}
	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
