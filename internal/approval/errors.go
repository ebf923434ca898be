package approval

import (
	"errors"
	"fmt"
)

// Validation codes reported by ValidationError.
const (
	CodeMissingMainKeyword = "missing_main_keyword"
	CodeInvalidJSON        = "invalid_json"
	CodeUnsavedEdits       = "unsaved_edits"
	CodeEmptyModification  = "empty_modification"
	CodeUnknownIntent      = "unknown_intent"
	CodeBusy               = "busy"
	CodeMainKeywordLocked  = "main_keyword_locked"
	CodeNotKeywordStep     = "not_keyword_step"
	CodeNotRetryable       = "not_retryable"
	CodeNoJob              = "no_job"
)

// ValidationError is a local input problem. Nothing was sent; the reviewer corrects and retries.
type ValidationError struct {
	Code    string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError builds a ValidationError with an optional cause.
func NewValidationError(code, message string, cause error) error {
	return &ValidationError{Code: code, Message: message, Err: cause}
}

// ConflictError means the approval was already decided, here or by another reviewer.
type ConflictError struct {
	ApprovalID string
	Status     Status
}

func (e *ConflictError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("approval %s is not pending", e.ApprovalID)
	}
	return fmt.Sprintf("approval %s is already %s", e.ApprovalID, e.Status)
}

// TransportError wraps a network or backend failure for one operation.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError, optionally with one of codes.
func IsValidation(err error, codes ...string) bool {
	var target *ValidationError
	if !errors.As(err, &target) {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, code := range codes {
		if target.Code == code {
			return true
		}
	}
	return false
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}
