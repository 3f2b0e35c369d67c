package models

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports missing or invalid required fields. It is never
// retried and always names the offending fields.
type ValidationError struct {
	Table  string
	Fields []string
}

func (e *ValidationError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("validation failed for %s: missing required fields: %s", e.Table, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("validation failed: missing required fields: %s", strings.Join(e.Fields, ", "))
}

// NewValidationError creates a validation error for a set of field names
func NewValidationError(table string, fields ...string) *ValidationError {
	return &ValidationError{Table: table, Fields: fields}
}

// IdentityUnresolvedError means no identity anchor (id, auth id or email)
// could be established. Fatal to the submission.
type IdentityUnresolvedError struct {
	Hint string
}

func (e *IdentityUnresolvedError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("identity could not be resolved: %s", e.Hint)
	}
	return "identity could not be resolved: no account id, auth id or email in payload"
}

// ConflictError means a duplicate active submission exists for the same
// email anchor (provider flow only)
type ConflictError struct {
	Email          string
	ExistingStatus Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("an active submission already exists for %s (status %s)", e.Email, e.ExistingStatus)
}

// SchemaDriftError means a write failed against both the expected and the
// alternate column/label names. Internal retries happen before this is
// surfaced.
type SchemaDriftError struct {
	Table string
	Err   error
}

func (e *SchemaDriftError) Error() string {
	return fmt.Sprintf("schema drift on %s not recoverable: %v", e.Table, e.Err)
}

func (e *SchemaDriftError) Unwrap() error { return e.Err }

// StorageError means an attachment upload failed on both the primary and
// fallback paths
type StorageError struct {
	Slot string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("upload failed for slot %s: %v", e.Slot, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PartialWriteError means a later table in the write sequence failed after
// an earlier one succeeded. Earlier writes are not rolled back.
type PartialWriteError struct {
	Table string
	Err   error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("write to %s failed after earlier tables were written: %v", e.Table, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// InvalidTransitionError means a status transition was requested from a
// terminal state
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// IsValidationError reports whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflictError reports whether err is (or wraps) a ConflictError
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
