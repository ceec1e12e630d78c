package editor

import (
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/resumate/internal/imports"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
)

var (
	// ErrUnauthorized indicates that no owner identity could be resolved.
	ErrUnauthorized = errors.New("editor: unauthorized")
	// ErrNotFound indicates that the load, delete or duplicate target does not exist.
	ErrNotFound = errors.New("editor: document not found")
	// ErrLoadFailed indicates a transport or decode failure while reading the remote store.
	ErrLoadFailed = errors.New("editor: load failed")
	// ErrPersistFailed indicates a transport or remote-side failure while writing.
	ErrPersistFailed = errors.New("editor: persist failed")
	// ErrImportValidationFailed indicates a malformed import payload.
	ErrImportValidationFailed = errors.New("editor: import validation failed")
	// ErrNoActiveDocument indicates a mutation issued before create or load.
	ErrNoActiveDocument = errors.New("editor: no active document")
	// ErrProfileUnavailable indicates that no autofill profile exists for the owner.
	ErrProfileUnavailable = errors.New("editor: profile unavailable")

	// ErrSectionNotFound is returned when a section operation targets an unknown id.
	ErrSectionNotFound = resumes.ErrSectionNotFound
	// ErrContentTypeMismatch is returned when a content patch does not match the section type.
	ErrContentTypeMismatch = resumes.ErrContentTypeMismatch
)

// ServiceError carries a stable "operation.reason" code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// classify wraps cause with the taxonomy sentinel so callers can match either.
func classify(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// ImportValidationError lists the field errors of a rejected import payload.
type ImportValidationError struct {
	Fields   []imports.FieldError
	Warnings []string
}

func (e *ImportValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("%v: %s: %s", ErrImportValidationFailed, e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("%v: %d field errors", ErrImportValidationFailed, len(e.Fields))
}

// Is reports whether target is ErrImportValidationFailed.
func (e *ImportValidationError) Is(target error) bool {
	return target == ErrImportValidationFailed
}
