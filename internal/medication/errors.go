package medication

import (
	"errors"
	"fmt"
)

// Error is the structured error reported at the core boundary.
//
// Every code is recoverable where it occurs; none of them is fatal to the
// process.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending input field (validation errors only).
	Field string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes core errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates rejected input; nothing was persisted.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeNotFound indicates a medicine ID outside 1..N.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeEmptySchedule indicates an attempt to start with no medicines.
	ErrCodeEmptySchedule ErrorCode = "EMPTY_SCHEDULE"

	// ErrCodeInvalidState indicates a state machine transition that is not
	// allowed from the current state.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeCorruptStore indicates a persisted collection that could not be
	// decoded. It is logged and recovered from, never returned to callers of
	// the store.
	ErrCodeCorruptStore ErrorCode = "CORRUPT_STORE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates an Error for rejected input.
func NewValidationError(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message, Field: field}
}

// NewNotFoundError creates an Error for a missing medicine ID.
func NewNotFoundError(id int) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("medicine %d not found", id),
		Details: map[string]string{"id": fmt.Sprintf("%d", id)},
	}
}

// NewEmptyScheduleError creates an Error for starting with no medicines.
func NewEmptyScheduleError() *Error {
	return &Error{Code: ErrCodeEmptySchedule, Message: "add at least one medicine first"}
}

// NewInvalidStateError creates an Error for a disallowed state transition.
func NewInvalidStateError(op, state string) *Error {
	return &Error{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("cannot %s while %s", op, state),
		Details: map[string]string{"op": op, "state": state},
	}
}

// NewCorruptStoreError creates an Error describing an undecodable collection.
func NewCorruptStoreError(kind string, cause error) *Error {
	return &Error{
		Code:    ErrCodeCorruptStore,
		Message: fmt.Sprintf("%s collection is corrupt: %v", kind, cause),
		Details: map[string]string{"kind": kind},
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsEmptySchedule reports whether err is an empty-schedule error.
func IsEmptySchedule(err error) bool { return hasCode(err, ErrCodeEmptySchedule) }

// IsInvalidState reports whether err is an invalid state transition.
func IsInvalidState(err error) bool { return hasCode(err, ErrCodeInvalidState) }

// IsCorruptStore reports whether err describes a corrupt collection.
func IsCorruptStore(err error) bool { return hasCode(err, ErrCodeCorruptStore) }
