package managers

import (
	"errors"
	"fmt"
)

// ErrorKind represents category of domain error.
type ErrorKind int

const (
	ValidationError ErrorKind = iota + 1
	PermissionError
	StateConflictError
	CapacityError
	// RaceLostError is retried internally and never returned to callers.
	RaceLostError
	ExternalServiceError
	NotFoundError
)

// String returns string representation.
func (k ErrorKind) String() string {
	switch k {
	case ValidationError:
		return "validation"
	case PermissionError:
		return "permission"
	case StateConflictError:
		return "state_conflict"
	case CapacityError:
		return "capacity"
	case RaceLostError:
		return "race_lost"
	case ExternalServiceError:
		return "external_service"
	case NotFoundError:
		return "not_found"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// ErrorCode represents stable machine readable code of error.
type ErrorCode string

const (
	AccessCodeRequired       ErrorCode = "ACCESS_CODE_REQUIRED"
	AccessDenied             ErrorCode = "ACCESS_DENIED"
	AlreadyJoined            ErrorCode = "ALREADY_JOINED"
	CapacityExceeded         ErrorCode = "CAPACITY_EXCEEDED"
	NotParticipant           ErrorCode = "NOT_PARTICIPANT"
	NotCreator               ErrorCode = "NOT_CREATOR"
	NotAllReady              ErrorCode = "NOT_ALL_READY"
	InsufficientParticipants ErrorCode = "INSUFFICIENT_PARTICIPANTS"
	NoProblemsAvailable      ErrorCode = "NO_PROBLEMS_AVAILABLE"
	SessionNotActive         ErrorCode = "SESSION_NOT_ACTIVE"
	InvalidState             ErrorCode = "INVALID_STATE"
	RoundNotComplete         ErrorCode = "ROUND_NOT_COMPLETE"
	InvalidForm              ErrorCode = "INVALID_FORM"
	NotFound                 ErrorCode = "NOT_FOUND"
	JudgeUnavailable         ErrorCode = "JUDGE_UNAVAILABLE"
	RetryExhausted           ErrorCode = "RETRY_EXHAUSTED"
	StorageUnavailable       ErrorCode = "STORAGE_UNAVAILABLE"
	raceLost                 ErrorCode = "RACE_LOST"
)

// Error represents domain error of managers.
type Error struct {
	Kind    ErrorKind
	Code    ErrorCode
	Message string
	// Fields contains invalid fields of form.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, code ErrorCode, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func validationError(code ErrorCode, message string) *Error {
	return newError(ValidationError, code, message)
}

func permissionError(code ErrorCode, message string) *Error {
	return newError(PermissionError, code, message)
}

func stateConflictError(code ErrorCode, message string) *Error {
	return newError(StateConflictError, code, message)
}

func notFoundError(message string) *Error {
	return newError(NotFoundError, NotFound, message)
}

func externalServiceError(code ErrorCode, message string, err error) *Error {
	e := newError(ExternalServiceError, code, message)
	e.Err = err
	return e
}

// invalidFormError returns validation error with invalid fields.
func invalidFormError(fields map[string]string) *Error {
	e := validationError(InvalidForm, "Form has invalid fields.")
	e.Fields = fields
	return e
}

// GetError extracts domain error from chain.
func GetError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind returns true if error has specified kind.
func IsKind(err error, kind ErrorKind) bool {
	e, ok := GetError(err)
	return ok && e.Kind == kind
}

// IsCode returns true if error has specified code.
func IsCode(err error, code ErrorCode) bool {
	e, ok := GetError(err)
	return ok && e.Code == code
}
