package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed domain error that knows its HTTP status.
// Reasons carries the evaluator's explanation list for eligibility rejections.
type Error struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Status  int      `json:"status"`
	Reasons []string `json:"reasons,omitempty"`
	Err     error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code so clones of a predefined error compare equal to it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates an Error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a code and status to an underlying error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Business rejections raised by the application workflow.
	ErrNotEligible          = New("NOT_ELIGIBLE", http.StatusForbidden, "student is not eligible for this job")
	ErrAlreadyPlaced        = New("ALREADY_PLACED", http.StatusForbidden, "student is already placed")
	ErrDuplicateApplication = New("DUPLICATE_APPLICATION", http.StatusConflict, "already applied to this job")
	ErrJobNotActive         = New("JOB_NOT_ACTIVE", http.StatusConflict, "job is not accepting applications")
	ErrProfileNotVerified   = New("PROFILE_NOT_VERIFIED", http.StatusForbidden, "profile is not verified")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies err, optionally overriding the message.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if len(err.Reasons) > 0 {
		clone.Reasons = append([]string(nil), err.Reasons...)
	}
	return &clone
}

// WithReasons returns a copy of err carrying the given reasons.
func WithReasons(err *Error, reasons []string) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	clone.Reasons = append([]string(nil), reasons...)
	return clone
}

// IsBusiness reports whether err is an expected rejection rather than an infrastructure fault.
func IsBusiness(err error) bool {
	e := FromError(err)
	if e == nil {
		return false
	}
	return e.Status < http.StatusInternalServerError
}
