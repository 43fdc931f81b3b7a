// Package apperr defines the error taxonomy shared by the booking core.
//
// Local errors (validation, conflict) never reach the backend. Remote errors
// are produced by the chefapi client from HTTP responses. Auth-expired and
// cancelled errors are silent: callers stop the current action without
// showing anything to the user.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// FallbackMessage is shown when a remote failure carries no message.
const FallbackMessage = "Something went wrong. Please try again."

// ValidationError reports local input that cannot be submitted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a mutation rejected because it contradicts current state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a bridge session that does not exist or has expired.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InvalidPinError is returned when the backend rejects a wallet PIN.
type InvalidPinError struct{}

func (*InvalidPinError) Error() string { return "wallet pin is incorrect" }

// InsufficientBalanceError is returned when the wallet cannot cover an action.
type InsufficientBalanceError struct {
	Message string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Message == "" {
		return "insufficient wallet balance"
	}
	return "insufficient wallet balance: " + e.Message
}

// AuthExpiredError mirrors an HTTP 401 or a locally expired token.
type AuthExpiredError struct{}

func (*AuthExpiredError) Error() string { return "authentication expired" }

// RequestCancelledError is returned when the caller abandoned the request.
type RequestCancelledError struct {
	Cause error
}

func (e *RequestCancelledError) Error() string {
	if e.Cause == nil {
		return "request cancelled"
	}
	return "request cancelled: " + e.Cause.Error()
}

func (e *RequestCancelledError) Unwrap() error { return e.Cause }

// RemoteServiceError is any other non-2xx answer from the backend.
type RemoteServiceError struct {
	Status  int
	Message string
}

func (e *RemoteServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote service returned %d", e.Status)
	}
	return fmt.Sprintf("remote service returned %d: %s", e.Status, e.Message)
}

// Silent reports whether err must be swallowed without user feedback.
func Silent(err error) bool {
	var auth *AuthExpiredError
	var cancelled *RequestCancelledError
	return errors.As(err, &auth) || errors.As(err, &cancelled)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsInvalidPin reports whether err is (or wraps) an InvalidPinError.
func IsInvalidPin(err error) bool {
	var p *InvalidPinError
	return errors.As(err, &p)
}

// IsInsufficientBalance reports whether err is (or wraps) an InsufficientBalanceError.
func IsInsufficientBalance(err error) bool {
	var b *InsufficientBalanceError
	return errors.As(err, &b)
}

// UserMessage returns the text to surface for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		v      *ValidationError
		c      *ConflictError
		pin    *InvalidPinError
		bal    *InsufficientBalanceError
		remote *RemoteServiceError
		nf     *NotFoundError
	)
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &c):
		return c.Message
	case errors.As(err, &pin):
		return "Incorrect PIN. Please try again."
	case errors.As(err, &bal):
		return "Your wallet balance is not enough for this payment."
	case errors.As(err, &nf):
		return "This session has expired. Please start again."
	case errors.As(err, &remote):
		if msg := strings.TrimSpace(remote.Message); msg != "" {
			return msg
		}
	}
	return FallbackMessage
}
