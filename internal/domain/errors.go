package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound                    = errors.New("not found")
	ErrForbidden                   = errors.New("forbidden")
	ErrQuotaExceeded               = errors.New("quota exceeded")
	ErrAuthenticationRequired      = errors.New("user not authenticated")
	ErrRemoteRequestFailed         = errors.New("remote request failed")
	ErrRemoteOperationUnsuccessful = errors.New("remote operation unsuccessful")
	ErrValidation                  = errors.New("validation failed")
	ErrSelectionLocked             = errors.New("selection locked during generation")
	ErrRunInFlight                 = errors.New("a generation run is already in flight")
	ErrRunComplete                 = errors.New("run already complete; reset before starting again")
)

// RemoteError carries the human-readable message returned by a remote service.
// Status is zero when the request never produced an HTTP response.
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("HTTP request failed with status %d", e.Status)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteRequestFailed }

// NewRemoteError builds a RemoteError, falling back to the status-derived message
// when the service did not provide one.
func NewRemoteError(status int, message string) *RemoteError {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("HTTP request failed with status %d", status)
	}
	return &RemoteError{Status: status, Message: message}
}

// UnsuccessfulError reports a 2xx response whose body carried success=false.
type UnsuccessfulError struct {
	Message string
}

func (e *UnsuccessfulError) Error() string {
	if e.Message == "" {
		return ErrRemoteOperationUnsuccessful.Error()
	}
	return e.Message
}

func (e *UnsuccessfulError) Is(target error) bool { return target == ErrRemoteOperationUnsuccessful }

// ValidationError rejects an input before any remote work starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is shorthand for a ValidationError on field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Message extracts the user-facing text of err: the remote message when one is
// available, otherwise the error string itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Error()
	}
	var unsuccessful *UnsuccessfulError
	if errors.As(err, &unsuccessful) {
		return unsuccessful.Error()
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}
	return err.Error()
}
