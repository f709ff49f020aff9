package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a document was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input, detected before any store call
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates there is no signed-in identity
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates the entity belongs to another identity
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRemote       = errors.New("remote store failure")
	ErrDecode       = errors.New("malformed document")
)

// RemoteError wraps a failure of the document store or the network path to it.
type RemoteError struct {
	Op  string // create, get, update, delete, subscribe
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) StatusCode() int { return http.StatusBadGateway }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// DecodeError reports a stored document whose fields do not match the entity schema.
type DecodeError struct {
	Collection string
	ID         string
	Field      string
	Reason     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s: field %q %s", e.Collection, e.ID, e.Field, e.Reason)
}

func (e *DecodeError) StatusCode() int { return http.StatusInternalServerError }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NewRemoteError wraps err as a RemoteError unless it already carries a domain meaning
// (not found, forbidden, validation), in which case it is returned unchanged.
func NewRemoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrRemote),
		errors.Is(err, ErrDecode):
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// PermissionDeniedMessage is shown for both "not found" and "not yours" so the two
// cases cannot be told apart.
const PermissionDeniedMessage = "You don't have permission to access this item."

// UserMessage converts any error into a message suitable for inline display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrUnauthorized):
		return "You must be signed in to perform this action."
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotFound):
		return PermissionDeniedMessage
	case errors.Is(err, ErrDecode):
		return "Some data could not be read. Please try again later."
	default:
		return "Something went wrong talking to the server. Please try again."
	}
}
