package apiclient

import (
	"errors"
	"fmt"

	"github.com/example/atendimento/internal/attachment"
)

var (
	// ErrSubmission matches every failure of a request that was attempted:
	// HTTPError, MalformedResponseError and TransportError.
	ErrSubmission = errors.New("submission failed")

	// ErrMissingToken is returned before any I/O when no bearer token is given.
	ErrMissingToken = errors.New("missing bearer token")
)

const unknownErrorMessage = "Unknown error"

// HTTPError is a non-2xx response. Message comes from the error body, or is a
// fallback when the body carries none.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string { return e.Message }

func (e *HTTPError) Is(target error) bool { return target == ErrSubmission }

// MalformedResponseError is a 2xx response whose body is not valid JSON.
type MalformedResponseError struct {
	StatusCode int
	Err        error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response body: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrSubmission }

// TransportError means the request never produced a response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrSubmission }

// Message extracts the human-readable message of a client failure, without
// the operation prefix added for logs.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Message
	}
	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.Error()
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return transport.Error()
	}
	if errors.Is(err, attachment.ErrInvalidImageFormat) {
		return attachment.ErrInvalidImageFormat.Error()
	}
	if errors.Is(err, ErrMissingToken) {
		return ErrMissingToken.Error()
	}
	return err.Error()
}
