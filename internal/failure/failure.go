// Package failure defines the error kinds shared by the capture, relay and
// generative clients so that callers can tell them apart with errors.Is.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDevice            = errors.New("audio device unavailable")
	ErrTransport         = errors.New("remote service request failed")
	ErrRateLimited       = errors.New("remote service rate limit exceeded")
	ErrMalformedResponse = errors.New("malformed remote service response")
	ErrTimeout           = errors.New("operation timed out")
	ErrBusy              = errors.New("another recording is still being processed")
)

// Wrap annotates err with the given kind unless it already carries one.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}

	if Kind(err) != nil {
		return err
	}

	return fmt.Errorf("%w: %w", kind, err)
}

// FromStatus maps a non-2xx status code of a remote service to an error.
func FromStatus(service string, statusCode int) error {
	if statusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s responded with status code %d", ErrRateLimited, service, statusCode)
	}

	return fmt.Errorf("%w: %s responded with status code %d", ErrTransport, service, statusCode)
}

// Kind returns the error kind err carries or nil.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInvalidInput,
		ErrDevice,
		ErrRateLimited,
		ErrMalformedResponse,
		ErrTimeout,
		ErrBusy,
		ErrTransport,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	return nil
}

// Message returns a user-facing message for err that does not leak internal details.
func Message(err error) string {
	switch Kind(err) {
	case ErrInvalidInput:
		return "The recording could not be processed. Please record again."
	case ErrDevice:
		return "Microphone access failed. Please check your microphone settings."
	case ErrRateLimited:
		return "The service is busy right now. Please try again in a moment."
	case ErrTimeout:
		return "The service took too long to respond. Please try again."
	case ErrBusy:
		return "Please wait until the previous recording has been processed."
	case ErrTransport, ErrMalformedResponse:
		return "The service could not process the request. Please try again."
	default:
		return "An unexpected error occurred."
	}
}

// StatusCode returns the HTTP status code the relay responds with for err.
func StatusCode(err error) int {
	switch Kind(err) {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrBusy:
		return http.StatusConflict
	case ErrTransport, ErrMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
