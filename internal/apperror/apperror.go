package apperror

import (
	"errors"
	"net/http"
)

// Error kinds shared by the pipeline, the dispatcher and the HTTP handlers.
// Callers wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrDecode marks a malformed input image. Terminal for the request.
	ErrDecode = errors.New("decode error")
	// ErrPerception marks a failed model invocation. Isolated to one frame.
	ErrPerception = errors.New("perception error")
	// ErrDispatch marks a failed actuation (transport error, timeout, rejected command).
	ErrDispatch = errors.New("dispatch error")
	// ErrLog marks a persistence failure after a successful dispatch.
	ErrLog = errors.New("log error")
	// ErrConfig marks invalid parameters, rejected before any transport call.
	ErrConfig = errors.New("config error")
)

// HTTPStatus maps an error to the status code reported to API clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrDecode), errors.Is(err, ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, ErrDispatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
