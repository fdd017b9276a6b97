package hostfuncs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reglet-dev/capgate/domain/entities"
	domainerrors "github.com/reglet-dev/capgate/domain/errors"
)

// ErrorResponse is the structured error a member returns instead of a
// response body. Guests receive it as JSON rather than a WASM trap.
type ErrorResponse struct {
	// Error is a machine-readable type (e.g. "VALIDATION_ERROR", "CAPABILITY_DENIED").
	Error string `json:"error"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Code is an HTTP-like status code.
	Code int `json:"code"`
}

// ToJSON serializes the ErrorResponse.
func (e ErrorResponse) ToJSON() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return data
}

// Err converts the response back into a Go error.
func (e ErrorResponse) Err() error {
	return &CallError{Response: e}
}

// CallError is the Go form of an ErrorResponse returned by a member.
type CallError struct {
	Response ErrorResponse
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Response.Error, e.Response.Code, e.Response.Message)
}

// Is lets errors.Is match the domain sentinels for denials and missing names.
func (e *CallError) Is(target error) bool {
	switch target {
	case domainerrors.ErrCapabilityDenied:
		return e.Response.Error == codeDenied
	case domainerrors.ErrNotFound:
		return e.Response.Error == codeNotFound
	}
	return false
}

// ToErrorDetail implements errors.DetailedError.
func (e *CallError) ToErrorDetail() *entities.ErrorDetail {
	d := &entities.ErrorDetail{
		Message: e.Response.Message,
		Code:    e.Response.Error,
		Details: map[string]any{"status": e.Response.Code},
	}
	switch e.Response.Error {
	case codeDenied:
		d.Type, d.IsDenied = "capability", true
	case codeNotFound:
		d.Type, d.IsNotFound = "not_found", true
	case codeTimeout:
		d.Type, d.IsTimeout = "timeout", true
	case codeValidation:
		d.Type = "validation"
	default:
		d.Type = "internal"
	}
	return d
}

// ParseErrorResponse reports whether data is an ErrorResponse.
func ParseErrorResponse(data []byte) (ErrorResponse, bool) {
	var body struct {
		Error   *string `json:"error"`
		Message string  `json:"message"`
		Code    int     `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Error == nil || body.Code == 0 {
		return ErrorResponse{}, false
	}
	return ErrorResponse{Error: *body.Error, Message: body.Message, Code: body.Code}, true
}

const (
	codeValidation = "VALIDATION_ERROR"
	codeDenied     = "CAPABILITY_DENIED"
	codeNotFound   = "NOT_FOUND"
	codeTimeout    = "TIMEOUT"
	codeInternal   = "INTERNAL_ERROR"
)

// NewValidationError creates an error response for bad input.
func NewValidationError(message string) ErrorResponse {
	return ErrorResponse{Error: codeValidation, Message: message, Code: 400}
}

// NewDeniedError creates an error response for a refused capability.
func NewDeniedError(name string) ErrorResponse {
	return ErrorResponse{Error: codeDenied, Message: fmt.Sprintf("capability %q is not allow-listed", name), Code: 403}
}

// NewNotFoundError creates an error response for unknown names.
func NewNotFoundError(name string) ErrorResponse {
	return ErrorResponse{Error: codeNotFound, Message: "not found: " + name, Code: 404}
}

// NewInternalError creates an error response for unexpected failures.
func NewInternalError(message string) ErrorResponse {
	return ErrorResponse{Error: codeInternal, Message: message, Code: 500}
}

// NewPanicError creates an error response for recovered panics.
func NewPanicError(panicValue any) ErrorResponse {
	msg := "panic recovered"
	switch v := panicValue.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	}
	return NewInternalError("panic: " + msg)
}

// ArgumentError reports a request a member cannot act on.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return e.Msg }

func argErrorf(format string, args ...any) error {
	return &ArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// FromError maps an error to its ErrorResponse.
func FromError(err error) ErrorResponse {
	var (
		denied   *domainerrors.CapabilityDeniedError
		notFound *domainerrors.NotFoundError
		timeout  *domainerrors.TimeoutError
		argErr   *ArgumentError
		invalid  *domainerrors.InvalidNameError
		callErr  *CallError
	)
	switch {
	case errors.As(err, &callErr):
		return callErr.Response
	case errors.As(err, &denied):
		return ErrorResponse{Error: codeDenied, Message: denied.Error(), Code: 403}
	case errors.As(err, &notFound):
		return ErrorResponse{Error: codeNotFound, Message: notFound.Error(), Code: 404}
	case errors.As(err, &timeout):
		return ErrorResponse{Error: codeTimeout, Message: timeout.Error(), Code: 504}
	case errors.As(err, &argErr), errors.As(err, &invalid):
		return NewValidationError(err.Error())
	default:
		return NewInternalError(err.Error())
	}
}
