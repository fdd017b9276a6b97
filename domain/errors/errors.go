// Package errors provides domain-specific error types for capgate.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/reglet-dev/capgate/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// Sentinels matched by the typed errors below through errors.Is.
var (
	// ErrCapabilityDenied matches every *CapabilityDeniedError.
	ErrCapabilityDenied = stdErrors.New("capability denied")

	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = stdErrors.New("capability not found")
)

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail. New error types only need to implement this
// interface to be recognised by ToErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	// If the error is already a *ErrorDetail (entity), use it directly.
	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	// Generic error - categorize as internal
	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// CapabilityDeniedError is returned by the load gate when the root segment of
// a requested name is not allow-listed. It is the only error the gate itself
// produces.
type CapabilityDeniedError struct {
	Name   string // Attempted capability name, as requested
	Reason string // Optional: why the request was refused
}

func (e *CapabilityDeniedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("capability %q is not allow-listed: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("capability %q is not allow-listed", e.Name)
}

// Is makes errors.Is(err, ErrCapabilityDenied) true.
func (e *CapabilityDeniedError) Is(target error) bool {
	return target == ErrCapabilityDenied
}

// ToErrorDetail implements DetailedError.
func (e *CapabilityDeniedError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:  e.Error(),
		Type:     "capability",
		Code:     "CAPABILITY_DENIED",
		IsDenied: true,
		Details:  map[string]any{"name": e.Name},
	}
}

// NotFoundError is returned by the original loader when a permitted name
// (or one of its requested members) does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("capability %q not found", e.Name)
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ToErrorDetail implements DetailedError.
func (e *NotFoundError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "not_found",
		Code:       "NOT_FOUND",
		IsNotFound: true,
		Details:    map[string]any{"name": e.Name},
	}
}

// InvalidNameError is returned by the original loader for names that are not
// syntactically valid or cannot be resolved relative to the requester.
type InvalidNameError struct {
	Err  error
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid capability name %q: %v", e.Name, e.Err)
}

func (e *InvalidNameError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InvalidNameError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "validation", Code: "INVALID_NAME"}
}

// InitError is returned when a permitted capability exists but fails to initialize.
type InitError struct {
	Err  error
	Name string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("capability %q failed to initialize: %v", e.Name, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InitError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "init", Code: "INIT_FAILED"}
}

// TimeoutError represents a timeout during an operation.
type TimeoutError struct {
	Operation string
	Target    string
	Duration  time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s timeout after %v (target: %s)", e.Operation, e.Duration, e.Target)
	}
	return fmt.Sprintf("%s timeout after %v", e.Operation, e.Duration)
}

func (e *TimeoutError) Timeout() bool {
	return true
}

// ToErrorDetail implements DetailedError.
func (e *TimeoutError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "timeout", Code: e.Operation, IsTimeout: true}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed for field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// NetworkError represents a network operation failure inside a capability.
type NetworkError struct {
	Err       error
	Operation string
	Target    string
}

func (e *NetworkError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("network %s failed for %s: %v", e.Operation, e.Target, e.Err)
	}
	return fmt.Sprintf("network %s failed: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *NetworkError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "network", Code: e.Operation}
}

// ExecError represents a command execution error.
type ExecError struct {
	Err      error
	Command  string
	Stderr   string
	ExitCode int
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to execute '%s': %v", e.Command, e.Err)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("command '%s' exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command '%s' exited with code %d", e.Command, e.ExitCode)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ExecError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "exec", Code: fmt.Sprintf("exit_%d", e.ExitCode)}
}

// WireFormatError represents a failure to decode or encode a guest payload.
type WireFormatError struct {
	Err       error
	Operation string
	Type      string
}

func (e *WireFormatError) Error() string {
	return fmt.Sprintf("wire format %s failed for %s: %v", e.Operation, e.Type, e.Err)
}

func (e *WireFormatError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *WireFormatError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "internal", Code: "wire_format"}
}
