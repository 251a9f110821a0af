// Package kgs structured error types for better error handling
package kgs

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Shape errors: mismatched realisation counts, indivisible chunking
	ErrTypeShape ErrorType = iota
	// Invalid configuration errors
	ErrTypeConfig
	// Device discovery and selection errors
	ErrTypeDevice
	// Kernel program build errors
	ErrTypeBuild
	// Memory errors
	ErrTypeMemory
	// Kernel execution errors
	ErrTypeExecution
	// Input data errors
	ErrTypeData
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kgs %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("kgs %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the sentinel of its category,
// so errors.Is(err, ErrShapeMismatch) works on wrapped errors.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Type]
	return ok && target == s
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeShape:
		return "Shape"
	case ErrTypeConfig:
		return "Configuration"
	case ErrTypeDevice:
		return "Device"
	case ErrTypeBuild:
		return "Build"
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeData:
		return "Data"
	default:
		return "Unknown"
	}
}

// Category sentinels. Match with errors.Is against any wrapped *Error.

var (
	// ErrShapeMismatch indicates inputs whose shapes cannot be combined
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidConfiguration indicates rejected estimator settings
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDeviceNotFound indicates that no compute device is available
	// or the requested device ID does not exist
	ErrDeviceNotFound = errors.New("no compute device found")

	// ErrProgramBuild indicates kernel program construction failure
	ErrProgramBuild = errors.New("kernel program build failed")

	// ErrOutOfMemory indicates that the device memory budget is too
	// small for even a single trial chunk
	ErrOutOfMemory = errors.New("out of device memory")

	// ErrDeviceFailure indicates a kernel execution failure
	ErrDeviceFailure = errors.New("device execution failure")

	// ErrBadData indicates input values outside the supported range
	ErrBadData = errors.New("unsupported input data")
)

var sentinels = map[ErrorType]error{
	ErrTypeShape:     ErrShapeMismatch,
	ErrTypeConfig:    ErrInvalidConfiguration,
	ErrTypeDevice:    ErrDeviceNotFound,
	ErrTypeBuild:     ErrProgramBuild,
	ErrTypeMemory:    ErrOutOfMemory,
	ErrTypeExecution: ErrDeviceFailure,
	ErrTypeData:      ErrBadData,
}

// Common error constructors

// NewShapeError creates a shape error
func NewShapeError(op string, message string) error {
	return &Error{
		Type:    ErrTypeShape,
		Op:      op,
		Message: message,
	}
}

// NewConfigError creates an invalid configuration error
func NewConfigError(op string, message string) error {
	return &Error{
		Type:    ErrTypeConfig,
		Op:      op,
		Message: message,
	}
}

// NewDeviceError creates a device discovery or selection error
func NewDeviceError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewBuildError creates a kernel program build error
func NewBuildError(op string, message string) error {
	return &Error{
		Type:    ErrTypeBuild,
		Op:      op,
		Message: message,
	}
}

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewExecutionError creates a kernel execution error
func NewExecutionError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewDataError creates an input data error
func NewDataError(op string, message string) error {
	return &Error{
		Type:    ErrTypeData,
		Op:      op,
		Message: message,
	}
}

// IsShapeError checks if an error is a shape error
func IsShapeError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeShape
}

// IsConfigError checks if an error is an invalid configuration error
func IsConfigError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeConfig
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == ErrTypeMemory
}
