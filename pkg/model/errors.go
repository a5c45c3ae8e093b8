package model

import (
	"fmt"
	"strings"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrConfiguration ErrorCode = "CONFIGURATION_ERROR"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrRateLimited   ErrorCode = "RATE_LIMITED"
	ErrInternal      ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the wolf API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// ConfigurationError reports an unknown genome build, an unknown sequencing
// type for a build, or a reference key a workflow needs but the resolved
// mapping lacks.
type ConfigurationError struct {
	Key     string // "build", "sequencing_type", or the missing reference key
	Value   string
	Allowed []string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("configuration: unknown %s %q", e.Key, e.Value)
	if e.Value == "" {
		msg = fmt.Sprintf("configuration: missing %s", e.Key)
	}
	if len(e.Allowed) > 0 {
		msg += fmt.Sprintf(" (allowed: %s)", strings.Join(e.Allowed, ", "))
	}
	return msg
}

// MissingInputError is returned when a required task input is not bound.
type MissingInputError struct {
	Node  string
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("task %s: missing required input %q", e.Node, e.Input)
}

// UnknownInputError is returned when an input is bound that the task does not declare.
type UnknownInputError struct {
	Node  string
	Input string
}

func (e *UnknownInputError) Error() string {
	return fmt.Sprintf("task %s: undeclared input %q", e.Node, e.Input)
}

// InputTypeError is returned when a bound value does not match the declared kind.
type InputTypeError struct {
	Node  string
	Input string
	Want  string
	Got   string
}

func (e *InputTypeError) Error() string {
	return fmt.Sprintf("task %s: input %q expects %s, got %s", e.Node, e.Input, e.Want, e.Got)
}

// ScatterTypeError is returned when a scatter is requested on an input that
// cannot be fanned out.
type ScatterTypeError struct {
	Node   string
	Input  string
	Reason string
}

func (e *ScatterTypeError) Error() string {
	return fmt.Sprintf("scatter %s over %q: %s", e.Node, e.Input, e.Reason)
}

// EmptyScatterError is returned when a scatter input holds no elements.
type EmptyScatterError struct {
	Node  string
	Input string
}

func (e *EmptyScatterError) Error() string {
	return fmt.Sprintf("scatter %s over %q: collection is empty", e.Node, e.Input)
}

// CycleError is returned when a task graph is not acyclic. It indicates a bug
// in graph construction, never bad user input.
type CycleError struct {
	Instances []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("task graph contains a cycle involving instances: %s", strings.Join(e.Instances, ", "))
}
