package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a request with missing or malformed input
	ErrValidation = errors.New("validation failed")
	// ErrUnroutable marks a request no route accepts
	ErrUnroutable = errors.New("unroutable request")
	// ErrPublish marks a failed or rejected bus publish
	ErrPublish = errors.New("publish failed")
)

// ValidationError reports a required input that is missing or malformed
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewRequiredError creates a ValidationError for an absent field
func NewRequiredError(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// UnroutableRequestError reports a method/resource pair with no route
type UnroutableRequestError struct {
	Method   string
	Resource string
}

func (e *UnroutableRequestError) Error() string {
	return "Unknown path and method"
}

// Is lets errors.Is match ErrUnroutable
func (e *UnroutableRequestError) Is(target error) bool {
	return target == ErrUnroutable
}

// PublishFailure reports a bus publish that errored or was rejected
type PublishFailure struct {
	Source       string
	DetailType   string
	ErrorCode    string
	ErrorMessage string
	Err          error
}

func (e *PublishFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to publish %s event from %s: %v", e.DetailType, e.Source, e.Err)
	}
	return fmt.Sprintf("failed to publish %s event from %s: %s: %s",
		e.DetailType, e.Source, e.ErrorCode, e.ErrorMessage)
}

func (e *PublishFailure) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrPublish
func (e *PublishFailure) Is(target error) bool {
	return target == ErrPublish
}
