package services

import (
	"errors"
	"fmt"
)

// ValidationError is a client-input failure, rejected before any provider call.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	if e.Msg == "" {
		return "validation error"
	}
	return e.Msg
}

// UpstreamError is a whole-call failure of a provider. Message is safe to show
// to the caller; Err carries the diagnostic detail and is only logged.
type UpstreamError struct {
	Op      string
	Message string
	Err     error
}

func (e UpstreamError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e UpstreamError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

// PublicMessage returns what a caller may see for err.
func PublicMessage(err error) string {
	var v ValidationError
	if errors.As(err, &v) {
		return v.Error()
	}
	var u UpstreamError
	if errors.As(err, &u) && u.Message != "" {
		return u.Message
	}
	return "internal error"
}
