package provider

import (
	"context"
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeTimeout       ErrorCode = "timeout"
	CodeUnavailable   ErrorCode = "unavailable"
	CodeInvalidOutput ErrorCode = "invalid_output"
	CodeNotConfigured ErrorCode = "not_configured"
)

// Error is returned by every external collaborator (speech-to-text, emotion analysis, LLM).
type Error struct {
	Provider string
	Code     ErrorCode
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(provider string, code ErrorCode, message string, err error) *Error {
	return &Error{Provider: provider, Code: code, Message: message, Err: err}
}

// Wrap classifies err as a timeout when ctx expired and as unavailable otherwise.
func Wrap(ctx context.Context, provider, message string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(provider, CodeTimeout, message, err)
	}
	return NewError(provider, CodeUnavailable, message, err)
}

// CodeOf returns the code carried by err, or "" when err is not a provider error.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
