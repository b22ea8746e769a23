// Package errors provides standardized error handling for the Wrale Overlay client
package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors that can be used across the application
var (
	// ErrMalformedPayload indicates an inbound message could not be decoded
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrIncompleteChannel indicates a notification channel is missing a companion field
	ErrIncompleteChannel = errors.New("incomplete channel")

	// ErrNotConnected indicates there is no live control connection
	ErrNotConnected = errors.New("not connected")

	// ErrSendBufferFull indicates the outbound queue cannot take another message
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrMediaUnavailable indicates a media clip could not be fetched or decoded
	ErrMediaUnavailable = errors.New("media unavailable")

	// ErrInvalidConfig indicates invalid configuration values
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error represents a domain error with additional context
type Error struct {
	// Code is a machine-readable error code
	Code string
	// Message is a human-readable error description
	Message string
	// Op describes the operation that failed
	Op string
	// Err is the underlying error
	Err error
}

// Error implements the error interface with a formatted message
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain handling
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given details
func NewError(code string, message string, op string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// IsMalformedPayload returns true if err represents an undecodable payload
func IsMalformedPayload(err error) bool {
	return errors.Is(err, ErrMalformedPayload)
}

// IsIncompleteChannel returns true if err represents a skipped notification channel
func IsIncompleteChannel(err error) bool {
	return errors.Is(err, ErrIncompleteChannel)
}

// IsNotConnected returns true if err represents a missing connection
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// IsMediaUnavailable returns true if err represents a media fetch or decode failure
func IsMediaUnavailable(err error) bool {
	return errors.Is(err, ErrMediaUnavailable)
}

// IsInvalidConfig returns true if err represents a configuration error
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
