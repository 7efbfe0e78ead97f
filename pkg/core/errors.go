package core

import (
	"fmt"
)

// Error represents a session error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrDeviceAccess means the camera or microphone is unavailable or the
	// user denied access. Fatal to the session; the user must retry manually.
	ErrDeviceAccess ErrorType = "device_access_error"
	// ErrCredentialMissing means no access credential could be discovered.
	ErrCredentialMissing ErrorType = "credential_missing_error"
	// ErrChannel means the remote session reported an error. Fatal.
	ErrChannel ErrorType = "channel_error"
	// ErrDecode means an inbound audio payload was malformed. The payload is
	// dropped; the session continues.
	ErrDecode ErrorType = "decode_error"
	// ErrMalformedToolCall means a tool call was missing a required argument.
	// The call is dropped silently.
	ErrMalformedToolCall ErrorType = "malformed_tool_call_error"
)

// NewDeviceAccessError creates a device access error.
func NewDeviceAccessError(message string, cause error) *Error {
	return &Error{
		Type:    ErrDeviceAccess,
		Message: message,
		Cause:   cause,
	}
}

// NewCredentialMissingError creates a credential missing error.
func NewCredentialMissingError(message string) *Error {
	return &Error{
		Type:    ErrCredentialMissing,
		Message: message,
	}
}

// NewChannelError creates a channel error.
func NewChannelError(message string, cause error) *Error {
	return &Error{
		Type:    ErrChannel,
		Message: message,
		Cause:   cause,
	}
}

// NewDecodeError creates a decode error for a malformed inbound payload.
func NewDecodeError(message string, cause error) *Error {
	return &Error{
		Type:    ErrDecode,
		Message: message,
		Cause:   cause,
	}
}

// NewMalformedToolCallError creates an error for a tool call with a missing
// required argument.
func NewMalformedToolCallError(message string) *Error {
	return &Error{
		Type:    ErrMalformedToolCall,
		Message: message,
	}
}

// IsFatal returns true if the error terminates the session.
// Decode and tool-call payload errors are local to one payload.
func (e *Error) IsFatal() bool {
	switch e.Type {
	case ErrDecode, ErrMalformedToolCall:
		return false
	default:
		return true
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}
