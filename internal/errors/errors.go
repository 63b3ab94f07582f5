// Package errors defines the client error taxonomy for the counsel console and
// widget: configuration errors (logged, never shown), transport errors
// (non-fatal, logged), request failures (shown as a blocking notice naming the
// attempted action), and the blocked-popup case (shown as instructions).
package errors

import (
	"fmt"
)

// Category classifies an error for propagation policy decisions.
type Category string

const (
	// CategoryConfig covers missing identity or session id at connect time.
	// Aborted before any network effect; developer-facing, never a user dialog.
	CategoryConfig Category = "config"
	// CategoryTransport covers channel errors, unexpected closes, and inbound
	// parse failures. Non-fatal, logged.
	CategoryTransport Category = "transport"
	// CategoryRequest covers HTTP non-success and logical ok:false responses.
	// Surfaced to the user; local state is left unchanged so they can retry.
	CategoryRequest Category = "request"
	// CategoryPopup covers the blocked secondary surface. Surfaced as an
	// actionable instructional notice; the accept flow aborts cleanly.
	CategoryPopup Category = "popup"
)

// Code identifies a specific error condition.
type Code string

const (
	CodeSessionMissing  Code = "SESSION_MISSING"
	CodeIdentityMissing Code = "IDENTITY_MISSING"
	CodeChannelClosed   Code = "CHANNEL_CLOSED"
	CodeDialFailed      Code = "DIAL_FAILED"
	CodeRequestFailed   Code = "REQUEST_FAILED"
	CodeRequestRejected Code = "REQUEST_REJECTED"
	CodePopupBlocked    Code = "POPUP_BLOCKED"
)

// ClientError is an application error with category and surfacing information.
type ClientError struct {
	Category Category
	Code     Code
	Action   string // the attempted operation, e.g. "assign session"
	Message  string
	Reason   string // server-supplied failure reason, when available
	Cause    error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// UserFacing reports whether the error must be surfaced as a blocking notice
// rather than logged silently.
func (e *ClientError) UserFacing() bool {
	return e.Category == CategoryRequest || e.Category == CategoryPopup
}

// Notice renders the user-visible text for a surfaced error. Popup errors
// carry their full instructions in Message; request errors are composed from
// the attempted action and the server's reason.
func (e *ClientError) Notice() string {
	if e.Category == CategoryPopup {
		return e.Message
	}
	if e.Reason != "" {
		return fmt.Sprintf("Could not %s: %s", e.Action, e.Reason)
	}
	if e.Action != "" {
		return fmt.Sprintf("Could not %s. Please try again.", e.Action)
	}
	return e.Message
}

// NewConfigError creates a configuration error (logged, not surfaced).
func NewConfigError(code Code, message string) *ClientError {
	return &ClientError{
		Category: CategoryConfig,
		Code:     code,
		Message:  message,
	}
}

// NewTransportError creates a transport error (non-fatal, logged).
func NewTransportError(code Code, message string, cause error) *ClientError {
	return &ClientError{
		Category: CategoryTransport,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// NewRequestError creates a request failure for the named action.
func NewRequestError(action, reason string, cause error) *ClientError {
	code := CodeRequestFailed
	if reason != "" {
		// The collaborator reported a logical failure inside a success response.
		code = CodeRequestRejected
	}
	return &ClientError{
		Category: CategoryRequest,
		Code:     code,
		Action:   action,
		Message:  fmt.Sprintf("failed to %s", action),
		Reason:   reason,
		Cause:    cause,
	}
}

// Common constructors.

// ErrSessionMissing is raised when a connect is attempted without a session id.
func ErrSessionMissing() *ClientError {
	return NewConfigError(CodeSessionMissing, "no session id set, channel not opened")
}

// ErrIdentityMissing is raised when a connect is attempted without a usable identity.
func ErrIdentityMissing() *ClientError {
	return NewConfigError(CodeIdentityMissing, "no local identity set, channel not opened")
}

// ErrChannelClosed is returned when sending on a closed or never-opened channel.
func ErrChannelClosed() *ClientError {
	return NewTransportError(CodeChannelClosed, "messaging channel is closed", nil)
}

// ErrPopupBlocked is raised when the secondary surface could not be opened.
func ErrPopupBlocked() *ClientError {
	return &ClientError{
		Category: CategoryPopup,
		Code:     CodePopupBlocked,
		Action:   "open the call window",
		Message: "The call window was blocked. Allow popups for this site " +
			"in your browser settings, then accept the call again.",
	}
}
