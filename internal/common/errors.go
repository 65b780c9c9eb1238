// Package common defines the error taxonomy shared by the account service
// and its HTTP layer. Every failure that crosses a package boundary is a
// *Error carrying a stable HTTP status and a caller-safe message; callers
// match with errors.As and map to the wire envelope via StatusOf.
package common

import "errors"

// Error is a status-carrying error. Cause, when set, is kept for logs and
// wrapping only and is never serialized toward the caller.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// NewValidation reports malformed or missing input (400).
func NewValidation(msg string) *Error {
	return &Error{Status: 400, Message: msg}
}

// NewConflict reports a uniqueness violation (409).
func NewConflict(msg string) *Error {
	return &Error{Status: 409, Message: msg}
}

// NewUnauthorized reports bad credentials or a bad token (401).
func NewUnauthorized(msg string) *Error {
	return &Error{Status: 401, Message: msg}
}

// NewNotFound reports a missing record (404).
func NewNotFound(msg string) *Error {
	return &Error{Status: 404, Message: msg}
}

// NewInternal reports a collaborator failure (500). The cause is retained
// for logging but suppressed from the message.
func NewInternal(msg string, cause error) *Error {
	return &Error{Status: 500, Message: msg, Cause: cause}
}

// StatusOf extracts the HTTP status from err, defaulting to 500 for errors
// that did not originate in this taxonomy.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 500
}

// ErrAlreadyExists is returned by repositories on unique-constraint
// violations; services translate it into a conflict Error.
var ErrAlreadyExists = errors.New("already exists")

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("not found")
