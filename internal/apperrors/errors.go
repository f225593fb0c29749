// Package apperrors defines the application error type and the single
// funnel that converts any failure raised by a handler into a stable,
// client-safe HTTP response.
package apperrors

import "net/http"

// Error is an expected, application-level failure that carries the HTTP
// status it should surface with. It is constructed at the point a business
// rule is violated and consumed once by the normalizer.
type Error struct {
	Message    string
	StatusCode int
	Code       string // optional machine-readable discriminator
}

func (e *Error) Error() string {
	return e.Message
}

// New creates an Error with the given message and status.
// A zero status defaults to 500.
func New(message string, statusCode int) *Error {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &Error{Message: message, StatusCode: statusCode}
}

// NewWithCode creates an Error carrying a machine-readable code for
// client-side branching.
func NewWithCode(message string, statusCode int, code string) *Error {
	e := New(message, statusCode)
	e.Code = code
	return e
}
