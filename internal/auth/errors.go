package auth

import "net/http"

// APIError is a failure raised inside the auth subsystem that already knows
// the HTTP status it should surface with, such as a rejected credential or
// a rejected Google ID token. The error normalizer passes its status and
// message through verbatim.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates an APIError. A zero status defaults to 500.
func NewAPIError(message string, statusCode int) *APIError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &APIError{Message: message, StatusCode: statusCode}
}
