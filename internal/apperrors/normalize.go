package apperrors

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/anivouch/anivouch/internal/auth"
	"github.com/anivouch/anivouch/internal/domain"
)

// Body is the JSON shape every error response uses.
type Body struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

// Response is a normalized failure: a status code plus a client-safe body.
type Response struct {
	Status int
	Body   Body
}

// Normalizer converts any failure into a Response. It is constructed once at
// startup; the dev flag decides whether unrecognized errors may expose their
// message in the response body.
type Normalizer struct {
	logger *zap.Logger
	dev    bool
}

func NewNormalizer(logger *zap.Logger, dev bool) *Normalizer {
	return &Normalizer{logger: logger, dev: dev}
}

// Normalize logs err exactly once together with the caller-supplied context,
// then classifies it. Classification itself is pure, so wrapped causes never
// produce duplicate log records.
func (n *Normalizer) Normalize(err error, context map[string]any) Response {
	fields := make([]zap.Field, 0, len(context)+1)
	for k, v := range context {
		fields = append(fields, zap.Any(k, v))
	}
	fields = append(fields, zap.Error(err))
	n.logger.Error(err.Error(), fields...)

	return classify(err, n.dev)
}

// classify walks a fixed-priority chain. The order is load-bearing:
// validation failures must win over the generic fallback, and database
// classification must run before the application error check so a wrapped
// driver error keeps its specific status.
func classify(err error, dev bool) Response {
	// Field-level validation failures.
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		return Response{
			Status: http.StatusBadRequest,
			Body:   Body{Error: "Validation failed", Details: fieldErrors(verrs)},
		}
	}
	var verr domain.ValidationError
	if errors.As(err, &verr) {
		return Response{
			Status: http.StatusBadRequest,
			Body:   Body{Error: "Validation failed", Details: map[string][]string{verr.Field: {verr.Message}}},
		}
	}

	// Auth subsystem failures carry their own status.
	var apiErr *auth.APIError
	if errors.As(err, &apiErr) {
		return Response{Status: apiErr.StatusCode, Body: Body{Error: apiErr.Message}}
	}

	// Database failures, however deeply wrapped. Codes outside the
	// classification table fall through.
	if resp, ok := classifyPostgres(err); ok {
		return resp
	}

	// Application-declared failures.
	var appErr *Error
	if errors.As(err, &appErr) {
		return Response{Status: appErr.StatusCode, Body: Body{Error: appErr.Message}}
	}

	// Sentinel domain errors raised by repositories and services.
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return Response{Status: http.StatusNotFound, Body: Body{Error: "Resource not found"}}
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredential):
		return Response{Status: http.StatusUnauthorized, Body: Body{Error: "Unauthorized"}}
	case errors.Is(err, domain.ErrAlreadyExists):
		return Response{Status: http.StatusConflict, Body: Body{Error: "Resource already exists"}}
	case errors.Is(err, domain.ErrInvalidInput):
		return Response{Status: http.StatusBadRequest, Body: Body{Error: "Invalid input"}}
	}

	// Anything else is a bug. Outside production the message is included to
	// ease debugging; in production nothing internal leaks.
	if dev && err != nil {
		return Response{
			Status: http.StatusInternalServerError,
			Body:   Body{Error: "Internal Server Error", Details: err.Error()},
		}
	}
	return Response{
		Status: http.StatusInternalServerError,
		Body:   Body{Error: "Internal Server Error"},
	}
}

// fieldErrors flattens validation failures into a field -> messages map,
// preserving message order per field.
func fieldErrors(errs domain.ValidationErrors) map[string][]string {
	details := make(map[string][]string, len(errs))
	for _, e := range errs {
		details[e.Field] = append(details[e.Field], e.Message)
	}
	return details
}
