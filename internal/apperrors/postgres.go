package apperrors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsDatabaseError reports whether err or any error in its chain is a
// PostgreSQL server error.
func IsDatabaseError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}

// IsUniqueViolation reports whether err is a duplicate-key rejection.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// IsForeignKeyViolation reports whether err is a reference to a missing row.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

// IsTransient reports whether err is a connection-level failure worth
// retrying at the call site. The normalizer itself never retries.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.ConnectionException || pgErr.Code == pgerrcode.ConnectionFailure
}

// classifyPostgres maps a PostgreSQL error found anywhere in err's chain to
// a client-safe response. errors.As walks wrapped causes to arbitrary depth,
// so a failure the driver raised and the repository wrapped classifies
// identically to the bare failure. The second return is false when err is
// not a database error or its code has no entry in the table; callers fall
// through to generic handling.
func classifyPostgres(err error) (Response, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return Response{}, false
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		message := "Resource already exists"
		var field string

		// Infer the duplicated field from the constraint name first
		// (e.g. "users_username_key"), then from the detail text.
		constraint := strings.ToLower(pgErr.ConstraintName)
		detail := strings.ToLower(pgErr.Detail)
		switch {
		case strings.Contains(constraint, "email"):
			message, field = "This email is already registered", "email"
		case strings.Contains(constraint, "username"):
			message, field = "This username is already taken", "username"
		case strings.Contains(detail, "email"):
			message, field = "This email is already registered", "email"
		case strings.Contains(detail, "username"):
			message, field = "This username is already taken", "username"
		}

		return Response{
			Status: http.StatusConflict,
			Body:   Body{Error: message, Field: field},
		}, true

	case pgerrcode.ForeignKeyViolation:
		return Response{
			Status: http.StatusNotFound,
			Body:   Body{Error: "Related resource not found"},
		}, true

	case pgerrcode.NotNullViolation:
		return Response{
			Status: http.StatusBadRequest,
			Body:   Body{Error: "Required field is missing", Field: pgErr.ColumnName},
		}, true

	case pgerrcode.ConnectionException, pgerrcode.ConnectionFailure:
		return Response{
			Status: http.StatusServiceUnavailable,
			Body:   Body{Error: "Database connection failed. Please try again."},
		}, true
	}

	return Response{}, false
}
