package errs

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError reports a missing or malformed field. It is raised before any
// store round trip.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// RemoteError wraps a failure reported by the data store. Its message is the
// store's own message so callers can surface it unchanged.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string { return e.Err.Error() }

func (e *RemoteError) Unwrap() error { return e.Err }

// Remote wraps err as a RemoteError unless it is nil or already classified.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	var ve *ValidationError
	if errors.As(err, &re) || errors.As(err, &ve) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// IsUniqueViolation reports whether err carries a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err carries a postgres foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
