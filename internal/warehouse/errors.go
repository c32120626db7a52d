package warehouse

import "errors"

// ErrNotConfigured is returned when no warehouse DSN was configured.
var ErrNotConfigured = errors.New("warehouse not configured")

// ErrUnsafeIdentifier is returned when a table, column or ORDER BY clause
// contains characters that cannot be embedded in SQL text.
var ErrUnsafeIdentifier = errors.New("unsafe sql identifier")

// QueryError wraps a failure reported by the database.
type QueryError struct{ Err error }

func (e *QueryError) Error() string { return "query failed: " + e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// IsQueryError reports whether err came from executing a query.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsNotConfigured reports whether err means no warehouse is available.
func IsNotConfigured(err error) bool { return errors.Is(err, ErrNotConfigured) }
