package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrNotMigrated marks queries against tables or columns the hosted
	// database does not have yet. Handlers surface this as an
	// informational "feature not yet migrated" state, never a 500.
	ErrNotMigrated = errors.New("feature not migrated")
)

// Postgres error codes for undefined relations and columns.
const (
	pqUndefinedTable  = "42P01"
	pqUndefinedColumn = "42703"
)

// classifyPQ maps driver errors onto the store sentinels. Non-matching
// errors pass through untouched.
func classifyPQ(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) == pqUndefinedTable || string(pqErr.Code) == pqUndefinedColumn {
			return ErrNotMigrated
		}
	}
	return err
}

// classifyREST inspects PostgREST error bodies for the same
// expected-absence conditions the SQL path detects by code.
func classifyREST(status int, body string) error {
	lower := strings.ToLower(body)
	if strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "pgrst205") || // missing table in schema cache
		strings.Contains(lower, "could not find the table") {
		return ErrNotMigrated
	}
	return nil
}

// IsNotFound reports whether err is the not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotMigrated reports whether err is the not-migrated sentinel.
func IsNotMigrated(err error) bool {
	return errors.Is(err, ErrNotMigrated)
}
