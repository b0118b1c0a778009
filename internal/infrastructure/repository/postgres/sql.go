package postgres

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Postgres error codes that a caller may retry the whole transaction on.
const (
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// txConflictCode returns the pq code when err is a serialization failure or a
// deadlock, and an empty string otherwise.
func txConflictCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ""
	}
	switch pqErr.Code {
	case pqSerializationFailure, pqDeadlockDetected:
		return pqErr.Code
	default:
		return ""
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
