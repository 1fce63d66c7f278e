package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// isRetryableError reports whether a connection attempt failed for a reason
// that may go away on its own (network, server starting, too many clients)
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if code := sqlState(err); code != "" {
		switch code[:2] {
		case "08": // Connection exceptions
			return true
		case "53": // Insufficient resources (connection limit, out of memory, disk full)
			return true
		case "57": // Operator intervention (shutdown in progress, etc)
			return true
		case "58": // System errors (IO errors, etc)
			return true
		case "28": // Invalid authorisation - NOT retryable
			return false
		case "3D": // Invalid catalog name (database does not exist) - NOT retryable
			return false
		case "42": // Syntax error or access rule violation - NOT retryable
			return false
		default:
			return true
		}
	}

	if errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	errMsg := strings.ToLower(err.Error())
	for _, connErr := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"too many clients",
		"the database system is starting up",
	} {
		if strings.Contains(errMsg, connErr) {
			return true
		}
	}

	// Configuration errors (missing host, bad DSN) are not worth retrying
	return false
}

// sqlState extracts the SQLSTATE code from pgx or lib/pq errors
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && len(pqErr.Code) >= 2 {
		return string(pqErr.Code)
	}
	return ""
}
