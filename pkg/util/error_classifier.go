package util

import (
	"context"
	"errors"
	"io/fs"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ClassifyError determines if err is worth retrying and labels it for logs.
// Returns: (isRetryable, errorType)
func ClassifyError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return false, "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return true, "timeout"
	case errors.Is(err, fs.ErrNotExist):
		return false, "not_found"
	case errors.Is(err, fs.ErrPermission):
		return false, "permission_denied"
	case errors.Is(err, pgx.ErrNoRows):
		return false, "no_rows"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "23": // integrity constraint violation
			return false, "constraint_violation"
		case "08", "53", "57": // connection, resources, operator intervention
			return true, "db_unavailable"
		case "40": // serialization failure, deadlock
			return true, "tx_conflict"
		}
		return false, "db_error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true, "io_error"
	}

	return false, "unknown_error"
}
