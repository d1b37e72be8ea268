package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	apperrors "github.com/Kosench/shortlink/internal/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// isUnavailable reports whether err means the store can't be reached or
// didn't answer in time, as opposed to a bad query or a constraint hit.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08 - connection exception, 53 - insufficient resources, 57P0x - shutdown
		code := pgErr.Code
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "53") || strings.HasPrefix(code, "57P0")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "database is closed") || strings.Contains(msg, "database is locked")
}

// classifyError wraps err for op, marking it as store-unavailable when it
// looks like a connectivity problem.
func classifyError(op string, err error) error {
	if isUnavailable(err) {
		return apperrors.StoreUnavailable(op, err)
	}
	return apperrors.NewBusinessError("DATABASE_ERROR", op+" failed", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
