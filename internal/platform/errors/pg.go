package errors

// Mapping for errors raised by the Postgres run ledger

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// sqlStates maps the SQLSTATE classes the ledger can hit to an ErrorCode.
// Anything absent is a plain DB error
var sqlStates = map[string]ErrorCode{
	"23505": ErrorCodeValidation, // unique_violation
	"23502": ErrorCodeValidation, // not_null_violation
	"23514": ErrorCodeValidation, // check_violation
	"22001": ErrorCodeInvalidArgument,
	"22P02": ErrorCodeInvalidArgument,
	"25006": ErrorCodeUnavailable, // read-only replica
	"57P03": ErrorCodeUnavailable, // server starting up
	"57P01": ErrorCodeUnavailable, // admin shutdown
}

// contention states are safe to replay in a fresh transaction
var contention = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
}

// text the driver reports when the SQLSTATE was lost on the way up
var contentionText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"canceling statement due to lock timeout",
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	ok := stderrs.As(err, &pe)
	return pe, ok
}

// SQLState returns the SQLSTATE carried by err, or "" for non Postgres errors
func SQLState(err error) string {
	if pe, ok := pgError(err); ok {
		return pe.Code
	}
	return ""
}

// DBErrorCode maps a Postgres error to an ErrorCode. ok is false when err is not a PgError
func DBErrorCode(err error) (code ErrorCode, ok bool) {
	pe, ok := pgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	if c, hit := sqlStates[pe.Code]; hit {
		return c, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps err with its mapped code. nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// FromPostgresf is FromPostgres with a formatted message
func FromPostgresf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return FromPostgres(err, fmt.Sprintf(format, a...))
}

// IsRetryable reports whether a database error is lock or serialization contention.
// Local deadlines are never retried here
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pe, ok := pgError(err); ok {
		return contention[pe.Code]
	}
	s := strings.ToLower(Root(err).Error())
	for _, t := range contentionText {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
