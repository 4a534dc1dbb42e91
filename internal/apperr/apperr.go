// Package apperr defines the error kinds shared by the Switchyard engines.
//
// Engines wrap one of the sentinel errors with context, e.g.
//
//	fmt.Errorf("lifecycle: cannot %s project in %s status: %w", a, s, apperr.ErrConflict)
//
// and callers test the kind with errors.Is.
package apperr

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound reports a missing project, column or card.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports an illegal lifecycle transition or a no-op move.
	ErrConflict = errors.New("conflict")
	// ErrForbiddenTransition reports a forward-only movement policy violation.
	ErrForbiddenTransition = errors.New("forbidden transition")
	// ErrValidation reports malformed input such as an out-of-range order.
	ErrValidation = errors.New("validation failed")
	// ErrTransactionFailed reports store contention: deadlock, lock wait
	// timeout or a busy database. The operation may be retried as-is.
	ErrTransactionFailed = errors.New("transaction failed")
)

// MySQL server error numbers that indicate lock contention.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Kind returns the sentinel error wrapped by err, or nil when err carries
// none of the known kinds.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrForbiddenTransition, ErrValidation, ErrTransactionFailed} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Classify converts store-level contention errors into ErrTransactionFailed
// and returns every other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrTransactionFailed) {
		return err
	}
	if IsContention(err) {
		return &contentionError{cause: err}
	}
	return err
}

// IsContention reports whether err is a deadlock, lock wait timeout or a
// busy/locked SQLite database.
func IsContention(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

type contentionError struct {
	cause error
}

func (e *contentionError) Error() string {
	return ErrTransactionFailed.Error() + ": " + e.cause.Error()
}

func (e *contentionError) Unwrap() []error {
	return []error{ErrTransactionFailed, e.cause}
}
