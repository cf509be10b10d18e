package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	// maxTxRetries bounds transparent retries of serialization conflicts.
	maxTxRetries = 3
	// retryBackoff is the delay between conflict retries.
	retryBackoff = 25 * time.Millisecond
)

// ErrTxConflict is returned when a transaction keeps losing serialization
// conflicts after maxTxRetries attempts. Callers may retry the whole
// operation; it is a transient failure, not a validation error.
var ErrTxConflict = errors.New("db: transaction conflict, retry")

// Serializable runs fn inside a transaction at SERIALIZABLE isolation,
// retrying up to maxTxRetries times on deadlock or serialization
// failure. Every read-aggregate-then-write operation (sprint capacity
// enforcement in particular) must go through this helper: under weaker
// isolation two concurrent capacity checks can both observe headroom
// and both commit.
func Serializable(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}

	var err error
	for attempt := 0; attempt <= maxTxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
		err = db.Transaction(fn, opts)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrTxConflict, err)
}

// isSerializationFailure reports whether err is a retryable concurrency
// conflict rather than a logical failure.
func isSerializationFailure(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1213 = deadlock found, 1205 = lock wait timeout.
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
