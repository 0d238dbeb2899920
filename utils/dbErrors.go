package utils

import (
	"errors"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

func mysqlErrorNumber(err error) uint16 {
	var me *mysqlDriver.MySQLError
	if errors.As(err, &me) && me != nil {
		return me.Number
	}
	return 0
}

// IsRetryableDBError reports serialization failures a caller may retry as a whole transaction.
func IsRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	switch mysqlErrorNumber(err) {
	case mysqlErrDuplicateEntry, mysqlErrLockWaitTimeout, mysqlErrDeadlock:
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// ClassifyDBError turns store errors into core error kinds.
// CoreErrors pass through untouched; record-not-found becomes NotFound.
func ClassifyDBError(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CoreError{Kind: KindNotFound, Message: "record not found", Err: err}
	}
	if IsRetryableDBError(err) {
		return ConflictError(err, "transaction conflict")
	}
	return err
}
