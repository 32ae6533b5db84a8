// Package repository implements the booking stores on MySQL. Every
// repository reads the current transaction from the context (see
// TxManager), so service code composes several repositories into one unit
// of work without passing *sql.Tx around.
//
// Driver errors are translated here: lock wait timeouts and deadlocks
// become model.ErrBusy so handlers can answer "retry later", and
// sql.ErrNoRows becomes the matching model not-found error.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/class-booking/internal/model"
)

// MySQL server error numbers the repositories react to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errLockNowait      = 3572
)

// ErrTxRequired is returned by locking reads issued outside WithTx.
var ErrTxRequired = errors.New("repository: locking read requires a transaction")

// classify maps driver errors onto the model taxonomy. notFound is used
// for sql.ErrNoRows and may be nil.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errLockWaitTimeout, errDeadlock, errLockNowait:
			return fmt.Errorf("%w: %v", model.ErrBusy, err)
		}
	}
	return err
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}
