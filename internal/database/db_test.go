package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	o := Options{User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "booking", LockWait: 3 * time.Second}
	c, err := mysql.ParseDSN(o.DSN())
	require.NoError(t, err)
	assert.Equal(t, "app", c.User)
	assert.Equal(t, "pw", c.Passwd)
	assert.Equal(t, "db:3306", c.Addr)
	assert.Equal(t, "booking", c.DBName)
	assert.True(t, c.ParseTime)
	assert.Equal(t, time.UTC, c.Loc)
	assert.Equal(t, "3", c.Params["innodb_lock_wait_timeout"])

	o.Pass, o.LockWait = "", 0
	c, err = mysql.ParseDSN(o.DSN())
	require.NoError(t, err)
	assert.Empty(t, c.Passwd)
	assert.NotContains(t, c.Params, "innodb_lock_wait_timeout")
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	stmts := statements(schema)
	require.Len(t, stmts, 6)
	for range stmts {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
