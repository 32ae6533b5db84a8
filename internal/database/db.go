package database

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options configures the MySQL connection.
type Options struct {
	User, Pass, Host, Port, Name string
	// LockWait bounds how long a statement waits for a row lock before the
	// server gives up with error 1205.
	LockWait time.Duration
}

// DSN renders the driver connection string. Times are read and written
// in UTC; the booking clock converts for display. The driver defaults to
// utf8mb4.
func (o Options) DSN() string {
	c := mysql.NewConfig()
	c.User, c.Passwd = o.User, o.Pass
	c.Net, c.Addr = "tcp", net.JoinHostPort(o.Host, o.Port)
	c.DBName = o.Name
	c.ParseTime = true
	c.Loc = time.UTC
	if secs := int(o.LockWait / time.Second); secs > 0 {
		// sent as SET innodb_lock_wait_timeout on every new connection
		c.Params = map[string]string{"innodb_lock_wait_timeout": strconv.Itoa(secs)}
	}
	return c.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
