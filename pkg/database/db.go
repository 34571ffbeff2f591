package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/pkg/config"
	errs "squash-venue-enrichment/pkg/errors"
)

// Dialect selects the SQL flavour for the few statements that differ.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

type DB struct {
	conn         *sql.DB
	dialect      Dialect
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Options tunes the connection pool and statement timeouts.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// Open connects using driver "mysql" or "sqlite".
func Open(driver, dsn string, opts Options) (*DB, error) {
	dialect := Dialect(strings.ToLower(driver))
	var (
		conn *sql.DB
		err  error
	)
	switch dialect {
	case MySQL:
		dsn, err = mysqlDSN(dsn)
		if err != nil {
			return nil, errs.NewValidation("database.Open", "invalid MySQL DSN", err)
		}
		conn, err = sql.Open("mysql", dsn)
	case SQLite:
		conn, err = sql.Open("sqlite", dsn)
		if err == nil {
			// One writer at a time; the batch is sequential anyway.
			conn.SetMaxOpenConns(1)
		}
	default:
		return nil, errs.NewValidation("database.Open", fmt.Sprintf("unsupported driver %q", driver), nil)
	}
	if err != nil {
		return nil, errs.NewDB("database.Open", "open connection", err)
	}

	if dialect == MySQL {
		if opts.MaxOpenConns > 0 {
			conn.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			conn.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}

	db := &DB{
		conn:         conn,
		dialect:      dialect,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
	}
	if db.readTimeout <= 0 {
		db.readTimeout = constants.DBReadTimeoutDefault
	}
	if db.writeTimeout <= 0 {
		db.writeTimeout = constants.DBWriteTimeoutDefault
	}

	ctx, cancel := db.withReadTimeout(context.Background())
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errs.NewDB("database.Open", "ping", err)
	}

	if dialect == SQLite {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, errs.NewDB("database.Open", pragma, err)
			}
		}
	}
	return db, nil
}

// NewWithConfig opens the database described by cfg.
func NewWithConfig(cfg *config.Config) (*DB, error) {
	return Open(cfg.DatabaseDriver, cfg.DatabaseURL, Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Minute,
		ReadTimeout:     cfg.DBReadTimeout,
		WriteTimeout:    cfg.DBWriteTimeout,
	})
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	c.ParseTime = true
	if c.Loc == nil {
		c.Loc = time.UTC
	}
	return c.FormatDSN(), nil
}

// Close closes the database connection.
func (db *DB) Close() error { return db.conn.Close() }

// Conn exposes the pool for transactions and health checks.
func (db *DB) Conn() *sql.DB { return db.conn }

// Dialect reports the SQL flavour in use.
func (db *DB) Dialect() Dialect { return db.dialect }

// withReadTimeout creates a context with standard read timeout.
func (db *DB) withReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.readTimeout)
}

// withWriteTimeout creates a context with standard write timeout.
func (db *DB) withWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, db.writeTimeout)
}

// IsDuplicateKey reports a unique-constraint violation from either driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// now is the timestamp written by every mutation; stored in UTC.
func now() time.Time { return time.Now().UTC() }

// checkRowsAffected maps a zero-row write onto errs.ErrNotFound.
func checkRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errs.NewDB(op, "rows affected", err)
	}
	if n == 0 {
		return errs.NewDB(op, "venue not found", errs.ErrNotFound)
	}
	return nil
}
