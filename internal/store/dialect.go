package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect struct {
	name       string
	sqlDriver  string
	returning  bool
	migrations []string
}

var dialects = map[string]dialect{
	"sqlite":   {name: "sqlite", sqlDriver: "sqlite", returning: true, migrations: sqliteMigrations},
	"mysql":    {name: "mysql", sqlDriver: "mysql", returning: false, migrations: mysqlMigrations},
	"postgres": {name: "postgres", sqlDriver: "pgx", returning: true, migrations: postgresMigrations},
}

// normalizeDSN fills in driver options the store relies on.
func (d dialect) normalizeDSN(dsn string) (string, error) {
	switch d.name {
	case "sqlite":
		if dsn == "" {
			return ":memory:", nil
		}
		if !strings.Contains(dsn, "_pragma=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
		}
		return dsn, nil
	case "mysql":
		c, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		c.ParseTime = true
		c.Loc = time.UTC
		// Report matched rather than changed rows so an UPDATE that writes
		// identical values is not mistaken for a missing record.
		c.ClientFoundRows = true
		return c.FormatDSN(), nil
	case "postgres":
		if dsn == "" {
			return "", errors.New("postgres dsn is required")
		}
		return dsn, nil
	}
	return dsn, nil
}

// isTransient reports whether err is worth retrying: deadlocks, lock
// timeouts and dropped or refused connections.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysqldriver.ErrInvalidConn) {
		return true
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		// 1205 lock wait timeout, 1213 deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization failure, 40P01 deadlock detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "deadlock"),
		strings.Contains(lower, "database is locked"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "broken pipe"),
		strings.Contains(lower, "i/o timeout"),
		strings.Contains(lower, "etimedout"),
		strings.Contains(lower, "econnreset"),
		strings.Contains(lower, "econnrefused"):
		return true
	}
	return false
}

// classify wraps unique-constraint violations with ErrDuplicate.
func classify(err error) error {
	if err == nil || !isDuplicate(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDuplicate, err)
}

func isDuplicate(err error) bool {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry")
}
