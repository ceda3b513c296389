package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
)

// Config describes the database connection and pool behaviour.
type Config struct {
	Driver          string // sqlite, mysql or postgres
	DSN             string // empty with sqlite means in-memory
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	// OpTimeout bounds each store operation, including the wait for a pooled
	// connection.
	OpTimeout     time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// DefaultConfig returns an in-memory SQLite configuration with the standard
// pool limits.
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxIdleTime: 10 * time.Second,
		ConnMaxLifetime: 30 * time.Minute,
		OpTimeout:       30 * time.Second,
		RetryAttempts:   3,
		RetryBackoff:    100 * time.Millisecond,
	}
}

// Store is the data-access layer for admins, projects and contacts.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	cfg     Config
}

// Open connects to the configured database, applies the pool settings and
// runs the migrations.
func Open(cfg Config) (*Store, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}

	dsn, err := d.normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if d.name == "sqlite" && cfg.DSN != "" {
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}

	if d.name == "sqlite" {
		// One long-lived connection: SQLite serializes writers, and an
		// in-memory database lives only as long as its connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{db: db, dialect: d, cfg: cfg}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

// withRetry runs fn under the operation timeout, retrying transient failures
// with a linear backoff. Only idempotent operations go through here.
func (s *Store) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil || attempt >= s.cfg.RetryAttempts || !isTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * s.cfg.RetryBackoff):
		}
	}
}

// once runs fn under the operation timeout without retrying.
func (s *Store) once(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return fn(ctx)
}

// insert executes an INSERT and returns the new row id, using RETURNING where
// the dialect supports it.
func (s *Store) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := s.once(ctx, func(ctx context.Context) error {
		if s.dialect.returning {
			return s.db.QueryRowxContext(ctx, s.db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		}
		res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, classify(err)
	}
	return id, nil
}

// execAffecting runs an idempotent UPDATE or DELETE and maps zero affected
// rows to ErrNotFound.
func (s *Store) execAffecting(ctx context.Context, query string, args ...interface{}) error {
	var n int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
