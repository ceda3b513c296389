package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/hijo-electricity/hijo/internal/config"
	"github.com/hijo-electricity/hijo/internal/storage"
	"github.com/hijo-electricity/hijo/internal/store"
)

// loadSettings resolves the global viper instance into validated Settings.
func loadSettings() (*config.Settings, error) {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}

// newLogger builds the process logger from the log settings. Logs go to
// stderr so stdout stays usable for command output and MCP stdio.
func newLogger(s *config.Settings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the database described by the settings and applies the
// schema.
func openStore(s *config.Settings) (*store.Store, error) {
	st, err := store.Open(store.Config{
		Driver:          s.Database.Driver,
		DSN:             s.Database.DSN,
		MaxOpenConns:    s.Database.MaxOpenConns,
		MaxIdleConns:    s.Database.MaxIdleConns,
		ConnMaxIdleTime: s.Database.ConnMaxIdleTime,
		ConnMaxLifetime: s.Database.ConnMaxLifetime,
		OpTimeout:       s.Database.OpTimeout,
		RetryAttempts:   s.Database.RetryAttempts,
		RetryBackoff:    store.DefaultConfig().RetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", s.Database.Driver, err)
	}
	return st, nil
}

// openProvider returns the upload storage backend.
func openProvider(s *config.Settings) (storage.Provider, error) {
	switch s.Upload.Backend {
	case "s3":
		p, err := storage.NewS3(storage.S3Config{
			Bucket:    s.Upload.S3.Bucket,
			Region:    s.Upload.S3.Region,
			Endpoint:  s.Upload.S3.Endpoint,
			AccessKey: s.Upload.S3.AccessKey,
			SecretKey: s.Upload.S3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return p, nil
	default:
		p, err := storage.NewLocal(s.Upload.Dir)
		if err != nil {
			return nil, fmt.Errorf("init upload directory: %w", err)
		}
		return p, nil
	}
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
