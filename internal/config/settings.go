package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the fully resolved runtime configuration.
type Settings struct {
	Mode      string          `mapstructure:"mode" yaml:"mode"`
	Log       LogSettings     `mapstructure:"log" yaml:"log"`
	Server    ServerSettings  `mapstructure:"server" yaml:"server"`
	Database  DBSettings      `mapstructure:"database" yaml:"database"`
	Auth      AuthSettings    `mapstructure:"auth" yaml:"auth"`
	Upload    UploadSettings  `mapstructure:"upload" yaml:"upload"`
	Mail      MailSettings    `mapstructure:"mail" yaml:"mail"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Janitor   JanitorSettings `mapstructure:"janitor" yaml:"janitor"`
	Metrics   MetricsSettings `mapstructure:"metrics" yaml:"metrics"`
}

// LogSettings controls log output.
type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ServerSettings controls the HTTP listener.
type ServerSettings struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	BodyLimit       int64         `mapstructure:"body_limit" yaml:"body_limit"`
	TrustProxy      bool          `mapstructure:"trust_proxy" yaml:"trust_proxy"`
}

// DBSettings describes the database connection and pool.
type DBSettings struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"`
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	OpTimeout       time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
}

// AuthSettings controls token signing.
type AuthSettings struct {
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// UploadSettings controls image uploads and where they are stored.
type UploadSettings struct {
	MaxSize int64      `mapstructure:"max_size" yaml:"max_size"`
	Backend string     `mapstructure:"backend" yaml:"backend"`
	Dir     string     `mapstructure:"dir" yaml:"dir"`
	S3      S3Settings `mapstructure:"s3" yaml:"s3"`
}

// S3Settings configures the S3-compatible upload backend.
type S3Settings struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// MailSettings configures the SMTP relay used for contact notifications.
type MailSettings struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Username     string        `mapstructure:"username" yaml:"username"`
	Password     string        `mapstructure:"password" yaml:"password"`
	From         string        `mapstructure:"from" yaml:"from"`
	FromName     string        `mapstructure:"from_name" yaml:"from_name"`
	AdminAddress string        `mapstructure:"admin_address" yaml:"admin_address"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	QueueSize    int           `mapstructure:"queue_size" yaml:"queue_size"`
}

// RateLimitConfig selects where rate-limit counters live.
type RateLimitConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// JanitorSettings schedules the orphaned-upload sweep.
type JanitorSettings struct {
	Schedule string        `mapstructure:"schedule" yaml:"schedule"`
	Grace    time.Duration `mapstructure:"grace" yaml:"grace"`
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// IsDevelopment reports whether raw error detail may be shown to clients.
func (s *Settings) IsDevelopment() bool {
	return s.Mode == ModeDevelopment
}

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// devSecret is only accepted in development mode.
const devSecret = "hijo-dev-secret-change-me"

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeProduction)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.body_limit", 10*1024)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "hijo.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_idle_time", "10s")
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.op_timeout", "30s")
	v.SetDefault("database.retry_attempts", 3)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "2160h") // 90 days

	v.SetDefault("upload.max_size", 5*1024*1024)
	v.SetDefault("upload.backend", "local")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.s3.bucket", "")
	v.SetDefault("upload.s3.region", "us-east-1")
	v.SetDefault("upload.s3.endpoint", "")
	v.SetDefault("upload.s3.access_key", "")
	v.SetDefault("upload.s3.secret_key", "")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("mail.from_name", "Hijo Electricity Website")
	v.SetDefault("mail.admin_address", "")
	v.SetDefault("mail.timeout", "30s")
	v.SetDefault("mail.queue_size", 64)

	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("ratelimit.redis_password", "")
	v.SetDefault("ratelimit.redis_db", 0)

	v.SetDefault("janitor.schedule", "@every 6h")
	v.SetDefault("janitor.grace", "1h")

	v.SetDefault("metrics.enabled", true)
}

// Load resolves v into Settings, applying defaults and validating the result.
func Load(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.normalize(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) normalize() error {
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
	if s.Mode != ModeDevelopment && s.Mode != ModeProduction {
		return fmt.Errorf("%w: mode must be %q or %q, got %q", ErrInvalid, ModeDevelopment, ModeProduction, s.Mode)
	}

	if s.Auth.JWTSecret == "" {
		if !s.IsDevelopment() {
			return fmt.Errorf("%w: auth.jwt_secret is required in production", ErrInvalid)
		}
		s.Auth.JWTSecret = devSecret
	}
	if s.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalid)
	}

	switch s.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("%w: unsupported database.driver %q", ErrInvalid, s.Database.Driver)
	}

	switch s.Upload.Backend {
	case "local":
		if s.Upload.Dir == "" {
			return fmt.Errorf("%w: upload.dir is required for the local backend", ErrInvalid)
		}
	case "s3":
		if s.Upload.S3.Bucket == "" {
			return fmt.Errorf("%w: upload.s3.bucket is required for the s3 backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported upload.backend %q", ErrInvalid, s.Upload.Backend)
	}
	if s.Upload.MaxSize <= 0 {
		return fmt.Errorf("%w: upload.max_size must be positive", ErrInvalid)
	}

	if s.Mail.Enabled {
		if s.Mail.Host == "" {
			return fmt.Errorf("%w: mail.host is required when mail is enabled", ErrInvalid)
		}
		if s.Mail.From == "" {
			s.Mail.From = s.Mail.Username
		}
		if s.Mail.AdminAddress == "" {
			s.Mail.AdminAddress = s.Mail.From
		}
	}

	if s.IsDevelopment() {
		s.Log.Level = "debug"
	}
	return nil
}

// ErrInvalid is returned for configuration values that fail validation.
var ErrInvalid = errors.New("invalid configuration")
