package config

import (
	"log/slog"
	"strings"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Storage drivers accepted by [StorageConfig.Driver].
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMinIO    = "minio"
	DriverBolt     = "bolt"
)

// PluginConfig is the top-level configuration of a plugin. With
// WithEnvPrefix("PLUGIN") the plugin name is read from PLUGIN_NAME, the
// logger from PLUGIN_LOG_LOGGER, the Redis address from
// PLUGIN_STORAGE_REDIS_ADDR, and so on.
type PluginConfig struct {
	// Name identifies the plugin in logs, spans and storage scopes.
	Name string `json:"name" yaml:"name" env:"NAME" required:"true"`

	// Version is the plugin's semantic version.
	Version string `json:"version" yaml:"version" env:"VERSION" envDefault:"0.0.0"`

	// HostVersion is the version of the host the plugin runs in, and
	// MinHostVersion the lowest version the plugin supports. Both are
	// semantic versions with or without a leading "v". An empty
	// MinHostVersion disables the host version check.
	HostVersion    string `json:"host_version" yaml:"host_version" env:"HOST_VERSION"`
	MinHostVersion string `json:"min_host_version" yaml:"min_host_version" env:"MIN_HOST_VERSION"`

	Logging LoggingConfig `json:"logging" yaml:"logging" env:"LOG"`
	Storage StorageConfig `json:"storage" yaml:"storage" env:"STORAGE"`
}

// Validate checks the nested sections.
func (c *PluginConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return sserr.New(sserr.CodeValidationRequired, "config: plugin name must not be empty")
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}

// LoggingConfig selects and tunes the plugin's logger.
type LoggingConfig struct {
	// Logger is the name of a logger registered with the logging factory.
	Logger string `json:"logger" yaml:"logger" env:"LOGGER" envDefault:"json"`

	// Level is the minimum level, as accepted by [slog.Level.UnmarshalText]
	// (e.g. "debug", "INFO", "warn+2").
	Level string `json:"level" yaml:"level" env:"LEVEL" envDefault:"info"`

	// Redact replaces content marked sensitive with "[REDACTED]". When
	// false only the markers are stripped.
	Redact bool `json:"redact" yaml:"redact" env:"REDACT" envDefault:"true"`
}

// SlogLevel returns the parsed level, or [slog.LevelInfo] if Level is
// invalid.
func (c LoggingConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Validate checks that Logger is set and Level parses.
func (c *LoggingConfig) Validate() error {
	if c.Logger == "" {
		return sserr.New(sserr.CodeValidationRequired, "config: logging.logger must not be empty")
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return sserr.Wrapf(err, sserr.CodeValidationFormat,
			"config: logging.level %q is not a valid level", c.Level)
	}
	return nil
}

// StorageConfig selects the medium behind plugin stores.
type StorageConfig struct {
	// Driver is one of "memory", "bolt", "redis", "postgres" or "minio".
	Driver string `json:"driver" yaml:"driver" env:"DRIVER" envDefault:"memory"`

	// Timeout bounds each storage operation. Zero disables the bound.
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT" envDefault:"5s"`

	Redis    RedisConfig    `json:"redis" yaml:"redis" env:"REDIS"`
	Postgres PostgresConfig `json:"postgres" yaml:"postgres" env:"POSTGRES"`
	MinIO    MinIOConfig    `json:"minio" yaml:"minio" env:"MINIO"`
	Bolt     BoltConfig     `json:"bolt" yaml:"bolt" env:"BOLT"`
}

// Validate checks the driver and the settings it needs.
func (c *StorageConfig) Validate() error {
	if c.Timeout < 0 {
		return sserr.Newf(sserr.CodeValidation,
			"config: storage.timeout must not be negative, got %v", c.Timeout)
	}
	switch c.Driver {
	case DriverMemory:
		return nil
	case DriverRedis:
		if c.Redis.Addr == "" {
			return sserr.New(sserr.CodeValidationRequired, "config: storage.redis.addr must not be empty")
		}
		if c.Redis.DB < 0 {
			return sserr.Newf(sserr.CodeValidation, "config: storage.redis.db must be >= 0, got %d", c.Redis.DB)
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return sserr.New(sserr.CodeValidationRequired, "config: storage.postgres.dsn must not be empty")
		}
		if c.Postgres.MaxConns < 1 {
			return sserr.Newf(sserr.CodeValidation,
				"config: storage.postgres.max_conns must be >= 1, got %d", c.Postgres.MaxConns)
		}
	case DriverMinIO:
		if c.MinIO.Endpoint == "" {
			return sserr.New(sserr.CodeValidationRequired, "config: storage.minio.endpoint must not be empty")
		}
		if c.MinIO.Bucket == "" {
			return sserr.New(sserr.CodeValidationRequired, "config: storage.minio.bucket must not be empty")
		}
	case DriverBolt:
		if c.Bolt.Path == "" {
			return sserr.New(sserr.CodeValidationRequired, "config: storage.bolt.path must not be empty")
		}
	default:
		return sserr.Newf(sserr.CodeValidation,
			"config: unknown storage driver %q (use memory, bolt, redis, postgres or minio)", c.Driver)
	}
	return nil
}

// RedisConfig configures the Redis storage medium. Each store is one hash
// named "<KeyPrefix>:<scope>".
type RedisConfig struct {
	Addr      string `json:"addr" yaml:"addr" env:"ADDR" envDefault:"localhost:6379"`
	Username  string `json:"username" yaml:"username" env:"USERNAME"`
	Password  Secret `json:"password" yaml:"password" env:"PASSWORD"`
	DB        int    `json:"db" yaml:"db" env:"DB"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"KEY_PREFIX" envDefault:"plugin"`
	TLS       bool   `json:"tls" yaml:"tls" env:"TLS"`
}

// PostgresConfig configures the Postgres storage medium.
type PostgresConfig struct {
	// DSN is a libpq connection string or URL.
	DSN      Secret `json:"dsn" yaml:"dsn" env:"DSN"`
	Table    string `json:"table" yaml:"table" env:"TABLE" envDefault:"plugin_options"`
	MaxConns int32  `json:"max_conns" yaml:"max_conns" env:"MAX_CONNS" envDefault:"10"`
}

// MinIOConfig configures the S3-compatible object storage medium. Each
// entry is one JSON object at "<Prefix>/<scope>/<id>.json".
type MinIOConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint" env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `json:"access_key" yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey Secret `json:"secret_key" yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `json:"bucket" yaml:"bucket" env:"BUCKET" envDefault:"plugin-storage"`
	Prefix    string `json:"prefix" yaml:"prefix" env:"PREFIX"`
	Region    string `json:"region" yaml:"region" env:"REGION"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl" env:"USE_SSL"`
}

// BoltConfig configures the local database file medium. Each store is one
// bucket named after its scope.
type BoltConfig struct {
	Path string `json:"path" yaml:"path" env:"PATH" envDefault:"plugin.db"`

	// OpenTimeout bounds how long opening waits for the file lock.
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout" env:"OPEN_TIMEOUT" envDefault:"1s"`
}
