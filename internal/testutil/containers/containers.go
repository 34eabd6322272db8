//go:build integration

// Package containers starts the services the storage backends talk to,
// using testcontainers-go, for integration tests.
//
// The package carries the "integration" build tag so Docker dependencies
// stay out of unit test builds. Use it only from files with the same tag:
//
//	//go:build integration
//
// Each Start* function returns a *Result holding the container and the
// connection details needed by [config.StorageConfig]. The caller
// terminates the container:
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"
	"strings"

	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ===========================================================================
// PostgreSQL
// ===========================================================================

// DefaultPostgresImage is the image used for PostgreSQL integration tests.
const DefaultPostgresImage = "docker.io/postgres:16-alpine"

// Credentials of the PostgreSQL test database. Only suitable for
// ephemeral containers.
const (
	DefaultPostgresDatabase = "plugins_test"
	DefaultPostgresUser     = "testuser"
	DefaultPostgresPassword = "testpassword"
)

// PostgresResult holds a started PostgreSQL container.
type PostgresResult struct {
	Container *tcpostgres.PostgresContainer

	// ConnString is a URI with sslmode=disable, suitable for
	// [config.PostgresConfig.DSN].
	ConnString string
}

// StartPostgres starts a PostgreSQL 16 container and waits until it
// accepts connections. If the connection string cannot be read the
// container is terminated before returning.
func StartPostgres(ctx context.Context) (*PostgresResult, error) {
	container, err := tcpostgres.Run(ctx,
		DefaultPostgresImage,
		tcpostgres.WithDatabase(DefaultPostgresDatabase),
		tcpostgres.WithUsername(DefaultPostgresUser),
		tcpostgres.WithPassword(DefaultPostgresPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get connection string: %w", err)
	}

	return &PostgresResult{Container: container, ConnString: connStr}, nil
}

// ===========================================================================
// Redis
// ===========================================================================

// DefaultRedisImage is the image used for Redis integration tests.
const DefaultRedisImage = "docker.io/redis:7-alpine"

// RedisResult holds a started Redis container.
type RedisResult struct {
	Container *tcredis.RedisContainer

	// Addr is the "host:port" address, suitable for
	// [config.RedisConfig.Addr].
	Addr string
}

// StartRedis starts a Redis 7 container without authentication.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get redis connection string: %w", err)
	}

	// ConnectionString has the form redis://host:port.
	return &RedisResult{
		Container: container,
		Addr:      strings.TrimPrefix(connStr, "redis://"),
	}, nil
}

// ===========================================================================
// MinIO
// ===========================================================================

// DefaultMinIOImage is the image used for MinIO integration tests.
const DefaultMinIOImage = "docker.io/minio/minio:latest"

// Root credentials of the MinIO test container.
const (
	DefaultMinIOAccessKey = "minioadmin"
	DefaultMinIOSecretKey = "minioadmin"
)

// MinIOResult holds a started MinIO container.
type MinIOResult struct {
	Container *tcminio.MinioContainer

	// Endpoint is the "host:port" API endpoint.
	Endpoint  string
	AccessKey string
	SecretKey string
}

// StartMinIO starts a MinIO container with [DefaultMinIOAccessKey] and
// [DefaultMinIOSecretKey] as root credentials.
func StartMinIO(ctx context.Context) (*MinIOResult, error) {
	container, err := tcminio.Run(ctx,
		DefaultMinIOImage,
		tcminio.WithUsername(DefaultMinIOAccessKey),
		tcminio.WithPassword(DefaultMinIOSecretKey),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start minio container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get minio connection string: %w", err)
	}

	return &MinIOResult{
		Container: container,
		Endpoint:  connStr,
		AccessKey: DefaultMinIOAccessKey,
		SecretKey: DefaultMinIOSecretKey,
	}, nil
}
