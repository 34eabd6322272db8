package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	bolt "go.etcd.io/bbolt"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Backend holds the connection to the configured storage medium and hands
// out stores bound to scopes. One Backend is shared by every store of a
// plugin; close it on shutdown.
type Backend struct {
	cfg  config.StorageConfig
	opts []Option

	redis   *redis.Client
	pool    *pgxpool.Pool
	objects Objects
	bolt    *bolt.DB

	mu     sync.Mutex
	memory map[string]any
	closed bool
}

// Connect opens the medium selected by cfg.Driver. For Postgres it also
// creates the table if needed. cfg.Timeout is applied to every operation
// unless opts override it.
func Connect(ctx context.Context, cfg config.StorageConfig, opts ...Option) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backend{
		cfg:    cfg,
		opts:   append([]Option{WithTimeout(cfg.Timeout)}, opts...),
		memory: make(map[string]any),
	}
	var err error
	switch cfg.Driver {
	case config.DriverMemory:
	case config.DriverBolt:
		b.bolt, err = OpenBolt(cfg.Bolt.Path, cfg.Bolt.OpenTimeout)
	case config.DriverRedis:
		b.redis, err = NewRedisClient(ctx, cfg.Redis)
	case config.DriverPostgres:
		b.pool, err = NewPostgresPool(ctx, cfg.Postgres)
		if err == nil {
			if err = EnsureSchema(ctx, b.pool, cfg.Postgres.Table); err != nil {
				b.pool.Close()
			}
		}
	case config.DriverMinIO:
		var client *minio.Client
		client, err = NewMinIOClient(ctx, cfg.MinIO)
		if err == nil {
			b.objects = NewObjects(client)
		}
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Driver returns the configured driver name.
func (b *Backend) Driver() string {
	return b.cfg.Driver
}

// Close releases the connection. It is safe to call more than once.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
		b.redis = nil
	}
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	if b.bolt != nil {
		errs = append(errs, b.bolt.Close())
		b.bolt = nil
	}
	b.objects = nil
	b.memory = nil
	b.closed = true
	return errors.Join(errs...)
}

// New returns a store for scope on b. Memory stores are shared per scope,
// so two calls with the same scope and type see the same entries.
func New[T any](b *Backend, scope string) (Store[T], error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, closed()
	}
	switch b.cfg.Driver {
	case config.DriverMemory:
		if existing, ok := b.memory[scope]; ok {
			s, ok := existing.(*MemoryStore[T])
			if !ok {
				return nil, sserr.Newf(sserr.CodeConflict,
					"storage: scope %q is already open with a different value type", scope)
			}
			return s, nil
		}
		s := NewMemoryStore[T](scope)
		b.memory[scope] = s
		return s, nil
	case config.DriverBolt:
		if b.bolt == nil {
			return nil, closed()
		}
		s, err := NewBoltStore[T](b.bolt, scope, b.opts...)
		return asStore[T](s, err)
	case config.DriverRedis:
		if b.redis == nil {
			return nil, closed()
		}
		s, err := NewRedisStore[T](b.redis, b.cfg.Redis.KeyPrefix, scope, b.cfg.Redis.DB, b.opts...)
		return asStore[T](s, err)
	case config.DriverPostgres:
		if b.pool == nil {
			return nil, closed()
		}
		s, err := NewPostgresStore[T](b.pool, b.cfg.Postgres.Table, scope, b.opts...)
		return asStore[T](s, err)
	case config.DriverMinIO:
		if b.objects == nil {
			return nil, closed()
		}
		s, err := NewObjectStore[T](b.objects, b.cfg.MinIO.Bucket, b.cfg.MinIO.Prefix, scope, b.opts...)
		return asStore[T](s, err)
	default:
		return nil, sserr.Newf(sserr.CodeValidation, "storage: unknown driver %q", b.cfg.Driver)
	}
}

// Open connects to the medium in cfg and returns one store for scope
// together with the backend to close.
func Open[T any](ctx context.Context, cfg config.StorageConfig, scope string, opts ...Option) (Store[T], *Backend, error) {
	b, err := Connect(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	s, err := New[T](b, scope)
	if err != nil {
		_ = b.Close()
		return nil, nil, err
	}
	return s, b, nil
}

// asStore keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func asStore[T any, S Store[T]](s S, err error) (Store[T], error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func closed() error {
	return sserr.New(sserr.CodeUnavailable, "storage: backend is closed")
}
