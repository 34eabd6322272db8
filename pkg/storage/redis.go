package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// HashCmdable is the Redis command surface used by [RedisStore]. It is
// satisfied by [*redis.Client] and by mocks.
type HashCmdable interface {
	// HSetNX sets a hash field only if it does not exist.
	HSetNX(ctx context.Context, key, field string, value interface{}) *redis.BoolCmd

	// HSet sets field-value pairs in a hash.
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd

	// HGet returns the value of a hash field.
	HGet(ctx context.Context, key, field string) *redis.StringCmd

	// HGetAll returns every field and value of a hash.
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd

	// HExists reports whether a hash field exists.
	HExists(ctx context.Context, key, field string) *redis.BoolCmd

	// HDel deletes hash fields.
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd

	// HLen returns the number of fields in a hash.
	HLen(ctx context.Context, key string) *redis.IntCmd
}

var _ HashCmdable = (*redis.Client)(nil)

// NewRedisClient connects to Redis and verifies connectivity with a ping.
// The caller must close the client.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password.Value(),
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"storage: failed to connect to redis")
	}
	return rdb, nil
}

// RedisStore is a [Store] kept in a single Redis hash named
// "<prefix>:<scope>", one field per id.
type RedisStore[T any] struct {
	cmd   HashCmdable
	key   string
	scope string
	in    instrument
}

var _ Store[struct{}] = (*RedisStore[struct{}])(nil)

// NewRedisStore returns a store for scope. An empty prefix uses the scope
// as the hash name.
func NewRedisStore[T any](cmd HashCmdable, prefix, scope string, db int, opts ...Option) (*RedisStore[T], error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	key := scope
	if prefix != "" {
		key = prefix + ":" + scope
	}
	return &RedisStore[T]{
		cmd:   cmd,
		key:   key,
		scope: scope,
		in:    newInstrument("redis", strconv.Itoa(db), opts),
	}, nil
}

// Key returns the name of the backing hash.
func (s *RedisStore[T]) Key() string {
	return s.key
}

// Get implements [Store].
func (s *RedisStore[T]) Get(ctx context.Context, id string) (v T, err error) {
	if err = validateID(id); err != nil {
		return v, err
	}
	ctx, end := s.in.start(ctx, "Get", fmt.Sprintf("HGET %s %s", s.key, id))
	defer func() { end(err) }()

	raw, err := s.cmd.HGet(ctx, s.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return v, notFound(s.scope, id)
	}
	if err != nil {
		return v, wrapError(err, "storage: redis get failed")
	}
	return decode[T]([]byte(raw), id)
}

// Add implements [Store].
func (s *RedisStore[T]) Add(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Add", fmt.Sprintf("HSETNX %s %s", s.key, id))
	defer func() { end(err) }()

	set, err := s.cmd.HSetNX(ctx, s.key, id, string(data)).Result()
	if err != nil {
		return wrapError(err, "storage: redis add failed")
	}
	if !set {
		return alreadyExists(s.scope, id)
	}
	return nil
}

// Update implements [Store].
func (s *RedisStore[T]) Update(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Update", fmt.Sprintf("HSET %s %s", s.key, id))
	defer func() { end(err) }()

	exists, err := s.cmd.HExists(ctx, s.key, id).Result()
	if err != nil {
		return wrapError(err, "storage: redis update failed")
	}
	if !exists {
		return notFound(s.scope, id)
	}
	if err = s.cmd.HSet(ctx, s.key, id, string(data)).Err(); err != nil {
		return wrapError(err, "storage: redis update failed")
	}
	return nil
}

// Remove implements [Store].
func (s *RedisStore[T]) Remove(ctx context.Context, id string) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Remove", fmt.Sprintf("HDEL %s %s", s.key, id))
	defer func() { end(err) }()

	n, err := s.cmd.HDel(ctx, s.key, id).Result()
	if err != nil {
		return wrapError(err, "storage: redis remove failed")
	}
	if n == 0 {
		return notFound(s.scope, id)
	}
	return nil
}

// GetAll implements [Store].
func (s *RedisStore[T]) GetAll(ctx context.Context) (out map[string]T, err error) {
	ctx, end := s.in.start(ctx, "GetAll", "HGETALL "+s.key)
	defer func() { end(err) }()

	raw, err := s.cmd.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, wrapError(err, "storage: redis getall failed")
	}
	out = make(map[string]T, len(raw))
	for id, data := range raw {
		v, err := decode[T]([]byte(data), id)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// Count implements [Store].
func (s *RedisStore[T]) Count(ctx context.Context) (n int, err error) {
	ctx, end := s.in.start(ctx, "Count", "HLEN "+s.key)
	defer func() { end(err) }()

	l, err := s.cmd.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, wrapError(err, "storage: redis count failed")
	}
	return int(l), nil
}
