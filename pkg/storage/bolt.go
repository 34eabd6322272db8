package storage

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// OpenBolt opens or creates the database file at path. openTimeout bounds
// how long to wait for another process to release the file lock; zero
// waits forever.
func OpenBolt(path string, openTimeout time.Duration) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, sserr.Wrapf(err, sserr.CodeUnavailableDependency,
				"storage: database %q is locked by another process", path)
		}
		return nil, sserr.Wrapf(err, sserr.CodeUnavailableDependency, "storage: opening database %q", path)
	}
	return db, nil
}

// BoltStore is a [Store] kept in one bucket of a bbolt database, named
// after the scope. Each operation is a single transaction.
type BoltStore[T any] struct {
	db     *bolt.DB
	bucket []byte
	scope  string
	in     instrument
}

var _ Store[struct{}] = (*BoltStore[struct{}])(nil)

// NewBoltStore returns a store for scope, creating its bucket if needed.
// The database stays owned by the caller.
func NewBoltStore[T any](db *bolt.DB, scope string, opts ...Option) (*BoltStore[T], error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(scope))
		return err
	})
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeInternalStorage, "storage: creating bucket %q", scope)
	}
	return &BoltStore[T]{
		db:     db,
		bucket: []byte(scope),
		scope:  scope,
		in:     newInstrument("bbolt", db.Path(), opts),
	}, nil
}

func (s *BoltStore[T]) view(ctx context.Context, fn func(b *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(s.bucket))
	})
}

func (s *BoltStore[T]) update(ctx context.Context, fn func(b *bolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(s.bucket))
	})
}

// Get implements [Store].
func (s *BoltStore[T]) Get(ctx context.Context, id string) (v T, err error) {
	if err = validateID(id); err != nil {
		return v, err
	}
	ctx, end := s.in.start(ctx, "Get", fmt.Sprintf("GET %s/%s", s.scope, id))
	defer func() { end(err) }()

	err = s.view(ctx, func(b *bolt.Bucket) error {
		data := b.Get([]byte(id))
		if data == nil {
			return notFound(s.scope, id)
		}
		var derr error
		v, derr = decode[T](data, id)
		return derr
	})
	return v, wrapError(err, "storage: bbolt get failed")
}

// Add implements [Store].
func (s *BoltStore[T]) Add(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Add", fmt.Sprintf("PUT %s/%s", s.scope, id))
	defer func() { end(err) }()

	err = s.update(ctx, func(b *bolt.Bucket) error {
		if b.Get([]byte(id)) != nil {
			return alreadyExists(s.scope, id)
		}
		return b.Put([]byte(id), data)
	})
	return wrapError(err, "storage: bbolt add failed")
}

// Update implements [Store].
func (s *BoltStore[T]) Update(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Update", fmt.Sprintf("PUT %s/%s", s.scope, id))
	defer func() { end(err) }()

	err = s.update(ctx, func(b *bolt.Bucket) error {
		if b.Get([]byte(id)) == nil {
			return notFound(s.scope, id)
		}
		return b.Put([]byte(id), data)
	})
	return wrapError(err, "storage: bbolt update failed")
}

// Remove implements [Store].
func (s *BoltStore[T]) Remove(ctx context.Context, id string) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Remove", fmt.Sprintf("DELETE %s/%s", s.scope, id))
	defer func() { end(err) }()

	err = s.update(ctx, func(b *bolt.Bucket) error {
		if b.Get([]byte(id)) == nil {
			return notFound(s.scope, id)
		}
		return b.Delete([]byte(id))
	})
	return wrapError(err, "storage: bbolt remove failed")
}

// GetAll implements [Store].
func (s *BoltStore[T]) GetAll(ctx context.Context) (out map[string]T, err error) {
	ctx, end := s.in.start(ctx, "GetAll", "SCAN "+s.scope)
	defer func() { end(err) }()

	out = make(map[string]T)
	err = s.view(ctx, func(b *bolt.Bucket) error {
		return b.ForEach(func(k, data []byte) error {
			v, err := decode[T](data, string(k))
			if err != nil {
				return err
			}
			out[string(k)] = v
			return nil
		})
	})
	if err != nil {
		return nil, wrapError(err, "storage: bbolt scan failed")
	}
	return out, nil
}

// Count implements [Store].
func (s *BoltStore[T]) Count(ctx context.Context) (n int, err error) {
	ctx, end := s.in.start(ctx, "Count", "COUNT "+s.scope)
	defer func() { end(err) }()

	err = s.view(ctx, func(b *bolt.Bucket) error {
		n = b.Stats().KeyN
		return nil
	})
	return n, wrapError(err, "storage: bbolt count failed")
}
