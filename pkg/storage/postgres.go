package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Scopes used by the Postgres option and user meta stores.
const (
	ScopeOptions        = "options"
	userMetaScopePrefix = "user:"
)

// Pool is the PostgreSQL surface used by [PostgresStore]. It is satisfied
// by [*pgxpool.Pool] and by pgxmock pools.
type Pool interface {
	// Query executes a SQL query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// QueryRow executes a SQL query that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Exec executes a SQL statement that does not return rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Pool = (*pgxpool.Pool)(nil)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// NewPostgresPool creates a connection pool and verifies connectivity.
// The caller must close the pool.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN.Value())
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat,
			"storage: failed to parse postgres connection string")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"storage: failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"storage: failed to connect to postgres")
	}
	return pool, nil
}

// EnsureSchema creates table if it does not exist.
func EnsureSchema(ctx context.Context, pool Pool, table string) error {
	quoted, err := quoteTable(table)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+quoted+` (
	scope      TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scope, key)
)`)
	return wrapError(err, "storage: creating postgres table")
}

func quoteTable(table string) (string, error) {
	if !tableName.MatchString(table) {
		return "", sserr.Newf(sserr.CodeValidationFormat, "storage: invalid table name %q", table)
	}
	return pgx.Identifier{table}.Sanitize(), nil
}

// PostgresStore is a [Store] kept as rows of (scope, key, value) in a
// shared table. The value column is JSONB.
type PostgresStore[T any] struct {
	pool  Pool
	scope string
	in    instrument

	getSQL    string
	addSQL    string
	updateSQL string
	removeSQL string
	allSQL    string
	countSQL  string
}

var _ Store[struct{}] = (*PostgresStore[struct{}])(nil)

// NewPostgresStore returns a store for scope in table. It does not create
// the table; see [EnsureSchema].
func NewPostgresStore[T any](pool Pool, table, scope string, opts ...Option) (*PostgresStore[T], error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	t, err := quoteTable(table)
	if err != nil {
		return nil, err
	}
	return &PostgresStore[T]{
		pool:      pool,
		scope:     scope,
		in:        newInstrument("postgresql", table, opts),
		getSQL:    `SELECT value FROM ` + t + ` WHERE scope = $1 AND key = $2`,
		addSQL:    `INSERT INTO ` + t + ` (scope, key, value) VALUES ($1, $2, $3) ON CONFLICT (scope, key) DO NOTHING`,
		updateSQL: `UPDATE ` + t + ` SET value = $3, updated_at = now() WHERE scope = $1 AND key = $2`,
		removeSQL: `DELETE FROM ` + t + ` WHERE scope = $1 AND key = $2`,
		allSQL:    `SELECT key, value FROM ` + t + ` WHERE scope = $1 ORDER BY key`,
		countSQL:  `SELECT count(*) FROM ` + t + ` WHERE scope = $1`,
	}, nil
}

// NewOptionsStore returns the plugin-wide options store.
func NewOptionsStore[T any](pool Pool, table string, opts ...Option) (*PostgresStore[T], error) {
	return NewPostgresStore[T](pool, table, ScopeOptions, opts...)
}

// NewUserMetaStore returns the store holding metadata of one user.
func NewUserMetaStore[T any](pool Pool, table, userID string, opts ...Option) (*PostgresStore[T], error) {
	if err := validateID(userID); err != nil {
		return nil, sserr.New(sserr.CodeValidation, "storage: user id must not be empty")
	}
	return NewPostgresStore[T](pool, table, UserScope(userID), opts...)
}

// UserScope returns the scope of a user's metadata.
func UserScope(userID string) string {
	return userMetaScopePrefix + userID
}

// Scope returns the store's scope.
func (s *PostgresStore[T]) Scope() string {
	return s.scope
}

// Get implements [Store].
func (s *PostgresStore[T]) Get(ctx context.Context, id string) (v T, err error) {
	if err = validateID(id); err != nil {
		return v, err
	}
	ctx, end := s.in.start(ctx, "Get", s.getSQL)
	defer func() { end(err) }()

	var data []byte
	err = s.pool.QueryRow(ctx, s.getSQL, s.scope, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, notFound(s.scope, id)
	}
	if err != nil {
		return v, wrapError(err, "storage: postgres get failed")
	}
	return decode[T](data, id)
}

// Add implements [Store].
func (s *PostgresStore[T]) Add(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Add", s.addSQL)
	defer func() { end(err) }()

	tag, err := s.pool.Exec(ctx, s.addSQL, s.scope, id, string(data))
	if err != nil {
		return wrapError(err, "storage: postgres add failed")
	}
	if tag.RowsAffected() == 0 {
		return alreadyExists(s.scope, id)
	}
	return nil
}

// Update implements [Store].
func (s *PostgresStore[T]) Update(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Update", s.updateSQL)
	defer func() { end(err) }()

	tag, err := s.pool.Exec(ctx, s.updateSQL, s.scope, id, string(data))
	if err != nil {
		return wrapError(err, "storage: postgres update failed")
	}
	if tag.RowsAffected() == 0 {
		return notFound(s.scope, id)
	}
	return nil
}

// Remove implements [Store].
func (s *PostgresStore[T]) Remove(ctx context.Context, id string) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	ctx, end := s.in.start(ctx, "Remove", s.removeSQL)
	defer func() { end(err) }()

	tag, err := s.pool.Exec(ctx, s.removeSQL, s.scope, id)
	if err != nil {
		return wrapError(err, "storage: postgres remove failed")
	}
	if tag.RowsAffected() == 0 {
		return notFound(s.scope, id)
	}
	return nil
}

// GetAll implements [Store].
func (s *PostgresStore[T]) GetAll(ctx context.Context) (out map[string]T, err error) {
	ctx, end := s.in.start(ctx, "GetAll", s.allSQL)
	defer func() { end(err) }()

	rows, err := s.pool.Query(ctx, s.allSQL, s.scope)
	if err != nil {
		return nil, wrapError(err, "storage: postgres getall failed")
	}
	defer rows.Close()

	out = make(map[string]T)
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, wrapError(err, "storage: postgres scan failed")
		}
		v, err := decode[T](data, id)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err, "storage: postgres getall failed")
	}
	return out, nil
}

// Count implements [Store].
func (s *PostgresStore[T]) Count(ctx context.Context) (n int, err error) {
	ctx, end := s.in.start(ctx, "Count", s.countSQL)
	defer func() { end(err) }()

	var c int64
	if err = s.pool.QueryRow(ctx, s.countSQL, s.scope).Scan(&c); err != nil {
		return 0, wrapError(err, "storage: postgres count failed")
	}
	return int(c), nil
}

// String describes the store for logs.
func (s *PostgresStore[T]) String() string {
	return fmt.Sprintf("postgres(%s, %s)", s.in.name, s.scope)
}
