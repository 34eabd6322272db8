// Package storage provides a small key/value store abstraction for plugin
// state, with backends for process memory, a local bbolt file, Redis,
// PostgreSQL and S3-compatible object storage.
//
// Every backend implements [Store]. Values are JSON-encoded, so any type
// that round-trips through encoding/json can be stored. A store is bound
// to a scope such as "options" or "user:42"; the same id in different
// scopes refers to different entries.
//
// # Errors
//
// Operations distinguish a missing entry from a failing medium:
//
//   - [sserr.CodeNotFoundEntry]: Get, Update or Remove of an unknown id;
//   - [sserr.CodeConflictAlreadyExists]: Add of an existing id;
//   - [sserr.CodeValidation]: an empty id;
//   - [sserr.CodeTimeoutStorage]: the operation's deadline expired;
//   - [sserr.CodeInternalStorage]: any other backend or encoding failure.
//
// # OpenTelemetry Tracing
//
// The persistent backends create client spans named "<system>.<operation>"
// (for example "redis.Get") carrying db.system, db.name and a truncated
// db.statement.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Store is a scoped key/value store.
//
// Implementations are safe for concurrent use. Add, Update and Remove on
// the memory and bbolt backends are atomic; on the remote backends the
// existence check and the write are separate round trips.
type Store[T any] interface {
	// Get returns the value stored under id.
	Get(ctx context.Context, id string) (T, error)

	// Add stores v under a new id.
	Add(ctx context.Context, id string, v T) error

	// Update replaces the value of an existing id.
	Update(ctx context.Context, id string, v T) error

	// Remove deletes an existing id.
	Remove(ctx context.Context, id string) error

	// GetAll returns every entry in the store's scope.
	GetAll(ctx context.Context) (map[string]T, error)

	// Count returns the number of entries in the store's scope.
	Count(ctx context.Context) (int, error)
}

// maxStatementTruncateLen is the maximum length of statements recorded
// in spans.
const maxStatementTruncateLen = 100

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return sserr.New(sserr.CodeValidation, "storage: id must not be empty")
	}
	return nil
}

func validateScope(scope string) error {
	if strings.TrimSpace(scope) == "" {
		return sserr.New(sserr.CodeValidation, "storage: scope must not be empty")
	}
	return nil
}

func notFound(scope, id string) *sserr.Error {
	return sserr.Newf(sserr.CodeNotFoundEntry, "storage: no entry %q in %q", id, scope).
		WithDetails(map[string]any{"scope": scope, "id": id})
}

func alreadyExists(scope, id string) *sserr.Error {
	return sserr.Newf(sserr.CodeConflictAlreadyExists, "storage: entry %q already exists in %q", id, scope).
		WithDetails(map[string]any{"scope": scope, "id": id})
}

// wrapError converts a backend error to a [*sserr.Error]. Errors already
// carrying a code pass through. Deadline expiry is classified as
// [sserr.CodeTimeoutStorage] so callers can retry.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := sserr.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutStorage, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalStorage, message)
}

func encode[T any](v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalStorage, "storage: encoding value")
	}
	return data, nil
}

func decode[T any](data []byte, id string) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, sserr.Wrapf(err, sserr.CodeInternalStorage, "storage: decoding entry %q", id)
	}
	return v, nil
}

// truncateStatement shortens s to maxStatementTruncateLen runes.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
