// Package store provides the key-value persistence collaborator used by
// the condition engine, with Redis, SQLite and failover implementations.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("store: not found")

// Entry is one key/value pair returned by a family scan.
type Entry struct {
	Key   string
	Value []byte
}

// KV is an abstract key-value store. Keys are grouped into families; a
// family scan returns entries ordered by key.
type KV interface {
	Get(ctx context.Context, family, key string) ([]byte, error)
	Put(ctx context.Context, family, key string, value []byte) error
	Delete(ctx context.Context, family, key string) error
	GetAll(ctx context.Context, family string) ([]Entry, error)
}

// StoreError wraps a failed store call so callers can distinguish
// persistence failures from validation failures.
type StoreError struct {
	Op     string
	Family string
	Key    string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s/%s: %v", e.Op, e.Family, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreFailure checks if error is a persistence failure.
func IsStoreFailure(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
