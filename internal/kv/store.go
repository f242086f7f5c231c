// Package kv is the durable key-value layer behind usage counters and
// language preferences. Every backend offers the same small contract:
// point reads, blind writes, and an atomic compare-and-swap that callers
// use for read-modify-write cycles.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store is implemented by every backend.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value unconditionally.
	Put(ctx context.Context, key string, value []byte) error
	// CompareAndSwap writes next only if the current value equals prev.
	// A nil prev means the key must not exist yet.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)
	// Keys lists every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}
