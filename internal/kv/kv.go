// Package kv provides the key-value store used by the embedding cache.
// It is a pure cache tier: the corpus of record is always the flat corpus
// file, never this store.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound signals a missing key.
var ErrKeyNotFound = errors.New("kv: key not found")

// Store is the consumer contract for cached embedding bytes.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close()
}
