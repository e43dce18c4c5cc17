package repository

import (
	"context"
	"time"
)

// StateStore abstracts ephemeral key-value state such as cached cookie profiles.
// Implementations: Redis (production) or in-memory (local dev / single instance).
// Get returns nil, nil for missing or expired keys.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}
