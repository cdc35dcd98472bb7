package cache

import (
	"context"
	"time"
)

// Service defines byte-oriented cache operations with per-entry TTL.
// Implementations must be safe for concurrent use; a reader either sees a
// complete entry or a miss, never a partial write.
type Service interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
	Close() error
}
