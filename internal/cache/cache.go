// Package cache defines the key-value store contract used by the response cache.
package cache

import (
	"context"
	"time"
)

// Interface is a string-keyed store with per-write expiry. A missing key is
// reported as found=false, never as an error.
type Interface interface {
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}
