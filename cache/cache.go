// Package cache provides the key/value collaborator consumed by the
// enrichment pipeline and the tool layer. Values are opaque byte slices;
// callers own the encoding.
package cache

import (
	"context"
	"time"
)

// Store is the cache collaborator interface. The enrichment pipeline only
// requires Get and Set keyed by IP; the remaining operations serve the
// tool layer's cache management surface.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}
