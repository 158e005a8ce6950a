package document

import (
	"context"
	"io"
	"time"
)

// ObjectStore holds document bytes keyed by storage key. Implementations
// live in infrastructure/storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// SignedURL returns a URL that serves the object until ttl elapses.
	SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, error)
	Delete(ctx context.Context, key string) error
}
