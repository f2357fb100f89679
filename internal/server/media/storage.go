// Package media stores capsule media bytes and hands out short-lived
// download links for them.
package media

import (
	"context"
	"io"
	"time"
)

// Storage is a blob store keyed by opaque storage keys. Delete of an absent
// key is not an error.
type Storage interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	// URL returns a link that serves the blob as filename until ttl passes.
	URL(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
