// Package tokens records revoked access tokens by their unique id until
// they would have expired anyway.
package tokens

import (
	"context"
	"time"
)

type Repository interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Purge forgets revocations that expired before now.
	Purge(ctx context.Context, now time.Time) (int64, error)
}
