package tokens_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/tokens"
)

func TestRevokeAndPurge(t *testing.T) {
	db, err := repomanager.OpenSQLite(context.Background(), repomanager.NewSQLiteRepositoryManager(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := tokens.NewSQLiteRepository(db)
	ctx := context.Background()
	now := time.Now()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(-time.Minute)))
	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(-time.Minute)), "revoking twice is fine")
	require.NoError(t, r.Revoke(ctx, "jti-2", now.Add(time.Hour)))

	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := r.Purge(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.True(t, revoked)
}
