package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/capsulekeeper/internal/server/config"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/media"
)

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	c := &config.Config{}
	c.LoadDefaults()
	c.MediaDir = filepath.Join(t.TempDir(), "media")

	s, blobs, err := newStorage(ctx, c)
	require.NoError(t, err)
	assert.IsType(t, &media.LocalStorage{}, s)
	assert.NotNil(t, blobs)

	c.MediaBackend = "ftp"
	_, _, err = newStorage(ctx, c)
	assert.Error(t, err)
}

func TestNewApp(t *testing.T) {
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = filepath.Join(t.TempDir(), "server.db")
	c.MediaDir = filepath.Join(t.TempDir(), "media")

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	require.NoError(t, app.db.Close())
}
