package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8000", c.Address)
	assert.Equal(t, "http://127.0.0.1:8000", c.PublicURL)
	assert.Equal(t, "capsulekeeper-server.db", c.DatabaseDSN)
	assert.Equal(t, "secretKey", c.SecretKey)
	assert.Equal(t, 30*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 15*time.Minute, c.CodeValidityDuration)
	assert.Equal(t, time.Hour, c.MediaURLValidityDuration)
	assert.Equal(t, "", c.NotifySecret)
	assert.Equal(t, 24*time.Hour, c.NotifyWindow)
	assert.Equal(t, MediaBackendLocal, c.MediaBackend)
	assert.Equal(t, "media", c.MediaDir)
	assert.Equal(t, "capsule-media", c.S3Bucket)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Equal(t, "http://127.0.0.1:9000/", c.S3BaseEndpoint)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"server"}
	t.Chdir(t.TempDir())

	c := LoadConfig()

	require.NotNil(t, c, "LoadConfig must not return nil")

	var want Config
	want.LoadDefaults()
	parseEnv(&want, os.LookupEnv)
	assert.Equal(t, &want, c)
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("PUBLIC_URL=http://dotenv\nS3_BUCKET=from-dotenv\n"), 0o600))
	require.NoError(t, os.WriteFile("cfg.json", []byte(`{"s3_bucket":"from-json","log_level":"warn"}`), 0o600))
	t.Setenv("PUBLIC_URL", "http://env")
	t.Setenv("LOG_LEVEL", "error")

	os.Args = []string{"server", "-c", "cfg.json", "-l", "debug"}

	c := LoadConfig()

	assert.Equal(t, "http://env", c.PublicURL, "environment wins over .env")
	assert.Equal(t, "from-json", c.S3Bucket, "json wins over .env")
	assert.Equal(t, "debug", c.LogLevel, "flags win over everything")
}
