package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"address":                        "www.example:9000",
		"public_url":                     "https://capsules.example",
		"database_dsn":                   "srv.db",
		"secret_key":                     "my_secret_key",
		"access_token_validity_duration": "1m",
		"code_validity_duration":         "10m",
		"media_url_validity_duration":    float64(time.Minute),
		"notify_secret":                  "n",
		"notify_window":                  "48h",
		"media_backend":                  "s3",
		"media_dir":                      "/srv/media",
		"s3_root_user":                   "user",
		"s3_root_password":               "password",
		"s3_bucket":                      "bucket",
		"s3_region":                      "region",
		"s3_base_endpoint":               "base_endpoint",
		"log_level":                      "warn",
	})

	t.Run("loads from json", func(t *testing.T) {
		var c Config
		parseJson(&c, []string{"-config", path})

		assert.Equal(t, Config{
			Address:                     "www.example:9000",
			PublicURL:                   "https://capsules.example",
			DatabaseDSN:                 "srv.db",
			SecretKey:                   "my_secret_key",
			AccessTokenValidityDuration: time.Minute,
			CodeValidityDuration:        10 * time.Minute,
			MediaURLValidityDuration:    time.Minute,
			NotifySecret:                "n",
			NotifyWindow:                48 * time.Hour,
			MediaBackend:                "s3",
			MediaDir:                    "/srv/media",
			S3RootUser:                  "user",
			S3RootPassword:              "password",
			S3Bucket:                    "bucket",
			S3Region:                    "region",
			S3BaseEndpoint:              "base_endpoint",
			LogLevel:                    "warn",
		}, c)
	})

	t.Run("absent fields keep values", func(t *testing.T) {
		partial := writeTempJSON(t, map[string]any{"log_level": "error"})

		var c Config
		c.LoadDefaults()
		parseJson(&c, []string{"-c", partial})

		assert.Equal(t, "error", c.LogLevel)
		assert.Equal(t, 30*time.Minute, c.AccessTokenValidityDuration)
		assert.Equal(t, ":8000", c.Address)
	})

	t.Run("no config flag", func(t *testing.T) {
		var c Config
		require.NotPanics(t, func() { parseJson(&c, []string{"-a", ":1"}) })
		assert.Equal(t, Config{}, c)
	})

	t.Run("missing file panics", func(t *testing.T) {
		var c Config
		require.Panics(t, func() { parseJson(&c, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}) })
	})

	t.Run("malformed json panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
		var c Config
		require.Panics(t, func() { parseJson(&c, []string{"-c", bad}) })
	})
}
