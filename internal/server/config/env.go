package config

import (
	"errors"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv exports the variables of path into the process environment.
// Variables already set win. A missing file is not an error; a malformed
// one panics.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}
}

// parseEnv overlays cfg with environment variables:
//
//	SERVER_ADDRESS               bind address
//	PUBLIC_URL                   externally visible base URL
//	DATABASE_DSN                 SQLite database file
//	SECRET_KEY                   JWT and code HMAC secret
//	ACCESS_TOKEN_EXPIRE_MINUTES  access token lifetime, minutes
//	CODE_EXPIRE_MINUTES          code lifetime, minutes
//	MEDIA_URL_EXPIRE_SECONDS     media link lifetime, seconds
//	NOTIFY_SECRET                reminder trigger secret
//	NOTIFY_WINDOW_HOURS          reminder look-ahead, hours
//	MEDIA_BACKEND                local or s3
//	MEDIA_DIR                    local media root
//	S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT
//	LOG_LEVEL
//
// Malformed numbers panic.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, unit time.Duration, dst *time.Duration) {
		v, ok := lookup(name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		*dst = time.Duration(n) * unit
	}

	str("SERVER_ADDRESS", &cfg.Address)
	str("PUBLIC_URL", &cfg.PublicURL)
	str("DATABASE_DSN", &cfg.DatabaseDSN)
	str("SECRET_KEY", &cfg.SecretKey)
	dur("ACCESS_TOKEN_EXPIRE_MINUTES", time.Minute, &cfg.AccessTokenValidityDuration)
	dur("CODE_EXPIRE_MINUTES", time.Minute, &cfg.CodeValidityDuration)
	dur("MEDIA_URL_EXPIRE_SECONDS", time.Second, &cfg.MediaURLValidityDuration)
	str("NOTIFY_SECRET", &cfg.NotifySecret)
	dur("NOTIFY_WINDOW_HOURS", time.Hour, &cfg.NotifyWindow)
	str("MEDIA_BACKEND", &cfg.MediaBackend)
	str("MEDIA_DIR", &cfg.MediaDir)
	str("S3_ROOT_USER", &cfg.S3RootUser)
	str("S3_ROOT_PASSWORD", &cfg.S3RootPassword)
	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_BASE_ENDPOINT", &cfg.S3BaseEndpoint)
	str("LOG_LEVEL", &cfg.LogLevel)
}
