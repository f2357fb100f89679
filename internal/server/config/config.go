// Package config handles configuration for the reference server, including
// defaults, .env and environment overlay, a JSON file and command-line flags.
package config

import (
	"os"
	"time"
)

// Media storage backends.
const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"
)

// Config holds runtime settings for the capsulekeeper reference server.
//
// Fields:
//   - Address: bind address of the HTTP API.
//   - PublicURL: externally visible base URL, used to build media links.
//   - DatabaseDSN: SQLite database file.
//   - SecretKey: HMAC secret for JWTs and code digests. Do not use the default in prod.
//   - AccessTokenValidityDuration: lifetime of issued access tokens.
//   - CodeValidityDuration: lifetime of one-time and verification codes.
//   - MediaURLValidityDuration: lifetime of media download links.
//   - NotifySecret: shared secret of the reminder trigger; empty disables it.
//   - NotifyWindow: how far ahead reminders look for unlocking capsules.
//   - MediaBackend: "local" or "s3".
//   - MediaDir: root directory of the local media backend.
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	Address                     string
	PublicURL                   string
	DatabaseDSN                 string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	CodeValidityDuration        time.Duration
	MediaURLValidityDuration    time.Duration
	NotifySecret                string
	NotifyWindow                time.Duration
	MediaBackend                string
	MediaDir                    string
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
	LogLevel                    string
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.Address = ":8000"
	c.PublicURL = "http://127.0.0.1:8000"
	c.DatabaseDSN = "capsulekeeper-server.db"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 30 * time.Minute
	c.CodeValidityDuration = 15 * time.Minute
	c.MediaURLValidityDuration = time.Hour
	c.NotifySecret = ""
	c.NotifyWindow = 24 * time.Hour
	c.MediaBackend = MediaBackendLocal
	c.MediaDir = "media"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "capsule-media"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from .env and the environment, an optional JSON file and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	loadDotEnv(".env")
	parseEnv(cfg, os.LookupEnv)
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}
