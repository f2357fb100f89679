package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/capsulekeeper/internal/flagx"
	"github.com/dmitrijs2005/capsulekeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// Durations accept both strings such as "30m" and integer nanoseconds.
// Absent fields leave the current value untouched.
type JsonConfig struct {
	Address                     string          `json:"address"`
	PublicURL                   string          `json:"public_url"`
	DatabaseDSN                 string          `json:"database_dsn"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	CodeValidityDuration        *timex.Duration `json:"code_validity_duration"`
	MediaURLValidityDuration    *timex.Duration `json:"media_url_validity_duration"`
	NotifySecret                string          `json:"notify_secret"`
	NotifyWindow                *timex.Duration `json:"notify_window"`
	MediaBackend                string          `json:"media_backend"`
	MediaDir                    string          `json:"media_dir"`
	S3RootUser                  string          `json:"s3_root_user"`
	S3RootPassword              string          `json:"s3_root_password"`
	S3Bucket                    string          `json:"s3_bucket"`
	S3Region                    string          `json:"s3_region"`
	S3BaseEndpoint              string          `json:"s3_base_endpoint"`
	LogLevel                    string          `json:"log_level"`
}

// parseJson overlays cfg with the JSON file named by -c or -config in args.
// Without either flag nothing is loaded. Read and decode errors panic.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	var c JsonConfig

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, &c); err != nil {
		panic(err)
	}

	str := func(src string, dst *string) {
		if src != "" {
			*dst = src
		}
	}

	str(c.Address, &cfg.Address)
	str(c.PublicURL, &cfg.PublicURL)
	str(c.DatabaseDSN, &cfg.DatabaseDSN)
	str(c.SecretKey, &cfg.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		cfg.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.CodeValidityDuration != nil {
		cfg.CodeValidityDuration = c.CodeValidityDuration.Duration
	}
	if c.MediaURLValidityDuration != nil {
		cfg.MediaURLValidityDuration = c.MediaURLValidityDuration.Duration
	}
	str(c.NotifySecret, &cfg.NotifySecret)
	if c.NotifyWindow != nil {
		cfg.NotifyWindow = c.NotifyWindow.Duration
	}
	str(c.MediaBackend, &cfg.MediaBackend)
	str(c.MediaDir, &cfg.MediaDir)
	str(c.S3RootUser, &cfg.S3RootUser)
	str(c.S3RootPassword, &cfg.S3RootPassword)
	str(c.S3Bucket, &cfg.S3Bucket)
	str(c.S3Region, &cfg.S3Region)
	str(c.S3BaseEndpoint, &cfg.S3BaseEndpoint)
	str(c.LogLevel, &cfg.LogLevel)
}
