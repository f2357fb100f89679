package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the capsulekeeper CLI.
//
// Fields:
//   - ServerURL: base URL of the capsulekeeper REST API.
//   - DatabasePath: SQLite file holding the session token.
//   - RequestTimeout: per-request HTTP timeout.
//   - CountdownInterval: redraw cadence of the watch command.
//   - DownloadDir: where fetched media is written.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ServerURL         string
	DatabasePath      string
	RequestTimeout    time.Duration
	CountdownInterval time.Duration
	DownloadDir       string
	LogLevel          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.DatabasePath = defaultDatabasePath()
	c.RequestTimeout = 30 * time.Second
	c.CountdownInterval = time.Second
	c.DownloadDir = "downloads"
	c.LogLevel = "warn"
}

// LockPath is the advisory lock file guarding token writes.
func (c *Config) LockPath() string {
	return c.DatabasePath + ".lock"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	return cfg
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "capsulekeeper.db"
	}
	return filepath.Join(dir, "capsulekeeper", "client.db")
}
