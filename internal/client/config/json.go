package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/capsulekeeper/internal/flagx"
	"github.com/dmitrijs2005/capsulekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// accept either strings like "30s" or integer nanoseconds. Absent fields
// leave the current value untouched.
type JsonConfig struct {
	ServerURL         string          `json:"server_url"`
	DatabasePath      string          `json:"database_path"`
	RequestTimeout    *timex.Duration `json:"request_timeout"`
	CountdownInterval *timex.Duration `json:"countdown_interval"`
	DownloadDir       string          `json:"download_dir"`
	LogLevel          string          `json:"log_level"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config in args. Without either flag it does nothing. Read and
// decode errors panic.
func parseJson(cfg *Config, args []string) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.CountdownInterval != nil {
		cfg.CountdownInterval = jc.CountdownInterval.Duration
	}
	if jc.DownloadDir != "" {
		cfg.DownloadDir = jc.DownloadDir
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
}
