// Package config loads runtime configuration for the capsulekeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the server
//	-d string   path to the local database
//	-t int      request timeout (seconds)
//	-o string   download directory
//	-l string   log level
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "database_path": "/home/me/.config/capsulekeeper/client.db",
//	  "request_timeout": "30s",
//	  "countdown_interval": "1s",
//	  "download_dir": "downloads",
//	  "log_level": "info"
//	}
package config
