// Package config provides TOML configuration file loading and parsing for the host.
// The configuration file lives at ~/.gitpanel/config.toml by default, but can be
// overridden with the --config flag. CLI flags always take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Watch modes.
const (
	WatchFsnotify = "fsnotify"
	WatchPoll     = "poll"
	WatchOff      = "off"
)

// Config represents the host configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files
// via struct tags. Zero values mean "use the default".
type Config struct {
	// Repo is the path to the repository to serve.
	// If empty, defaults to the current working directory.
	Repo string `toml:"repo"`

	// Addr is the host:port for the WebSocket server.
	// Default: 127.0.0.1:7171
	Addr string `toml:"addr"`

	// DBPath is the SQLite database holding changelist state.
	// Default: ~/.gitpanel/gitpanel.db
	DBPath string `toml:"db_path"`

	// LogFile redirects log output when set.
	LogFile string `toml:"log_file"`

	// LogLevel controls logging verbosity: debug, info, warn, error.
	// Default: info
	LogLevel string `toml:"log_level"`

	// DispatchWorkers is the number of goroutines building diffs.
	// Default: 2
	DispatchWorkers int `toml:"dispatch_workers"`

	// DispatchQueue is the dispatch job queue capacity.
	// Default: 64
	DispatchQueue int `toml:"dispatch_queue"`

	// InlineHighlights computes intra-line spans for every diff.
	// Default: false
	InlineHighlights bool `toml:"inline_highlights"`

	// ContextLines is the context used for synthesized patches.
	// Default: 3
	ContextLines int `toml:"context_lines"`

	// WatchMode selects change notification: fsnotify, poll or off.
	// Default: fsnotify
	WatchMode string `toml:"watch_mode"`

	// WatchDebounceMs coalesces filesystem events.
	// Default: 400
	WatchDebounceMs int `toml:"watch_debounce_ms"`

	// PollMs is the git diff polling interval in poll mode.
	// Default: 1000
	PollMs int `toml:"poll_ms"`

	// LargeDiffBytes flags diffs above this size as large.
	// Default: 1 MiB
	LargeDiffBytes int `toml:"large_diff_bytes"`

	// RequireAuth enables token-based authentication for WebSocket connections.
	// Default: false
	RequireAuth bool `toml:"require_auth"`

	// TokenHash is the bcrypt hash printed by 'gitpanel token'.
	TokenHash string `toml:"token_hash"`

	// RequestsPerSecond is the per-client request rate limit.
	// Default: 50
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DefaultConfigPath returns the default config file location: ~/.gitpanel/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName, "config.toml"), nil
}

// DefaultDBPath returns the default database location: ~/.gitpanel/gitpanel.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName, "gitpanel.db"), nil
}

// WriteDefault creates a config file at path that serves repo and stores
// tokenHash, enabling authentication.
//
// Behavior:
//   - If the file already exists, returns without error (does not overwrite).
//   - Creates the parent directory if it doesn't exist.
//   - Returns an error if the file cannot be written.
func WriteDefault(path, repo, tokenHash string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# gitpanel configuration
# Created by 'gitpanel token --write-config'

# Repository to serve
repo = %q

# Require a bearer token on /ws
require_auth = true
token_hash = %q
`, repo, tokenHash)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads a TOML config file from the given path and returns a Config.
//
// Behavior:
//   - If path is empty, attempts to load from the default location (~/.gitpanel/config.toml).
//     Returns an empty Config without error if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed or is invalid.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			return cfg, nil
		}
		path = defaultPath
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects negative sizes and unknown watch modes. Zero values are
// valid and mean "use the default".
func (c *Config) Validate() error {
	ints := []struct {
		name  string
		value int
	}{
		{"dispatch_workers", c.DispatchWorkers},
		{"dispatch_queue", c.DispatchQueue},
		{"context_lines", c.ContextLines},
		{"watch_debounce_ms", c.WatchDebounceMs},
		{"poll_ms", c.PollMs},
		{"large_diff_bytes", c.LargeDiffBytes},
	}
	for _, f := range ints {
		if f.value < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", f.name, f.value)
		}
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must be >= 0, got %g", c.RequestsPerSecond)
	}
	switch c.WatchMode {
	case "", WatchFsnotify, WatchPoll, WatchOff:
	default:
		return fmt.Errorf("watch_mode must be one of fsnotify, poll, off, got %q", c.WatchMode)
	}
	return nil
}

// WithDefaults returns a copy with every zero field replaced by its default.
// DBPath is left empty when the home directory is unknown.
func (c Config) WithDefaults() Config {
	if c.Repo == "" {
		c.Repo = DefaultRepo
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.DBPath == "" {
		if p, err := DefaultDBPath(); err == nil {
			c.DBPath = p
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.DispatchWorkers == 0 {
		c.DispatchWorkers = DefaultDispatchWorkers
	}
	if c.DispatchQueue == 0 {
		c.DispatchQueue = DefaultDispatchQueue
	}
	if c.ContextLines == 0 {
		c.ContextLines = DefaultContextLines
	}
	if c.WatchMode == "" {
		c.WatchMode = WatchFsnotify
	}
	if c.WatchDebounceMs == 0 {
		c.WatchDebounceMs = DefaultWatchDebounceMs
	}
	if c.PollMs == 0 {
		c.PollMs = DefaultPollMs
	}
	if c.LargeDiffBytes == 0 {
		c.LargeDiffBytes = DefaultLargeDiffBytes
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	return c
}

// WatchDebounce returns WatchDebounceMs as a duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}

// PollInterval returns PollMs as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}
