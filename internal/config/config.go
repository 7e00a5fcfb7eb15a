// ABOUTME: HealthHub configuration with primary and fallback backend selection.
// ABOUTME: Handles settings, identity tokens, and the storage factory functions.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harperreed/healthhub/internal/charm"
	"github.com/harperreed/healthhub/internal/fallback"
	"github.com/harperreed/healthhub/internal/log"
	"github.com/harperreed/healthhub/internal/reconcile"
	"github.com/harperreed/healthhub/internal/storage"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendCharm  = "charm"
	BackendMemory = "memory"

	FallbackJSON   = "json"
	FallbackBadger = "badger"
	FallbackBolt   = "bolt"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultUser        = 1
	badgerDirName      = "fallback.badger"
	boltFileName       = "fallback.bolt"
	sqliteDatabaseName = "healthhub.db"
)

// Config stores healthhub configuration.
type Config struct {
	// Backend selects the primary store: "sqlite" (default), "charm" or "memory".
	Backend string `json:"backend,omitempty"`

	// DataDir is the root directory for data storage.
	// SQLite puts healthhub.db here; the fallback stores live here unless
	// FallbackFile says otherwise. Supports ~ expansion.
	// Defaults to ~/.local/share/healthhub.
	DataDir string `json:"data_dir,omitempty"`

	// Fallback selects the staging store: "json" (default), "badger" or "bolt".
	Fallback string `json:"fallback,omitempty"`

	// FallbackFile overrides the JSON staging file path.
	FallbackFile string `json:"fallback_file,omitempty"`

	// ClearPolicy is "confirmed" (default) or "all".
	ClearPolicy string `json:"clear_policy,omitempty"`

	Listen            string `json:"listen,omitempty"`
	ReconcileInterval string `json:"reconcile_interval,omitempty"`

	// TestRoutes enables the /test/health routes that trust X-User-Id.
	TestRoutes bool `json:"test_routes,omitempty"`

	// Tokens maps bearer tokens to user ids.
	Tokens map[string]int64 `json:"tokens,omitempty"`

	// AdminUsers may drain the fallback store over HTTP.
	AdminUsers []int64 `json:"admin_users,omitempty"`

	// DefaultUser is the user id for CLI and MCP operations.
	DefaultUser int64 `json:"default_user,omitempty"`

	LogLevel  string `json:"log_level,omitempty"`
	LogJSON   bool   `json:"log_json,omitempty"`
	CharmHost string `json:"charm_host,omitempty"`
}

// GetBackend returns the configured backend, defaulting to "sqlite".
func (c *Config) GetBackend() string {
	if c.Backend == "" {
		return BackendSQLite
	}
	return c.Backend
}

// GetFallback returns the configured staging store, defaulting to "json".
func (c *Config) GetFallback() string {
	if c.Fallback == "" {
		return FallbackJSON
	}
	return c.Fallback
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetFallbackFile returns the JSON staging file path.
func (c *Config) GetFallbackFile() string {
	if c.FallbackFile != "" {
		return ExpandPath(c.FallbackFile)
	}
	return filepath.Join(c.GetDataDir(), fallback.DefaultFileName)
}

// GetListen returns the HTTP listen address.
func (c *Config) GetListen() string {
	if c.Listen == "" {
		return defaultListen
	}
	return c.Listen
}

// GetDefaultUser returns the user id for CLI and MCP operations.
func (c *Config) GetDefaultUser() int64 {
	if c.DefaultUser == 0 {
		return defaultUser
	}
	return c.DefaultUser
}

// GetReconcileInterval parses ReconcileInterval. Zero disables the loop.
func (c *Config) GetReconcileInterval() (time.Duration, error) {
	if c.ReconcileInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.ReconcileInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid reconcile_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid reconcile_interval: %s is negative", d)
	}
	return d, nil
}

// GetClearPolicy parses ClearPolicy.
func (c *Config) GetClearPolicy() (reconcile.ClearPolicy, error) {
	return reconcile.ParseClearPolicy(c.ClearPolicy)
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() log.Config {
	return log.Config{
		Level:      log.ParseLevel(c.LogLevel),
		JSONOutput: c.LogJSON,
	}
}

// Validate checks enumerated fields and durations.
func (c *Config) Validate() error {
	switch c.GetBackend() {
	case BackendSQLite, BackendCharm, BackendMemory:
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}
	switch c.GetFallback() {
	case FallbackJSON, FallbackBadger, FallbackBolt:
	default:
		return fmt.Errorf("unknown fallback: %q", c.Fallback)
	}
	if _, err := c.GetClearPolicy(); err != nil {
		return err
	}
	if _, err := c.GetReconcileInterval(); err != nil {
		return err
	}
	for token, uid := range c.Tokens {
		if token == "" || uid <= 0 {
			return fmt.Errorf("invalid token entry for user %d", uid)
		}
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenPrimary creates the primary store for the configured backend.
func (c *Config) OpenPrimary() (storage.PrimaryStore, error) {
	switch backend := c.GetBackend(); backend {
	case BackendSQLite:
		return storage.Open(filepath.Join(c.GetDataDir(), sqliteDatabaseName))
	case BackendCharm:
		return charm.Open(charm.Options{Host: c.CharmHost, AutoSync: true})
	case BackendMemory:
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}

// OpenFallback creates the staging store for the configured fallback.
func (c *Config) OpenFallback() (fallback.Store, error) {
	switch kind := c.GetFallback(); kind {
	case FallbackJSON:
		return fallback.NewJSONFile(c.GetFallbackFile())
	case FallbackBadger:
		return fallback.OpenBadgerLog(filepath.Join(c.GetDataDir(), badgerDirName))
	case FallbackBolt:
		return fallback.OpenBoltLog(filepath.Join(c.GetDataDir(), boltFileName))
	default:
		return nil, fmt.Errorf("unknown fallback: %q", kind)
	}
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "healthhub", "config.json")
}

// Load reads config from disk.
func Load() (*Config, error) {
	return LoadFile(GetConfigPath())
}

// LoadFile reads config from path. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
