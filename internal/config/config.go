// Package config loads the TOML configuration shared by the API server and
// the vaultctl tool.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	// Local card catalog cache
	Cache CacheConfig `toml:"cache"`

	// Remote card catalog (Pokémon TCG API)
	Catalog CatalogConfig `toml:"catalog"`

	// Market price providers
	Prices PricesConfig `toml:"prices"`

	// User data store
	Database DatabaseConfig `toml:"database"`

	// HTTP API
	Server ServerConfig `toml:"server"`

	// Collection export to object storage
	Backup BackupConfig `toml:"backup"`

	// Application configuration
	App AppConfig `toml:"app"`
}

// CacheConfig contains local catalog cache settings.
type CacheConfig struct {
	Path           string `toml:"path"`            // SQLite file; empty means ~/.vaultestim/cache.db
	TTL            string `toml:"ttl"`             // Freshness window (e.g., "5m")
	RefreshTimeout string `toml:"refresh_timeout"` // Upper bound for one full sync
}

// CatalogConfig contains remote catalog settings.
type CatalogConfig struct {
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Timeout           string  `toml:"timeout"`             // Per request
	RequestsPerSecond float64 `toml:"requests_per_second"` // 0 disables the limiter
}

// PricesConfig contains price provider settings.
type PricesConfig struct {
	Provider     string `toml:"provider"` // "pokemontcg" or "rapidapi"
	RapidAPIKey  string `toml:"rapidapi_key"`
	RapidAPIHost string `toml:"rapidapi_host"`
	DailyQuota   int    `toml:"daily_quota"`
	Concurrency  int    `toml:"concurrency"`
	Timezone     string `toml:"timezone"` // Quota resets at midnight here
}

// DatabaseConfig contains Postgres settings.
type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	AutoMigrate  bool   `toml:"auto_migrate"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Port           int      `toml:"port"`
	JWTSecret      string   `toml:"jwt_secret"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestTimeout string   `toml:"request_timeout"`
}

// BackupConfig contains S3-compatible storage settings.
type BackupConfig struct {
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Interval  string `toml:"interval"` // Scheduled backups; empty disables
}

// AppConfig contains general application settings.
type AppConfig struct {
	DebugMode bool `toml:"debug_mode"` // Enable debug logging
}

// Environment variables that override secrets from the file.
const (
	EnvDatabaseDSN      = "VAULTESTIM_DATABASE_DSN"
	EnvJWTSecret        = "VAULTESTIM_JWT_SECRET"
	EnvRapidAPIKey      = "VAULTESTIM_RAPIDAPI_KEY"
	EnvPokemonTCGAPIKey = "VAULTESTIM_POKEMONTCG_API_KEY"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			TTL:            "5m",
			RefreshTimeout: "2m",
		},
		Catalog: CatalogConfig{
			BaseURL:           "https://api.pokemontcg.io/v2",
			Timeout:           "15s",
			RequestsPerSecond: 5,
		},
		Prices: PricesConfig{
			Provider:     "pokemontcg",
			RapidAPIHost: "cardmarket-api-tcg.p.rapidapi.com",
			DailyQuota:   100,
			Concurrency:  4,
			Timezone:     "Local",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173"},
			RequestTimeout: "60s",
		},
		Backup: BackupConfig{
			Prefix: "backups",
			Region: "us-east-1",
		},
		App: AppConfig{
			DebugMode: false,
		},
	}
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".vaultestim")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	return configDir, nil
}

// Path returns the path to the configuration file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads the configuration from the default location.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration from path. Keys absent from the file keep
// their defaults, and a missing file yields the default config. Environment
// overrides are applied last.
func LoadFile(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	config.applyEnv()
	return config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv(EnvRapidAPIKey); v != "" {
		c.Prices.RapidAPIKey = v
	}
	if v := os.Getenv(EnvPokemonTCGAPIKey); v != "" {
		c.Catalog.APIKey = v
	}
}

// Save saves the configuration to the default location.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the configuration to path.
func (c *Config) SaveFile(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	durations := []struct {
		name, value string
		optional    bool
	}{
		{"cache TTL", c.Cache.TTL, false},
		{"cache refresh timeout", c.Cache.RefreshTimeout, false},
		{"catalog timeout", c.Catalog.Timeout, false},
		{"server request timeout", c.Server.RequestTimeout, false},
		{"backup interval", c.Backup.Interval, true},
	}
	for _, d := range durations {
		if d.optional && d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive: %s", d.name, d.value)
		}
	}

	if c.Catalog.RequestsPerSecond < 0 {
		return fmt.Errorf("catalog requests per second cannot be negative: %v", c.Catalog.RequestsPerSecond)
	}

	switch c.Prices.Provider {
	case "", "pokemontcg":
	case "rapidapi":
		if c.Prices.RapidAPIKey == "" {
			return fmt.Errorf("rapidapi provider requires rapidapi_key or %s", EnvRapidAPIKey)
		}
	default:
		return fmt.Errorf("unknown price provider %q", c.Prices.Provider)
	}
	if c.Prices.DailyQuota < 0 {
		return fmt.Errorf("daily quota cannot be negative: %d", c.Prices.DailyQuota)
	}
	if c.Prices.Concurrency < 0 {
		return fmt.Errorf("price concurrency cannot be negative: %d", c.Prices.Concurrency)
	}
	if _, err := c.GetPricesLocation(); err != nil {
		return err
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// GetCacheTTL returns the cache TTL as a duration.
func (c *Config) GetCacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.Cache.TTL)
}

// GetCacheRefreshTimeout returns the sync timeout as a duration.
func (c *Config) GetCacheRefreshTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Cache.RefreshTimeout)
}

// GetCachePath returns the SQLite cache file, defaulting to the config directory.
func (c *Config) GetCachePath() (string, error) {
	if c.Cache.Path != "" {
		return c.Cache.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// GetCatalogTimeout returns the per-request catalog timeout.
func (c *Config) GetCatalogTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Catalog.Timeout)
}

// GetServerRequestTimeout returns the HTTP handler timeout.
func (c *Config) GetServerRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.RequestTimeout)
}

// GetBackupInterval returns the scheduled backup interval, or 0 when disabled.
func (c *Config) GetBackupInterval() (time.Duration, error) {
	if c.Backup.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Backup.Interval)
}

// GetPricesLocation returns the time zone the daily quota resets in.
func (c *Config) GetPricesLocation() (*time.Location, error) {
	tz := c.Prices.Timezone
	if tz == "" {
		tz = "Local"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid prices timezone %q: %w", tz, err)
	}
	return loc, nil
}
