package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Fetcher  FetcherConfig  `json:"fetcher" yaml:"fetcher"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// ServerConfig contains HTTP listener parameters
type ServerConfig struct {
	Port            int    `json:"port" yaml:"port"`
	ReadTimeout     string `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string `json:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout string `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBatch        int    `json:"max_batch" yaml:"max_batch"`
}

// StoreConfig selects and configures the quote store backend
type StoreConfig struct {
	Backend       string `json:"backend" yaml:"backend"` // "sqlite" or "redis"
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	RedisKey      string `json:"redis_key,omitempty" yaml:"redis_key,omitempty"`
	MaxAge        string `json:"max_age" yaml:"max_age"` // e.g., "24h"
}

// ProviderConfig contains market data provider parameters
type ProviderConfig struct {
	Name              string  `json:"name" yaml:"name"` // "yahoo" or "polygon"
	BaseURL           string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey            string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	RateSymbol        string  `json:"rate_symbol" yaml:"rate_symbol"`
	DefaultRate       float64 `json:"default_rate" yaml:"default_rate"`
	DefaultVolatility float64 `json:"default_volatility" yaml:"default_volatility"`
	RequestsPerMinute int     `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int     `json:"burst" yaml:"burst"`
	Timeout           string  `json:"timeout" yaml:"timeout"`
	Lookback          string  `json:"lookback,omitempty" yaml:"lookback,omitempty"`
}

// FetcherConfig contains batch fetch parameters
type FetcherConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency"`
	// Timeout bounds one shared provider fetch, independent of any caller.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// EngineConfig points at the pricing/risk engine. An empty URL disables it.
type EngineConfig struct {
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Timeout string `json:"timeout" yaml:"timeout"`
}

// LogConfig contains logging parameters
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// Duration parses s as a time.Duration; empty is zero.
func Duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// MustDuration is Duration for values already checked by Validate.
func MustDuration(s string) time.Duration {
	d, err := Duration(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Load builds the configuration from defaults, the optional file at path,
// a .env file if present, and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML). Fields the
// file omits keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, c)
	if err != nil {
		err = json.Unmarshal(data, c)
		if err != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("RISKGATE_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("RISKGATE_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("RISKGATE_STORE"); ok {
		c.Store.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup("RISKGATE_DB_PATH"); ok {
		c.Store.DBPath = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Store.RedisAddr = v
	}
	if v, ok := lookup("RISKGATE_PROVIDER"); ok {
		c.Provider.Name = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup("POLYGON_API_KEY"); ok {
		c.Provider.APIKey = v
	}
	if v, ok := lookup("RISKGATE_ENGINE_URL"); ok {
		c.Engine.URL = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	// Determine format by extension
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBatch <= 0 {
		return fmt.Errorf("server.max_batch must be positive")
	}
	for name, v := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"store.max_age":           c.Store.MaxAge,
		"provider.timeout":        c.Provider.Timeout,
		"provider.lookback":       c.Provider.Lookback,
		"engine.timeout":          c.Engine.Timeout,
		"fetcher.timeout":         c.Fetcher.Timeout,
	} {
		d, err := Duration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	switch c.Store.Backend {
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("store db_path required for sqlite backend")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store redis_addr required for redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be 'sqlite' or 'redis'")
	}

	switch c.Provider.Name {
	case "yahoo":
	case "polygon":
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key required for polygon")
		}
	default:
		return fmt.Errorf("provider.name must be 'yahoo' or 'polygon'")
	}
	if c.Provider.DefaultVolatility < 0.01 || c.Provider.DefaultVolatility > 2.0 {
		return fmt.Errorf("provider.default_volatility must be between 0.01 and 2.0")
	}
	if c.Provider.RequestsPerMinute < 0 || c.Provider.Burst < 0 {
		return fmt.Errorf("provider rate limits must not be negative")
	}
	if c.Fetcher.Concurrency <= 0 {
		return fmt.Errorf("fetcher.concurrency must be positive")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     "15s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "10s",
			MaxBatch:        50,
		},
		Store: StoreConfig{
			Backend:  "sqlite",
			DBPath:   "./market_data.db",
			RedisKey: "riskgate:market_data",
			MaxAge:   "24h",
		},
		Provider: ProviderConfig{
			Name:              "yahoo",
			RateSymbol:        "^TNX",
			DefaultRate:       0.045,
			DefaultVolatility: 0.25,
			RequestsPerMinute: 120,
			Burst:             10,
			Timeout:           "10s",
			Lookback:          "8760h",
		},
		Fetcher: FetcherConfig{
			Concurrency: 8,
			Timeout:     "30s",
		},
		Engine: EngineConfig{
			Timeout: "30s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
