// Package config loads the chainlens CLI configuration from a YAML or JSON
// file and CHAINLENS_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHAINLENS_"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
)

type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	LogJSON  bool         `mapstructure:"log_json"`
	AppID    string       `mapstructure:"app_id"`
	Store    StoreConfig  `mapstructure:"store"`
	Server   ServerConfig `mapstructure:"server"`
	Redact   RedactConfig `mapstructure:"redact"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`

	// Path is the directory (file, pebble) or database file (sqlite).
	Path string `mapstructure:"path"`

	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	Metrics bool   `mapstructure:"metrics"`
}

// RedactConfig drives the persistence middleware.
type RedactConfig struct {
	// Patterns are regular expressions matched against map keys.
	Patterns []string `mapstructure:"patterns"`

	// Key is a base64 AES-256 key. Empty disables encryption.
	Key string `mapstructure:"key"`

	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		AppID:    "default",
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   ".chainlens",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: true,
		},
	}
}

// envKeys lists the settings that can be overridden from the environment.
// CHAINLENS_STORE_DRIVER sets store.driver, and so on.
var envKeys = []string{
	"log_level",
	"log_json",
	"app_id",
	"store.driver",
	"store.path",
	"store.addr",
	"store.password",
	"store.db",
	"store.prefix",
	"store.ttl",
	"server.addr",
	"server.metrics",
	"redact.patterns",
	"redact.key",
	"redact.fallback_keys",
}

// Load reads path (YAML unless it ends in .json) over the defaults and
// applies environment overrides. A missing file at an empty path is not an
// error.
func Load(path string) (*Config, error) {
	raw := map[string]any{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if strings.ToLower(filepath.Ext(path)) == ".json" {
			if err := json.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	applyEnv(raw, os.LookupEnv)

	cfg := Default()
	if err := decode(raw, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(raw map[string]any, lookup func(string) (string, bool)) {
	for _, key := range envKeys {
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		val, ok := lookup(name)
		if !ok {
			continue
		}

		parts := strings.Split(key, ".")
		m := raw
		for _, p := range parts[:len(parts)-1] {
			sub, ok := m[p].(map[string]any)
			if !ok {
				sub = map[string]any{}
				m[p] = sub
			}
			m = sub
		}
		m[parts[len(parts)-1]] = val
	}
}

// Validate checks the driver and the settings it needs.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverFile, DriverSQLite, DriverPebble:
		if c.Store.Path == "" {
			return fmt.Errorf("store driver %q requires a path", c.Store.Driver)
		}
	case DriverRedis:
		if c.Store.Addr == "" {
			return fmt.Errorf("store driver %q requires an addr", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.AppID == "" {
		return fmt.Errorf("app_id cannot be empty")
	}
	return nil
}
