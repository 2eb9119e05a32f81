// Package config loads shelf settings from defaults, an optional YAML file
// and SHELF_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names.
const (
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// EnvPrefix is prepended to every environment override, e.g. SHELF_STORE_PATH.
const EnvPrefix = "SHELF"

// Config is the resolved configuration.
type Config struct {
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

// StoreConfig selects and tunes the storage backend.
type StoreConfig struct {
	Path    string        `mapstructure:"path"`
	Backend string        `mapstructure:"backend"`
	Codec   string        `mapstructure:"codec"`
	Strict  bool          `mapstructure:"strict"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("store.path", "./shelf.db")
	v.SetDefault("store.backend", BackendBolt)
	v.SetDefault("store.codec", "cbor")
	v.SetDefault("store.strict", false)
	v.SetDefault("store.timeout", time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v and decodes the result.
// An empty path skips the file.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown backends, codecs, levels and formats.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	switch c.Store.Backend {
	case BackendBolt, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q: must be bolt or sqlite", c.Store.Backend))
	}
	switch c.Store.Codec {
	case "cbor", "json":
	default:
		errs = append(errs, fmt.Errorf("store.codec %q: must be cbor or json", c.Store.Codec))
	}
	if c.Store.Timeout < 0 {
		errs = append(errs, fmt.Errorf("store.timeout %s: must not be negative", c.Store.Timeout))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q: must be debug, info, warn or error", name)
	}
}
