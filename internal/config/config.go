// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package config loads ghrest settings from defaults, an optional YAML file,
// GHREST_* environment variables, and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override settings.
// For example GHREST_API_BASE_URL sets api.base_url.
const EnvPrefix = "GHREST"

// Session backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the complete ghrest configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig describes the remote API.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	TokenKey  string        `mapstructure:"token_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SessionConfig selects where authorizations are kept.
type SessionConfig struct {
	Backend string      `mapstructure:"backend"`
	File    string      `mapstructure:"file"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the connection details of the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"base-url":        "api.base_url",
	"token-key":       "api.token_key",
	"timeout":         "api.timeout",
	"session-backend": "session.backend",
	"session-file":    "session.file",
	"redis-addr":      "session.redis.addr",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
}

// Load reads the configuration. When configPath is empty, ghrest.yaml is
// looked up in the working directory and then in Dir, and a missing file is
// not an error. Flags in flags that appear in
// the flag-to-key table override every other source when set. flags may be
// nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("ghrest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := Dir(); dir != "" {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.github.com")
	v.SetDefault("api.token_key", "access_token")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.user_agent", "ghrest")

	v.SetDefault("session.backend", BackendFile)
	v.SetDefault("session.file", DefaultSessionFile())
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key", "ghrest:authorizations")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.TokenKey == "" {
		return errors.New("api.token_key is required")
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be non-negative, got %s", cfg.API.Timeout)
	}

	switch cfg.Session.Backend {
	case BackendMemory:
	case BackendFile:
		if cfg.Session.File == "" {
			return errors.New("session.file is required for the file backend")
		}
	case BackendRedis:
		if cfg.Session.Redis.Addr == "" {
			return errors.New("session.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid session.backend: %s (must be file, memory or redis)", cfg.Session.Backend)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}
	return nil
}

// Dir returns the ghrest config directory: $XDG_CONFIG_HOME/ghrest, or
// ~/.config/ghrest. It returns "" if neither can be determined.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "ghrest")
}

// DefaultSessionFile returns the default path of the session file.
func DefaultSessionFile() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "session.json")
}
