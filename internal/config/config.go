// Package config loads stockwatch settings from YAML, .env and the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the full client configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Display DisplayConfig `yaml:"display"`
	Export  ExportConfig  `yaml:"export"`
	Bot     BotConfig     `yaml:"bot"`
}

// ServerConfig points at the watchlist service.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SessionConfig selects where the session record lives.
type SessionConfig struct {
	Backend string `yaml:"backend"` // file, redis, memory
	Dir     string `yaml:"dir"`
}

// RedisConfig is used by the redis session backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`
}

// DisplayConfig controls how prices are printed.
type DisplayConfig struct {
	Locale string `yaml:"locale"`
}

// ExportConfig controls the watchlist snapshot.
type ExportConfig struct {
	Width   int    `yaml:"width"`
	Timeout string `yaml:"timeout"`
}

// TimeoutDuration parses Timeout, falling back to 20s when it is unset or
// malformed.
func (e ExportConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

// BotConfig configures the chat front end.
type BotConfig struct {
	HotReloadFile string `yaml:"hot_reload_file"`
	Prefix        string `yaml:"prefix"`
}

// HomeDir is ~/.stockwatch, or ./.stockwatch when the home dir is unknown.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stockwatch"
	}
	return filepath.Join(home, ".stockwatch")
}

// DefaultPath is the config file location.
func DefaultPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	dir := HomeDir()
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:10789",
		},
		Session: SessionConfig{
			Backend: BackendFile,
			Dir:     dir,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			Key:  "stockwatch:user",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			File:   filepath.Join(dir, "stockwatch.log"),
		},
		Display: DisplayConfig{
			Locale: "en-US",
		},
		Export: ExportConfig{
			Width:   1280,
			Timeout: "20s",
		},
		Bot: BotConfig{
			HotReloadFile: filepath.Join(dir, "wechat.json"),
			Prefix:        "watch",
		},
	}
}

// Load reads a YAML config over the defaults and applies env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STOCKWATCH_SERVER"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("STOCKWATCH_SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := os.Getenv("STOCKWATCH_SESSION_DIR"); v != "" {
		c.Session.Dir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("STOCKWATCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("STOCKWATCH_LOCALE"); v != "" {
		c.Display.Locale = v
	}
}

// Validate checks the values the client cannot run without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server base_url %q", c.Server.BaseURL)
	}
	switch c.Session.Backend {
	case BackendFile:
		if c.Session.Dir == "" {
			return fmt.Errorf("session dir required for file backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr required for redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}
