// Package config loads the console's layered configuration: built-in
// defaults, then an optional YAML file, then CM_-prefixed environment
// variables, later layers overriding earlier ones.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the console.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Timeline TimelineConfig `mapstructure:"timeline" yaml:"timeline"`
	Docs     DocsConfig     `mapstructure:"docs" yaml:"docs"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
}

// ServerConfig describes the console's own HTTP listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// CSRFKey authenticates form tokens. Empty means a random key per
	// process, which invalidates open forms across restarts but needs no
	// setup. Set a stable 32+ byte value behind load balancers.
	CSRFKey string `mapstructure:"csrf_key" yaml:"csrf_key,omitempty"`

	// SecureCookies marks session cookies Secure; enable wherever TLS
	// terminates in front of the console.
	SecureCookies bool `mapstructure:"secure_cookies" yaml:"secure_cookies"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig describes the Collective Memory REST backend.
type BackendConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Sustained request budget toward the backend; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`

	// Circuit breaker tuning.
	BreakerThreshold uint32        `mapstructure:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown"`
}

// SessionConfig tunes browser sessions.
type SessionConfig struct {
	// Store selects the session backend: "memory" or "redis".
	Store      string        `mapstructure:"store" yaml:"store"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CookieName string        `mapstructure:"cookie_name" yaml:"cookie_name"`
}

// RedisConfig describes the Redis used by the redis session store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// TimelineConfig tunes the activity feed.
type TimelineConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	RecentLimit  int           `mapstructure:"recent_limit" yaml:"recent_limit"`

	// Timezone is an IANA zone name for bucket boundaries; empty uses the
	// server's local zone.
	Timezone string `mapstructure:"timezone" yaml:"timezone,omitempty"`
}

// DocsConfig points at an optional on-disk override for the embedded help
// pages.
type DocsConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// LoggerConfig tunes the zap logger.
type LoggerConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json, console
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration. With an explicit path only that file is used and
// it must exist; otherwise config.yaml is searched in . and ./configs and
// may be absent. Environment variables override either way: CM_SERVER_PORT
// overrides server.port.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("cm")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		// No file found in the search paths; env and defaults carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8844)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.secure_cookies", false)

	v.SetDefault("backend.url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.rate_limit", 50.0)
	v.SetDefault("backend.rate_burst", 10)
	v.SetDefault("backend.breaker_threshold", 5)
	v.SetDefault("backend.breaker_cooldown", 30*time.Second)

	v.SetDefault("session.store", "memory")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookie_name", "cm_session")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("timeline.poll_interval", 10*time.Second)
	v.SetDefault("timeline.recent_limit", 20)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

// Validate checks the combinations a typo is most likely to break. It is
// called by serve, not by Load, so read-only commands can inspect any file.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.New("config: backend.url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: backend.url %q is not an absolute URL", c.Backend.URL)
	}

	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("config: session.store redis requires redis.addr")
		}
	default:
		return fmt.Errorf("config: unknown session.store %q", c.Session.Store)
	}

	if c.Server.CSRFKey != "" && len(c.Server.CSRFKey) < 32 {
		return errors.New("config: server.csrf_key must be at least 32 bytes")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured timezone. Empty means the server's local
// zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timeline.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timeline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timeline.timezone: %w", err)
	}
	return loc, nil
}
