// Package config defines service configuration and how it is loaded.
//
// Values are layered: defaults from New, then an optional YAML file, then
// LEADERBOARD_* environment variables. Validate must pass before use.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Refresh policies of the rank index.
const (
	RefreshLazy  = "lazy"
	RefreshEager = "eager"
)

// Notifier backends for cross-instance refresh signals.
const (
	NotifierNone     = "none"
	NotifierPostgres = "postgres"
	NotifierRedis    = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the score store backend: memory or postgres.
	Store string `koanf:"store"`

	DBHost         string `koanf:"db_host"`
	DBPort         int    `koanf:"db_port"`
	DBUser         string `koanf:"db_user"`
	DBPassword     string `koanf:"db_password"`
	DBName         string `koanf:"db_name"`
	DBSSLMode      string `koanf:"db_sslmode"`
	DBMaxOpenConns int    `koanf:"db_max_open_conns"`
	DBMaxIdleConns int    `koanf:"db_max_idle_conns"`
	DBAutoMigrate  bool   `koanf:"db_auto_migrate"`

	// RefreshPolicy is lazy (rebuild on read) or eager (rebuild on write).
	RefreshPolicy string `koanf:"refresh_policy"`

	// RefreshIntervalMS drives the background rebuild loop; 0 disables the ticker.
	RefreshIntervalMS int `koanf:"refresh_interval_ms"`

	// StorageTimeoutMS bounds every store call and index rebuild.
	StorageTimeoutMS int `koanf:"storage_timeout_ms"`

	// NeighborRadius is the default neighbour window radius.
	NeighborRadius int `koanf:"neighbor_radius"`

	// MaxNeighborRadius caps ?radius on the neighbours endpoint.
	MaxNeighborRadius int `koanf:"max_neighbor_radius"`

	// MaxTopLimit caps the top-N limit.
	MaxTopLimit int `koanf:"max_top_limit"`

	// Notifier selects the refresh signal backend: none, postgres or redis.
	Notifier string `koanf:"notifier"`

	// NotifyChannel is the LISTEN/NOTIFY or pub/sub channel name.
	NotifyChannel string `koanf:"notify_channel"`

	// RedisURL is used when Notifier is redis, e.g. redis://localhost:6379/0.
	RedisURL string `koanf:"redis_url"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":8080",
		Store:             StoreMemory,
		DBHost:            "localhost",
		DBPort:            5432,
		DBUser:            "postgres",
		DBName:            "leaderboard",
		DBSSLMode:         "disable",
		DBMaxOpenConns:    20,
		DBMaxIdleConns:    5,
		DBAutoMigrate:     true,
		RefreshPolicy:     RefreshLazy,
		RefreshIntervalMS: 1000,
		StorageTimeoutMS:  5000,
		NeighborRadius:    5,
		MaxNeighborRadius: 50,
		MaxTopLimit:       100,
		Notifier:          NotifierNone,
		NotifyChannel:     "refresh_leaderboard",
		RedisURL:          "redis://localhost:6379/0",
	}
}

// RefreshInterval returns RefreshIntervalMS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

// StorageTimeout returns StorageTimeoutMS as a duration.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutMS) * time.Millisecond
}

// DSN returns the Postgres connection string built from the db_* keys.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("unknown log_format %q", c.LogFormat)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DBHost == "" || c.DBName == "" {
			return invalid("db_host and db_name are required for the postgres store")
		}
		if c.DBPort <= 0 {
			return invalid("db_port must be positive")
		}
	default:
		return invalid("unknown store %q", c.Store)
	}
	switch c.RefreshPolicy {
	case RefreshLazy, RefreshEager:
	default:
		return invalid("unknown refresh_policy %q", c.RefreshPolicy)
	}
	if c.RefreshIntervalMS < 0 {
		return invalid("refresh_interval_ms must not be negative")
	}
	if c.StorageTimeoutMS <= 0 {
		return invalid("storage_timeout_ms must be positive")
	}
	if c.NeighborRadius < 0 || c.MaxNeighborRadius < 0 {
		return invalid("neighbor radius must not be negative")
	}
	if c.NeighborRadius > c.MaxNeighborRadius {
		return invalid("neighbor_radius %d exceeds max_neighbor_radius %d", c.NeighborRadius, c.MaxNeighborRadius)
	}
	if c.MaxTopLimit <= 0 {
		return invalid("max_top_limit must be positive")
	}
	switch c.Notifier {
	case NotifierNone:
	case NotifierPostgres:
		if c.Store != StorePostgres {
			return invalid("the postgres notifier requires the postgres store")
		}
	case NotifierRedis:
		if c.RedisURL == "" {
			return invalid("redis_url is required for the redis notifier")
		}
	default:
		return invalid("unknown notifier %q", c.Notifier)
	}
	if c.Notifier != NotifierNone && c.NotifyChannel == "" {
		return invalid("notify_channel must not be empty")
	}
	return nil
}
