// Package config defines the top-level configuration for the scoring service
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by MARKETSCORE_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Upstream UpstreamConfig `toml:"upstream" envPrefix:"UPSTREAM_"`
	Cache    CacheConfig    `toml:"cache" envPrefix:"CACHE_"`
	Live     LiveConfig     `toml:"live" envPrefix:"LIVE_"`
	Analysis AnalysisConfig `toml:"analysis" envPrefix:"ANALYSIS_"`
	Redis    RedisConfig    `toml:"redis" envPrefix:"REDIS_"`
	Postgres PostgresConfig `toml:"postgres" envPrefix:"POSTGRES_"`
	LogLevel string         `toml:"log_level" env:"LOG_LEVEL"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled" env:"ENABLED"`
	Port        int      `toml:"port" env:"PORT"`
	CORSOrigins []string `toml:"cors_origins" env:"CORS_ORIGINS"`
	APIKey      string   `toml:"api_key" env:"API_KEY"`
	// RateLimit is requests per RateWindow per client IP; 0 disables it.
	// Limiting needs redis.enabled.
	RateLimit  int      `toml:"rate_limit" env:"RATE_LIMIT"`
	RateWindow Duration `toml:"rate_window" env:"RATE_WINDOW"`
}

// UpstreamConfig holds the exchange indexer endpoints and client tuning.
type UpstreamConfig struct {
	BaseURL           string   `toml:"base_url" env:"BASE_URL"`
	StreamURL         string   `toml:"stream_url" env:"STREAM_URL"`
	Timeout           Duration `toml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64  `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int      `toml:"burst" env:"BURST"`
	BreakerFailures   uint32   `toml:"breaker_failures" env:"BREAKER_FAILURES"`
	BreakerTimeout    Duration `toml:"breaker_timeout" env:"BREAKER_TIMEOUT"`
	TradeLimit        int      `toml:"trade_limit" env:"TRADE_LIMIT"`
}

// CacheConfig holds result cache parameters.
type CacheConfig struct {
	TTL           Duration `toml:"ttl" env:"TTL"`
	MarketsTTL    Duration `toml:"markets_ttl" env:"MARKETS_TTL"`
	SweepInterval Duration `toml:"sweep_interval" env:"SWEEP_INTERVAL"`

	// MarketsRefresh re-fetches the market catalogue in the background; 0
	// disables it and the list is fetched on demand only.
	MarketsRefresh Duration `toml:"markets_refresh" env:"MARKETS_REFRESH"`
}

// LiveConfig controls the live data store and how it is fed.
type LiveConfig struct {
	Enabled bool `toml:"enabled" env:"ENABLED"`
	// Source is "stream" (indexer WebSocket) or "bus" (follow another
	// instance over Redis).
	Source string `toml:"source" env:"SOURCE"`
	// Relay republishes locally ingested updates to Redis.
	Relay bool `toml:"relay" env:"RELAY"`
	// Prefer serves computations from live data when available.
	Prefer        bool     `toml:"prefer" env:"PREFER"`
	Backfill      bool     `toml:"backfill" env:"BACKFILL"`
	Markets       []string `toml:"markets" env:"MARKETS"`
	Shards        int      `toml:"shards" env:"SHARDS"`
	TradeCapacity int      `toml:"trade_capacity" env:"TRADE_CAPACITY"`
}

// AnalysisConfig tunes the analyzers.
type AnalysisConfig struct {
	VolatilityWindow Duration `toml:"volatility_window" env:"VOLATILITY_WINDOW"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled" env:"ENABLED"`
	Addr       string `toml:"addr" env:"ADDR"`
	Password   string `toml:"password" env:"PASSWORD"`
	DB         int    `toml:"db" env:"DB"`
	PoolSize   int    `toml:"pool_size" env:"POOL_SIZE"`
	MaxRetries int    `toml:"max_retries" env:"MAX_RETRIES"`
	TLSEnabled bool   `toml:"tls_enabled" env:"TLS_ENABLED"`
	KeyPrefix  string `toml:"key_prefix" env:"KEY_PREFIX"`
	// SharedResults stores computed reports in Redis for other instances.
	SharedResults bool `toml:"shared_results" env:"SHARED_RESULTS"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled" env:"ENABLED"`
	DSN           string `toml:"dsn" env:"DSN"`
	Host          string `toml:"host" env:"HOST"`
	Port          int    `toml:"port" env:"PORT"`
	Database      string `toml:"database" env:"DATABASE"`
	User          string `toml:"user" env:"USER"`
	Password      string `toml:"password" env:"PASSWORD"`
	SSLMode       string `toml:"ssl_mode" env:"SSL_MODE"`
	PoolMaxConns  int    `toml:"pool_max_conns" env:"POOL_MAX_CONNS"`
	PoolMinConns  int    `toml:"pool_min_conns" env:"POOL_MIN_CONNS"`
	RunMigrations bool   `toml:"run_migrations" env:"RUN_MIGRATIONS"`
}

// Duration is a time.Duration that decodes from strings like "30s" in both
// TOML and environment variables.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration { return Duration{d} }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Live feed sources.
const (
	SourceStream = "stream"
	SourceBus    = "bus"
)

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
			RateWindow:  D(time.Minute),
		},
		Upstream: UpstreamConfig{
			BaseURL:           "https://sentry.exchange.grpc-web.injective.network",
			StreamURL:         "wss://sentry.exchange.grpc-web.injective.network/ws",
			Timeout:           D(10 * time.Second),
			RequestsPerSecond: 10,
			Burst:             20,
			BreakerFailures:   5,
			BreakerTimeout:    D(30 * time.Second),
			TradeLimit:        500,
		},
		Cache: CacheConfig{
			TTL:            D(30 * time.Second),
			MarketsTTL:     D(5 * time.Minute),
			SweepInterval:  D(time.Minute),
			MarketsRefresh: D(4 * time.Minute),
		},
		Live: LiveConfig{
			Enabled:       false,
			Source:        SourceStream,
			Prefer:        true,
			Backfill:      true,
			Shards:        32,
			TradeCapacity: 500,
		},
		Analysis: AnalysisConfig{
			VolatilityWindow: D(time.Hour),
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "marketscore:",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketscore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 {
			if c.Server.RateWindow.Duration <= 0 {
				errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
			}
			if !c.Redis.Enabled {
				errs = append(errs, "server: rate_limit requires redis.enabled")
			}
		}
	}

	// Upstream
	if !strings.HasPrefix(c.Upstream.BaseURL, "http://") && !strings.HasPrefix(c.Upstream.BaseURL, "https://") {
		errs = append(errs, fmt.Sprintf("upstream: base_url must be an http(s) URL, got %q", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout.Duration <= 0 {
		errs = append(errs, "upstream: timeout must be > 0")
	}
	if c.Upstream.RequestsPerSecond < 0 {
		errs = append(errs, "upstream: requests_per_second must be >= 0")
	}
	if c.Upstream.TradeLimit < 1 {
		errs = append(errs, "upstream: trade_limit must be >= 1")
	}

	// Cache
	if c.Cache.TTL.Duration <= 0 {
		errs = append(errs, "cache: ttl must be > 0")
	}
	if c.Cache.MarketsTTL.Duration <= 0 {
		errs = append(errs, "cache: markets_ttl must be > 0")
	}
	if c.Cache.SweepInterval.Duration < 0 {
		errs = append(errs, "cache: sweep_interval must be >= 0")
	}
	if c.Cache.MarketsRefresh.Duration < 0 {
		errs = append(errs, "cache: markets_refresh must be >= 0")
	}

	// Live
	if c.Live.Enabled {
		switch c.Live.Source {
		case SourceStream:
			if !strings.HasPrefix(c.Upstream.StreamURL, "ws://") && !strings.HasPrefix(c.Upstream.StreamURL, "wss://") {
				errs = append(errs, fmt.Sprintf("upstream: stream_url must be a ws(s) URL when live.source is stream, got %q", c.Upstream.StreamURL))
			}
			if len(c.Live.Markets) == 0 {
				errs = append(errs, "live: markets must list at least one market id when live.source is stream")
			}
		case SourceBus:
			if !c.Redis.Enabled {
				errs = append(errs, "live: source bus requires redis.enabled")
			}
			if c.Live.Relay {
				errs = append(errs, "live: relay cannot be combined with source bus")
			}
		default:
			errs = append(errs, fmt.Sprintf("live: unknown source %q (valid: stream, bus)", c.Live.Source))
		}
		if c.Live.Relay && !c.Redis.Enabled {
			errs = append(errs, "live: relay requires redis.enabled")
		}
		if c.Live.TradeCapacity < 1 {
			errs = append(errs, "live: trade_capacity must be >= 1")
		}
		if c.Live.Shards < 1 {
			errs = append(errs, "live: shards must be >= 1")
		}
	}

	// Analysis
	if c.Analysis.VolatilityWindow.Duration <= 0 {
		errs = append(errs, "analysis: volatility_window must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
