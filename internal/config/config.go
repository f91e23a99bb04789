// Package config defines the top-level configuration for the gateway and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ALPHAGATE_* environment variables.
// It is immutable once the process has started.
type Config struct {
	Venue    VenueConfig    `toml:"venue"`
	Security SecurityConfig `toml:"security"`
	Trading  TradingConfig  `toml:"trading"`
	Executor ExecutorConfig `toml:"executor"`
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	LogLevel string         `toml:"log_level"`
}

// VenueConfig selects the futures venue and holds its credentials.
type VenueConfig struct {
	// Kind is "bitget" or "binance".
	Kind       string `toml:"kind"`
	APIKey     string `toml:"api_key"`
	SecretKey  string `toml:"secret_key"`
	Passphrase string `toml:"passphrase"`
	// BaseURL overrides the venue REST host. Empty means the production host
	// (or the testnet host when Testnet is set).
	BaseURL        string   `toml:"base_url"`
	Testnet        bool     `toml:"testnet"`
	RequestTimeout duration `toml:"request_timeout"`

	EncryptedCredentialsPath string `toml:"encrypted_credentials_path"`
	CredentialsPassword      string `toml:"credentials_password"`
}

// SecurityConfig holds the webhook and admin secrets.
type SecurityConfig struct {
	HMACSecret      string   `toml:"hmac_secret"`
	AdminSecret     string   `toml:"admin_secret"`
	FreshnessWindow duration `toml:"freshness_window"`
}

// TradingConfig holds sizing and admission parameters.
type TradingConfig struct {
	DefaultLeverage        int      `toml:"default_leverage"`
	TradeAllocationPercent float64  `toml:"trade_allocation_percent"`
	SymbolBlacklist        []string `toml:"symbol_blacklist"`
	SymbolWhitelist        []string `toml:"symbol_whitelist"`
	DryRun                 bool     `toml:"dry_run"`
	// SerializePerSymbol holds a per-symbol lock across sizing and
	// submission so two signals for the same symbol cannot interleave.
	SerializePerSymbol bool `toml:"serialize_per_symbol"`
	// StartDisabled boots with the trading gate closed.
	StartDisabled bool `toml:"start_disabled"`
	// PaperBalance is the free USDT that dry-run sizing assumes when no venue
	// credentials are configured. With credentials, dry-run reads the real
	// balance instead.
	PaperBalance float64 `toml:"paper_balance"`
}

// ExecutorConfig holds retry parameters for order submission.
type ExecutorConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	BackoffBase duration `toml:"backoff_base"`
	BackoffMax  duration `toml:"backoff_max"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port int `toml:"port"`
	// RateLimitPerMinute caps webhook requests per client IP. Zero disables.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
	// TrustProxyHeaders keys the limiter on X-Forwarded-For / X-Real-IP. Only
	// enable it behind a reverse proxy that overwrites those headers.
	TrustProxyHeaders bool `toml:"trust_proxy_headers"`
}

// RedisConfig holds Redis connection parameters. Redis is optional and only
// backs the per-symbol lock and the webhook rate limiter.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	// Levels restricts which notification levels are delivered. Empty means
	// all levels.
	Levels []string `toml:"levels"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Venue: VenueConfig{
			Kind:           "bitget",
			RequestTimeout: duration{15 * time.Second},
		},
		Security: SecurityConfig{
			FreshnessWindow: duration{60 * time.Second},
		},
		Trading: TradingConfig{
			DefaultLeverage:        5,
			TradeAllocationPercent: 0.10,
			SymbolBlacklist:        []string{},
			SymbolWhitelist:        []string{},
			PaperBalance:           1000,
		},
		Executor: ExecutorConfig{
			MaxAttempts: 3,
			BackoffBase: duration{time.Second},
			BackoffMax:  duration{10 * time.Second},
		},
		Server: ServerConfig{
			Port:               8000,
			RateLimitPerMinute: 120,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		LogLevel: "info",
	}
}

var validVenues = map[string]bool{
	"bitget":  true,
	"binance": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validNotifyLevels = map[string]bool{
	"info":     true,
	"success":  true,
	"error":    true,
	"critical": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Venue
	if !validVenues[strings.ToLower(c.Venue.Kind)] {
		errs = append(errs, fmt.Sprintf("venue: unknown kind %q (valid: bitget, binance)", c.Venue.Kind))
	}
	if !c.Trading.DryRun {
		if c.Venue.APIKey == "" && c.Venue.EncryptedCredentialsPath == "" {
			errs = append(errs, "venue: either api_key or encrypted_credentials_path must be set unless trading.dry_run is on")
		}
		if c.Venue.APIKey != "" && c.Venue.SecretKey == "" {
			errs = append(errs, "venue: secret_key is required when api_key is set")
		}
		if strings.EqualFold(c.Venue.Kind, "bitget") && c.Venue.APIKey != "" && c.Venue.Passphrase == "" {
			errs = append(errs, "venue: passphrase is required for bitget")
		}
	}
	if c.Venue.EncryptedCredentialsPath != "" && c.Venue.CredentialsPassword == "" {
		errs = append(errs, "venue: credentials_password is required when encrypted_credentials_path is set")
	}
	if c.Venue.RequestTimeout.Duration <= 0 {
		errs = append(errs, "venue: request_timeout must be > 0")
	}

	// Security
	if c.Security.HMACSecret == "" {
		errs = append(errs, "security: hmac_secret must not be empty")
	}
	if c.Security.FreshnessWindow.Duration <= 0 {
		errs = append(errs, "security: freshness_window must be > 0")
	}

	// Trading
	if c.Trading.DefaultLeverage < 1 {
		errs = append(errs, fmt.Sprintf("trading: default_leverage must be >= 1, got %d", c.Trading.DefaultLeverage))
	}
	if c.Trading.TradeAllocationPercent <= 0 || c.Trading.TradeAllocationPercent > 1 {
		errs = append(errs, fmt.Sprintf("trading: trade_allocation_percent must be in (0, 1], got %g", c.Trading.TradeAllocationPercent))
	}

	if c.Trading.PaperBalance < 0 {
		errs = append(errs, "trading: paper_balance must be >= 0")
	}
	if c.Trading.DryRun && c.Venue.APIKey == "" && c.Venue.EncryptedCredentialsPath == "" && c.Trading.PaperBalance <= 0 {
		errs = append(errs, "trading: paper_balance must be > 0 for dry_run without venue credentials")
	}

	// Executor
	if c.Executor.MaxAttempts < 1 {
		errs = append(errs, "executor: max_attempts must be >= 1")
	}
	if c.Executor.BackoffBase.Duration <= 0 {
		errs = append(errs, "executor: backoff_base must be > 0")
	}
	if c.Executor.BackoffMax.Duration < c.Executor.BackoffBase.Duration {
		errs = append(errs, "executor: backoff_max must not be below backoff_base")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server: rate_limit_per_minute must be >= 0")
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

	// Notify
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}
	for _, lvl := range c.Notify.Levels {
		if !validNotifyLevels[strings.ToLower(lvl)] {
			errs = append(errs, fmt.Sprintf("notify: unknown level %q", lvl))
		}
	}

	// Metrics
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, "metrics: path must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
