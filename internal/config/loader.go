package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ALPHAGATE_* environment variable overrides, and
// returns the final Config. An empty path skips the file so the gateway can
// run from environment variables alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set. The short unprefixed
// names are accepted for compatibility with existing deployments; the
// ALPHAGATE_* form wins when both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Venue ──
	setStr(&cfg.Venue.APIKey, "BITGET_API_KEY")
	setStr(&cfg.Venue.SecretKey, "BITGET_SECRET_KEY")
	setStr(&cfg.Venue.Passphrase, "BITGET_PASSPHRASE")
	setStr(&cfg.Venue.Kind, "ALPHAGATE_VENUE_KIND")
	setStr(&cfg.Venue.APIKey, "ALPHAGATE_VENUE_API_KEY")
	setStr(&cfg.Venue.SecretKey, "ALPHAGATE_VENUE_SECRET_KEY")
	setStr(&cfg.Venue.Passphrase, "ALPHAGATE_VENUE_PASSPHRASE")
	setStr(&cfg.Venue.BaseURL, "ALPHAGATE_VENUE_BASE_URL")
	setBool(&cfg.Venue.Testnet, "ALPHAGATE_VENUE_TESTNET")
	setDuration(&cfg.Venue.RequestTimeout, "ALPHAGATE_VENUE_REQUEST_TIMEOUT")
	setStr(&cfg.Venue.EncryptedCredentialsPath, "ALPHAGATE_VENUE_ENCRYPTED_CREDENTIALS_PATH")
	setStr(&cfg.Venue.CredentialsPassword, "ALPHAGATE_VENUE_CREDENTIALS_PASSWORD")

	// ── Security ──
	setStr(&cfg.Security.AdminSecret, "ADMIN_SECRET")
	setStr(&cfg.Security.HMACSecret, "ALPHAGATE_HMAC_SECRET")
	setStr(&cfg.Security.HMACSecret, "ALPHAGATE_SECURITY_HMAC_SECRET")
	setStr(&cfg.Security.AdminSecret, "ALPHAGATE_SECURITY_ADMIN_SECRET")
	setDuration(&cfg.Security.FreshnessWindow, "ALPHAGATE_SECURITY_FRESHNESS_WINDOW")

	// ── Trading ──
	setBool(&cfg.Trading.DryRun, "DRY_RUN")
	setStringSlice(&cfg.Trading.SymbolBlacklist, "SYMBOL_BLACKLIST")
	setStringSlice(&cfg.Trading.SymbolWhitelist, "SYMBOL_WHITELIST")
	setInt(&cfg.Trading.DefaultLeverage, "ALPHAGATE_TRADING_DEFAULT_LEVERAGE")
	setFloat64(&cfg.Trading.TradeAllocationPercent, "ALPHAGATE_TRADING_TRADE_ALLOCATION_PERCENT")
	setStringSlice(&cfg.Trading.SymbolBlacklist, "ALPHAGATE_TRADING_SYMBOL_BLACKLIST")
	setStringSlice(&cfg.Trading.SymbolWhitelist, "ALPHAGATE_TRADING_SYMBOL_WHITELIST")
	setBool(&cfg.Trading.DryRun, "ALPHAGATE_TRADING_DRY_RUN")
	setBool(&cfg.Trading.SerializePerSymbol, "ALPHAGATE_TRADING_SERIALIZE_PER_SYMBOL")
	setBool(&cfg.Trading.StartDisabled, "ALPHAGATE_TRADING_START_DISABLED")
	setFloat64(&cfg.Trading.PaperBalance, "ALPHAGATE_TRADING_PAPER_BALANCE")

	// ── Executor ──
	setInt(&cfg.Executor.MaxAttempts, "ALPHAGATE_EXECUTOR_MAX_ATTEMPTS")
	setDuration(&cfg.Executor.BackoffBase, "ALPHAGATE_EXECUTOR_BACKOFF_BASE")
	setDuration(&cfg.Executor.BackoffMax, "ALPHAGATE_EXECUTOR_BACKOFF_MAX")

	// ── Server ──
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "ALPHAGATE_SERVER_PORT")
	setInt(&cfg.Server.RateLimitPerMinute, "ALPHAGATE_SERVER_RATE_LIMIT_PER_MINUTE")
	setBool(&cfg.Server.TrustProxyHeaders, "ALPHAGATE_SERVER_TRUST_PROXY_HEADERS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ALPHAGATE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ALPHAGATE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ALPHAGATE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ALPHAGATE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ALPHAGATE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ALPHAGATE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ALPHAGATE_REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ALPHAGATE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.TelegramToken, "ALPHAGATE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ALPHAGATE_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Levels, "ALPHAGATE_NOTIFY_LEVELS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "ALPHAGATE_METRICS_ENABLED")
	setStr(&cfg.Metrics.Path, "ALPHAGATE_METRICS_PATH")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ALPHAGATE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		*dst = cleaned
	}
}
