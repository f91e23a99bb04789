package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/alphagate/internal/cache/memory"
	"github.com/alanyoungcy/alphagate/internal/cache/redis"
	"github.com/alanyoungcy/alphagate/internal/config"
	"github.com/alanyoungcy/alphagate/internal/crypto"
	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/executor"
	"github.com/alanyoungcy/alphagate/internal/metrics"
	"github.com/alanyoungcy/alphagate/internal/notify"
	"github.com/alanyoungcy/alphagate/internal/platform"
	"github.com/alanyoungcy/alphagate/internal/server"
	"github.com/alanyoungcy/alphagate/internal/server/handler"
	"github.com/alanyoungcy/alphagate/internal/service"
)

// Dependencies bundles everything the running gateway needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Venue
	Exchanges domain.ExchangeFactory

	// Caches
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Services
	Gate       *service.TradingGate
	Signals    *service.SignalService
	KillSwitch *service.KillSwitch
	Account    *service.AccountService

	// Notifications
	Notifier *notify.Notifier

	// Observability
	Metrics *metrics.Metrics

	Server *server.Server
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Metrics ---
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	// --- Venue credentials and client factory ---
	creds, err := crypto.LoadCredentials(crypto.CredentialSource{
		Raw: crypto.Credentials{
			APIKey:     cfg.Venue.APIKey,
			SecretKey:  cfg.Venue.SecretKey,
			Passphrase: cfg.Venue.Passphrase,
		},
		EncryptedPath: cfg.Venue.EncryptedCredentialsPath,
		Password:      cfg.Venue.CredentialsPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: venue credentials: %w", err)
	}
	deps.Exchanges = platform.NewExchangeFactory(platform.VenueOptions{
		Kind:           strings.ToLower(cfg.Venue.Kind),
		Credentials:    creds,
		BaseURL:        cfg.Venue.BaseURL,
		Testnet:        cfg.Venue.Testnet,
		Timeout:        cfg.Venue.RequestTimeout.Duration,
		AllowAnonymous: cfg.Trading.DryRun,
	}, logger)

	// --- Redis (optional) or in-process caches ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient, logger)
		logger.Info("wire: redis connected", slog.String("addr", cfg.Redis.Addr))
	} else {
		deps.RateLimiter = memory.NewRateLimiter()
		deps.LockManager = memory.NewLockManager()
	}

	// --- Notifications ---
	notifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: notifier: %w", err)
	}
	deps.Notifier = notifier.WithMetrics(deps.Metrics)

	// --- Services ---
	deps.Gate = service.NewTradingGate(!cfg.Trading.StartDisabled, deps.Metrics)

	exec := executor.New(executor.Config{
		MaxAttempts: cfg.Executor.MaxAttempts,
		BackoffBase: cfg.Executor.BackoffBase.Duration,
		BackoffMax:  cfg.Executor.BackoffMax.Duration,
		DryRun:      cfg.Trading.DryRun,
	}, deps.Notifier, deps.Metrics, logger)

	deps.Signals = service.NewSignalService(
		deps.Gate,
		service.NewSymbolFilter(cfg.Trading.SymbolBlacklist, cfg.Trading.SymbolWhitelist),
		service.NewSizer(service.SizingConfig{
			Leverage:     cfg.Trading.DefaultLeverage,
			Allocation:   cfg.Trading.TradeAllocationPercent,
			DryRun:       cfg.Trading.DryRun,
			PaperBalance: paperBalance(cfg, creds),
		}, logger),
		exec,
		deps.Exchanges,
		deps.LockManager,
		deps.Notifier,
		deps.Metrics,
		service.SignalConfig{
			FreshnessWindow:    cfg.Security.FreshnessWindow.Duration,
			RequestTimeout:     orderDeadline(cfg),
			SerializePerSymbol: cfg.Trading.SerializePerSymbol,
		},
		logger,
	)

	deps.KillSwitch = service.NewKillSwitch(
		deps.Gate,
		deps.Exchanges,
		deps.Notifier,
		deps.Metrics,
		service.KillSwitchConfig{
			DryRun:  cfg.Trading.DryRun,
			Timeout: 4 * cfg.Venue.RequestTimeout.Duration,
		},
		logger,
	)

	deps.Account = service.NewAccountService(deps.Gate, deps.Exchanges, cfg.Trading.DryRun, cfg.Venue.RequestTimeout.Duration, logger)

	// --- HTTP ---
	var metricsHandler http.Handler
	metricsPath := ""
	if deps.Metrics != nil {
		metricsHandler = deps.Metrics.Handler()
		metricsPath = cfg.Metrics.Path
	}
	deps.Server = server.NewServer(server.Config{
		Port:               cfg.Server.Port,
		AdminSecret:        cfg.Security.AdminSecret,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		TrustProxyHeaders:  cfg.Server.TrustProxyHeaders,
		MetricsPath:        metricsPath,
		WriteTimeout:       orderDeadline(cfg) + 10*time.Second,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Gate),
		Webhook: handler.NewWebhookHandler(cfg.Security.HMACSecret, deps.Signals, logger),
		Admin:   handler.NewAdminHandler(deps.KillSwitch, deps.Account, logger),
		Metrics: metricsHandler,
	}, deps.RateLimiter, logger)

	return deps, cleanup, nil
}

// buildNotifier registers a sender for every configured channel. With none
// configured the notifier only logs.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) (*notify.Notifier, error) {
	var senders []notify.Sender
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, err
		}
		senders = append(senders, tg)
	}
	if len(senders) == 0 {
		logger.Warn("wire: no notification channel configured")
	}
	return notify.NewNotifier(senders, cfg.Levels, logger), nil
}

// paperBalance is the dry-run sizing balance. It is only used when there are
// no credentials to read the real one.
func paperBalance(cfg *config.Config, creds crypto.Credentials) float64 {
	if !cfg.Trading.DryRun || !creds.Empty() {
		return 0
	}
	return cfg.Trading.PaperBalance
}

// orderDeadline bounds one signal's venue work: leverage, ticker and balance
// calls plus every order attempt and the backoff between them.
func orderDeadline(cfg *config.Config) time.Duration {
	attempts := time.Duration(cfg.Executor.MaxAttempts)
	return cfg.Venue.RequestTimeout.Duration*(3+attempts) + cfg.Executor.BackoffMax.Duration*(attempts-1)
}
