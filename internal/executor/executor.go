// Package executor submits sized market orders to a venue with bounded
// retries and typed failure handling.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/metrics"
)

// Config controls retry behaviour and dry-run mode.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	DryRun      bool
}

// DefaultConfig returns three attempts with 1s base and 10s cap.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffMax:  10 * time.Second,
	}
}

// Executor places orders through a domain.Exchange. It holds no venue client
// of its own; callers pass a fresh one per operation.
type Executor struct {
	cfg      Config
	notifier domain.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an Executor. A nil metrics collector is allowed.
func New(cfg Config, notifier domain.Notifier, m *metrics.Metrics, logger *slog.Logger) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	return &Executor{
		cfg:      cfg,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With(slog.String("component", "executor")),
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// DryRun reports whether orders are simulated.
func (e *Executor) DryRun() bool {
	return e.cfg.DryRun
}

// Execute submits order and returns the venue result. Transient failures are
// retried with exponential backoff. Insufficient funds and venue rejections
// raise a critical notification and are returned immediately, as are unknown
// errors. The client order id is fixed before the first attempt and reused on
// every retry.
func (e *Executor) Execute(ctx context.Context, ex domain.Exchange, order domain.OrderRequest) (domain.OrderResult, error) {
	if order.ClientOrderID == "" {
		order.ClientOrderID = newClientOrderID()
	}
	log := e.logger.With(
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("client_order_id", order.ClientOrderID),
	)

	if e.cfg.DryRun {
		res := dryRunResult(order)
		log.Info("dry-run order", slog.String("order_id", res.ID), slog.Float64("quantity", order.Quantity))
		e.metrics.OrderResult(order.Symbol, string(order.Side), "dry_run", 0)
		e.notifier.Notify(ctx, domain.NotifySuccess, "[dry-run] "+executedMessage(order))
		return res, nil
	}

	b := &backoff.Backoff{
		Min:    e.cfg.BackoffBase,
		Max:    e.cfg.BackoffMax,
		Factor: 2,
	}
	start := e.now()

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		e.metrics.OrderAttempt(order.Symbol)

		res, err := ex.CreateMarketOrder(ctx, order)
		if err == nil {
			res.Attempts = attempt
			log.Info("order placed",
				slog.String("order_id", res.ID),
				slog.Int("attempts", attempt),
				slog.Float64("quantity", order.Quantity),
			)
			e.metrics.OrderResult(order.Symbol, string(order.Side), "success", e.now().Sub(start))
			e.notifier.Notify(ctx, domain.NotifySuccess, executedMessage(order))
			return res, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, domain.ErrInsufficientFunds):
			log.Error("order failed: insufficient funds", slog.String("error", err.Error()))
			e.metrics.OrderResult(order.Symbol, string(order.Side), "insufficient_funds", e.now().Sub(start))
			e.notifier.Notify(ctx, domain.NotifyCritical, fmt.Sprintf("INSUFFICIENT FUNDS: %s %s: %v", sideLabel(order.Side), order.Symbol, err))
			return domain.OrderResult{}, fmt.Errorf("executor: place order: %w", err)

		case errors.Is(err, domain.ErrVenueRejected):
			log.Error("order rejected by venue", slog.String("error", err.Error()))
			e.metrics.OrderResult(order.Symbol, string(order.Side), "rejected", e.now().Sub(start))
			e.notifier.Notify(ctx, domain.NotifyCritical, fmt.Sprintf("ORDER REJECTED: %s %s: %v", sideLabel(order.Side), order.Symbol, err))
			return domain.OrderResult{}, fmt.Errorf("executor: place order: %w", err)

		case !domain.IsTransient(err):
			log.Error("order failed", slog.String("error", err.Error()), slog.Int("attempt", attempt))
			e.metrics.OrderResult(order.Symbol, string(order.Side), "failed", e.now().Sub(start))
			return domain.OrderResult{}, fmt.Errorf("executor: place order: %w", err)
		}

		if attempt == e.cfg.MaxAttempts {
			break
		}
		delay := b.Duration()
		log.Warn("transient venue error, retrying",
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		if err := e.sleep(ctx, delay); err != nil {
			e.metrics.OrderResult(order.Symbol, string(order.Side), "failed", e.now().Sub(start))
			return domain.OrderResult{}, fmt.Errorf("executor: wait for retry: %w: %w", domain.ErrContextDone, err)
		}
	}

	log.Error("order retries exhausted",
		slog.Int("attempts", e.cfg.MaxAttempts),
		slog.String("error", lastErr.Error()),
	)
	e.metrics.OrderResult(order.Symbol, string(order.Side), "failed", e.now().Sub(start))
	return domain.OrderResult{}, fmt.Errorf("executor: %d attempts exhausted: %w", e.cfg.MaxAttempts, lastErr)
}

// ---- Internal helpers ----

func dryRunResult(order domain.OrderRequest) domain.OrderResult {
	raw := map[string]any{
		"symbol":          order.Symbol,
		"side":            string(order.Side),
		"type":            "market",
		"amount":          order.Quantity,
		"reduce_only":     order.ReduceOnly,
		"leverage":        order.Leverage,
		"client_order_id": order.ClientOrderID,
	}
	if order.TakeProfit != nil {
		raw["take_profit"] = *order.TakeProfit
	}
	if order.StopLoss != nil {
		raw["stop_loss"] = *order.StopLoss
	}
	return domain.OrderResult{
		ID:     "dry-run-" + uuid.NewString(),
		Status: domain.OrderStatusDryRun,
		Raw:    raw,
		DryRun: true,
	}
}

func executedMessage(order domain.OrderRequest) string {
	msg := fmt.Sprintf("EXECUTED: %s %s | leverage %dx | size %s",
		sideLabel(order.Side), order.Symbol, order.Leverage,
		strconv.FormatFloat(order.Quantity, 'f', -1, 64))
	if order.ReduceOnly {
		msg += " | reduce-only"
	}
	return msg
}

func sideLabel(side domain.OrderSide) string {
	return strings.ToUpper(string(side))
}

// newClientOrderID returns a venue-safe id without dashes.
func newClientOrderID() string {
	return "ag" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
