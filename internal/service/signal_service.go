package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alanyoungcy/alphagate/internal/cache/memory"
	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/metrics"
)

// OrderExecutor submits a sized order. It is implemented by executor.Executor.
type OrderExecutor interface {
	Execute(ctx context.Context, ex domain.Exchange, order domain.OrderRequest) (domain.OrderResult, error)
	DryRun() bool
}

// SignalConfig tunes intake.
type SignalConfig struct {
	FreshnessWindow    time.Duration
	RequestTimeout     time.Duration
	SerializePerSymbol bool
}

// SignalService runs an authenticated webhook body through the gate,
// heartbeat, freshness, validation and symbol checks, then sizes and executes
// the resulting order.
type SignalService struct {
	gate     *TradingGate
	filter   *SymbolFilter
	sizer    *Sizer
	executor OrderExecutor
	factory  domain.ExchangeFactory
	locks    domain.LockManager
	notifier domain.Notifier
	validate *validator.Validate
	metrics  *metrics.Metrics
	cfg      SignalConfig
	logger   *slog.Logger

	now func() time.Time
}

// NewSignalService wires the intake pipeline. locks is only used when
// cfg.SerializePerSymbol is set.
func NewSignalService(
	gate *TradingGate,
	filter *SymbolFilter,
	sizer *Sizer,
	exec OrderExecutor,
	factory domain.ExchangeFactory,
	locks domain.LockManager,
	notifier domain.Notifier,
	m *metrics.Metrics,
	cfg SignalConfig,
	logger *slog.Logger,
) *SignalService {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = 60 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &SignalService{
		gate:     gate,
		filter:   filter,
		sizer:    sizer,
		executor: exec,
		factory:  factory,
		locks:    locks,
		notifier: notifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "signal_service")),
		now:      time.Now,
	}
}

// Handle processes one webhook body whose signature has already been
// verified. It never panics on bad input; every path ends in an Outcome.
func (s *SignalService) Handle(ctx context.Context, body []byte) domain.Outcome {
	out := s.handle(ctx, body)
	s.metrics.SignalOutcome(string(out.Kind))
	return out
}

func (s *SignalService) handle(ctx context.Context, body []byte) domain.Outcome {
	if !s.gate.Enabled() {
		s.logger.Info("signal ignored: trading disabled")
		return domain.Outcome{Kind: domain.OutcomeIgnored, Reason: "trading disabled"}
	}

	sig, err := ParseSignal(body)
	if err != nil {
		s.logger.Warn("malformed signal payload", slog.String("error", err.Error()))
		return domain.Outcome{Kind: domain.OutcomeDropped, Reason: "malformed payload"}
	}

	if sig.IsHeartbeat {
		s.logger.Debug("heartbeat received")
		return domain.Outcome{Kind: domain.OutcomeHeartbeat}
	}

	if age, ok := sig.Age(s.now()); ok && age > s.cfg.FreshnessWindow {
		s.logger.Warn("stale signal dropped",
			slog.String("symbol", sig.Symbol),
			slog.Duration("age", age),
		)
		return domain.Outcome{Kind: domain.OutcomeDropped, Reason: "stale signal"}
	}

	if err := s.validate.Struct(sig); err != nil {
		s.logger.Warn("invalid signal", slog.String("error", err.Error()))
		return domain.Outcome{
			Kind:   domain.OutcomeRejected,
			Reason: "missing or invalid symbol/side",
			Err:    fmt.Errorf("%w: %w", domain.ErrValidation, err),
		}
	}

	symbol := domain.NormalizeSymbol(sig.Symbol)
	if !s.filter.Admit(symbol) {
		s.logger.Info("signal filtered", slog.String("symbol", symbol))
		s.notifier.Notify(ctx, domain.NotifyInfo, fmt.Sprintf("IGNORED: %s %s (symbol filtered)", sideLabel(sig.Side), symbol))
		return domain.Outcome{Kind: domain.OutcomeFiltered, Reason: "symbol filtered"}
	}

	// Venue work continues if the caller goes away; only the timeout stops it.
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.execute(vctx, sig)
	if err != nil {
		s.logger.Error("signal execution failed",
			slog.String("symbol", symbol),
			slog.String("side", string(sig.Side)),
			slog.String("error", err.Error()),
		)
		if !alertedByExecutor(err) {
			s.notifier.Notify(vctx, domain.NotifyError, fmt.Sprintf("FAILED: %s %s: %v", sideLabel(sig.Side), symbol, err))
		}
		return domain.Outcome{Kind: domain.OutcomeFailed, Err: err}
	}
	return domain.Outcome{Kind: domain.OutcomeExecuted, Order: &res}
}

// alertedByExecutor reports whether the executor already raised a critical
// alert for err. Sizing failures never reach the executor, so they are always
// notified here even when the venue classified them as rejected.
func alertedByExecutor(err error) bool {
	if errors.Is(err, domain.ErrSizing) {
		return false
	}
	return errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrVenueRejected)
}

func (s *SignalService) execute(ctx context.Context, sig domain.Signal) (domain.OrderResult, error) {
	if s.cfg.SerializePerSymbol && s.locks != nil {
		unlock, err := memory.AcquireWait(ctx, s.locks, "symbol:"+domain.NormalizeSymbol(sig.Symbol), s.cfg.RequestTimeout, 50*time.Millisecond)
		if err != nil {
			return domain.OrderResult{}, fmt.Errorf("service: acquire symbol lock: %w", err)
		}
		defer unlock()
	}

	ex, err := s.factory()
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("service: build venue client: %w", err)
	}

	order, err := s.sizer.Size(ctx, ex, sig)
	if err != nil {
		return domain.OrderResult{}, err
	}
	return s.executor.Execute(ctx, ex, order)
}
