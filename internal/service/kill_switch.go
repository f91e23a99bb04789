package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/metrics"
)

const (
	killAction       = "KILL_SWITCH_EXECUTED"
	resumeStatus     = "Trading Resumed"
	defaultKillLimit = 60 * time.Second
)

// KillReport is returned by KillSwitch.Activate and rendered as-is by the
// admin endpoint.
type KillReport struct {
	Action        string   `json:"action"`
	Log           []string `json:"log"`
	TradingStatus string   `json:"trading_status"`
}

// ResumeReport is returned by KillSwitch.Resume.
type ResumeReport struct {
	Status        string `json:"status"`
	TradingStatus string `json:"trading_status"`
}

// KillSwitchConfig tunes the kill switch.
type KillSwitchConfig struct {
	DryRun  bool
	Timeout time.Duration
}

// KillSwitch halts intake and flattens open exposure on the venue.
type KillSwitch struct {
	gate     *TradingGate
	factory  domain.ExchangeFactory
	notifier domain.Notifier
	metrics  *metrics.Metrics
	cfg      KillSwitchConfig
	logger   *slog.Logger
}

// NewKillSwitch creates a KillSwitch.
func NewKillSwitch(
	gate *TradingGate,
	factory domain.ExchangeFactory,
	notifier domain.Notifier,
	m *metrics.Metrics,
	cfg KillSwitchConfig,
	logger *slog.Logger,
) *KillSwitch {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultKillLimit
	}
	return &KillSwitch{
		gate:     gate,
		factory:  factory,
		notifier: notifier,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "kill_switch")),
	}
}

// Activate closes the trading gate before any venue I/O, then cancels resting
// orders and submits a reduce-only close for every open position. Step
// failures are recorded in the report log and do not stop later steps. An
// error is returned only when no venue client can be built; the gate stays
// closed in that case too.
func (k *KillSwitch) Activate(ctx context.Context) (KillReport, error) {
	wasEnabled := k.gate.Disable()
	k.metrics.KillSwitchActivated()

	report := KillReport{Action: killAction}
	logf := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		report.Log = append(report.Log, line)
		k.logger.Warn(line)
	}

	if wasEnabled {
		logf("trading gate disabled")
	} else {
		logf("trading gate already disabled")
	}

	// The unwind must not stop because the admin client hung up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.Timeout)
	defer cancel()

	ex, err := k.factory()
	if err != nil {
		logf("venue client unavailable: %v", err)
		k.notifier.Notify(ctx, domain.NotifyCritical, "KILL SWITCH: trading disabled, but venue client unavailable: "+err.Error())
		report.TradingStatus = k.gate.Status()
		return report, fmt.Errorf("kill_switch: build venue client: %w", err)
	}

	if k.cfg.DryRun {
		logf("[dry-run] would cancel all open orders")
	} else if err := ex.CancelAllOrders(ctx); err != nil {
		logf("cancel all orders failed: %v", err)
	} else {
		logf("cancelled all open orders")
	}

	positions, err := ex.FetchPositions(ctx)
	if err != nil {
		logf("fetch positions failed: %v", err)
	} else {
		k.closePositions(ctx, ex, positions, logf)
	}

	k.notifier.Notify(ctx, domain.NotifyCritical, "KILL SWITCH ACTIVATED\n"+strings.Join(report.Log, "\n"))
	// A resume may have landed during the unwind.
	report.TradingStatus = k.gate.Status()
	return report, nil
}

func (k *KillSwitch) closePositions(ctx context.Context, ex domain.Exchange, positions []domain.Position, logf func(string, ...any)) {
	open := 0
	for _, p := range positions {
		if p.Contracts <= 0 {
			continue
		}
		open++
		qty := strconv.FormatFloat(p.Contracts, 'f', -1, 64)
		if k.cfg.DryRun {
			logf("[dry-run] would close %s %s %s", p.Side, p.Symbol, qty)
			continue
		}

		res, err := ex.CreateMarketOrder(ctx, domain.OrderRequest{
			Symbol:     p.Symbol,
			Side:       p.Side.CloseSide(),
			Quantity:   p.Contracts,
			ReduceOnly: true,
		})
		if err != nil {
			logf("close %s %s %s failed: %v", p.Side, p.Symbol, qty, err)
			continue
		}
		logf("closed %s %s %s (order %s)", p.Side, p.Symbol, qty, res.ID)
	}
	if open == 0 {
		logf("no open positions")
	}
}

// Resume reopens the trading gate. It performs no venue I/O.
func (k *KillSwitch) Resume(ctx context.Context) ResumeReport {
	if k.gate.Enable() {
		k.logger.Info("resume requested, trading already enabled")
	} else {
		k.logger.Warn("trading resumed")
		k.notifier.Notify(ctx, domain.NotifySuccess, "TRADING RESUMED")
	}
	return ResumeReport{Status: resumeStatus, TradingStatus: k.gate.Status()}
}

func sideLabel(side domain.OrderSide) string {
	return strings.ToUpper(string(side))
}
