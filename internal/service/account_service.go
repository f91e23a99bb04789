package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

const (
	defaultReportDays = 7
	maxReportDays     = 90
	reportNote        = "approximate: realized PnL summed from venue fill history, fees and funding may be missing"
)

// StatusReport is the /status response body.
type StatusReport struct {
	Status             string            `json:"status"`
	Venue              string            `json:"venue"`
	TradingStatus      string            `json:"trading_status"`
	DryRun             bool              `json:"dry_run"`
	Balance            domain.Balance    `json:"balance"`
	OpenPositionsCount int               `json:"open_positions_count"`
	OpenPositions      []domain.Position `json:"open_positions"`
}

// SymbolPnL aggregates fills for one symbol.
type SymbolPnL struct {
	Trades      int     `json:"trades"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// PnLReport is the /report response body.
type PnLReport struct {
	Days              int                  `json:"days"`
	Since             time.Time            `json:"since"`
	TradeCount        int                  `json:"trade_count"`
	BySymbol          map[string]SymbolPnL `json:"by_symbol"`
	ApproxRealizedPnL float64              `json:"approx_realized_pnl"`
	Note              string               `json:"note"`
}

// AccountService reads live account state for the admin endpoints. Nothing
// is cached.
type AccountService struct {
	gate    *TradingGate
	factory domain.ExchangeFactory
	dryRun  bool
	timeout time.Duration
	logger  *slog.Logger

	now func() time.Time
}

// NewAccountService creates an AccountService.
func NewAccountService(gate *TradingGate, factory domain.ExchangeFactory, dryRun bool, timeout time.Duration, logger *slog.Logger) *AccountService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AccountService{
		gate:    gate,
		factory: factory,
		dryRun:  dryRun,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "account_service")),
		now:     time.Now,
	}
}

// Status fetches balance and open positions.
func (s *AccountService) Status(ctx context.Context) (StatusReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ex, err := s.factory()
	if err != nil {
		return StatusReport{}, fmt.Errorf("account_service: build venue client: %w", err)
	}
	bal, err := ex.FetchBalance(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("account_service: fetch balance: %w", err)
	}
	positions, err := ex.FetchPositions(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("account_service: fetch positions: %w", err)
	}

	open := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.Contracts > 0 {
			open = append(open, p)
		}
	}
	return StatusReport{
		Status:             "online",
		Venue:              ex.Name(),
		TradingStatus:      s.gate.Status(),
		DryRun:             s.dryRun,
		Balance:            bal,
		OpenPositionsCount: len(open),
		OpenPositions:      open,
	}, nil
}

// ClampReportDays maps a requested window onto 1..90, with 0 meaning the
// default of seven days.
func ClampReportDays(days int) int {
	switch {
	case days == 0:
		return defaultReportDays
	case days < 1:
		return 1
	case days > maxReportDays:
		return maxReportDays
	}
	return days
}

// Report sums realized PnL from fills over the last days.
func (s *AccountService) Report(ctx context.Context, days int) (PnLReport, error) {
	days = ClampReportDays(days)
	since := s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ex, err := s.factory()
	if err != nil {
		return PnLReport{}, fmt.Errorf("account_service: build venue client: %w", err)
	}
	fills, err := ex.FetchFills(ctx, since)
	if err != nil {
		return PnLReport{}, fmt.Errorf("account_service: fetch fills: %w", err)
	}

	total := decimal.Zero
	perSymbol := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, f := range fills {
		pnl := decimal.NewFromFloat(f.RealizedPnL)
		total = total.Add(pnl)
		perSymbol[f.Symbol] = perSymbol[f.Symbol].Add(pnl)
		counts[f.Symbol]++
	}

	bySymbol := make(map[string]SymbolPnL, len(perSymbol))
	for sym, pnl := range perSymbol {
		v, _ := pnl.Float64()
		bySymbol[sym] = SymbolPnL{Trades: counts[sym], RealizedPnL: v}
	}
	approx, _ := total.Float64()

	s.logger.Info("report generated", slog.Int("days", days), slog.Int("fills", len(fills)))
	return PnLReport{
		Days:              days,
		Since:             since,
		TradeCount:        len(fills),
		BySymbol:          bySymbol,
		ApproxRealizedPnL: approx,
		Note:              reportNote,
	}, nil
}
