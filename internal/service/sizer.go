package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

// ComputeQuantity converts free margin into an order quantity:
//
//	margin   = free * allocation
//	notional = margin * leverage
//	quantity = notional / price
//
// The arithmetic is decimal so that exact inputs give exact outputs.
func ComputeQuantity(account domain.AccountSnapshot, price float64, leverage int, allocation float64) (float64, error) {
	free := account.FreeBalanceUSDT()
	if price <= 0 {
		return 0, fmt.Errorf("%w: price unavailable (%v)", domain.ErrSizing, price)
	}
	if free <= 0 {
		return 0, fmt.Errorf("%w: free balance is %v", domain.ErrSizing, free)
	}
	if leverage < 1 {
		return 0, fmt.Errorf("%w: leverage %d", domain.ErrSizing, leverage)
	}
	if allocation <= 0 || allocation > 1 {
		return 0, fmt.Errorf("%w: allocation %v outside (0,1]", domain.ErrSizing, allocation)
	}

	margin := decimal.NewFromFloat(free).Mul(decimal.NewFromFloat(allocation))
	notional := margin.Mul(decimal.NewFromInt(int64(leverage)))
	qty := notional.DivRound(decimal.NewFromFloat(price), 16)

	q, _ := qty.Float64()
	if q <= 0 {
		return 0, fmt.Errorf("%w: computed quantity %s", domain.ErrSizing, qty.String())
	}
	return q, nil
}

// SizingConfig carries the per-process sizing parameters.
type SizingConfig struct {
	Leverage   int
	Allocation float64
	// DryRun leaves venue leverage untouched.
	DryRun bool
	// PaperBalance, when positive in dry-run, replaces the venue balance so
	// sizing needs only public market data.
	PaperBalance float64
}

// Sizer turns an admitted signal into an OrderRequest using live account
// state from the venue.
type Sizer struct {
	cfg    SizingConfig
	logger *slog.Logger
}

// NewSizer creates a Sizer.
func NewSizer(cfg SizingConfig, logger *slog.Logger) *Sizer {
	return &Sizer{cfg: cfg, logger: logger.With(slog.String("component", "sizer"))}
}

// Size sets leverage on the venue, then reads the ticker and balance fresh
// and computes the order. A leverage failure is logged and sizing continues
// with whatever leverage the venue already has. In dry-run no account state
// is changed.
func (s *Sizer) Size(ctx context.Context, ex domain.Exchange, sig domain.Signal) (domain.OrderRequest, error) {
	symbol := domain.NormalizeSymbol(sig.Symbol)

	if s.cfg.DryRun {
		s.logger.Info("[dry-run] would set leverage",
			slog.String("symbol", symbol),
			slog.Int("leverage", s.cfg.Leverage),
		)
	} else if err := ex.SetLeverage(ctx, symbol, s.cfg.Leverage); err != nil {
		s.logger.Warn("set leverage failed, using venue setting",
			slog.String("symbol", symbol),
			slog.Int("leverage", s.cfg.Leverage),
			slog.String("error", err.Error()),
		)
	}

	price, err := ex.FetchTicker(ctx, symbol)
	if err != nil {
		return domain.OrderRequest{}, fmt.Errorf("sizer: fetch ticker %s: %w: %w", symbol, domain.ErrSizing, err)
	}
	bal, err := s.balance(ctx, ex)
	if err != nil {
		return domain.OrderRequest{}, fmt.Errorf("sizer: fetch balance: %w: %w", domain.ErrSizing, err)
	}

	qty, err := ComputeQuantity(domain.AccountSnapshot{Balance: bal}, price, s.cfg.Leverage, s.cfg.Allocation)
	if err != nil {
		return domain.OrderRequest{}, fmt.Errorf("sizer: %s: %w", symbol, err)
	}

	s.logger.Info("order sized",
		slog.String("symbol", symbol),
		slog.Float64("price", price),
		slog.Float64("free_balance", bal.Free),
		slog.Float64("quantity", qty),
	)
	return domain.OrderRequest{
		Symbol:     symbol,
		Side:       sig.Side,
		Quantity:   qty,
		TakeProfit: sig.TakeProfit,
		StopLoss:   sig.StopLoss,
		Leverage:   s.cfg.Leverage,
	}, nil
}

func (s *Sizer) balance(ctx context.Context, ex domain.Exchange) (domain.Balance, error) {
	if s.cfg.DryRun && s.cfg.PaperBalance > 0 {
		return domain.Balance{Total: s.cfg.PaperBalance, Free: s.cfg.PaperBalance}, nil
	}
	return ex.FetchBalance(ctx)
}
