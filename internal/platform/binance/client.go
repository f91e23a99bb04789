// Package binance implements domain.Exchange against Binance USDⓈ-M futures
// using go-binance.
package binance

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

const (
	// TestnetBaseURL is the futures testnet REST host.
	TestnetBaseURL = "https://testnet.binancefuture.com"

	quoteAsset       = "USDT"
	realizedPnLType  = "REALIZED_PNL"
	fallbackStepSize = "0.001"
)

// Config holds the parameters for a Binance futures client.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Testnet   bool
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client adapts *futures.Client to domain.Exchange.
type Client struct {
	api    *futures.Client
	logger *slog.Logger
}

var _ domain.Exchange = (*Client)(nil)

// New creates a Binance futures client. The package-level testnet switch in
// go-binance is global, so the host is set on the client instead.
func New(cfg Config) *Client {
	api := binance.NewFuturesClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		api.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Testnet:
		api.BaseURL = TestnetBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	api.HTTPClient = &http.Client{Timeout: timeout}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:    api,
		logger: logger.With(slog.String("component", "binance")),
	}
}

// Name returns the venue identifier.
func (c *Client) Name() string {
	return "binance"
}

// FetchBalance returns the USDT futures wallet balance.
func (c *Client) FetchBalance(ctx context.Context) (domain.Balance, error) {
	acc, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("binance: fetch balance: %w", classify(err))
	}
	for _, a := range acc.Assets {
		if a.Asset != quoteAsset {
			continue
		}
		free := parseFloat(a.AvailableBalance)
		total := parseFloat(a.MarginBalance)
		if total == 0 {
			total = parseFloat(a.WalletBalance)
		}
		used := total - free
		if used < 0 {
			used = 0
		}
		return domain.Balance{Total: total, Free: free, Used: used}, nil
	}
	return domain.Balance{}, fmt.Errorf("binance: fetch balance: %w: no %s asset", domain.ErrUnknownVenue, quoteAsset)
}

// FetchPositions returns positions with a non-zero amount. Binance reports
// shorts as a negative amount.
func (c *Client) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	risks, err := c.api.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch positions: %w", classify(err))
	}

	out := make([]domain.Position, 0, len(risks))
	for _, p := range risks {
		amt := parseFloat(p.PositionAmt)
		if amt == 0 {
			continue
		}
		side := domain.PositionSideLong
		if amt < 0 {
			side = domain.PositionSideShort
			amt = -amt
		}
		out = append(out, domain.Position{
			Symbol:        p.Symbol,
			Side:          side,
			Contracts:     amt,
			EntryPrice:    parseFloat(p.EntryPrice),
			UnrealizedPnL: parseFloat(p.UnRealizedProfit),
		})
	}
	return out, nil
}

// FetchTicker returns the latest price for symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	symbol = domain.NormalizeSymbol(symbol)
	prices, err := c.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance: fetch ticker %s: %w", symbol, classify(err))
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			if price := parseFloat(p.Price); price > 0 {
				return price, nil
			}
		}
	}
	return 0, fmt.Errorf("binance: fetch ticker %s: %w: no price", symbol, domain.ErrUnknownVenue)
}

// SetLeverage sets the initial leverage for symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	symbol = domain.NormalizeSymbol(symbol)
	if _, err := c.api.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx); err != nil {
		return fmt.Errorf("binance: set leverage %s %dx: %w", symbol, leverage, classify(err))
	}
	return nil
}

// CreateMarketOrder submits a market order. Take-profit and stop-loss are
// placed afterwards as close-position trigger orders; their failure is logged
// and does not fail the entry, which is already filled.
func (c *Client) CreateMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	symbol := domain.NormalizeSymbol(req.Symbol)

	qty, err := c.formatQuantity(ctx, symbol, req.Quantity)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("binance: place order %s: %w", symbol, err)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	side := sideType(req.Side)

	svc := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewClientOrderID(clientID)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("binance: place order %s %s: %w", req.Side, symbol, classify(err))
	}

	c.logger.InfoContext(ctx, "order placed",
		slog.String("symbol", symbol),
		slog.String("side", string(req.Side)),
		slog.String("quantity", qty),
		slog.Bool("reduce_only", req.ReduceOnly),
		slog.Int64("order_id", res.OrderID),
	)

	exitSide := sideType(req.Side.Opposite())
	if req.TakeProfit != nil {
		c.placeTrigger(ctx, symbol, exitSide, futures.OrderTypeTakeProfitMarket, *req.TakeProfit)
	}
	if req.StopLoss != nil {
		c.placeTrigger(ctx, symbol, exitSide, futures.OrderTypeStopMarket, *req.StopLoss)
	}

	return domain.OrderResult{
		ID:     strconv.FormatInt(res.OrderID, 10),
		Status: orderStatus(res.Status),
		Raw: map[string]any{
			"orderId":       res.OrderID,
			"clientOrderId": res.ClientOrderID,
			"status":        string(res.Status),
			"quantity":      qty,
		},
	}, nil
}

// CancelAllOrders cancels open orders on every symbol that has any.
func (c *Client) CancelAllOrders(ctx context.Context) error {
	open, err := c.api.NewListOpenOrdersService().Do(ctx)
	if err != nil {
		return fmt.Errorf("binance: list open orders: %w", classify(err))
	}

	seen := make(map[string]bool)
	var failed []string
	for _, o := range open {
		if seen[o.Symbol] {
			continue
		}
		seen[o.Symbol] = true
		if err := c.api.NewCancelAllOpenOrdersService().Symbol(o.Symbol).Do(ctx); err != nil {
			c.logger.WarnContext(ctx, "cancel open orders failed",
				slog.String("symbol", o.Symbol),
				slog.String("error", err.Error()),
			)
			failed = append(failed, o.Symbol)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("binance: cancel all orders: %w: failed for %s", domain.ErrTransientVenue, strings.Join(failed, ", "))
	}
	return nil
}

// FetchFills returns realized PnL entries from the income history since the
// given time. Income entries carry no side.
func (c *Client) FetchFills(ctx context.Context, since time.Time) ([]domain.Fill, error) {
	income, err := c.api.NewGetIncomeHistoryService().
		IncomeType(realizedPnLType).
		StartTime(since.UnixMilli()).
		Limit(1000).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch income history: %w", classify(err))
	}

	out := make([]domain.Fill, 0, len(income))
	for _, in := range income {
		out = append(out, domain.Fill{
			Symbol:      in.Symbol,
			RealizedPnL: parseFloat(in.Income),
			Time:        time.UnixMilli(in.Time).UTC(),
		})
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) placeTrigger(ctx context.Context, symbol string, side futures.SideType, typ futures.OrderType, price float64) {
	_, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(typ).
		StopPrice(decimal.NewFromFloat(price).String()).
		ClosePosition(true).
		WorkingType(futures.WorkingTypeMarkPrice).
		Do(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "protective order failed",
			slog.String("symbol", symbol),
			slog.String("type", string(typ)),
			slog.Float64("trigger", price),
			slog.String("error", err.Error()),
		)
	}
}

// formatQuantity floors quantity to the symbol's LOT_SIZE step.
func (c *Client) formatQuantity(ctx context.Context, symbol string, quantity float64) (string, error) {
	step := fallbackStepSize
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "exchange info unavailable, using fallback step",
			slog.String("symbol", symbol),
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
	} else {
		for _, s := range info.Symbols {
			if s.Symbol != symbol {
				continue
			}
			if v := lotStepSize(s.Filters); v != "" {
				step = v
			}
			break
		}
	}
	return floorToStep(quantity, step)
}

func lotStepSize(filters []map[string]interface{}) string {
	for _, f := range filters {
		if f["filterType"] == "LOT_SIZE" {
			if v, ok := f["stepSize"].(string); ok {
				return v
			}
		}
	}
	return ""
}

// floorToStep rounds quantity down to a multiple of step and renders it with
// the step's precision.
func floorToStep(quantity float64, step string) (string, error) {
	s, err := decimal.NewFromString(step)
	if err != nil || !s.IsPositive() {
		return "", fmt.Errorf("%w: invalid step size %q", domain.ErrUnknownVenue, step)
	}
	q := decimal.NewFromFloat(quantity).Div(s).Floor().Mul(s)
	if !q.IsPositive() {
		return "", fmt.Errorf("%w: quantity %g below step size %s", domain.ErrVenueRejected, quantity, step)
	}
	places := -s.Exponent()
	if places < 0 {
		places = 0
	}
	return q.StringFixed(places), nil
}

func sideType(s domain.OrderSide) futures.SideType {
	if s == domain.OrderSideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func orderStatus(s futures.OrderStatusType) domain.OrderStatus {
	if s == futures.OrderStatusTypeFilled {
		return domain.OrderStatusFilled
	}
	return domain.OrderStatusNew
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
