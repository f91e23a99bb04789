// Package bitget implements domain.Exchange against the Bitget v2 USDT-M
// futures REST API.
package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/alphagate/internal/crypto"
	"github.com/alanyoungcy/alphagate/internal/domain"
)

// DefaultBaseURL is the production REST host.
const DefaultBaseURL = "https://api.bitget.com"

const (
	productType     = "USDT-FUTURES"
	marginCoin      = "USDT"
	demoProductType = "SUSDT-FUTURES"
	demoMarginCoin  = "SUSDT"

	// fallbackVolumePlace is used when contract precision cannot be fetched.
	fallbackVolumePlace = 4
	// maxFillPages bounds fill-history pagination for one report.
	maxFillPages = 10
)

// Config holds the parameters for a Bitget client.
type Config struct {
	BaseURL string
	Auth    crypto.VenueAuth
	// Demo routes requests to Bitget's simulated trading environment.
	Demo       bool
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the REST client for Bitget USDT-M futures. It is cheap to build
// and holds no cached account state.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	auth        crypto.VenueAuth
	demo        bool
	productType string
	marginCoin  string
	logger      *slog.Logger
}

var _ domain.Exchange = (*Client)(nil)

// New creates a Bitget client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		auth:        cfg.Auth,
		demo:        cfg.Demo,
		productType: productType,
		marginCoin:  marginCoin,
		logger:      logger.With(slog.String("component", "bitget")),
	}
	if cfg.Demo {
		c.productType = demoProductType
		c.marginCoin = demoMarginCoin
	}
	return c
}

// Name returns the venue identifier.
func (c *Client) Name() string {
	return "bitget"
}

// FetchBalance returns the USDT margin account balance.
func (c *Client) FetchBalance(ctx context.Context) (domain.Balance, error) {
	var accounts []APIAccount
	err := c.do(ctx, http.MethodGet, "/api/v2/mix/account/accounts", url.Values{
		"productType": {c.productType},
	}, nil, &accounts)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("bitget: fetch balance: %w", err)
	}

	for _, a := range accounts {
		if !strings.EqualFold(a.MarginCoin, c.marginCoin) {
			continue
		}
		free := parseFloat(a.Available)
		total := parseFloat(a.AccountEquity)
		if total == 0 {
			total = parseFloat(a.USDTEquity)
		}
		if total == 0 {
			total = free
		}
		used := total - free
		if used < 0 {
			used = 0
		}
		return domain.Balance{Total: total, Free: free, Used: used}, nil
	}
	return domain.Balance{}, fmt.Errorf("bitget: fetch balance: %w: no %s account", domain.ErrUnknownVenue, c.marginCoin)
}

// FetchPositions returns open positions with a non-zero size.
func (c *Client) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	var raw []APIPosition
	err := c.do(ctx, http.MethodGet, "/api/v2/mix/position/all-position", url.Values{
		"productType": {c.productType},
		"marginCoin":  {c.marginCoin},
	}, nil, &raw)
	if err != nil {
		return nil, fmt.Errorf("bitget: fetch positions: %w", err)
	}

	out := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		contracts := parseFloat(p.Total)
		if contracts == 0 {
			continue
		}
		side := domain.PositionSideLong
		if strings.EqualFold(p.HoldSide, "short") {
			side = domain.PositionSideShort
		}
		out = append(out, domain.Position{
			Symbol:        p.Symbol,
			Side:          side,
			Contracts:     contracts,
			EntryPrice:    parseFloat(p.OpenPriceAvg),
			UnrealizedPnL: parseFloat(p.UnrealizedPL),
			Leverage:      parseFloat(p.Leverage),
		})
	}
	return out, nil
}

// FetchTicker returns the last traded price for symbol.
func (c *Client) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	symbol = domain.NormalizeSymbol(symbol)

	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, "/api/v2/mix/market/ticker", url.Values{
		"symbol":      {symbol},
		"productType": {c.productType},
	}, nil, &raw)
	if err != nil {
		return 0, fmt.Errorf("bitget: fetch ticker %s: %w", symbol, err)
	}

	// The v2 endpoint returns a one-element array; older gateways return
	// the object itself.
	var tickers []APITicker
	if err := json.Unmarshal(raw, &tickers); err != nil {
		var one APITicker
		if err := json.Unmarshal(raw, &one); err != nil {
			return 0, fmt.Errorf("bitget: decode ticker %s: %w: %w", symbol, domain.ErrUnknownVenue, err)
		}
		tickers = []APITicker{one}
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("bitget: fetch ticker %s: %w: empty ticker", symbol, domain.ErrVenueRejected)
	}

	price := parseFloat(tickers[0].LastPr)
	if price <= 0 {
		return 0, fmt.Errorf("bitget: fetch ticker %s: %w: no last price", symbol, domain.ErrUnknownVenue)
	}
	return price, nil
}

// SetLeverage sets the cross-margin leverage for symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	symbol = domain.NormalizeSymbol(symbol)
	body := map[string]any{
		"symbol":      symbol,
		"productType": c.productType,
		"marginCoin":  c.marginCoin,
		"leverage":    strconv.Itoa(leverage),
	}
	if err := c.do(ctx, http.MethodPost, "/api/v2/mix/account/set-leverage", nil, body, nil); err != nil {
		return fmt.Errorf("bitget: set leverage %s %dx: %w", symbol, leverage, err)
	}
	return nil
}

// CreateMarketOrder submits a one-way-mode market order. Take-profit and
// stop-loss prices are attached as preset triggers on the same request.
func (c *Client) CreateMarketOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	symbol := domain.NormalizeSymbol(req.Symbol)

	size, err := c.formatQuantity(ctx, symbol, req.Quantity)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("bitget: place order %s: %w", symbol, err)
	}

	clientOid := req.ClientOrderID
	if clientOid == "" {
		clientOid = uuid.NewString()
	}
	reduceOnly := "NO"
	if req.ReduceOnly {
		reduceOnly = "YES"
	}

	body := map[string]any{
		"symbol":      symbol,
		"productType": c.productType,
		"marginMode":  "crossed",
		"marginCoin":  c.marginCoin,
		"size":        size,
		"side":        string(req.Side),
		"orderType":   "market",
		"reduceOnly":  reduceOnly,
		"clientOid":   clientOid,
	}
	if req.TakeProfit != nil {
		body["presetStopSurplusPrice"] = formatPrice(*req.TakeProfit)
	}
	if req.StopLoss != nil {
		body["presetStopLossPrice"] = formatPrice(*req.StopLoss)
	}

	var ack APIOrderAck
	if err := c.do(ctx, http.MethodPost, "/api/v2/mix/order/place-order", nil, body, &ack); err != nil {
		return domain.OrderResult{}, fmt.Errorf("bitget: place order %s %s: %w", req.Side, symbol, err)
	}

	c.logger.InfoContext(ctx, "order placed",
		slog.String("symbol", symbol),
		slog.String("side", string(req.Side)),
		slog.String("size", size),
		slog.Bool("reduce_only", req.ReduceOnly),
		slog.String("order_id", ack.OrderID),
	)

	return domain.OrderResult{
		ID:     ack.OrderID,
		Status: domain.OrderStatusNew,
		Raw: map[string]any{
			"orderId":   ack.OrderID,
			"clientOid": ack.ClientOid,
			"size":      size,
		},
	}, nil
}

// CancelAllOrders cancels every resting order in the product line. An empty
// book is not an error.
func (c *Client) CancelAllOrders(ctx context.Context) error {
	body := map[string]any{
		"productType": c.productType,
		"marginCoin":  c.marginCoin,
	}
	err := c.do(ctx, http.MethodPost, "/api/v2/mix/order/cancel-all-orders", nil, body, nil)
	if err != nil {
		if apiErr := asAPIError(err); apiErr != nil && apiErr.Code == noOrdersCode {
			return nil
		}
		return fmt.Errorf("bitget: cancel all orders: %w", err)
	}
	return nil
}

// FetchFills returns fills since the given time, newest first, following
// endId pagination up to a fixed page budget.
func (c *Client) FetchFills(ctx context.Context, since time.Time) ([]domain.Fill, error) {
	var out []domain.Fill
	cursor := ""
	for page := 0; page < maxFillPages; page++ {
		q := url.Values{
			"productType": {c.productType},
			"startTime":   {strconv.FormatInt(since.UnixMilli(), 10)},
			"limit":       {"100"},
		}
		if cursor != "" {
			q.Set("idLessThan", cursor)
		}

		var data APIFillPage
		if err := c.do(ctx, http.MethodGet, "/api/v2/mix/order/fill-history", q, nil, &data); err != nil {
			return nil, fmt.Errorf("bitget: fetch fills: %w", err)
		}
		for _, f := range data.FillList {
			ms, _ := strconv.ParseInt(f.CTime, 10, 64)
			out = append(out, domain.Fill{
				Symbol:      f.Symbol,
				Side:        domain.OrderSide(strings.ToLower(f.Side)),
				RealizedPnL: parseFloat(f.Profit),
				Time:        time.UnixMilli(ms).UTC(),
			})
		}
		if len(data.FillList) < 100 || data.EndID == "" || data.EndID == cursor {
			break
		}
		cursor = data.EndID
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// formatQuantity truncates quantity to the contract's volume precision.
func (c *Client) formatQuantity(ctx context.Context, symbol string, quantity float64) (string, error) {
	place := int32(fallbackVolumePlace)
	minTrade := decimal.Zero

	var contracts []APIContract
	err := c.do(ctx, http.MethodGet, "/api/v2/mix/market/contracts", url.Values{
		"symbol":      {symbol},
		"productType": {c.productType},
	}, nil, &contracts)
	if err != nil || len(contracts) == 0 {
		c.logger.WarnContext(ctx, "contract precision unavailable, using fallback",
			slog.String("symbol", symbol),
			slog.Int("volume_place", fallbackVolumePlace),
			slog.Any("error", err),
		)
	} else {
		if p, perr := strconv.Atoi(contracts[0].VolumePlace); perr == nil {
			place = int32(p)
		}
		if m, merr := decimal.NewFromString(contracts[0].MinTradeNum); merr == nil {
			minTrade = m
		}
	}

	q := decimal.NewFromFloat(quantity).Truncate(place)
	if !q.IsPositive() || q.LessThan(minTrade) {
		return "", fmt.Errorf("%w: quantity %s below contract minimum %s", domain.ErrVenueRejected, q.String(), minTrade.String())
	}
	return q.StringFixed(place), nil
}

func formatPrice(p float64) string {
	return decimal.NewFromFloat(p).String()
}

// do builds, signs, sends, and decodes a Bitget request. out receives the
// envelope's data field when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Without a key only public market endpoints are usable; send them unsigned.
	if c.auth.Key != "" {
		for k, v := range c.auth.BitgetHeaders(method, requestPath, bodyStr) {
			req.Header.Set(k, v)
		}
	}
	if c.demo {
		req.Header.Set("paptrading", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport(err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil || env.Code == "" {
		// Non-JSON bodies come from gateways and load balancers.
		return classify(&APIError{HTTPStatus: resp.StatusCode, Msg: truncate(string(respBody), 256)})
	}
	if env.Code != codeSuccess || resp.StatusCode != http.StatusOK {
		return classify(&APIError{HTTPStatus: resp.StatusCode, Code: env.Code, Msg: env.Msg})
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decode %s: %w", domain.ErrUnknownVenue, path, err)
		}
	}
	return nil
}

func asAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
