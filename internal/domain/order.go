package domain

import "strings"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the side that offsets s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus tracks the order lifecycle as reported by the venue.
type OrderStatus string

const (
	OrderStatusNew    OrderStatus = "new"
	OrderStatusFilled OrderStatus = "filled"
	OrderStatusDryRun OrderStatus = "dry_run"
)

// OrderRequest is a market order ready for submission. It is built by the
// sizer for entries and by the kill switch for closing orders.
type OrderRequest struct {
	Symbol        string    `json:"symbol"`
	Side          OrderSide `json:"side"`
	Quantity      float64   `json:"quantity"`
	TakeProfit    *float64  `json:"take_profit,omitempty"`
	StopLoss      *float64  `json:"stop_loss,omitempty"`
	ReduceOnly    bool      `json:"reduce_only"`
	Leverage      int       `json:"leverage,omitempty"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
}

// OrderResult wraps the venue response after order submission.
type OrderResult struct {
	ID       string         `json:"id"`
	Status   OrderStatus    `json:"status"`
	Raw      map[string]any `json:"raw,omitempty"`
	Attempts int            `json:"attempts"`
	DryRun   bool           `json:"dry_run"`
}

// NormalizeSymbol maps the different spellings a signal source may use
// ("BTC/USDT", "btc-usdt", "BTC/USDT:USDT") onto the venue form "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
}
