package bitget

import (
	"encoding/json"
	"strconv"
)

// envelope is the common response wrapper of every Bitget v2 endpoint.
type envelope struct {
	Code        string          `json:"code"`
	Msg         string          `json:"msg"`
	RequestTime int64           `json:"requestTime"`
	Data        json.RawMessage `json:"data"`
}

const codeSuccess = "00000"

// APIAccount is one margin account from /api/v2/mix/account/accounts.
type APIAccount struct {
	MarginCoin          string `json:"marginCoin"`
	Locked              string `json:"locked"`
	Available           string `json:"available"`
	CrossedMaxAvailable string `json:"crossedMaxAvailable"`
	AccountEquity       string `json:"accountEquity"`
	USDTEquity          string `json:"usdtEquity"`
	UnrealizedPL        string `json:"unrealizedPL"`
}

// APIPosition is one entry from /api/v2/mix/position/all-position.
type APIPosition struct {
	Symbol       string `json:"symbol"`
	MarginCoin   string `json:"marginCoin"`
	HoldSide     string `json:"holdSide"` // long / short
	Total        string `json:"total"`
	Available    string `json:"available"`
	OpenPriceAvg string `json:"openPriceAvg"`
	MarkPrice    string `json:"markPrice"`
	UnrealizedPL string `json:"unrealizedPL"`
	Leverage     string `json:"leverage"`
	MarginMode   string `json:"marginMode"`
}

// APITicker is one entry from /api/v2/mix/market/ticker.
type APITicker struct {
	Symbol string `json:"symbol"`
	LastPr string `json:"lastPr"`
	MarkPr string `json:"markPrice"`
}

// APIContract is one entry from /api/v2/mix/market/contracts.
type APIContract struct {
	Symbol         string `json:"symbol"`
	VolumePlace    string `json:"volumePlace"`
	SizeMultiplier string `json:"sizeMultiplier"`
	MinTradeNum    string `json:"minTradeNum"`
}

// APIOrderAck is the data of a successful place-order call.
type APIOrderAck struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

// APIFill is one entry of /api/v2/mix/order/fill-history.
type APIFill struct {
	TradeID string `json:"tradeId"`
	Symbol  string `json:"symbol"`
	OrderID string `json:"orderId"`
	Side    string `json:"side"`
	Profit  string `json:"profit"`
	CTime   string `json:"cTime"`
}

// APIFillPage is the data of a fill-history call.
type APIFillPage struct {
	FillList []APIFill `json:"fillList"`
	EndID    string    `json:"endId"`
}

// parseFloat returns 0 for empty or malformed numeric strings; Bitget sends
// empty strings for unset fields.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
