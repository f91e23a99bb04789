package bitget

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/alphagate/internal/crypto"
	"github.com/alanyoungcy/alphagate/internal/domain"
)

type fakeBitget struct {
	t      *testing.T
	mu     sync.Mutex
	routes map[string]func(w http.ResponseWriter, r *http.Request, body map[string]any)
	bodies map[string]map[string]any
}

func newFakeBitget(t *testing.T) (*fakeBitget, *Client) {
	t.Helper()
	f := &fakeBitget{
		t:      t,
		routes: map[string]func(http.ResponseWriter, *http.Request, map[string]any){},
		bodies: map[string]map[string]any{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL: srv.URL,
		Auth:    crypto.VenueAuth{Key: "key", Secret: "secret", Passphrase: "pass"},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f, c
}

func (f *fakeBitget) handle(path string, fn func(w http.ResponseWriter, r *http.Request, body map[string]any)) {
	f.routes[path] = fn
}

func (f *fakeBitget) body(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeBitget) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	assert.Equal(f.t, "key", r.Header.Get("ACCESS-KEY"))
	assert.Equal(f.t, "pass", r.Header.Get("ACCESS-PASSPHRASE"))
	assert.NotEmpty(f.t, r.Header.Get("ACCESS-SIGN"))
	assert.NotEmpty(f.t, r.Header.Get("ACCESS-TIMESTAMP"))

	var body map[string]any
	if r.Method == http.MethodPost {
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.bodies[r.URL.Path] = body
		f.mu.Unlock()
	}

	fn, ok := f.routes[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"40404","msg":"not found"}`)
		return
	}
	fn(w, r, body)
}

func ok(data string) func(http.ResponseWriter, *http.Request, map[string]any) {
	return func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = io.WriteString(w, `{"code":"00000","msg":"success","requestTime":1,"data":`+data+`}`)
	}
}

func fail(status int, code, msg string) func(http.ResponseWriter, *http.Request, map[string]any) {
	return func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"code":"`+code+`","msg":"`+msg+`","requestTime":1,"data":null}`)
	}
}

func TestFetchBalance(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/account/accounts", func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		assert.Equal(t, "USDT-FUTURES", r.URL.Query().Get("productType"))
		ok(`[{"marginCoin":"USDT","available":"600","accountEquity":"1000","unrealizedPL":"3"}]`)(w, r, nil)
	})

	bal, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Balance{Total: 1000, Free: 600, Used: 400}, bal)
}

func TestFetchPositionsSkipsFlat(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/position/all-position", ok(`[
		{"symbol":"BTCUSDT","holdSide":"long","total":"0.5","openPriceAvg":"60000","unrealizedPL":"12.5","leverage":"5"},
		{"symbol":"ETHUSDT","holdSide":"short","total":"2","openPriceAvg":"3000","unrealizedPL":"-1","leverage":"10"},
		{"symbol":"SOLUSDT","holdSide":"long","total":"0","openPriceAvg":"0","unrealizedPL":"0","leverage":"5"}
	]`))

	positions, err := c.FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, domain.Position{
		Symbol: "BTCUSDT", Side: domain.PositionSideLong, Contracts: 0.5,
		EntryPrice: 60000, UnrealizedPnL: 12.5, Leverage: 5,
	}, positions[0])
	assert.Equal(t, domain.PositionSideShort, positions[1].Side)
}

func TestFetchTickerNormalizesSymbol(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/market/ticker", func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		ok(`[{"symbol":"BTCUSDT","lastPr":"65000.5"}]`)(w, r, nil)
	})

	price, err := c.FetchTicker(context.Background(), "BTC/USDT:USDT")
	require.NoError(t, err)
	assert.Equal(t, 65000.5, price)
}

func TestCreateMarketOrder(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/market/contracts", ok(`[{"symbol":"BTCUSDT","volumePlace":"3","minTradeNum":"0.001"}]`))
	f.handle("/api/v2/mix/order/place-order", ok(`{"orderId":"123","clientOid":"abc"}`))

	tp, sl := 70000.0, 60000.5
	res, err := c.CreateMarketOrder(context.Background(), domain.OrderRequest{
		Symbol:        "BTCUSDT",
		Side:          domain.OrderSideBuy,
		Quantity:      0.0123456,
		TakeProfit:    &tp,
		StopLoss:      &sl,
		ClientOrderID: "abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "123", res.ID)
	assert.Equal(t, domain.OrderStatusNew, res.Status)

	body := f.body("/api/v2/mix/order/place-order")
	assert.Equal(t, "0.012", body["size"])
	assert.Equal(t, "buy", body["side"])
	assert.Equal(t, "market", body["orderType"])
	assert.Equal(t, "NO", body["reduceOnly"])
	assert.Equal(t, "abc", body["clientOid"])
	assert.Equal(t, "70000", body["presetStopSurplusPrice"])
	assert.Equal(t, "60000.5", body["presetStopLossPrice"])
}

func TestCreateMarketOrderReduceOnlyFallbackPrecision(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/market/contracts", fail(http.StatusInternalServerError, "50000", "boom"))
	f.handle("/api/v2/mix/order/place-order", ok(`{"orderId":"9","clientOid":"x"}`))

	_, err := c.CreateMarketOrder(context.Background(), domain.OrderRequest{
		Symbol: "ETHUSDT", Side: domain.OrderSideSell, Quantity: 1.234567, ReduceOnly: true,
	})
	require.NoError(t, err)

	body := f.body("/api/v2/mix/order/place-order")
	assert.Equal(t, "1.2345", body["size"])
	assert.Equal(t, "YES", body["reduceOnly"])
	assert.NotEmpty(t, body["clientOid"])
	assert.NotContains(t, body, "presetStopSurplusPrice")
}

func TestCreateMarketOrderBelowMinimum(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/market/contracts", ok(`[{"symbol":"BTCUSDT","volumePlace":"3","minTradeNum":"0.001"}]`))

	_, err := c.CreateMarketOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT", Side: domain.OrderSideBuy, Quantity: 0.0004,
	})
	assert.ErrorIs(t, err, domain.ErrVenueRejected)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		handler func(http.ResponseWriter, *http.Request, map[string]any)
		want    error
	}{
		{"insufficient funds", fail(http.StatusBadRequest, "40754", "balance not enough"), domain.ErrInsufficientFunds},
		{"rejected", fail(http.StatusBadRequest, "40019", "parameter error"), domain.ErrVenueRejected},
		{"server error", fail(http.StatusBadGateway, "50001", "busy"), domain.ErrTransientVenue},
		{"rate limited", fail(http.StatusTooManyRequests, "429", "too many requests"), domain.ErrTransientVenue},
		{"html gateway page", func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "<html>down</html>")
		}, domain.ErrTransientVenue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, c := newFakeBitget(t)
			f.handle("/api/v2/mix/account/set-leverage", tt.handler)

			err := c.SetLeverage(context.Background(), "BTCUSDT", 5)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			assert.ErrorAs(t, err, &apiErr)
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	_, err := c.FetchBalance(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransientVenue)
}

func TestCancelAllOrdersNoOrdersIsSuccess(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/order/cancel-all-orders", fail(http.StatusBadRequest, "22001", "No order to cancel"))

	require.NoError(t, c.CancelAllOrders(context.Background()))
	body := f.body("/api/v2/mix/order/cancel-all-orders")
	assert.Equal(t, "USDT-FUTURES", body["productType"])
	assert.Equal(t, "USDT", body["marginCoin"])
}

func TestSetLeverageBody(t *testing.T) {
	f, c := newFakeBitget(t)
	f.handle("/api/v2/mix/account/set-leverage", ok(`{}`))

	require.NoError(t, c.SetLeverage(context.Background(), "btc-usdt", 7))
	body := f.body("/api/v2/mix/account/set-leverage")
	assert.Equal(t, "BTCUSDT", body["symbol"])
	assert.Equal(t, "7", body["leverage"])
}

func TestFetchFillsPaginates(t *testing.T) {
	f, c := newFakeBitget(t)
	calls := 0
	f.handle("/api/v2/mix/order/fill-history", func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		calls++
		if r.URL.Query().Get("idLessThan") == "" {
			list := make([]map[string]string, 100)
			for i := range list {
				list[i] = map[string]string{"symbol": "BTCUSDT", "side": "buy", "profit": "1", "cTime": "1700000000000"}
			}
			data, _ := json.Marshal(map[string]any{"fillList": list, "endId": "555"})
			ok(string(data))(w, r, nil)
			return
		}
		assert.Equal(t, "555", r.URL.Query().Get("idLessThan"))
		ok(`{"fillList":[{"symbol":"ETHUSDT","side":"sell","profit":"-2.5","cTime":"1700000001000"}],"endId":"556"}`)(w, r, nil)
	})

	fills, err := c.FetchFills(context.Background(), time.Unix(1_699_000_000, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, fills, 101)
	last := fills[100]
	assert.Equal(t, "ETHUSDT", last.Symbol)
	assert.Equal(t, domain.OrderSideSell, last.Side)
	assert.Equal(t, -2.5, last.RealizedPnL)
	assert.Equal(t, time.UnixMilli(1700000001000).UTC(), last.Time)
}

func TestDemoModeUsesSimulatedProduct(t *testing.T) {
	var header, product string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("paptrading")
		product = r.URL.Query().Get("productType")
		_, _ = io.WriteString(w, `{"code":"00000","data":[{"marginCoin":"SUSDT","available":"5","accountEquity":"5"}]}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Demo: true})
	bal, err := c.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", header)
	assert.Equal(t, "SUSDT-FUTURES", product)
	assert.Equal(t, 5.0, bal.Free)
}

func TestAnonymousClientSendsUnsignedRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("ACCESS-KEY"))
		assert.Empty(t, r.Header.Get("ACCESS-SIGN"))
		_, _ = io.WriteString(w, `{"code":"00000","msg":"success","data":[{"symbol":"BTCUSDT","lastPr":"50000"}]}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	price, err := c.FetchTicker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
}
