package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/alphagate/internal/cache/memory"
	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/executor"
)

var fixedNow = time.Unix(1_700_000_000, 0)

type harness struct {
	ex       *fakeExchange
	notifier *recordingNotifier
	gate     *TradingGate
	svc      *SignalService
	builds   *atomic.Int32
}

func newHarness(t *testing.T, opts ...func(*SignalConfig, *[]string)) *harness {
	t.Helper()
	ex := &fakeExchange{price: 50000, balance: domain.Balance{Total: 1000, Free: 1000}}
	n := &recordingNotifier{}
	gate := NewTradingGate(true, nil)

	cfg := SignalConfig{FreshnessWindow: time.Minute, RequestTimeout: 5 * time.Second}
	var blacklist []string
	for _, o := range opts {
		o(&cfg, &blacklist)
	}

	builds := &atomic.Int32{}
	factory := func() (domain.Exchange, error) {
		builds.Add(1)
		return ex, nil
	}
	exec := executor.New(executor.Config{MaxAttempts: 1}, n, nil, discardLogger())
	svc := NewSignalService(
		gate,
		NewSymbolFilter(blacklist, nil),
		NewSizer(SizingConfig{Leverage: 10, Allocation: 0.05}, discardLogger()),
		exec,
		factory,
		memory.NewLockManager(),
		n,
		nil,
		cfg,
		discardLogger(),
	)
	svc.now = func() time.Time { return fixedNow }
	return &harness{ex: ex, notifier: n, gate: gate, svc: svc, builds: builds}
}

func TestHandleExecutesSignal(t *testing.T) {
	h := newHarness(t)

	out := h.svc.Handle(context.Background(), []byte(`{"symbol":"BTC/USDT","side":"buy","tp":60000,"sl":"45000","entry":123}`))
	require.Equal(t, domain.OutcomeExecuted, out.Kind, "err: %v", out.Err)
	require.NotNil(t, out.Order)

	orders := h.ex.placed()
	require.Len(t, orders, 1)
	assert.Equal(t, "BTCUSDT", orders[0].Symbol)
	assert.Equal(t, 0.01, orders[0].Quantity)
	require.NotNil(t, orders[0].StopLoss)
	assert.Equal(t, 45000.0, *orders[0].StopLoss)
	require.NotNil(t, orders[0].TakeProfit)
	assert.Equal(t, 60000.0, *orders[0].TakeProfit)

	notices := h.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NotifySuccess, notices[0].level)
}

func TestHandleGateDisabledIgnoresWithoutVenueIO(t *testing.T) {
	h := newHarness(t)
	h.gate.Disable()

	out := h.svc.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","side":"buy"}`))
	assert.Equal(t, domain.OutcomeIgnored, out.Kind)
	assert.Equal(t, "trading disabled", out.Reason)
	assert.Zero(t, h.builds.Load())
}

func TestHandleMalformedIsDropped(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{
		`not json`,
		`{"symbol":`,
		`{"symbol":"BTCUSDT","side":"buy","timestamp":"yesterday"}`,
		`{"symbol":"BTCUSDT","side":"buy","timestamp":"NaN"}`,
		`{"symbol":"BTCUSDT","side":"buy","tp":"Inf"}`,
	} {
		out := h.svc.Handle(context.Background(), []byte(body))
		assert.Equal(t, domain.OutcomeDropped, out.Kind, body)
	}
	assert.Zero(t, h.builds.Load())
}

func TestHandleHeartbeatWinsOverEverything(t *testing.T) {
	h := newHarness(t)
	bodies := []string{
		`{"dust":true}`,
		`{"dust":1,"symbol":"DOGEUSDT"}`,
		`{"dust":"yes","timestamp":1}`,
		`{"dust":true,"side":"sideways"}`,
		`{"dust":true,"tp":"n/a"}`,
		`{"dust":true,"symbol":123}`,
		`{"dust":true,"timestamp":"yesterday"}`,
	}
	for _, body := range bodies {
		out := h.svc.Handle(context.Background(), []byte(body))
		assert.Equal(t, domain.OutcomeHeartbeat, out.Kind, body)
	}
	assert.Zero(t, h.builds.Load())
}

func TestHandleFreshness(t *testing.T) {
	h := newHarness(t)
	ts := float64(fixedNow.Unix())

	stale := fmt.Sprintf(`{"symbol":"BTCUSDT","side":"buy","timestamp":%v}`, ts-61)
	out := h.svc.Handle(context.Background(), []byte(stale))
	assert.Equal(t, domain.OutcomeDropped, out.Kind)
	assert.Equal(t, "stale signal", out.Reason)

	fresh := fmt.Sprintf(`{"symbol":"BTCUSDT","side":"buy","timestamp":%v}`, ts-59.5)
	out = h.svc.Handle(context.Background(), []byte(fresh))
	assert.Equal(t, domain.OutcomeExecuted, out.Kind)

	future := fmt.Sprintf(`{"symbol":"BTCUSDT","side":"sell","timestamp":%v}`, ts+600)
	out = h.svc.Handle(context.Background(), []byte(future))
	assert.Equal(t, domain.OutcomeExecuted, out.Kind)

	staleMillis := fmt.Sprintf(`{"symbol":"BTCUSDT","side":"buy","timestamp":%d}`, fixedNow.UnixMilli()-120_000)
	out = h.svc.Handle(context.Background(), []byte(staleMillis))
	assert.Equal(t, domain.OutcomeDropped, out.Kind)

	freshMillis := fmt.Sprintf(`{"symbol":"BTCUSDT","side":"buy","timestamp":"%d"}`, fixedNow.UnixMilli()-1_000)
	out = h.svc.Handle(context.Background(), []byte(freshMillis))
	assert.Equal(t, domain.OutcomeExecuted, out.Kind)
}

func TestHandleValidation(t *testing.T) {
	h := newHarness(t)
	for _, body := range []string{
		`{"side":"buy"}`,
		`{"symbol":"BTCUSDT"}`,
		`{"symbol":"BTCUSDT","side":"long"}`,
		`{}`,
	} {
		out := h.svc.Handle(context.Background(), []byte(body))
		assert.Equal(t, domain.OutcomeRejected, out.Kind, body)
		assert.ErrorIs(t, out.Err, domain.ErrValidation, body)
	}
	assert.Zero(t, h.builds.Load())
}

func TestHandleFilteredSymbolNotifies(t *testing.T) {
	h := newHarness(t, func(_ *SignalConfig, bl *[]string) { *bl = []string{"DOGEUSDT"} })

	out := h.svc.Handle(context.Background(), []byte(`{"symbol":"DOGE/USDT","side":"buy"}`))
	assert.Equal(t, domain.OutcomeFiltered, out.Kind)
	assert.Zero(t, h.builds.Load())

	notices := h.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NotifyInfo, notices[0].level)
	assert.True(t, strings.HasPrefix(notices[0].msg, "IGNORED"))
}

func TestHandleSizingFailureNotifies(t *testing.T) {
	h := newHarness(t)
	h.ex.price = 0

	out := h.svc.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","side":"buy"}`))
	assert.Equal(t, domain.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrSizing)

	notices := h.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NotifyError, notices[0].level)
}

func TestHandleVenueRejectedDuringSizingNotifies(t *testing.T) {
	cases := map[string]func(*fakeExchange){
		"ticker":  func(ex *fakeExchange) { ex.tickerErr = fmt.Errorf("bitget: fetch ticker: %w: code=40034", domain.ErrVenueRejected) },
		"balance": func(ex *fakeExchange) { ex.balanceErr = fmt.Errorf("bitget: fetch balance: %w", domain.ErrInsufficientFunds) },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(h.ex)

			out := h.svc.Handle(context.Background(), []byte(`{"symbol":"NOPEUSDT","side":"buy"}`))
			assert.Equal(t, domain.OutcomeFailed, out.Kind)
			assert.ErrorIs(t, out.Err, domain.ErrSizing)
			assert.Empty(t, h.ex.placed())

			notices := h.notifier.all()
			require.Len(t, notices, 1)
			assert.Equal(t, domain.NotifyError, notices[0].level)
			assert.True(t, strings.HasPrefix(notices[0].msg, "FAILED"))
		})
	}
}

func TestHandleInsufficientFundsNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	h.ex.orderErrs = map[string]error{"BTCUSDT": fmt.Errorf("bitget: create order: %w", domain.ErrInsufficientFunds)}

	out := h.svc.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","side":"buy"}`))
	assert.Equal(t, domain.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrInsufficientFunds)

	notices := h.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NotifyCritical, notices[0].level)
}

func TestHandleVenueUnavailable(t *testing.T) {
	h := newHarness(t)
	h.svc.factory = failingFactory(fmt.Errorf("platform: %w", domain.ErrVenueUnavailable))

	out := h.svc.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","side":"buy"}`))
	assert.Equal(t, domain.OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, domain.ErrVenueUnavailable)
}

func TestHandleDryRunTouchesOnlyPublicData(t *testing.T) {
	h := newHarness(t)
	h.ex.balanceErr = fmt.Errorf("bitget: fetch balance: %w", domain.ErrVenueRejected)
	h.svc.sizer = NewSizer(SizingConfig{Leverage: 10, Allocation: 0.05, DryRun: true, PaperBalance: 1000}, discardLogger())
	h.svc.executor = executor.New(executor.Config{MaxAttempts: 1, DryRun: true}, h.notifier, nil, discardLogger())

	out := h.svc.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","side":"buy"}`))
	require.Equal(t, domain.OutcomeExecuted, out.Kind, "err: %v", out.Err)
	assert.Equal(t, domain.OrderStatusDryRun, out.Order.Status)
	assert.Equal(t, []string{"ticker:BTCUSDT"}, h.ex.callLog())
	assert.Empty(t, h.ex.placed())
}

func TestHandleSurvivesCallerCancellation(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := h.svc.Handle(ctx, []byte(`{"symbol":"BTCUSDT","side":"buy"}`))
	assert.Equal(t, domain.OutcomeExecuted, out.Kind)
}

func TestHandleSerializesPerSymbol(t *testing.T) {
	h := newHarness(t, func(c *SignalConfig, _ *[]string) { c.SerializePerSymbol = true })
	locks := &countingLocks{inner: memory.NewLockManager()}
	h.svc.locks = locks

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := h.svc.Handle(context.Background(), []byte(`{"symbol":"BTCUSDT","side":"buy"}`))
			assert.Equal(t, domain.OutcomeExecuted, out.Kind)
		}()
	}
	wg.Wait()

	assert.Len(t, h.ex.placed(), 4)
	assert.Equal(t, int32(4), locks.acquired.Load())
	assert.Equal(t, []string{"symbol:BTCUSDT"}, locks.keys())
}

type countingLocks struct {
	inner    domain.LockManager
	acquired atomic.Int32
	mu       sync.Mutex
	seen     map[string]struct{}
}

func (c *countingLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	unlock, err := c.inner.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	c.acquired.Add(1)
	c.mu.Lock()
	if c.seen == nil {
		c.seen = map[string]struct{}{}
	}
	c.seen[key] = struct{}{}
	c.mu.Unlock()
	return unlock, nil
}

func (c *countingLocks) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.seen))
	for k := range c.seen {
		out = append(out, k)
	}
	return out
}

func TestParseSignalAliases(t *testing.T) {
	sig, err := ParseSignal([]byte(`{"symbol":" ethusdt ","side":"SELL","take_profit":"3000.5","stop_loss":3500,"timestamp":1700000000.25}`))
	require.NoError(t, err)
	assert.Equal(t, "ethusdt", sig.Symbol)
	assert.Equal(t, domain.OrderSideSell, sig.Side)
	require.NotNil(t, sig.TakeProfit)
	assert.Equal(t, 3000.5, *sig.TakeProfit)
	require.NotNil(t, sig.StopLoss)
	assert.Equal(t, 3500.0, *sig.StopLoss)
	require.NotNil(t, sig.Timestamp)
	assert.Equal(t, 1700000000.25, *sig.Timestamp)
	assert.False(t, sig.IsHeartbeat)
}

func TestParseSignalHeartbeatIgnoresMistypedFields(t *testing.T) {
	for _, body := range []string{
		`{"dust":true,"tp":"n/a"}`,
		`{"dust":"1","symbol":123,"side":false}`,
		`{"timestamp":"yesterday","dust":[0]}`,
	} {
		sig, err := ParseSignal([]byte(body))
		require.NoError(t, err, body)
		assert.True(t, sig.IsHeartbeat, body)
	}

	_, err := ParseSignal([]byte(`{"dust":false,"tp":"n/a"}`))
	assert.Error(t, err)
	_, err = ParseSignal([]byte(`[{"dust":true}]`))
	assert.Error(t, err)
}

func TestParseSignalZeroPricesUnset(t *testing.T) {
	sig, err := ParseSignal([]byte(`{"symbol":"BTCUSDT","side":"buy","tp":0,"sl":null}`))
	require.NoError(t, err)
	assert.Nil(t, sig.TakeProfit)
	assert.Nil(t, sig.StopLoss)
}

func TestTruthy(t *testing.T) {
	for raw, want := range map[string]bool{
		`true`: true, `false`: false, `1`: true, `0`: false,
		`"x"`: true, `""`: false, `"false"`: false, `"0"`: false,
		`null`: false, `[]`: false, `[1]`: true, `{}`: false,
	} {
		assert.Equal(t, want, truthy([]byte(raw)), raw)
	}
	assert.False(t, truthy(nil))
}
