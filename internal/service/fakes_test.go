package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExchange struct {
	mu sync.Mutex

	balance   domain.Balance
	price     float64
	positions []domain.Position
	fills     []domain.Fill

	leverageErr  error
	tickerErr    error
	balanceErr   error
	positionsErr error
	cancelErr    error
	orderErrs    map[string]error
	onCancel     func()

	calls  []string
	orders []domain.OrderRequest
}

func (f *fakeExchange) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeExchange) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeExchange) placed() []domain.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderRequest(nil), f.orders...)
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) FetchBalance(context.Context) (domain.Balance, error) {
	f.record("balance")
	return f.balance, f.balanceErr
}

func (f *fakeExchange) FetchPositions(context.Context) ([]domain.Position, error) {
	f.record("positions")
	return f.positions, f.positionsErr
}

func (f *fakeExchange) FetchTicker(_ context.Context, symbol string) (float64, error) {
	f.record("ticker:" + symbol)
	return f.price, f.tickerErr
}

func (f *fakeExchange) SetLeverage(_ context.Context, symbol string, leverage int) error {
	f.record(fmt.Sprintf("leverage:%s:%d", symbol, leverage))
	return f.leverageErr
}

func (f *fakeExchange) CreateMarketOrder(_ context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	f.record("order:" + req.Symbol)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.orderErrs[req.Symbol]; err != nil {
		return domain.OrderResult{}, err
	}
	f.orders = append(f.orders, req)
	return domain.OrderResult{ID: fmt.Sprintf("ord-%d", len(f.orders)), Status: domain.OrderStatusNew}, nil
}

func (f *fakeExchange) CancelAllOrders(context.Context) error {
	f.record("cancel_all")
	if f.onCancel != nil {
		f.onCancel()
	}
	return f.cancelErr
}

func (f *fakeExchange) FetchFills(context.Context, time.Time) ([]domain.Fill, error) {
	f.record("fills")
	return f.fills, nil
}

func (f *fakeExchange) factory() domain.ExchangeFactory {
	return func() (domain.Exchange, error) { return f, nil }
}

func failingFactory(err error) domain.ExchangeFactory {
	return func() (domain.Exchange, error) { return nil, err }
}

type notice struct {
	level domain.NotifyLevel
	msg   string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recordingNotifier) Notify(_ context.Context, level domain.NotifyLevel, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{level: level, msg: msg})
}

func (r *recordingNotifier) all() []notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notice(nil), r.notices...)
}
