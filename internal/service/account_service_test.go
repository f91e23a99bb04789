package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

func TestAccountStatus(t *testing.T) {
	gate := NewTradingGate(true, nil)
	ex := &fakeExchange{
		balance:   domain.Balance{Total: 1200, Free: 900, Used: 300},
		positions: openPositions(),
	}
	svc := NewAccountService(gate, ex.factory(), true, time.Second, discardLogger())

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "online", st.Status)
	assert.Equal(t, "ENABLED", st.TradingStatus)
	assert.True(t, st.DryRun)
	assert.Equal(t, 900.0, st.Balance.Free)
	assert.Equal(t, 2, st.OpenPositionsCount)
	assert.Len(t, st.OpenPositions, 2)

	gate.Disable()
	st, err = svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "DISABLED", st.TradingStatus)
}

func TestAccountStatusVenueUnavailable(t *testing.T) {
	svc := NewAccountService(NewTradingGate(true, nil), failingFactory(domain.ErrVenueUnavailable), false, time.Second, discardLogger())
	_, err := svc.Status(context.Background())
	assert.ErrorIs(t, err, domain.ErrVenueUnavailable)
}

func TestAccountReport(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ex := &fakeExchange{fills: []domain.Fill{
		{Symbol: "BTCUSDT", RealizedPnL: 12.5, Time: now.Add(-time.Hour)},
		{Symbol: "BTCUSDT", RealizedPnL: -2.25, Time: now.Add(-2 * time.Hour)},
		{Symbol: "ETHUSDT", RealizedPnL: 0.1, Time: now.Add(-3 * time.Hour)},
		{Symbol: "ETHUSDT", RealizedPnL: 0.2, Time: now.Add(-4 * time.Hour)},
	}}
	svc := NewAccountService(NewTradingGate(true, nil), ex.factory(), false, time.Second, discardLogger())
	svc.now = func() time.Time { return now }

	rep, err := svc.Report(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Days)
	assert.Equal(t, now.Add(-7*24*time.Hour), rep.Since)
	assert.Equal(t, 4, rep.TradeCount)
	assert.Equal(t, 10.55, rep.ApproxRealizedPnL)
	assert.Equal(t, SymbolPnL{Trades: 2, RealizedPnL: 10.25}, rep.BySymbol["BTCUSDT"])
	assert.Equal(t, SymbolPnL{Trades: 2, RealizedPnL: 0.3}, rep.BySymbol["ETHUSDT"])
	assert.NotEmpty(t, rep.Note)
}

func TestClampReportDays(t *testing.T) {
	assert.Equal(t, 7, ClampReportDays(0))
	assert.Equal(t, 1, ClampReportDays(-5))
	assert.Equal(t, 1, ClampReportDays(1))
	assert.Equal(t, 30, ClampReportDays(30))
	assert.Equal(t, 90, ClampReportDays(500))
}
