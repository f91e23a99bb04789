package service

import (
	"sync/atomic"

	"github.com/alanyoungcy/alphagate/internal/metrics"
)

// TradingGate is the process-wide switch that admits or ignores signals. It
// lives in memory only, so a restart resets it to its configured start state.
type TradingGate struct {
	enabled atomic.Bool
	metrics *metrics.Metrics
}

// NewTradingGate creates a gate in the given initial state.
func NewTradingGate(enabled bool, m *metrics.Metrics) *TradingGate {
	g := &TradingGate{metrics: m}
	g.enabled.Store(enabled)
	m.SetGate(enabled)
	return g
}

// Enabled reports whether new signals may be executed.
func (g *TradingGate) Enabled() bool {
	return g.enabled.Load()
}

// Disable closes the gate and reports whether it was open.
func (g *TradingGate) Disable() (wasEnabled bool) {
	was := g.enabled.Swap(false)
	g.metrics.SetGate(false)
	return was
}

// Enable opens the gate and reports whether it was already open.
func (g *TradingGate) Enable() (wasEnabled bool) {
	was := g.enabled.Swap(true)
	g.metrics.SetGate(true)
	return was
}

// Status renders the gate for API responses.
func (g *TradingGate) Status() string {
	if g.Enabled() {
		return "ENABLED"
	}
	return "DISABLED"
}
