package domain

// PositionSide is the direction of an open futures position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// CloseSide returns the order side that flattens a position on this side.
func (s PositionSide) CloseSide() OrderSide {
	if s == PositionSideShort {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Position is an open position as reported by the venue.
type Position struct {
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Contracts     float64      `json:"contracts"`
	EntryPrice    float64      `json:"entry_price"`
	UnrealizedPnL float64      `json:"unrealized_pnl"`
	Leverage      float64      `json:"leverage"`
}

// Balance is the USDT margin account balance.
type Balance struct {
	Total float64 `json:"total"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
}

// AccountSnapshot is fetched fresh per request and never cached; balances
// and positions are time sensitive.
type AccountSnapshot struct {
	Balance   Balance
	Positions []Position
}

// FreeBalanceUSDT returns the balance available for new margin.
func (a AccountSnapshot) FreeBalanceUSDT() float64 {
	return a.Balance.Free
}
