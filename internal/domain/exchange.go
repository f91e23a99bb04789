package domain

import (
	"context"
	"time"
)

// Exchange is the narrow capability the gateway needs from a futures venue.
// Every method returns an error wrapping one of the venue sentinels
// (ErrTransientVenue, ErrInsufficientFunds, ErrVenueRejected, ErrUnknownVenue).
type Exchange interface {
	Name() string
	FetchBalance(ctx context.Context) (Balance, error)
	FetchPositions(ctx context.Context) ([]Position, error)
	FetchTicker(ctx context.Context, symbol string) (float64, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	CreateMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelAllOrders(ctx context.Context) error
	FetchFills(ctx context.Context, since time.Time) ([]Fill, error)
}

// ExchangeFactory builds a fresh venue client. Callers construct one client
// per logical operation and never share it across requests.
type ExchangeFactory func() (Exchange, error)
