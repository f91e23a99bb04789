package binance

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/adshao/go-binance/v2/common"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

// Binance error codes that mean the account cannot fund the order.
var insufficientFundsCodes = map[int64]bool{
	-2018: true, // balance is insufficient
	-2019: true, // margin is insufficient
}

// Binance error codes worth retrying.
var transientCodes = map[int64]bool{
	-1001: true, // disconnected
	-1003: true, // too many requests
	-1007: true, // timeout waiting for backend
	-1008: true, // server overloaded
}

// classify wraps a go-binance error with the matching domain sentinel.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch {
		case insufficientFundsCodes[apiErr.Code]:
			return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, err)
		case transientCodes[apiErr.Code], apiErr.Code == 0:
			// Code 0 is how go-binance reports non-JSON 5xx bodies.
			return fmt.Errorf("%w: %w", domain.ErrTransientVenue, err)
		default:
			return fmt.Errorf("%w: %w", domain.ErrVenueRejected, err)
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", domain.ErrTransientVenue, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrUnknownVenue, err)
}
