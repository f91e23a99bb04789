package bitget

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

// APIError is a non-success response from the Bitget API.
type APIError struct {
	HTTPStatus int
	Code       string
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitget api error: http=%d code=%s msg=%s", e.HTTPStatus, e.Code, e.Msg)
}

// Error codes that mean the account cannot fund the order.
var insufficientFundsCodes = map[string]bool{
	"40754": true, // balance not enough
	"43012": true, // insufficient balance
	"40762": true, // order amount exceeds balance
}

// Error codes that are worth retrying regardless of HTTP status.
var transientCodes = map[string]bool{
	"429": true, // too many requests
}

// noOrdersCode is returned by the cancel endpoints when nothing rests.
const noOrdersCode = "22001"

// classify wraps a Bitget failure with the matching domain sentinel.
func classify(apiErr *APIError) error {
	switch {
	case insufficientFundsCodes[apiErr.Code]:
		return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, apiErr)
	case transientCodes[apiErr.Code],
		apiErr.HTTPStatus == http.StatusTooManyRequests,
		apiErr.HTTPStatus >= 500:
		return fmt.Errorf("%w: %w", domain.ErrTransientVenue, apiErr)
	case apiErr.Code != "":
		return fmt.Errorf("%w: %w", domain.ErrVenueRejected, apiErr)
	default:
		return fmt.Errorf("%w: %w", domain.ErrUnknownVenue, apiErr)
	}
}

// classifyTransport wraps errors from the HTTP round trip itself.
func classifyTransport(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", domain.ErrTransientVenue, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrUnknownVenue, err)
	}
}
