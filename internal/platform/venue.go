// Package platform selects and constructs the configured futures venue.
package platform

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/alphagate/internal/crypto"
	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/platform/binance"
	"github.com/alanyoungcy/alphagate/internal/platform/bitget"
)

// VenueOptions are the resolved inputs for building a venue client.
type VenueOptions struct {
	Kind        string
	Credentials crypto.Credentials
	BaseURL     string
	Testnet     bool
	Timeout     time.Duration
	// AllowAnonymous permits empty credentials; dry-run mode reads public
	// market data only.
	AllowAnonymous bool
}

// NewExchangeFactory returns a factory that builds a fresh client for the
// configured venue on every call. An unknown kind or missing credentials
// fail at call time with domain.ErrVenueUnavailable.
func NewExchangeFactory(opts VenueOptions, logger *slog.Logger) domain.ExchangeFactory {
	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	return func() (domain.Exchange, error) {
		if opts.Credentials.Empty() && !opts.AllowAnonymous {
			return nil, fmt.Errorf("platform: %s: %w: %w", kind, domain.ErrVenueUnavailable, domain.ErrNoCredentials)
		}
		switch kind {
		case "bitget":
			return bitget.New(bitget.Config{
				BaseURL: opts.BaseURL,
				Auth: crypto.VenueAuth{
					Key:        opts.Credentials.APIKey,
					Secret:     opts.Credentials.SecretKey,
					Passphrase: opts.Credentials.Passphrase,
				},
				Demo:    opts.Testnet,
				Timeout: opts.Timeout,
				Logger:  logger,
			}), nil
		case "binance":
			return binance.New(binance.Config{
				APIKey:    opts.Credentials.APIKey,
				SecretKey: opts.Credentials.SecretKey,
				BaseURL:   opts.BaseURL,
				Testnet:   opts.Testnet,
				Timeout:   opts.Timeout,
				Logger:    logger,
			}), nil
		default:
			return nil, fmt.Errorf("platform: unknown venue %q: %w", opts.Kind, domain.ErrVenueUnavailable)
		}
	}
}
