package platform

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/alphagate/internal/crypto"
	"github.com/alanyoungcy/alphagate/internal/domain"
)

func TestNewExchangeFactory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := crypto.Credentials{APIKey: "ak", SecretKey: "sk", Passphrase: "pp"}

	for _, kind := range []string{"bitget", "Binance"} {
		ex, err := NewExchangeFactory(VenueOptions{Kind: kind, Credentials: creds}, logger)()
		require.NoError(t, err, kind)
		assert.NotNil(t, ex)
	}

	ex, err := NewExchangeFactory(VenueOptions{Kind: "bitget", Credentials: creds}, logger)()
	require.NoError(t, err)
	assert.Equal(t, "bitget", ex.Name())
}

func TestNewExchangeFactoryFailures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewExchangeFactory(VenueOptions{Kind: "kraken", AllowAnonymous: true}, logger)()
	assert.ErrorIs(t, err, domain.ErrVenueUnavailable)

	_, err = NewExchangeFactory(VenueOptions{Kind: "bitget"}, logger)()
	assert.ErrorIs(t, err, domain.ErrVenueUnavailable)
	assert.ErrorIs(t, err, domain.ErrNoCredentials)

	ex, err := NewExchangeFactory(VenueOptions{Kind: "binance", AllowAnonymous: true}, logger)()
	require.NoError(t, err)
	assert.Equal(t, "binance", ex.Name())
}
