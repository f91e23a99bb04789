package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBody   = `{"symbol":"BTCUSDT","side":"buy"}`
	testSecret = "topsecret"
	testSig    = "c2e7fc626b900f775a2ae3ddbbe9bc545764c40184abc0dc4acc39828f1910b2"
)

func TestVerifySignature(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		provided string
		secret   string
		want     bool
	}{
		{"valid", testBody, testSig, testSecret, true},
		{"valid with prefix", testBody, "sha256=" + testSig, testSecret, true},
		{"upper case hex", testBody, strings.ToUpper(testSig), testSecret, true},
		{"absent", testBody, "", testSecret, false},
		{"not hex", testBody, "zz" + testSig[2:], testSecret, false},
		{"truncated", testBody, testSig[:20], testSecret, false},
		{"wrong secret", testBody, testSig, "other", false},
		{"tampered body", testBody + " ", testSig, testSecret, false},
		{"empty secret", testBody, testSig, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature([]byte(tt.body), tt.provided, tt.secret))
		})
	}
}

func TestSignHexRoundTrip(t *testing.T) {
	sig := SignHex([]byte(testBody), testSecret)
	assert.Equal(t, testSig, sig)
	assert.True(t, VerifySignature([]byte(testBody), sig, testSecret))
}

func TestBitgetHeadersAt(t *testing.T) {
	auth := &VenueAuth{Key: "key", Secret: "sek", Passphrase: "pass"}
	h := auth.BitgetHeadersAt("get", "/api/v2/mix/market/ticker?productType=USDT-FUTURES&symbol=BTCUSDT", "", 1700000000000)

	require.Equal(t, "iTPoADVBjvmy9w1oMhlfiUlX3n1N/CTfdEii1V3ntqQ=", h["ACCESS-SIGN"])
	assert.Equal(t, "key", h["ACCESS-KEY"])
	assert.Equal(t, "pass", h["ACCESS-PASSPHRASE"])
	assert.Equal(t, "1700000000000", h["ACCESS-TIMESTAMP"])
}

func TestVenueAuthStringRedacts(t *testing.T) {
	auth := &VenueAuth{Key: "abcdefgh", Secret: "supersecret"}
	s := auth.String()
	assert.NotContains(t, s, "supersecret")
	assert.Contains(t, s, "abcd****")
}
