package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the hex HMAC of the raw webhook body.
const SignatureHeader = "X-Hub-Signature"

// VerifySignature reports whether provided is the hex encoded HMAC-SHA256 of
// rawBody under secret. An optional "sha256=" prefix is accepted. Absent,
// malformed and mismatched signatures all return false.
func VerifySignature(rawBody []byte, provided string, secret string) bool {
	if provided == "" || secret == "" {
		return false
	}
	provided = strings.TrimPrefix(strings.TrimSpace(provided), "sha256=")
	got, err := hex.DecodeString(provided)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignHex returns the hex HMAC-SHA256 of body under secret, the value
// VerifySignature expects in the signature header.
func SignHex(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VenueAuth holds the credentials for HMAC-authenticated venue REST calls.
type VenueAuth struct {
	Key        string
	Secret     string
	Passphrase string
}

// BitgetHeaders returns the signed headers for a Bitget v2 request. The
// signature is base64(HMAC-SHA256(secret, timestamp+METHOD+requestPath+body))
// where requestPath includes the query string.
func (h *VenueAuth) BitgetHeaders(method, requestPath, body string) map[string]string {
	return h.BitgetHeadersAt(method, requestPath, body, time.Now().UnixMilli())
}

// BitgetHeadersAt is like BitgetHeaders but lets the caller supply the
// millisecond timestamp.
func (h *VenueAuth) BitgetHeadersAt(method, requestPath, body string, unixMillis int64) map[string]string {
	ts := strconv.FormatInt(unixMillis, 10)
	sig := hmacSHA256Base64([]byte(h.Secret), ts+strings.ToUpper(method)+requestPath+body)

	return map[string]string{
		"ACCESS-KEY":        h.Key,
		"ACCESS-SIGN":       sig,
		"ACCESS-TIMESTAMP":  ts,
		"ACCESS-PASSPHRASE": h.Passphrase,
		"locale":            "en-US",
	}
}

// String returns a redacted representation suitable for logging.
func (h *VenueAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("VenueAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}

func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
