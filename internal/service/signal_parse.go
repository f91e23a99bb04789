package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/alphagate/internal/domain"
)

// wireSignal is the webhook payload as sent by signal sources. Prices and
// timestamps may arrive as JSON numbers or numeric strings. Fields not listed
// here, such as an entry price, are ignored.
type wireSignal struct {
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	TP         *flexFloat `json:"tp"`
	TakeProfit *flexFloat `json:"take_profit"`
	SL         *flexFloat `json:"sl"`
	StopLoss   *flexFloat `json:"stop_loss"`
	Timestamp  *flexFloat `json:"timestamp"`
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// ParseSignal decodes a webhook body. It does not validate required fields;
// that happens after the heartbeat and freshness checks.
//
// The heartbeat marker is read before any typed field, so a heartbeat is
// recognised whatever else the object carries.
func ParseSignal(body []byte) (domain.Signal, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return domain.Signal{}, fmt.Errorf("service: decode signal: %w", err)
	}
	if truthy(fields["dust"]) {
		return domain.Signal{IsHeartbeat: true}, nil
	}

	var w wireSignal
	if err := json.Unmarshal(body, &w); err != nil {
		return domain.Signal{}, fmt.Errorf("service: decode signal: %w", err)
	}
	return domain.Signal{
		Symbol:     strings.TrimSpace(w.Symbol),
		Side:       domain.OrderSide(strings.ToLower(strings.TrimSpace(w.Side))),
		TakeProfit: firstPrice(w.TP, w.TakeProfit),
		StopLoss:   firstPrice(w.SL, w.StopLoss),
		Timestamp:  (*float64)(w.Timestamp),
	}, nil
}

// firstPrice returns the first set, positive value. Zero means "not set" for
// take-profit and stop-loss.
func firstPrice(vals ...*flexFloat) *float64 {
	for _, v := range vals {
		if v != nil && *v > 0 {
			p := float64(*v)
			return &p
		}
	}
	return nil
}

// truthy follows loose JSON truthiness: false, 0, "", "0", "false" and null
// are false, anything else is true.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "" && s != "0" && s != "false"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
