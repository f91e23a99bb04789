package domain

import (
	"math"
	"time"
)

// Signal is an inbound trade instruction decoded from a webhook payload.
type Signal struct {
	Symbol      string    `json:"symbol" validate:"required"`
	Side        OrderSide `json:"side" validate:"required,oneof=buy sell"`
	TakeProfit  *float64  `json:"take_profit,omitempty"`
	StopLoss    *float64  `json:"stop_loss,omitempty"`
	Timestamp   *float64  `json:"timestamp,omitempty"`
	IsHeartbeat bool      `json:"is_heartbeat"`
}

// millisEpochThreshold separates epoch seconds from epoch milliseconds. As
// seconds it is the year 5138; as milliseconds, March 1973.
const millisEpochThreshold = 1e11

// Age returns how old the signal is at now. The timestamp is epoch seconds,
// or epoch milliseconds when above millisEpochThreshold. The second return
// value is false when the signal carries no timestamp.
func (s Signal) Age(now time.Time) (time.Duration, bool) {
	if s.Timestamp == nil {
		return 0, false
	}
	sent := *s.Timestamp
	if sent > millisEpochThreshold {
		sent /= 1000
	}
	nowSec := float64(now.Unix()) + float64(now.Nanosecond())/1e9
	return secondsToDuration(nowSec - sent), true
}

// secondsToDuration converts, saturating at the Duration range.
func secondsToDuration(sec float64) time.Duration {
	limit := float64(math.MaxInt64) / float64(time.Second)
	switch {
	case sec >= limit:
		return time.Duration(math.MaxInt64)
	case sec <= -limit:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(sec * float64(time.Second))
}

// OutcomeKind tags the result of pushing a signal through intake.
type OutcomeKind string

const (
	OutcomeExecuted  OutcomeKind = "executed"
	OutcomeHeartbeat OutcomeKind = "heartbeat"
	OutcomeIgnored   OutcomeKind = "ignored"
	OutcomeFiltered  OutcomeKind = "filtered"
	OutcomeDropped   OutcomeKind = "dropped"
	OutcomeRejected  OutcomeKind = "rejected"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the explicit result of signal processing. Reason is set for
// ignored, dropped and rejected outcomes; Err for rejected and failed ones.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
	Order  *OrderResult
	Err    error
}

// Fill is one executed trade, used only for the approximate report.
type Fill struct {
	Symbol      string
	Side        OrderSide
	RealizedPnL float64
	Time        time.Time
}
