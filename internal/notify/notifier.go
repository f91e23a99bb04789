// Package notify provides a multi-channel notification system. Notifications
// are dispatched to all registered senders (Telegram, Discord) and can be
// filtered by level so operators receive only the alerts they care about.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/alphagate/internal/domain"
	"github.com/alanyoungcy/alphagate/internal/metrics"
)

// Title prefixes every delivered message.
const Title = "[AlphaGate]"

// deliveryTimeout bounds one dispatch across all senders.
const deliveryTimeout = 10 * time.Second

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches notifications to one or more Senders. It implements
// domain.Notifier: delivery is best effort and failures are only logged.
type Notifier struct {
	senders []Sender
	levels  map[domain.NotifyLevel]bool // allowed levels
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// levels that appear in the levels slice are forwarded. If levels is empty,
// every level is delivered.
func NewNotifier(senders []Sender, levels []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.NotifyLevel]bool, len(levels))
	for _, l := range levels {
		allowed[domain.NotifyLevel(strings.ToLower(strings.TrimSpace(l)))] = true
	}
	return &Notifier{
		senders: senders,
		levels:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// WithMetrics counts delivery failures per sender on m.
func (n *Notifier) WithMetrics(m *metrics.Metrics) *Notifier {
	n.metrics = m
	return n
}

// Notify formats message for level and sends it to every sender. It never
// returns an error and never blocks longer than the delivery timeout. The
// caller's cancellation does not abort delivery, so a disconnected HTTP
// client still produces the operator alert.
func (n *Notifier) Notify(ctx context.Context, level domain.NotifyLevel, message string) {
	if len(n.levels) > 0 && !n.levels[level] {
		n.logger.DebugContext(ctx, "notification filtered out",
			slog.String("level", string(level)),
		)
		return
	}
	if len(n.senders) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	n.dispatch(ctx, Format(level, message))
}

// Format renders the body of a notification with its level prefix.
func Format(level domain.NotifyLevel, message string) string {
	return prefix(level) + message
}

func prefix(level domain.NotifyLevel) string {
	switch level {
	case domain.NotifySuccess:
		return "✅ "
	case domain.NotifyError, domain.NotifyCritical:
		return "❌ "
	default:
		return "ℹ️ "
	}
}

// dispatch iterates over all senders. A single sender failure does not
// prevent delivery to the remaining senders.
func (n *Notifier) dispatch(ctx context.Context, body string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, Title, body); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			n.metrics.NotifyFailed(s.Name())
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
		)
	}
}
