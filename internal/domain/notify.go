package domain

import "context"

// NotifyLevel classifies operator notifications.
type NotifyLevel string

const (
	NotifyInfo     NotifyLevel = "info"
	NotifySuccess  NotifyLevel = "success"
	NotifyError    NotifyLevel = "error"
	NotifyCritical NotifyLevel = "critical"
)

// Notifier delivers best-effort operator messages. Delivery failures are
// absorbed by the implementation and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, level NotifyLevel, message string)
}
