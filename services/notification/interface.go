package notification

import "context"

// NotificationService delivers customer-facing events. Callers treat it as
// fire-and-forget: delivery failure must never fail the action that
// triggered it.
type NotificationService interface {
	Notify(ctx context.Context, userID, eventType string, payload map[string]string) error
}
