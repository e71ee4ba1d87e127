package reservation

import (
	"context"

	"slotwise/models"
)

// Notification event types emitted after successful changes.
const (
	EventReservationRequested   = "reservation_requested"
	EventReservationConfirmed   = "reservation_confirmed"
	EventReservationCompleted   = "reservation_completed"
	EventReservationCancelled   = "reservation_cancelled"
	EventNoShowRecorded         = "no_show_recorded"
	EventReservationRescheduled = "reservation_rescheduled"
	EventConflictResolved       = "conflict_resolved"
)

// Notifier delivers customer-facing events. Calls are fire-and-forget: the
// engine neither waits for delivery nor fails a transition when notification
// fails.
type Notifier interface {
	Notify(ctx context.Context, userID, eventType string, payload map[string]string) error
}

// RefundQueue starts refund-eligibility calculation for a cancellation or
// no-show. Amounts and payment mechanics are entirely external.
type RefundQueue interface {
	CalculateAndQueueRefund(ctx context.Context, reservationID string, cancellationType models.ReservationStatus, reason string) error
}

func eventForStatus(to models.ReservationStatus) string {
	switch to {
	case models.StatusConfirmed:
		return EventReservationConfirmed
	case models.StatusCompleted:
		return EventReservationCompleted
	case models.StatusCancelledByUser, models.StatusCancelledByShop:
		return EventReservationCancelled
	case models.StatusNoShow:
		return EventNoShowRecorded
	}
	return ""
}
