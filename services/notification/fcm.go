package notification

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	customerRepo "slotwise/database/repository/customer"
	"slotwise/services/tasks"
)

// FCMSender delivers queued notifications through Firebase Cloud Messaging.
// It runs inside the asynq worker, not on request paths.
type FCMSender struct {
	Messaging *messaging.Client
	Customers customerRepo.CustomerRepository
	Logger    *zap.Logger
}

// Send resolves the customer's device token and pushes the event.
func (s *FCMSender) Send(ctx context.Context, p tasks.NotificationPayload) error {
	token, err := s.Customers.FCMToken(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("resolving FCM token for user %s: %w", p.UserID, err)
	}

	title, body := renderEvent(p.EventType, p.Data)
	data := make(map[string]string, len(p.Data)+1)
	for k, v := range p.Data {
		data[k] = v
	}
	data["eventType"] = p.EventType

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	if _, err := s.Messaging.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending %s push to user %s: %w", p.EventType, p.UserID, err)
	}
	s.Logger.Debug("push delivered",
		zap.String("userID", p.UserID), zap.String("event", p.EventType))
	return nil
}

func renderEvent(eventType string, data map[string]string) (title, body string) {
	when := data["date"]
	switch eventType {
	case "reservation_requested":
		return "Reservation requested", fmt.Sprintf("Your reservation for %s is waiting for the shop to confirm.", when)
	case "reservation_confirmed":
		return "Reservation confirmed", fmt.Sprintf("Your reservation on %s is confirmed. See you there!", when)
	case "reservation_completed":
		return "Thanks for visiting", "Your reservation was completed. We hope to see you again."
	case "reservation_cancelled":
		return "Reservation cancelled", fmt.Sprintf("Your reservation on %s was cancelled.", when)
	case "no_show_recorded":
		return "Missed reservation", fmt.Sprintf("You missed your reservation on %s.", when)
	case "reservation_rescheduled":
		return "Reservation moved", fmt.Sprintf("Your reservation was moved to %s.", when)
	case "conflict_resolved":
		return "Reservation updated", "A scheduling conflict affecting your reservation was resolved."
	}
	return "Reservation update", "There is an update to your reservation."
}
