package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// TypeRefundCalculate executes a queued refund against the payment
	// provider.
	TypeRefundCalculate = "refund:calculate"
	// TypeNotificationSend delivers a customer push notification.
	TypeNotificationSend = "notification:send"
)

// RefundPayload carries everything the refund worker needs; the core engine
// never talks to the payment provider directly.
type RefundPayload struct {
	ReservationID    string `json:"reservationId"`
	CustomerID       string `json:"customerId"`
	CancellationType string `json:"cancellationType"`
	Reason           string `json:"reason"`
	PaymentRef       string `json:"paymentRef"`
	RefundRate       int    `json:"refundRate"` // percent, 0-100
	Amount           int    `json:"amount"`     // currency minor units
}

// NotificationPayload carries a queued push notification.
type NotificationPayload struct {
	UserID    string            `json:"userId"`
	EventType string            `json:"eventType"`
	Data      map[string]string `json:"data"`
}

func NewRefundTask(p RefundPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(5), asynq.Queue("refunds")}
	return asynq.NewTask(TypeRefundCalculate, b), opts, nil
}

func NewNotificationTask(p NotificationPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(3), asynq.Queue("default")}
	return asynq.NewTask(TypeNotificationSend, b), opts, nil
}
