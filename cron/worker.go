package cron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/refund"
	"go.uber.org/zap"

	"slotwise/config"
	"slotwise/services/notification"
	"slotwise/services/tasks"
)

// Worker consumes the refund and notification queues. It owns the only code
// path that talks to the payment provider.
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewWorker(fcm *notification.FCMSender, logger *zap.Logger) *Worker {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"refunds": 2,
			"default": 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRefundCalculate, handleRefundTask(logger))
	mux.HandleFunc(tasks.TypeNotificationSend, handleNotificationTask(fcm, logger))

	return &Worker{srv: srv, mux: mux, logger: logger}
}

// Start runs the worker in the background, retrying startup with backoff.
func (w *Worker) Start() {
	go func() {
		const maxAttempts = 5
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			w.logger.Info("starting task worker", zap.Int("attempt", attempt))
			err := w.srv.Run(w.mux)
			if err == nil {
				return
			}
			w.logger.Error("task worker exited", zap.Int("attempt", attempt), zap.Error(err))
			if attempt == maxAttempts {
				w.logger.Fatal("task worker could not start; giving up")
			}
			time.Sleep(time.Duration(attempt*2) * time.Second)
		}
	}()
}

// Stop drains in-flight tasks and shuts the worker down.
func (w *Worker) Stop() {
	w.srv.Shutdown()
}

// handleRefundTask executes a queued refund against Stripe. Amounts and
// eligibility were decided upstream; this handler only moves the money.
func handleRefundTask(logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p tasks.RefundPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid refund payload", zap.Error(err))
			return err
		}
		if p.PaymentRef == "" {
			// Cash or points-only reservation; nothing to move upstream.
			logger.Info("refund without payment reference; recording only",
				zap.String("reservationID", p.ReservationID), zap.Int("amount", p.Amount))
			return nil
		}

		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(p.PaymentRef),
			Amount:        stripe.Int64(int64(p.Amount)),
		}
		params.AddMetadata("reservation_id", p.ReservationID)
		params.AddMetadata("cancellation_type", p.CancellationType)

		ref, err := refund.New(params)
		if err != nil {
			logger.Error("stripe refund failed",
				zap.String("reservationID", p.ReservationID), zap.Error(err))
			return err
		}
		logger.Info("refund executed",
			zap.String("reservationID", p.ReservationID),
			zap.String("stripeRefundID", ref.ID),
			zap.Int("amount", p.Amount),
			zap.Int("rate", p.RefundRate))
		return nil
	}
}

func handleNotificationTask(fcm *notification.FCMSender, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p tasks.NotificationPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid notification payload", zap.Error(err))
			return err
		}
		return fcm.Send(ctx, p)
	}
}
