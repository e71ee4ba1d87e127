package notification

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"slotwise/services/tasks"
)

// QueueNotifier satisfies NotificationService by enqueueing delivery onto
// the asynq worker, keeping the calling path non-blocking.
type QueueNotifier struct {
	Client *asynq.Client
	Logger *zap.Logger
}

var _ NotificationService = (*QueueNotifier)(nil)

func (q *QueueNotifier) Notify(ctx context.Context, userID, eventType string, payload map[string]string) error {
	task, opts, err := tasks.NewNotificationTask(tasks.NotificationPayload{
		UserID:    userID,
		EventType: eventType,
		Data:      payload,
	})
	if err != nil {
		return fmt.Errorf("building notification task: %w", err)
	}
	if _, err := q.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueueing %s notification for user %s: %w", eventType, userID, err)
	}
	q.Logger.Debug("notification queued",
		zap.String("userID", userID), zap.String("event", eventType))
	return nil
}
