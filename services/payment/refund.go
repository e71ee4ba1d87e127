package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/models"
	"slotwise/services/reservation"
	"slotwise/services/tasks"
)

// RefundPolicy is the notice-based eligibility ladder for customer
// cancellations. Shop cancellations always refund in full; no-shows forfeit
// the deposit.
type RefundPolicy struct {
	FullRefundNotice time.Duration // cancel at least this early: 100%
	HalfRefundNotice time.Duration // cancel at least this early: 50%
}

// DefaultRefundService computes the refund rate and hands the actual refund
// to the asynq worker.
type DefaultRefundService struct {
	Repo   reservationRepo.ReservationRepository
	Queue  *asynq.Client
	Clock  reservation.Clock
	Policy RefundPolicy
	Logger *zap.Logger
}

var _ RefundService = (*DefaultRefundService)(nil)

func (s *DefaultRefundService) CalculateAndQueueRefund(
	ctx context.Context,
	reservationID string,
	cancellationType models.ReservationStatus,
	reason string,
) error {
	r, err := s.Repo.GetByID(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("loading reservation %s for refund: %w", reservationID, err)
	}

	rate := s.refundRate(r, cancellationType)
	amount := r.DepositAmount * rate / 100
	if amount == 0 {
		s.Logger.Info("no refund due",
			zap.String("reservationID", reservationID),
			zap.String("cancellation", string(cancellationType)),
			zap.Int("rate", rate))
		return nil
	}

	task, opts, err := tasks.NewRefundTask(tasks.RefundPayload{
		ReservationID:    reservationID,
		CustomerID:       r.CustomerID,
		CancellationType: string(cancellationType),
		Reason:           reason,
		PaymentRef:       r.PaymentRef,
		RefundRate:       rate,
		Amount:           amount,
	})
	if err != nil {
		return fmt.Errorf("building refund task: %w", err)
	}
	if _, err := s.Queue.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueueing refund for reservation %s: %w", reservationID, err)
	}

	s.Logger.Info("refund queued",
		zap.String("reservationID", reservationID),
		zap.Int("rate", rate),
		zap.Int("amount", amount))
	return nil
}

func (s *DefaultRefundService) refundRate(r *models.Reservation, cancellationType models.ReservationStatus) int {
	switch cancellationType {
	case models.StatusCancelledByShop:
		return 100
	case models.StatusNoShow:
		return 0
	}

	startAt, err := r.Window.StartAt(s.Clock.Location())
	if err != nil {
		s.Logger.Warn("unparseable window during refund calculation; defaulting to full refund",
			zap.String("reservationID", r.ID), zap.Error(err))
		return 100
	}
	notice := startAt.Sub(s.Clock.Now())
	switch {
	case notice >= s.Policy.FullRefundNotice:
		return 100
	case notice >= s.Policy.HalfRefundNotice:
		return 50
	default:
		return 0
	}
}
