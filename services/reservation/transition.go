package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/models"
)

const (
	lockTTL       = 10 * time.Second
	casRetryLimit = 3
)

// Engine owns the one authoritative state machine. Every status change —
// manual or scheduler-driven — goes through Transition, which serializes
// per-reservation via an advisory lock, validates the edge, applies side
// effects, CAS-writes the row, and appends the audit entry.
type Engine struct {
	Repo    reservationRepo.ReservationRepository
	Locker  Locker
	Clock   Clock
	Refunds RefundQueue
	Notify  Notifier
	Logger  *zap.Logger
}

// Transition moves a reservation to the target status. Moving to the status
// the reservation already holds is an idempotent no-op that reports success
// and writes no second audit entry.
func (e *Engine) Transition(
	ctx context.Context,
	id string,
	to models.ReservationStatus,
	actor models.Actor,
	reason string,
) (*models.Reservation, error) {
	lock, err := e.Locker.Obtain(ctx, reservationLockKey(id), lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockNotObtained) {
			return nil, &ConcurrentModificationError{ReservationID: id}
		}
		return nil, &TransientStoreError{Op: "acquire reservation lock", Err: err}
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			e.Logger.Warn("failed to release reservation lock",
				zap.String("reservationID", id), zap.Error(err))
		}
	}()

	for attempt := 0; attempt <= casRetryLimit; attempt++ {
		current, err := e.Repo.GetByID(ctx, id)
		if errors.Is(err, reservationRepo.ErrNotFound) {
			return nil, &NotFoundError{Kind: "reservation", ID: id}
		}
		if err != nil {
			return nil, &TransientStoreError{Op: "read reservation", Err: err}
		}

		if current.Status == to {
			return current, nil
		}
		if !CanTransition(current.Status, to) {
			return nil, &InvalidTransitionError{ReservationID: id, From: current.Status, To: to}
		}

		now := e.Clock.Now()
		from := current.Status
		updated, err := e.Repo.CompareAndSwap(ctx, id, current.Version, func(r *models.Reservation) {
			r.Status = to
			r.UpdatedAt = now
			switch to {
			case models.StatusConfirmed:
				r.ConfirmedAt = &now
			case models.StatusCompleted:
				r.CompletedAt = &now
			case models.StatusCancelledByUser, models.StatusCancelledByShop:
				r.CancelledAt = &now
			}
		})
		if errors.Is(err, reservationRepo.ErrVersionMismatch) {
			// Lost a race despite the lock (e.g. lock expiry); re-read and retry.
			continue
		}
		if errors.Is(err, reservationRepo.ErrNotFound) {
			return nil, &NotFoundError{Kind: "reservation", ID: id}
		}
		if err != nil {
			return nil, &TransientStoreError{Op: "write reservation", Err: err}
		}

		e.afterTransition(ctx, updated, from, to, actor, reason, now)
		return updated, nil
	}
	return nil, &ConcurrentModificationError{ReservationID: id}
}

// afterTransition runs the post-write effects: audit, refund queueing, and
// fire-and-forget notification. The status change has already committed, so
// failures here are logged rather than surfaced.
func (e *Engine) afterTransition(
	ctx context.Context,
	r *models.Reservation,
	from, to models.ReservationStatus,
	actor models.Actor,
	reason string,
	now time.Time,
) {
	entry := &models.StateAuditEntry{
		ID:             uuid.New().String(),
		ReservationID:  r.ID,
		Kind:           models.AuditTransition,
		FromStatus:     from,
		ToStatus:       to,
		ChangedBy:      actor,
		Reason:         reason,
		OccurredAt:     now,
		SchedulerRunID: schedulerRunFromContext(ctx),
	}
	if err := e.Repo.AppendAudit(ctx, entry); err != nil {
		e.Logger.Error("failed to append audit entry",
			zap.String("reservationID", r.ID),
			zap.String("from", string(from)), zap.String("to", string(to)),
			zap.Error(err))
	}

	if triggersRefund(to) {
		if err := e.Refunds.CalculateAndQueueRefund(ctx, r.ID, to, reason); err != nil {
			e.Logger.Error("failed to queue refund calculation",
				zap.String("reservationID", r.ID), zap.String("cancellation", string(to)), zap.Error(err))
		}
	}

	if event := eventForStatus(to); event != "" {
		payload := map[string]string{
			"reservationId": r.ID,
			"shopId":        r.ShopID,
			"date":          r.Window.Date,
			"start":         fmt.Sprintf("%d", r.Window.Start),
			"status":        string(to),
		}
		go func() {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := e.Notify.Notify(nctx, r.CustomerID, event, payload); err != nil {
				e.Logger.Warn("notification delivery failed",
					zap.String("reservationID", r.ID), zap.String("event", event), zap.Error(err))
			}
		}()
	}
}

// CheckIn stamps the customer's arrival so the no-show scan skips them.
// Only confirmed reservations can check in; checking in twice is a no-op.
func (e *Engine) CheckIn(ctx context.Context, id string, actor models.Actor) (*models.Reservation, error) {
	lock, err := e.Locker.Obtain(ctx, reservationLockKey(id), lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockNotObtained) {
			return nil, &ConcurrentModificationError{ReservationID: id}
		}
		return nil, &TransientStoreError{Op: "acquire reservation lock", Err: err}
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			e.Logger.Warn("failed to release reservation lock",
				zap.String("reservationID", id), zap.Error(err))
		}
	}()

	current, err := e.Repo.GetByID(ctx, id)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		return nil, &NotFoundError{Kind: "reservation", ID: id}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "read reservation", Err: err}
	}
	if current.CheckedInAt != nil {
		return current, nil
	}
	if current.Status != models.StatusConfirmed {
		return nil, &InvalidTransitionError{ReservationID: id, From: current.Status, To: current.Status}
	}

	now := e.Clock.Now()
	updated, err := e.Repo.CompareAndSwap(ctx, id, current.Version, func(r *models.Reservation) {
		r.CheckedInAt = &now
		r.UpdatedAt = now
	})
	if errors.Is(err, reservationRepo.ErrVersionMismatch) {
		return nil, &ConcurrentModificationError{ReservationID: id}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "write check-in", Err: err}
	}
	return updated, nil
}
