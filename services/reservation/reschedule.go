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

// RescheduleRejectedError reports a proposed move that fails a business rule
// (terminal state, past window, minimum notice). Never retried.
type RescheduleRejectedError struct {
	ReservationID string
	Reason        string
}

func (e *RescheduleRejectedError) Error() string {
	return fmt.Sprintf("rescheduleRejected: reservation %s: %s", e.ReservationID, e.Reason)
}

// RescheduleValidation is the outcome of a dry-run reschedule check.
type RescheduleValidation struct {
	Valid          bool                 `json:"valid"`
	Reason         string               `json:"reason,omitempty"`
	Conflicts      []models.Reservation `json:"conflicts"`
	AvailableSlots []models.Window      `json:"availableSlots,omitempty"`
}

// Rescheduler validates proposed window moves and executes them atomically
// under the same per-reservation lock the transition engine uses.
type Rescheduler struct {
	Repo     reservationRepo.ReservationRepository
	Detector *Detector
	Locker   Locker
	Clock    Clock
	Notify   Notifier
	Logger   *zap.Logger

	// MinNotice is how far in the future the new window must start.
	MinNotice time.Duration
	// AlternativeLimit caps how many free windows a failed validation offers.
	AlternativeLimit int
}

// Validate dry-runs a move of the reservation to newWindow. Business-rule
// failures come back as Valid=false with a reason; store failures as errors.
func (rs *Rescheduler) Validate(ctx context.Context, id string, newWindow models.Window) (*RescheduleValidation, error) {
	r, err := rs.Repo.GetByID(ctx, id)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		return nil, &NotFoundError{Kind: "reservation", ID: id}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "read reservation", Err: err}
	}
	return rs.validate(ctx, r, newWindow, models.ActorUser, nil)
}

// validate dry-runs the move. ignore lists reservation ids whose overlap
// does not count — members of a conflict record being resolved, which are
// themselves about to move or cancel.
func (rs *Rescheduler) validate(ctx context.Context, r *models.Reservation, newWindow models.Window, actor models.Actor, ignore map[string]bool) (*RescheduleValidation, error) {
	if reason := rs.checkRules(r, newWindow, actor); reason != "" {
		return &RescheduleValidation{Valid: false, Reason: reason, Conflicts: []models.Reservation{}}, nil
	}

	conflicts, err := rs.Detector.Detect(ctx, r.ShopID, newWindow, r.ID)
	if err != nil {
		return nil, err
	}
	if len(ignore) > 0 {
		kept := conflicts[:0]
		for _, c := range conflicts {
			if !ignore[c.ID] {
				kept = append(kept, c)
			}
		}
		conflicts = kept
	}
	if len(conflicts) > 0 {
		alternatives, err := rs.Detector.FindAlternatives(ctx, r.ShopID, newWindow, rs.AlternativeLimit)
		if err != nil {
			rs.Logger.Warn("failed to probe alternative windows",
				zap.String("reservationID", r.ID), zap.Error(err))
		}
		return &RescheduleValidation{
			Valid:          false,
			Reason:         "window overlaps existing reservations",
			Conflicts:      conflicts,
			AvailableSlots: alternatives,
		}, nil
	}

	return &RescheduleValidation{Valid: true, Conflicts: []models.Reservation{}}, nil
}

// checkRules returns a rejection reason, or "" when the move is allowed.
// The minimum-notice rule binds customer-requested moves only; shop, admin
// and system moves (conflict resolution) just need a future window.
func (rs *Rescheduler) checkRules(r *models.Reservation, newWindow models.Window, actor models.Actor) string {
	if !r.Status.Active() {
		return fmt.Sprintf("reservation in state %s cannot be rescheduled", r.Status)
	}
	if newWindow.Start >= newWindow.End {
		return "startTime must be before endTime"
	}
	startAt, err := newWindow.StartAt(rs.Clock.Location())
	if err != nil {
		return "invalid window date"
	}
	notice := rs.MinNotice
	if actor != models.ActorUser {
		notice = 0
	}
	if !startAt.After(rs.Clock.Now().Add(notice)) {
		if notice > 0 {
			return fmt.Sprintf("new window must start at least %s from now", notice)
		}
		return "new window must be in the future"
	}
	return ""
}

// Reschedule re-validates under the reservation lock (closing the race
// between validation and execution), then atomically updates the window and
// appends a reschedule audit entry. Status and payment fields are untouched.
func (rs *Rescheduler) Reschedule(
	ctx context.Context,
	id string,
	newWindow models.Window,
	actor models.Actor,
	reason string,
) (*models.Reservation, error) {
	return rs.reschedule(ctx, id, newWindow, actor, reason, nil)
}

// RescheduleIgnoring is Reschedule for conflict resolution: overlaps with
// the listed reservation ids are not treated as blocking.
func (rs *Rescheduler) RescheduleIgnoring(
	ctx context.Context,
	id string,
	newWindow models.Window,
	actor models.Actor,
	reason string,
	ignore map[string]bool,
) (*models.Reservation, error) {
	return rs.reschedule(ctx, id, newWindow, actor, reason, ignore)
}

func (rs *Rescheduler) reschedule(
	ctx context.Context,
	id string,
	newWindow models.Window,
	actor models.Actor,
	reason string,
	ignore map[string]bool,
) (*models.Reservation, error) {
	lock, err := rs.Locker.Obtain(ctx, reservationLockKey(id), lockTTL)
	if err != nil {
		if errors.Is(err, ErrLockNotObtained) {
			return nil, &ConcurrentModificationError{ReservationID: id}
		}
		return nil, &TransientStoreError{Op: "acquire reservation lock", Err: err}
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			rs.Logger.Warn("failed to release reservation lock",
				zap.String("reservationID", id), zap.Error(err))
		}
	}()

	current, err := rs.Repo.GetByID(ctx, id)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		return nil, &NotFoundError{Kind: "reservation", ID: id}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "read reservation", Err: err}
	}

	check, err := rs.validate(ctx, current, newWindow, actor, ignore)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		if len(check.Conflicts) > 0 {
			return nil, &ConflictDetectedError{
				ShopID:         current.ShopID,
				Window:         newWindow,
				ConflictingIDs: reservationIDs(check.Conflicts),
			}
		}
		return nil, &RescheduleRejectedError{ReservationID: id, Reason: check.Reason}
	}

	now := rs.Clock.Now()
	oldWindow := current.Window
	updated, err := rs.Repo.CompareAndSwap(ctx, id, current.Version, func(r *models.Reservation) {
		r.Window = newWindow
		r.UpdatedAt = now
	})
	if errors.Is(err, reservationRepo.ErrVersionMismatch) {
		return nil, &ConcurrentModificationError{ReservationID: id}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "write reservation window", Err: err}
	}

	entry := &models.StateAuditEntry{
		ID:             uuid.New().String(),
		ReservationID:  id,
		Kind:           models.AuditReschedule,
		FromWindow:     &oldWindow,
		ToWindow:       &newWindow,
		ChangedBy:      actor,
		Reason:         reason,
		OccurredAt:     now,
		SchedulerRunID: schedulerRunFromContext(ctx),
	}
	if err := rs.Repo.AppendAudit(ctx, entry); err != nil {
		rs.Logger.Error("failed to append reschedule audit entry",
			zap.String("reservationID", id), zap.Error(err))
	}

	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		payload := map[string]string{
			"reservationId": id,
			"shopId":        updated.ShopID,
			"date":          newWindow.Date,
			"start":         fmt.Sprintf("%d", newWindow.Start),
			"end":           fmt.Sprintf("%d", newWindow.End),
		}
		if err := rs.Notify.Notify(nctx, updated.CustomerID, EventReservationRescheduled, payload); err != nil {
			rs.Logger.Warn("notification delivery failed",
				zap.String("reservationID", id), zap.String("event", EventReservationRescheduled), zap.Error(err))
		}
	}()

	rs.Logger.Info("reservation rescheduled",
		zap.String("reservationID", id),
		zap.String("actor", string(actor)),
		zap.String("fromDate", oldWindow.Date), zap.Int("fromStart", oldWindow.Start),
		zap.String("toDate", newWindow.Date), zap.Int("toStart", newWindow.Start))
	return updated, nil
}
