package reservation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	conflictRepo "slotwise/database/repository/conflict"
	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/models"
)

// Resolver applies a resolution strategy to an open ConflictRecord. The
// record is closed only after every planned action succeeded; on partial
// failure it stays open and the whole resolution is retried (the underlying
// transitions are idempotent, so replays converge).
type Resolver struct {
	Repo      reservationRepo.ReservationRepository
	Conflicts conflictRepo.ConflictRepository
	Detector  *Detector
	Engine    *Engine
	Resched   *Rescheduler
	Clock     Clock
	Logger    *zap.Logger

	// MinSplitDuration is the shortest window, in minutes, the split
	// strategy may shrink a reservation to.
	MinSplitDuration int
	// AlternativeLimit caps the free windows considered per loser.
	AlternativeLimit int
}

// resolutionAction is one planned step; either a cancellation or a move.
type resolutionAction struct {
	reservationID string
	cancel        bool
	target        models.Window
}

// Resolve executes the strategy against the conflict's reservations,
// applying actions in ascending reservation-id order so multi-reservation
// lock acquisition never deadlocks.
func (rv *Resolver) Resolve(
	ctx context.Context,
	conflictID string,
	strategy models.ResolutionStrategy,
	actor models.Actor,
	reason string,
) (*models.ConflictRecord, error) {
	rec, err := rv.Conflicts.GetByID(ctx, conflictID)
	if errors.Is(err, conflictRepo.ErrNotFound) {
		return nil, &NotFoundError{Kind: "conflict", ID: conflictID}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "read conflict", Err: err}
	}
	if rec.Status == models.ConflictResolved {
		return rec, nil
	}

	active, err := rv.loadActive(ctx, rec.ReservationIDs)
	if err != nil {
		return nil, err
	}
	if len(active) <= 1 {
		// Already untangled (cancellations or moves since detection).
		return rv.close(ctx, rec, strategy)
	}

	ranked := Rank(active)
	winner, losers := ranked[0], ranked[1:]
	plan, err := rv.plan(ctx, strategy, winner, losers)
	if err != nil {
		return nil, err
	}

	// Overlaps among the conflict's own members are not blocking: each is
	// about to move or cancel as part of this same plan.
	members := make(map[string]bool, len(rec.ReservationIDs))
	for _, id := range rec.ReservationIDs {
		members[id] = true
	}

	sort.Slice(plan, func(i, j int) bool { return plan[i].reservationID < plan[j].reservationID })
	for _, action := range plan {
		if action.cancel {
			_, err = rv.Engine.Transition(ctx, action.reservationID, models.StatusCancelledByShop, actor, reason)
		} else {
			_, err = rv.Resched.RescheduleIgnoring(ctx, action.reservationID, action.target, actor, reason, members)
		}
		if err != nil {
			rv.Logger.Error("conflict resolution action failed; record stays open",
				zap.String("conflictID", conflictID),
				zap.String("reservationID", action.reservationID),
				zap.Bool("cancel", action.cancel),
				zap.Error(err))
			return nil, err
		}
	}

	rv.Logger.Info("conflict resolved",
		zap.String("conflictID", conflictID),
		zap.String("strategy", string(strategy)),
		zap.String("winner", winner.ID),
		zap.Int("losers", len(losers)))
	return rv.close(ctx, rec, strategy)
}

func (rv *Resolver) loadActive(ctx context.Context, ids []string) ([]models.Reservation, error) {
	var active []models.Reservation
	for _, id := range ids {
		r, err := rv.Repo.GetByID(ctx, id)
		if errors.Is(err, reservationRepo.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, &TransientStoreError{Op: "read conflict member", Err: err}
		}
		if r.Status.Active() {
			active = append(active, *r)
		}
	}
	return active, nil
}

// plan decides, without writing anything, what happens to every loser.
func (rv *Resolver) plan(
	ctx context.Context,
	strategy models.ResolutionStrategy,
	winner models.Reservation,
	losers []models.Reservation,
) ([]resolutionAction, error) {
	var plan []resolutionAction
	// Windows already spoken for by this plan; starts with the winner's.
	claimed := []models.Window{winner.Window}

	for _, loser := range losers {
		switch strategy {
		case models.StrategyKeepWinner:
			plan = append(plan, resolutionAction{reservationID: loser.ID, cancel: true})

		case models.StrategyRescheduleLosers:
			if target, ok := rv.pickAlternative(ctx, loser, claimed); ok {
				claimed = append(claimed, target)
				plan = append(plan, resolutionAction{reservationID: loser.ID, target: target})
			} else {
				plan = append(plan, resolutionAction{reservationID: loser.ID, cancel: true})
			}

		case models.StrategySplit:
			if trimmed, ok := rv.trimAround(loser.Window, winner.Window, claimed); ok {
				claimed = append(claimed, trimmed)
				plan = append(plan, resolutionAction{reservationID: loser.ID, target: trimmed})
			} else if target, ok := rv.pickAlternative(ctx, loser, claimed); ok {
				claimed = append(claimed, target)
				plan = append(plan, resolutionAction{reservationID: loser.ID, target: target})
			} else {
				plan = append(plan, resolutionAction{reservationID: loser.ID, cancel: true})
			}

		default:
			return nil, &PolicyValidationError{
				Field:   "strategy",
				Message: fmt.Sprintf("unknown resolution strategy %q", strategy),
			}
		}
	}
	return plan, nil
}

// pickAlternative finds the nearest free window for the loser that also
// avoids windows claimed earlier in the same plan.
func (rv *Resolver) pickAlternative(ctx context.Context, loser models.Reservation, claimed []models.Window) (models.Window, bool) {
	alternatives, err := rv.Detector.FindAlternatives(ctx, loser.ShopID, loser.Window, rv.AlternativeLimit)
	if err != nil {
		rv.Logger.Warn("failed to probe alternatives during resolution",
			zap.String("reservationID", loser.ID), zap.Error(err))
		return models.Window{}, false
	}
	for _, alt := range alternatives {
		if !overlapsAny(alt, claimed) {
			return alt, true
		}
	}
	return models.Window{}, false
}

// trimAround shrinks the loser's window to the side of the winner it already
// occupies, provided the remainder stays at or above MinSplitDuration.
func (rv *Resolver) trimAround(loser, winner models.Window, claimed []models.Window) (models.Window, bool) {
	trimmed := loser
	if loser.Start < winner.Start {
		trimmed.End = winner.Start
	} else {
		trimmed.Start = winner.End
	}
	if trimmed.Start >= trimmed.End || trimmed.Duration() < rv.MinSplitDuration {
		return models.Window{}, false
	}
	if overlapsAny(trimmed, claimed) {
		return models.Window{}, false
	}
	return trimmed, true
}

func (rv *Resolver) close(ctx context.Context, rec *models.ConflictRecord, strategy models.ResolutionStrategy) (*models.ConflictRecord, error) {
	resolvedAt := rv.Clock.Now()
	if err := rv.Conflicts.MarkResolved(ctx, rec.ID, strategy, resolvedAt); err != nil {
		return nil, &TransientStoreError{Op: "close conflict", Err: err}
	}
	rec.Status = models.ConflictResolved
	rec.Strategy = strategy
	rec.ResolvedAt = &resolvedAt
	return rec, nil
}

func overlapsAny(w models.Window, claimed []models.Window) bool {
	for _, c := range claimed {
		if w.Overlaps(c) {
			return true
		}
	}
	return false
}
