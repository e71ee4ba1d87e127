package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotwise/models"
)

func TestTransitionConfirm(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusRequested, window(600, 660))

	got, err := f.engine.Transition(context.Background(), "res-1", models.StatusConfirmed, models.ActorShop, "accepted")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != models.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", got.Status)
	}
	if got.ConfirmedAt == nil || !got.ConfirmedAt.Equal(testNow) {
		t.Errorf("ConfirmedAt = %v, want %v", got.ConfirmedAt, testNow)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}

	audits, _ := f.repo.ListAuditByReservation(context.Background(), "res-1")
	if len(audits) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audits))
	}
	entry := audits[0]
	if entry.FromStatus != models.StatusRequested || entry.ToStatus != models.StatusConfirmed {
		t.Errorf("audit edge = %s -> %s", entry.FromStatus, entry.ToStatus)
	}
	if entry.ChangedBy != models.ActorShop || entry.Reason != "accepted" {
		t.Errorf("audit actor/reason = %s/%q", entry.ChangedBy, entry.Reason)
	}
	if entry.SchedulerRunID != "" {
		t.Errorf("manual transition carries scheduler run id %q", entry.SchedulerRunID)
	}
}

// Repeating a transition to the current status succeeds without writing a
// second audit entry or bumping the version.
func TestTransitionIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusRequested, window(600, 660))

	first, err := f.engine.Transition(context.Background(), "res-1", models.StatusConfirmed, models.ActorShop, "accepted")
	if err != nil {
		t.Fatalf("first Transition: %v", err)
	}
	second, err := f.engine.Transition(context.Background(), "res-1", models.StatusConfirmed, models.ActorShop, "accepted again")
	if err != nil {
		t.Fatalf("repeat Transition: %v", err)
	}
	if second.Status != models.StatusConfirmed || second.Version != first.Version {
		t.Errorf("repeat changed row: status=%s version=%d", second.Status, second.Version)
	}

	audits, _ := f.repo.ListAuditByReservation(context.Background(), "res-1")
	if len(audits) != 1 {
		t.Errorf("audit entries = %d, want 1 after idempotent repeat", len(audits))
	}
}

func TestTransitionIllegalEdge(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusRequested, window(600, 660))

	_, err := f.engine.Transition(context.Background(), "res-1", models.StatusCompleted, models.ActorShop, "")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidTransitionError", err)
	}
	if got := f.mustGet(t, "res-1"); got.Status != models.StatusRequested || got.Version != 1 {
		t.Errorf("failed transition modified row: status=%s version=%d", got.Status, got.Version)
	}
	if audits, _ := f.repo.ListAuditByReservation(context.Background(), "res-1"); len(audits) != 0 {
		t.Errorf("failed transition wrote %d audit entries", len(audits))
	}
}

func TestTransitionUnknownReservation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Transition(context.Background(), "missing", models.StatusConfirmed, models.ActorShop, "")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

func TestCancellationQueuesRefund(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))

	got, err := f.engine.Transition(context.Background(), "res-1", models.StatusCancelledByUser, models.ActorUser, "plans changed")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.CancelledAt == nil {
		t.Error("CancelledAt not stamped")
	}
	if f.refunds.count() != 1 {
		t.Fatalf("refund calls = %d, want 1", f.refunds.count())
	}
	call := f.refunds.calls[0]
	if call.reservationID != "res-1" || call.cancellationType != models.StatusCancelledByUser {
		t.Errorf("refund call = %+v", call)
	}
}

func TestCompletionDoesNotQueueRefund(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))

	if _, err := f.engine.Transition(context.Background(), "res-1", models.StatusCompleted, models.ActorShop, ""); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if f.refunds.count() != 0 {
		t.Errorf("completion queued %d refunds", f.refunds.count())
	}
}

func TestTransitionWhileLockHeld(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusRequested, window(600, 660))
	f.locker.hold(reservationLockKey("res-1"))

	_, err := f.engine.Transition(context.Background(), "res-1", models.StatusConfirmed, models.ActorShop, "")
	var concurrent *ConcurrentModificationError
	if !errors.As(err, &concurrent) {
		t.Fatalf("error = %v, want ConcurrentModificationError", err)
	}
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))

	got, err := f.engine.CheckIn(context.Background(), "res-1", models.ActorShop)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if got.CheckedInAt == nil || !got.CheckedInAt.Equal(testNow) {
		t.Errorf("CheckedInAt = %v, want %v", got.CheckedInAt, testNow)
	}
	if got.Status != models.StatusConfirmed {
		t.Errorf("check-in changed status to %s", got.Status)
	}

	f.clock.advance(10 * time.Minute)
	again, err := f.engine.CheckIn(context.Background(), "res-1", models.ActorShop)
	if err != nil {
		t.Fatalf("repeat CheckIn: %v", err)
	}
	if !again.CheckedInAt.Equal(testNow) {
		t.Errorf("repeat check-in moved timestamp to %v", again.CheckedInAt)
	}
}

func TestCheckInRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusRequested, window(600, 660))

	_, err := f.engine.CheckIn(context.Background(), "res-1", models.ActorShop)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidTransitionError", err)
	}
}
