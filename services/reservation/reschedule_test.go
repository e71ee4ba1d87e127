package reservation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"slotwise/models"
)

func TestValidateRescheduleMinNotice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))

	// Now is 09:00; with two hours of notice, 10:00 is too soon for a
	// customer but 11:30 is fine.
	v, err := f.resched.Validate(context.Background(), "res-1", window(600, 660))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Valid {
		t.Error("move inside the notice period validated")
	}
	if !strings.Contains(v.Reason, "at least") {
		t.Errorf("reason = %q, want notice-period explanation", v.Reason)
	}

	v, err = f.resched.Validate(context.Background(), "res-1", window(690, 750))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !v.Valid {
		t.Errorf("future move rejected: %s", v.Reason)
	}
}

func TestValidateRescheduleListsConflictsAndAlternatives(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))
	f.seed(t, "res-other", models.StatusConfirmed, window(720, 780))

	v, err := f.resched.Validate(context.Background(), "res-1", window(730, 790))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Valid {
		t.Fatal("overlapping move validated")
	}
	if len(v.Conflicts) != 1 || v.Conflicts[0].ID != "res-other" {
		t.Errorf("conflicts = %+v, want res-other", v.Conflicts)
	}
	if len(v.AvailableSlots) == 0 {
		t.Fatal("no alternative slots offered")
	}
	for _, slot := range v.AvailableSlots {
		if slot.Overlaps(window(720, 780)) {
			t.Errorf("offered slot %+v overlaps the blocking reservation", slot)
		}
		if slot.Duration() != 60 {
			t.Errorf("offered slot %+v does not preserve duration", slot)
		}
	}
}

func TestRescheduleMovesWindowOnly(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))

	moved, err := f.resched.Reschedule(context.Background(), "res-1", window(780, 840), models.ActorShop, "staffing change")
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if moved.Window != window(780, 840) {
		t.Errorf("window = %+v", moved.Window)
	}
	if moved.Status != seeded.Status {
		t.Errorf("reschedule changed status to %s", moved.Status)
	}
	if moved.Version != seeded.Version+1 {
		t.Errorf("version = %d, want %d", moved.Version, seeded.Version+1)
	}

	audits, _ := f.repo.ListAuditByReservation(context.Background(), "res-1")
	if len(audits) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audits))
	}
	entry := audits[0]
	if entry.Kind != models.AuditReschedule {
		t.Errorf("audit kind = %s, want reschedule", entry.Kind)
	}
	if entry.FromWindow == nil || *entry.FromWindow != window(600, 660) {
		t.Errorf("audit from window = %+v", entry.FromWindow)
	}
	if entry.ToWindow == nil || *entry.ToWindow != window(780, 840) {
		t.Errorf("audit to window = %+v", entry.ToWindow)
	}
	if entry.FromStatus != "" || entry.ToStatus != "" {
		t.Errorf("reschedule audit carries statuses %s -> %s", entry.FromStatus, entry.ToStatus)
	}
}

// Shop and system moves skip the customer notice period but still need a
// future window.
func TestRescheduleActorRules(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))

	// 10:00 today is inside the customer notice period.
	_, err := f.resched.Reschedule(context.Background(), "res-1", window(600, 660), models.ActorUser, "")
	var rejected *RescheduleRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("customer short-notice move: error = %v, want RescheduleRejectedError", err)
	}

	if _, err := f.resched.Reschedule(context.Background(), "res-1", window(600, 660), models.ActorShop, "shop move"); err != nil {
		t.Fatalf("shop short-notice move rejected: %v", err)
	}

	// A window already in the past is rejected for everyone.
	_, err = f.resched.Reschedule(context.Background(), "res-1", window(420, 480), models.ActorShop, "")
	if !errors.As(err, &rejected) {
		t.Fatalf("past-window move: error = %v, want RescheduleRejectedError", err)
	}
}

func TestRescheduleTerminalRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusCompleted, window(600, 660))

	_, err := f.resched.Reschedule(context.Background(), "res-1", window(780, 840), models.ActorShop, "")
	var rejected *RescheduleRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("error = %v, want RescheduleRejectedError", err)
	}
}

func TestRescheduleBlockedByOverlap(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-1", models.StatusConfirmed, window(600, 660))
	f.seed(t, "res-other", models.StatusRequested, window(780, 840))

	_, err := f.resched.Reschedule(context.Background(), "res-1", window(800, 860), models.ActorShop, "")
	var conflict *ConflictDetectedError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictDetectedError", err)
	}
	if got := f.mustGet(t, "res-1"); got.Window != window(600, 660) {
		t.Errorf("blocked reschedule moved the window to %+v", got.Window)
	}
}
