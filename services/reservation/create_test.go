package reservation

import (
	"context"
	"errors"
	"testing"

	"slotwise/models"
)

func createInput(w models.Window) CreateReservationInput {
	return CreateReservationInput{
		ShopID:        "shop-1",
		CustomerID:    "cust-9",
		ServiceIDs:    []string{"svc-cut"},
		ServiceType:   "haircut",
		Window:        w,
		TotalAmount:   30000,
		DepositAmount: 10000,
	}
}

func TestCreateStoresRequestedReservation(t *testing.T) {
	f := newFixture(t)

	r, err := f.service.Create(context.Background(), createInput(window(600, 660)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.Status != models.StatusRequested {
		t.Errorf("status = %s, want requested", r.Status)
	}
	if r.Version != 1 {
		t.Errorf("version = %d, want 1", r.Version)
	}
	if r.ID == "" {
		t.Error("no id assigned")
	}
	if got := f.mustGet(t, r.ID); got.Window != r.Window {
		t.Errorf("stored window = %+v", got.Window)
	}
}

// The auto-prevent path: an overlapping active reservation rejects the create
// and names the blockers.
func TestCreateRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-blocker", models.StatusConfirmed, window(600, 660))

	_, err := f.service.Create(context.Background(), createInput(window(630, 690)))
	var conflict *ConflictDetectedError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictDetectedError", err)
	}
	if len(conflict.ConflictingIDs) != 1 || conflict.ConflictingIDs[0] != "res-blocker" {
		t.Errorf("conflicting ids = %v, want [res-blocker]", conflict.ConflictingIDs)
	}

	rows, _ := f.repo.FindActiveByShopAndDate(context.Background(), "shop-1", testDay)
	if len(rows) != 1 {
		t.Errorf("rejected create still stored a row: %d rows", len(rows))
	}
}

// Half-open windows: [10:00,11:00) and [11:00,12:00) do not conflict.
func TestCreateAllowsBackToBack(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-before", models.StatusConfirmed, window(600, 660))

	if _, err := f.service.Create(context.Background(), createInput(window(660, 720))); err != nil {
		t.Fatalf("back-to-back create rejected: %v", err)
	}
}

func TestCreateIgnoresReleasedSlots(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "res-cancelled", models.StatusCancelledByUser, window(600, 660))
	f.seed(t, "res-noshow", models.StatusNoShow, window(600, 660))

	if _, err := f.service.Create(context.Background(), createInput(window(600, 660))); err != nil {
		t.Fatalf("create over released slots rejected: %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t)

	bad := createInput(window(660, 600))
	_, err := f.service.Create(context.Background(), bad)
	var policyErr *PolicyValidationError
	if !errors.As(err, &policyErr) {
		t.Fatalf("inverted window: error = %v, want PolicyValidationError", err)
	}

	overpaid := createInput(window(600, 660))
	overpaid.DepositAmount = overpaid.TotalAmount + 1
	if _, err := f.service.Create(context.Background(), overpaid); !errors.As(err, &policyErr) {
		t.Fatalf("deposit over total: error = %v, want PolicyValidationError", err)
	}
}
