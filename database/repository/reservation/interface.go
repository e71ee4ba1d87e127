package reservationRepo

import (
	"context"
	"time"

	"slotwise/models"
)

// ReservationRepository is the persistence contract for reservation rows and
// their append-only audit trail. The store exclusively owns reservation rows;
// all status/window writes go through CompareAndSwap.
type ReservationRepository interface {
	// GetByID retrieves a reservation by its unique ID.
	GetByID(ctx context.Context, id string) (*models.Reservation, error)
	// Insert persists a new reservation record.
	Insert(ctx context.Context, r *models.Reservation) error
	// FindByShopAndWindow returns active (requested/confirmed) reservations
	// of a shop overlapping the half-open window, ordered by start then id.
	// excludeID, when non-empty, removes that reservation from the result.
	FindByShopAndWindow(ctx context.Context, shopID string, w models.Window, excludeID string) ([]models.Reservation, error)
	// FindActiveByShopAndDate returns all active reservations of a shop on
	// a date, ordered by start then id. Used by the conflict scanner and
	// the availability prober.
	FindActiveByShopAndDate(ctx context.Context, shopID, date string) ([]models.Reservation, error)
	// CompareAndSwap re-reads the reservation, applies mutate, and writes it
	// back only if the stored version still equals expectedVersion. Returns
	// ErrVersionMismatch when another writer got there first.
	CompareAndSwap(ctx context.Context, id string, expectedVersion int64, mutate func(*models.Reservation)) (*models.Reservation, error)

	// AppendAudit writes one immutable audit entry.
	AppendAudit(ctx context.Context, entry *models.StateAuditEntry) error
	// ListAuditByReservation returns a reservation's audit trail, oldest first.
	ListAuditByReservation(ctx context.Context, reservationID string) ([]models.StateAuditEntry, error)

	// FindRequestedCreatedBefore returns requested reservations created
	// before the cutoff, oldest first, capped at limit.
	FindRequestedCreatedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]models.Reservation, error)
	// FindConfirmedByDateUpTo returns confirmed reservations whose window
	// date is on or before dateCeil, capped at limit. The progression
	// scheduler applies grace periods in-process on top of this coarse scan.
	FindConfirmedByDateUpTo(ctx context.Context, dateCeil string, limit int64) ([]models.Reservation, error)
}
