package reservation

import (
	"sort"

	"slotwise/models"
)

// Compare ranks two conflicting reservations. Negative means a keeps the
// slot over b. Tie-breaks, in order: confirmed outranks requested, earlier
// createdAt wins, higher totalAmount wins, and finally ascending reservation
// id — so the order is a strict total order and no two distinct reservations
// ever compare equal.
func Compare(a, b models.Reservation) int {
	if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
		return ra - rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	if a.TotalAmount != b.TotalAmount {
		if a.TotalAmount > b.TotalAmount {
			return -1
		}
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

func statusRank(s models.ReservationStatus) int {
	if s == models.StatusConfirmed {
		return 0
	}
	return 1
}

// Rank returns a new slice sorted winners-first by Compare. Deterministic:
// ranking the same set twice yields identical output.
func Rank(reservations []models.Reservation) []models.Reservation {
	out := make([]models.Reservation, len(reservations))
	copy(out, reservations)
	sort.Slice(out, func(i, j int) bool {
		return Compare(out[i], out[j]) < 0
	})
	return out
}
