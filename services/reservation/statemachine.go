package reservation

import "slotwise/models"

// legalEdges is the complete transition graph. Absence means the edge is
// forbidden; terminal states have no outgoing edges.
var legalEdges = map[models.ReservationStatus]map[models.ReservationStatus]bool{
	models.StatusRequested: {
		models.StatusConfirmed:       true,
		models.StatusCancelledByUser: true,
		models.StatusCancelledByShop: true, // includes auto-expiry
	},
	models.StatusConfirmed: {
		models.StatusCompleted:       true,
		models.StatusNoShow:          true,
		models.StatusCancelledByUser: true,
		models.StatusCancelledByShop: true,
	},
	models.StatusCompleted:       {},
	models.StatusCancelledByUser: {},
	models.StatusCancelledByShop: {},
	models.StatusNoShow:          {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.ReservationStatus) bool {
	return legalEdges[from][to]
}

// IsTerminal reports whether no transition leaves the status.
func IsTerminal(s models.ReservationStatus) bool {
	return len(legalEdges[s]) == 0
}

// releasesSlot reports whether the transition frees the reservation's window
// for other bookings.
func releasesSlot(to models.ReservationStatus) bool {
	switch to {
	case models.StatusCancelledByUser, models.StatusCancelledByShop, models.StatusNoShow:
		return true
	}
	return false
}

// triggersRefund reports whether the transition starts refund-eligibility
// calculation.
func triggersRefund(to models.ReservationStatus) bool {
	return releasesSlot(to)
}
