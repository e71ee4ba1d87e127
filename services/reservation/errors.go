package reservation

import (
	"fmt"
	"strings"

	"slotwise/models"
)

// InvalidTransitionError reports a state-machine edge that does not exist.
// Never retried; surfaced to the caller as-is.
type InvalidTransitionError struct {
	ReservationID string
	From          models.ReservationStatus
	To            models.ReservationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalidTransition: reservation %s cannot move from %s to %s", e.ReservationID, e.From, e.To)
}

// ConflictDetectedError reports that a candidate window overlaps one or more
// active reservations. Carries the blockers so callers can surface them.
type ConflictDetectedError struct {
	ShopID         string
	Window         models.Window
	ConflictingIDs []string
}

func (e *ConflictDetectedError) Error() string {
	return fmt.Sprintf("conflictDetected: window [%d,%d) on %s at shop %s overlaps reservations %s",
		e.Window.Start, e.Window.End, e.Window.Date, e.ShopID, strings.Join(e.ConflictingIDs, ", "))
}

// ConcurrentModificationError reports a version race that survived the
// bounded internal retries.
type ConcurrentModificationError struct {
	ReservationID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("concurrentModification: reservation %s was modified concurrently", e.ReservationID)
}

// TransientStoreError wraps a store failure worth retrying with backoff.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transientStoreError: %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// PolicyValidationError reports malformed grace-period configuration.
// The offending config is rejected whole, never applied partially.
type PolicyValidationError struct {
	Field   string
	Message string
}

func (e *PolicyValidationError) Error() string {
	return fmt.Sprintf("policyValidationError: %s: %s", e.Field, e.Message)
}

// NotFoundError reports a missing reservation or conflict record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("notFound: %s %s", e.Kind, e.ID)
}
