package reservationRepo

import "errors"

var (
	// ErrNotFound means no reservation exists with the given id.
	ErrNotFound = errors.New("reservation not found")
	// ErrVersionMismatch means a compare-and-swap lost to a concurrent writer.
	ErrVersionMismatch = errors.New("reservation version mismatch")
)
