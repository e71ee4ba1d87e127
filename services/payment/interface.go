package payment

import (
	"context"

	"slotwise/models"
)

// RefundService starts refund processing for a cancelled or no-show
// reservation. The refund amount calculation happens here; the actual money
// movement is the refund worker's job.
type RefundService interface {
	CalculateAndQueueRefund(ctx context.Context, reservationID string, cancellationType models.ReservationStatus, reason string) error
}
