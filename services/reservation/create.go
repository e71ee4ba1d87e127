package reservation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"slotwise/models"
)

// Create persists a new requested reservation. This is the auto-prevent
// path: when the candidate window overlaps an existing active reservation
// the create is rejected with ConflictDetectedError and nothing is stored.
func (s *DefaultReservationService) Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error) {
	if input.Window.Start >= input.Window.End {
		return nil, &PolicyValidationError{
			Field:   "window",
			Message: "startTime must be before endTime",
		}
	}
	if input.DepositAmount > input.TotalAmount {
		return nil, &PolicyValidationError{
			Field:   "depositAmount",
			Message: "deposit cannot exceed total amount",
		}
	}

	// Serialize creates per shop+date so two concurrent bookings of the
	// same slot cannot both pass the overlap check.
	lock, err := s.Locker.Obtain(ctx, "lock:shopday:"+input.ShopID+":"+input.Window.Date, lockTTL)
	if err != nil {
		return nil, &TransientStoreError{Op: "acquire shop-day lock", Err: err}
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.Logger.Warn("failed to release shop-day lock",
				zap.String("shopID", input.ShopID), zap.Error(err))
		}
	}()

	blockers, err := s.Detector.Detect(ctx, input.ShopID, input.Window, "")
	if err != nil {
		return nil, err
	}
	if len(blockers) > 0 {
		return nil, &ConflictDetectedError{
			ShopID:         input.ShopID,
			Window:         input.Window,
			ConflictingIDs: reservationIDs(blockers),
		}
	}

	now := s.Clock.Now()
	r := &models.Reservation{
		ID:            uuid.New().String(),
		ShopID:        input.ShopID,
		CustomerID:    input.CustomerID,
		ServiceIDs:    input.ServiceIDs,
		ServiceType:   input.ServiceType,
		Window:        input.Window,
		Status:        models.StatusRequested,
		TotalAmount:   input.TotalAmount,
		DepositAmount: input.DepositAmount,
		PointsUsed:    input.PointsUsed,
		PaymentRef:    input.PaymentRef,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if err := s.Repo.Insert(ctx, r); err != nil {
		return nil, &TransientStoreError{Op: "insert reservation", Err: err}
	}

	s.Logger.Info("reservation requested",
		zap.String("reservationID", r.ID),
		zap.String("shopID", r.ShopID),
		zap.String("date", r.Window.Date),
		zap.Int("start", r.Window.Start),
		zap.Int("end", r.Window.End))
	return r, nil
}
