package reservation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	reservationRepo "slotwise/database/repository/reservation"
	"slotwise/models"
)

// CreateReservationInput is the payload for a new booking request.
type CreateReservationInput struct {
	ShopID        string        `json:"shopId" binding:"required"`
	CustomerID    string        `json:"customerId" binding:"required"`
	ServiceIDs    []string      `json:"serviceIds" binding:"required,min=1"`
	ServiceType   string        `json:"serviceType" binding:"required"`
	Window        models.Window `json:"window" binding:"required"`
	TotalAmount   int           `json:"totalAmount" binding:"min=0"`
	DepositAmount int           `json:"depositAmount" binding:"min=0"`
	PointsUsed    int           `json:"pointsUsed" binding:"min=0"`
	PaymentRef    string        `json:"paymentRef"`
}

// ReservationService is the booking-facing surface of the lifecycle engine.
type ReservationService interface {
	// Create persists a new requested reservation, rejecting it with
	// ConflictDetectedError when the window overlaps an active reservation.
	Create(ctx context.Context, input CreateReservationInput) (*models.Reservation, error)
	// Get retrieves a reservation by id.
	Get(ctx context.Context, id string) (*models.Reservation, error)
	// Transition moves a reservation along a legal state-machine edge.
	Transition(ctx context.Context, id string, to models.ReservationStatus, actor models.Actor, reason string) (*models.Reservation, error)
	// CheckIn records the customer's arrival.
	CheckIn(ctx context.Context, id string, actor models.Actor) (*models.Reservation, error)
	// ValidateReschedule checks a proposed window without moving anything.
	ValidateReschedule(ctx context.Context, id string, newWindow models.Window) (*RescheduleValidation, error)
	// Reschedule atomically moves a reservation to a validated window.
	Reschedule(ctx context.Context, id string, newWindow models.Window, actor models.Actor, reason string) (*models.Reservation, error)
	// Audit returns the reservation's change history, oldest first.
	Audit(ctx context.Context, id string) ([]models.StateAuditEntry, error)
}

// DefaultReservationService wires the engine components behind the service
// interface. Construct once in main and share.
type DefaultReservationService struct {
	Repo     reservationRepo.ReservationRepository
	Engine   *Engine
	Detector *Detector
	Resched  *Rescheduler
	Locker   Locker
	Clock    Clock
	Logger   *zap.Logger
}

var _ ReservationService = (*DefaultReservationService)(nil)

func (s *DefaultReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, reservationRepo.ErrNotFound) {
		return nil, &NotFoundError{Kind: "reservation", ID: id}
	}
	if err != nil {
		return nil, &TransientStoreError{Op: "read reservation", Err: err}
	}
	return r, nil
}

func (s *DefaultReservationService) Transition(ctx context.Context, id string, to models.ReservationStatus, actor models.Actor, reason string) (*models.Reservation, error) {
	return s.Engine.Transition(ctx, id, to, actor, reason)
}

func (s *DefaultReservationService) CheckIn(ctx context.Context, id string, actor models.Actor) (*models.Reservation, error) {
	return s.Engine.CheckIn(ctx, id, actor)
}

func (s *DefaultReservationService) ValidateReschedule(ctx context.Context, id string, newWindow models.Window) (*RescheduleValidation, error) {
	return s.Resched.Validate(ctx, id, newWindow)
}

func (s *DefaultReservationService) Reschedule(ctx context.Context, id string, newWindow models.Window, actor models.Actor, reason string) (*models.Reservation, error) {
	return s.Resched.Reschedule(ctx, id, newWindow, actor, reason)
}

func (s *DefaultReservationService) Audit(ctx context.Context, id string) ([]models.StateAuditEntry, error) {
	entries, err := s.Repo.ListAuditByReservation(ctx, id)
	if err != nil {
		return nil, &TransientStoreError{Op: "list audit", Err: err}
	}
	return entries, nil
}
