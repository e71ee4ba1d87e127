package reservationRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotwise/models"
)

const opTimeout = 5 * time.Second

// GetByID retrieves a reservation by id.
func (repo *MongoReservationRepo) GetByID(ctx context.Context, id string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var r models.Reservation
	err := repo.reservationColl.FindOne(ctx, bson.M{"id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching reservation %s: %w", id, err)
	}
	return &r, nil
}

// Insert persists a new reservation record.
func (repo *MongoReservationRepo) Insert(ctx context.Context, r *models.Reservation) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := repo.reservationColl.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("inserting reservation %s: %w", r.ID, err)
	}
	return nil
}

// CompareAndSwap applies mutate to a fresh copy of the reservation and writes
// it back guarded by the version column. A matched-count of zero with an
// existing row means a concurrent writer won the race.
func (repo *MongoReservationRepo) CompareAndSwap(
	ctx context.Context,
	id string,
	expectedVersion int64,
	mutate func(*models.Reservation),
) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var current models.Reservation
	err := repo.reservationColl.FindOne(ctx, bson.M{"id": id}).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching reservation %s for swap: %w", id, err)
	}
	if current.Version != expectedVersion {
		return nil, ErrVersionMismatch
	}

	mutate(&current)
	current.Version = expectedVersion + 1

	res, err := repo.reservationColl.UpdateOne(ctx,
		bson.M{"id": id, "version": expectedVersion},
		bson.M{"$set": current},
	)
	if err != nil {
		return nil, fmt.Errorf("swapping reservation %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrVersionMismatch
	}
	return &current, nil
}

// AppendAudit writes one immutable audit entry.
func (repo *MongoReservationRepo) AppendAudit(ctx context.Context, entry *models.StateAuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := repo.auditColl.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("appending audit for reservation %s: %w", entry.ReservationID, err)
	}
	return nil
}

// ListAuditByReservation returns the audit trail, oldest first.
func (repo *MongoReservationRepo) ListAuditByReservation(ctx context.Context, reservationID string) ([]models.StateAuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	cur, err := repo.auditColl.Find(ctx, bson.M{"reservation_id": reservationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing audit for reservation %s: %w", reservationID, err)
	}
	defer cur.Close(ctx)

	var entries []models.StateAuditEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding audit entries: %w", err)
	}
	return entries, nil
}
