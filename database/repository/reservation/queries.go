package reservationRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotwise/models"
)

var activeStatuses = bson.A{string(models.StatusRequested), string(models.StatusConfirmed)}

var windowSort = bson.D{{Key: "window.start", Value: 1}, {Key: "id", Value: 1}}

// FindByShopAndWindow returns active reservations overlapping the half-open
// window [w.Start, w.End) on w.Date. The overlap predicate is
// start < w.End && end > w.Start, served by the shop+window index.
func (repo *MongoReservationRepo) FindByShopAndWindow(
	ctx context.Context,
	shopID string,
	w models.Window,
	excludeID string,
) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"shop_id":      shopID,
		"window.date":  w.Date,
		"status":       bson.M{"$in": activeStatuses},
		"window.start": bson.M{"$lt": w.End},
		"window.end":   bson.M{"$gt": w.Start},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}

	cur, err := repo.reservationColl.Find(ctx, filter, options.Find().SetSort(windowSort))
	if err != nil {
		return nil, fmt.Errorf("querying overlapping reservations for shop %s: %w", shopID, err)
	}
	defer cur.Close(ctx)

	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding overlapping reservations: %w", err)
	}
	return out, nil
}

// FindActiveByShopAndDate returns all active reservations of a shop on a date.
func (repo *MongoReservationRepo) FindActiveByShopAndDate(ctx context.Context, shopID, date string) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"shop_id":     shopID,
		"window.date": date,
		"status":      bson.M{"$in": activeStatuses},
	}
	cur, err := repo.reservationColl.Find(ctx, filter, options.Find().SetSort(windowSort))
	if err != nil {
		return nil, fmt.Errorf("querying active reservations for shop %s on %s: %w", shopID, date, err)
	}
	defer cur.Close(ctx)

	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding active reservations: %w", err)
	}
	return out, nil
}

// FindRequestedCreatedBefore returns requested reservations created before
// the cutoff, oldest first.
func (repo *MongoReservationRepo) FindRequestedCreatedBefore(ctx context.Context, cutoff time.Time, limit int64) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"status":     string(models.StatusRequested),
		"created_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)

	cur, err := repo.reservationColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying expired requested reservations: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding expired requested reservations: %w", err)
	}
	return out, nil
}

// FindConfirmedByDateUpTo returns confirmed reservations whose window date is
// on or before dateCeil. Grace periods are applied by the caller.
func (repo *MongoReservationRepo) FindConfirmedByDateUpTo(ctx context.Context, dateCeil string, limit int64) ([]models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"status":      string(models.StatusConfirmed),
		"window.date": bson.M{"$lte": dateCeil},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "window.date", Value: 1}, {Key: "window.start", Value: 1}}).
		SetLimit(limit)

	cur, err := repo.reservationColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("querying due confirmed reservations: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Reservation
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding due confirmed reservations: %w", err)
	}
	return out, nil
}
