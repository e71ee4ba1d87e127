package reservationRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes backing the reservation queries.
func (repo *MongoReservationRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reservationIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// Conflict scans prune by shop + date + window bounds + status.
		{
			Keys: bson.D{
				{Key: "shop_id", Value: 1},
				{Key: "window.date", Value: 1},
				{Key: "window.start", Value: 1},
				{Key: "window.end", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("shop_window_status_idx"),
		},
		// Progression scheduler scans.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("status_created_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "window.date", Value: 1}},
			Options: options.Index().SetName("status_date_idx"),
		},
	}
	if _, err := repo.reservationColl.Indexes().CreateMany(ctx, reservationIndexes); err != nil {
		return fmt.Errorf("failed to create reservation indexes: %w", err)
	}

	auditIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reservation_id", Value: 1}, {Key: "occurred_at", Value: 1}},
			Options: options.Index().SetName("reservation_occurred_idx"),
		},
	}
	if _, err := repo.auditColl.Indexes().CreateMany(ctx, auditIndexes); err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}
	return nil
}
