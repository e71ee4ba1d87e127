package conflictRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"slotwise/database"
	"slotwise/models"
)

const (
	dbName    = "slotwise"
	opTimeout = 5 * time.Second
)

// MongoConflictRepo is the production ConflictRepository.
type MongoConflictRepo struct {
	coll *mongo.Collection
}

func NewMongoConflictRepo() *MongoConflictRepo {
	return &MongoConflictRepo{
		coll: database.MongoClient.Database(dbName).Collection("conflicts"),
	}
}

func (repo *MongoConflictRepo) GetByID(ctx context.Context, id string) (*models.ConflictRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rec models.ConflictRecord
	err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching conflict %s: %w", id, err)
	}
	return &rec, nil
}

// UpsertOpen reuses an existing open record spanning the same shop+window so
// repeated scans do not pile up duplicates.
func (repo *MongoConflictRepo) UpsertOpen(ctx context.Context, record *models.ConflictRecord) (*models.ConflictRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"shop_id":      record.ShopID,
		"status":       string(models.ConflictOpen),
		"window.date":  record.Window.Date,
		"window.start": record.Window.Start,
		"window.end":   record.Window.End,
	}

	var existing models.ConflictRecord
	err := repo.coll.FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		update := bson.M{"$set": bson.M{"reservation_ids": record.ReservationIDs}}
		if _, err := repo.coll.UpdateOne(ctx, bson.M{"id": existing.ID}, update); err != nil {
			return nil, fmt.Errorf("refreshing conflict %s: %w", existing.ID, err)
		}
		existing.ReservationIDs = record.ReservationIDs
		return &existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("looking up open conflict: %w", err)
	}

	if _, err := repo.coll.InsertOne(ctx, record); err != nil {
		return nil, fmt.Errorf("inserting conflict %s: %w", record.ID, err)
	}
	return record, nil
}

func (repo *MongoConflictRepo) ListOpen(ctx context.Context, shopID string, limit int64) ([]models.ConflictRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"status": string(models.ConflictOpen)}
	if shopID != "" {
		filter["shop_id"] = shopID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit)

	cur, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing open conflicts: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.ConflictRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding conflicts: %w", err)
	}
	return out, nil
}

func (repo *MongoConflictRepo) MarkResolved(ctx context.Context, id string, strategy models.ResolutionStrategy, resolvedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":      string(models.ConflictResolved),
		"strategy":    string(strategy),
		"resolved_at": resolvedAt,
	}}
	res, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("resolving conflict %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureIndexes creates the indexes backing conflict queries.
func (repo *MongoConflictRepo) EnsureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		{
			Keys:    bson.D{{Key: "shop_id", Value: 1}, {Key: "status", Value: 1}, {Key: "window.date", Value: 1}},
			Options: options.Index().SetName("shop_status_date_idx"),
		},
	}
	if _, err := repo.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create conflict indexes: %w", err)
	}
	return nil
}
