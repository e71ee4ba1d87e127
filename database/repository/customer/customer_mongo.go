package customerRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"slotwise/database"
	"slotwise/models"
)

// ErrNotFound means no customer exists with the given id.
var ErrNotFound = errors.New("customer not found")

// CustomerRepository exposes the customer lookups the engine needs.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*models.Customer, error)
	FCMToken(ctx context.Context, id string) (string, error)
}

// MongoCustomerRepo is the production CustomerRepository.
type MongoCustomerRepo struct {
	coll *mongo.Collection
}

func NewMongoCustomerRepo() *MongoCustomerRepo {
	return &MongoCustomerRepo{
		coll: database.MongoClient.Database("slotwise").Collection("customers"),
	}
}

func (repo *MongoCustomerRepo) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Customer
	err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching customer %s: %w", id, err)
	}
	return &c, nil
}

func (repo *MongoCustomerRepo) FCMToken(ctx context.Context, id string) (string, error) {
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if c.FCMToken == "" {
		return "", fmt.Errorf("customer %s has no FCM token", id)
	}
	return c.FCMToken, nil
}
