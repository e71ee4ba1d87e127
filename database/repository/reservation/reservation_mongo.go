package reservationRepo

import (
	"go.mongodb.org/mongo-driver/mongo"

	"slotwise/database"
)

const dbName = "slotwise"

// MongoReservationRepo is the production ReservationRepository. Wrap it in
// CachedReservationRepo for read-through caching of hot lookups.
type MongoReservationRepo struct {
	reservationColl *mongo.Collection
	auditColl       *mongo.Collection
}

// NewMongoReservationRepo builds the repo on the shared Mongo client.
func NewMongoReservationRepo() *MongoReservationRepo {
	db := database.MongoClient.Database(dbName)
	return &MongoReservationRepo{
		reservationColl: db.Collection("reservations"),
		auditColl:       db.Collection("reservation_audit"),
	}
}
