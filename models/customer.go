package models

import "time"

// Customer is the minimal profile the engine needs: identity plus the FCM
// token push delivery targets. Account management lives elsewhere.
type Customer struct {
	ID        string    `bson:"id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	FCMToken  string    `bson:"fcm_token,omitempty" json:"fcmToken,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}
