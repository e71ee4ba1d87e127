package models

import "time"

// ConflictStatus marks whether a conflict record still needs resolution.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// ResolutionStrategy selects how an open conflict is re-partitioned.
type ResolutionStrategy string

const (
	// StrategyKeepWinner keeps the highest-ranked reservation and cancels
	// the rest with refunds.
	StrategyKeepWinner ResolutionStrategy = "keep_winner"
	// StrategyRescheduleLosers moves lower-ranked reservations into free
	// windows; falls back to cancellation when none exist.
	StrategyRescheduleLosers ResolutionStrategy = "reschedule_losers"
	// StrategySplit shrinks loser windows around the winner when policy
	// allows, otherwise reschedules or cancels.
	StrategySplit ResolutionStrategy = "split"
)

// ConflictRecord captures a set of active reservations whose windows overlap
// for the same shop. Created by the detector, closed by the resolver.
type ConflictRecord struct {
	ID             string             `bson:"id" json:"id"`
	ShopID         string             `bson:"shop_id" json:"shopId"`
	Window         Window             `bson:"window" json:"window"`
	ReservationIDs []string           `bson:"reservation_ids" json:"reservationIds"`
	Status         ConflictStatus     `bson:"status" json:"status"`
	Strategy       ResolutionStrategy `bson:"strategy,omitempty" json:"strategy,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	ResolvedAt     *time.Time         `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`
}
