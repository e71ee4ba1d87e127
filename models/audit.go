package models

import "time"

// Actor identifies who caused a state change.
type Actor string

const (
	ActorUser   Actor = "user"
	ActorShop   Actor = "shop"
	ActorSystem Actor = "system"
	ActorAdmin  Actor = "admin"
)

// AuditKind distinguishes status transitions from window moves.
type AuditKind string

const (
	AuditTransition AuditKind = "transition"
	AuditReschedule AuditKind = "reschedule"
)

// StateAuditEntry is an append-only record of a reservation change.
// Transition entries carry from/to statuses; reschedule entries carry
// from/to windows with the status unchanged.
type StateAuditEntry struct {
	ID            string            `bson:"id" json:"id"`
	ReservationID string            `bson:"reservation_id" json:"reservationId"`
	Kind          AuditKind         `bson:"kind" json:"kind"`
	FromStatus    ReservationStatus `bson:"from_status,omitempty" json:"fromStatus,omitempty"`
	ToStatus      ReservationStatus `bson:"to_status,omitempty" json:"toStatus,omitempty"`
	FromWindow    *Window           `bson:"from_window,omitempty" json:"fromWindow,omitempty"`
	ToWindow      *Window           `bson:"to_window,omitempty" json:"toWindow,omitempty"`
	ChangedBy     Actor             `bson:"changed_by" json:"changedBy"`
	Reason        string            `bson:"reason,omitempty" json:"reason,omitempty"`
	OccurredAt    time.Time         `bson:"occurred_at" json:"occurredAt"`
	// SchedulerRunID is set only for automatic transitions.
	SchedulerRunID string `bson:"scheduler_run_id,omitempty" json:"schedulerRunId,omitempty"`
}
