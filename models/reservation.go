package models

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusRequested       ReservationStatus = "requested"
	StatusConfirmed       ReservationStatus = "confirmed"
	StatusCompleted       ReservationStatus = "completed"
	StatusCancelledByUser ReservationStatus = "cancelled_by_user"
	StatusCancelledByShop ReservationStatus = "cancelled_by_shop"
	StatusNoShow          ReservationStatus = "no_show"
)

// Active reports whether the status still occupies its slot.
func (s ReservationStatus) Active() bool {
	return s == StatusRequested || s == StatusConfirmed
}

// Window is a half-open [Start, End) time range on a single calendar day,
// expressed in minutes from midnight in the shop's business timezone.
type Window struct {
	Date  string `bson:"date" json:"date"` // "2006-01-02"
	Start int    `bson:"start" json:"start"`
	End   int    `bson:"end" json:"end"`
}

// Overlaps reports whether two windows on the same date intersect.
// Boundaries touching ([9:00,10:00) vs [10:00,11:00)) do not overlap.
func (w Window) Overlaps(other Window) bool {
	if w.Date != other.Date {
		return false
	}
	return w.Start < other.End && other.Start < w.End
}

// Duration returns the window length in minutes.
func (w Window) Duration() int {
	return w.End - w.Start
}

// StartAt resolves the window start to wall-clock time in loc.
func (w Window) StartAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", w.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(w.Start) * time.Minute), nil
}

// EndAt resolves the window end to wall-clock time in loc.
func (w Window) EndAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", w.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(w.End) * time.Minute), nil
}

// Reservation is a customer's booking of one or more services at a shop.
// All money fields are integers in currency minor units. Version increments
// on every write and backs the store's compare-and-swap.
type Reservation struct {
	ID          string   `bson:"id" json:"id"`
	ShopID      string   `bson:"shop_id" json:"shopId"`
	CustomerID  string   `bson:"customer_id" json:"customerId"`
	ServiceIDs  []string `bson:"service_ids" json:"serviceIds"`
	ServiceType string   `bson:"service_type" json:"serviceType"` // grace-period lookup key
	Window      Window   `bson:"window" json:"window"`

	Status ReservationStatus `bson:"status" json:"status"`

	TotalAmount   int `bson:"total_amount" json:"totalAmount"`
	DepositAmount int `bson:"deposit_amount" json:"depositAmount"`
	PointsUsed    int `bson:"points_used" json:"pointsUsed"`
	PointsEarned  int `bson:"points_earned" json:"pointsEarned"`

	// PaymentRef identifies the charge the refund worker operates on.
	PaymentRef string `bson:"payment_ref,omitempty" json:"paymentRef,omitempty"`

	CheckedInAt *time.Time `bson:"checked_in_at,omitempty" json:"checkedInAt,omitempty"`
	ConfirmedAt *time.Time `bson:"confirmed_at,omitempty" json:"confirmedAt,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	CancelledAt *time.Time `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
	Version   int64     `bson:"version" json:"version"`
}

// RemainingAmount is the balance due after the deposit.
func (r *Reservation) RemainingAmount() int {
	return r.TotalAmount - r.DepositAmount
}
