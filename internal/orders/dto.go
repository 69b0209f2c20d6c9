package orders

import (
	"github.com/angelmondragon/courierbot-backend/internal/subscriptions"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Change is the write half of a conditional transition.
type Change struct {
	To               enums.OrderDetailedStatus
	RequireNoCourier bool
	RequireCourier   *int64
	RequirePayment   *enums.PaymentStatus
	Fields           map[string]any
}

// EventKind names a lifecycle event delivered to the Notifier.
type EventKind string

const (
	EventCreated          EventKind = "created"
	EventPaymentConfirmed EventKind = "payment_confirmed"
	EventAccepted         EventKind = "accepted"
	EventWorkStarted      EventKind = "work_started"
	EventCompleted        EventKind = "completed"
	EventCancelled        EventKind = "cancelled"
	EventStatusForced     EventKind = "status_forced"
)

// Event carries the order as it was after the committed transition.
type Event struct {
	Kind     EventKind
	Order    models.Order
	ActorID  int64
	Previous enums.OrderDetailedStatus
}

type CreateInput struct {
	ClientID int64
	Address  string
	Bags     int
}

// CreateResult reports the stored order and, for paid orders, whether the
// payment link could be produced.
type CreateResult struct {
	Order      models.Order
	Covered    bool
	PaymentErr error
}

// Preview is the price shown before the client confirms an address.
type Preview struct {
	Bags    int
	Price   int64
	Covered bool
	Reason  subscriptions.Reason
}

// CourierSummary backs the courier statistics screen.
type CourierSummary struct {
	CourierID     int64
	TotalOrders   int64
	TotalEarnings int64
	AverageRating float64
	RatingsCount  int64
	AverageCheck  float64
}

// Totals are order aggregates for the admin dashboard.
type Totals struct {
	Orders    int64
	Pending   int64
	Completed int64
	Active    int64
	Revenue   int64
}

// OperatorSummary backs the operator statistics screen.
type OperatorSummary struct {
	Pending        int64
	InProgress     int64
	CompletedToday int64
}

// AverageCheck is revenue per completed order.
func (t Totals) AverageCheck() float64 {
	if t.Completed == 0 {
		return 0
	}
	return float64(t.Revenue) / float64(t.Completed)
}
