package enums

import "fmt"

// OrderDetailedStatus is the canonical lifecycle stage of an order.
type OrderDetailedStatus string

const (
	OrderDetailedWaitingPayment   OrderDetailedStatus = "waiting_payment"
	OrderDetailedSearchingCourier OrderDetailedStatus = "searching_courier"
	OrderDetailedCourierOnWay     OrderDetailedStatus = "courier_on_way"
	OrderDetailedCourierWorking   OrderDetailedStatus = "courier_working"
	OrderDetailedCompleted        OrderDetailedStatus = "completed"
	OrderDetailedCancelled        OrderDetailedStatus = "cancelled"
)

var validOrderDetailedStatuses = []OrderDetailedStatus{
	OrderDetailedWaitingPayment,
	OrderDetailedSearchingCourier,
	OrderDetailedCourierOnWay,
	OrderDetailedCourierWorking,
	OrderDetailedCompleted,
	OrderDetailedCancelled,
}

// String implements fmt.Stringer.
func (s OrderDetailedStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderDetailedStatus.
func (s OrderDetailedStatus) IsValid() bool {
	for _, candidate := range validOrderDetailedStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s OrderDetailedStatus) IsTerminal() bool {
	return s == OrderDetailedCompleted || s == OrderDetailedCancelled
}

// Coarse derives the summary status stored alongside the detailed one.
func (s OrderDetailedStatus) Coarse() OrderStatus {
	return Coarsen(s)
}

// ParseOrderDetailedStatus converts raw input into an OrderDetailedStatus.
func ParseOrderDetailedStatus(value string) (OrderDetailedStatus, error) {
	for _, candidate := range validOrderDetailedStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order detailed status %q", value)
}

// OrderStatus is the coarse reporting status derived from OrderDetailedStatus.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var coarseByDetailed = map[OrderDetailedStatus]OrderStatus{
	OrderDetailedWaitingPayment:   OrderStatusPending,
	OrderDetailedSearchingCourier: OrderStatusPending,
	OrderDetailedCourierOnWay:     OrderStatusAccepted,
	OrderDetailedCourierWorking:   OrderStatusAccepted,
	OrderDetailedCompleted:        OrderStatusCompleted,
	OrderDetailedCancelled:        OrderStatusCancelled,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// Coarsen is the fixed many-to-one mapping from detailed to coarse status.
// Unknown values collapse to pending.
func Coarsen(detailed OrderDetailedStatus) OrderStatus {
	if coarse, ok := coarseByDetailed[detailed]; ok {
		return coarse
	}
	return OrderStatusPending
}
