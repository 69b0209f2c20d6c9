package models

import (
	"time"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Order is a single pickup request. Status is always derived from DetailedStatus.
type Order struct {
	ID                  int64                     `gorm:"column:id;primaryKey;autoIncrement"`
	ClientID            int64                     `gorm:"column:client_id;not null;index"`
	CourierID           *int64                    `gorm:"column:courier_id;index"`
	Address             string                    `gorm:"column:address;not null"`
	Description         string                    `gorm:"column:description;not null;default:''"`
	Price               int64                     `gorm:"column:price;not null;default:0"`
	BagCount            int                       `gorm:"column:bag_count;not null;default:1"`
	IsSubscriptionOrder bool                      `gorm:"column:is_subscription_order;not null;default:false"`
	Status              enums.OrderStatus         `gorm:"column:status;not null"`
	DetailedStatus      enums.OrderDetailedStatus `gorm:"column:detailed_status;not null;index"`
	PaymentStatus       enums.PaymentStatus       `gorm:"column:payment_status;not null"`
	PaymentID           *string                   `gorm:"column:payment_id"`
	PaymentURL          *string                   `gorm:"column:payment_url"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	AcceptedAt          *time.Time                `gorm:"column:accepted_at"`
	CompletedAt         *time.Time                `gorm:"column:completed_at"`
	PaidAt              *time.Time                `gorm:"column:paid_at"`
}

func (Order) TableName() string { return "orders" }

// IsBoundCourier reports whether actorID is the courier that accepted the order.
func (o Order) IsBoundCourier(actorID int64) bool {
	return o.CourierID != nil && *o.CourierID == actorID
}

// CourierStats accumulates per-courier totals on completion.
type CourierStats struct {
	CourierID     int64     `gorm:"column:courier_id;primaryKey;autoIncrement:false"`
	TotalOrders   int64     `gorm:"column:total_orders;not null;default:0"`
	TotalEarnings int64     `gorm:"column:total_earnings;not null;default:0"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CourierStats) TableName() string { return "courier_stats" }

// Rating is the client's score for a completed order.
type Rating struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   int64     `gorm:"column:order_id;not null;uniqueIndex"`
	ClientID  int64     `gorm:"column:client_id;not null"`
	CourierID int64     `gorm:"column:courier_id;not null;index"`
	Rating    int       `gorm:"column:rating;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Rating) TableName() string { return "ratings" }
