package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Subscription grants a client up to two free bags per eligible day.
type Subscription struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey"`
	ClientID      int64                  `gorm:"column:client_id;not null;index"`
	Type          enums.SubscriptionType `gorm:"column:type;not null"`
	Price         int64                  `gorm:"column:price;not null"`
	StartDate     time.Time              `gorm:"column:start_date;not null"`
	EndDate       time.Time              `gorm:"column:end_date;not null"`
	IsActive      bool                   `gorm:"column:is_active;not null;default:true"`
	BagsUsedToday int                    `gorm:"column:bags_used_today;not null;default:0"`
	LastOrderDate *time.Time             `gorm:"column:last_order_date"`
	UsageVersion  int64                  `gorm:"column:usage_version;not null;default:0"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string { return "subscriptions" }
