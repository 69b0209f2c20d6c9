package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// CourierApplication is a request from a client to become a courier.
type CourierApplication struct {
	ID         uuid.UUID               `gorm:"type:uuid;primaryKey"`
	TelegramID int64                   `gorm:"column:telegram_id;not null;index"`
	Status     enums.ApplicationStatus `gorm:"column:status;not null;default:'pending'"`
	ReviewedBy *int64                  `gorm:"column:reviewed_by"`
	ReviewedAt *time.Time              `gorm:"column:reviewed_at"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (CourierApplication) TableName() string { return "courier_applications" }
