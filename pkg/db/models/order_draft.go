package models

import (
	"time"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// OrderDraft holds the conversational state of an order being composed.
type OrderDraft struct {
	TelegramID int64            `gorm:"column:telegram_id;primaryKey;autoIncrement:false"`
	State      enums.DraftState `gorm:"column:state;not null"`
	BagCount   int              `gorm:"column:bag_count;not null;default:0"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderDraft) TableName() string { return "order_drafts" }
