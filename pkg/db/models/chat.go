package models

import "time"

// ChatSession points an actor at the order their free text is routed to.
type ChatSession struct {
	TelegramID int64     `gorm:"column:telegram_id;primaryKey;autoIncrement:false"`
	OrderID    int64     `gorm:"column:order_id;not null;index"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

type ChatMessage struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    int64     `gorm:"column:order_id;not null;index"`
	SenderID   int64     `gorm:"column:sender_id;not null"`
	Message    string    `gorm:"column:message;not null"`
	IsArchived bool      `gorm:"column:is_archived;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ChatMessage) TableName() string { return "order_chat" }

// ChatArchiveMessage is a read-only copy of a message from a closed order.
type ChatArchiveMessage struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID    int64     `gorm:"column:order_id;not null;index"`
	SenderID   int64     `gorm:"column:sender_id;not null"`
	Message    string    `gorm:"column:message;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	ArchivedAt time.Time `gorm:"column:archived_at;not null"`
}

func (ChatArchiveMessage) TableName() string { return "order_chat_archive" }
