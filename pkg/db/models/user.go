package models

import (
	"time"

	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// User is a chat platform actor known to the service.
type User struct {
	TelegramID int64      `gorm:"column:telegram_id;primaryKey;autoIncrement:false"`
	Username   *string    `gorm:"column:username"`
	FirstName  string     `gorm:"column:first_name;not null;default:''"`
	Role       enums.Role `gorm:"column:role;not null;default:'client'"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// AdminUser membership defines the admin set.
type AdminUser struct {
	TelegramID int64     `gorm:"column:telegram_id;primaryKey;autoIncrement:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (AdminUser) TableName() string { return "admin_users" }

// OperatorUser membership defines the operator set.
type OperatorUser struct {
	TelegramID int64     `gorm:"column:telegram_id;primaryKey;autoIncrement:false"`
	AddedBy    *int64    `gorm:"column:added_by"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OperatorUser) TableName() string { return "operator_users" }
