package users

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Repository persists actors and the admin/operator membership sets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateIfMissing(ctx context.Context, user *models.User) (bool, error)
	SetRole(ctx context.Context, telegramID int64, role enums.Role) (bool, error)
	ListByRole(ctx context.Context, role enums.Role) ([]models.User, error)
	CountByRole(ctx context.Context) (map[enums.Role]int64, error)

	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	IsOperator(ctx context.Context, telegramID int64) (bool, error)
	ListAdminIDs(ctx context.Context) ([]int64, error)
	ListOperators(ctx context.Context) ([]models.OperatorUser, error)
	AddOperator(ctx context.Context, telegramID, addedBy int64) (bool, error)
	RemoveOperator(ctx context.Context, telegramID int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateIfMissing inserts the user and reports whether a row was created.
func (r *repository) CreateIfMissing(ctx context.Context, user *models.User) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "telegram_id"}}, DoNothing: true}).
		Create(user)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) SetRole(ctx context.Context, telegramID int64, role enums.Role) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update("role", role)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListByRole(ctx context.Context, role enums.Role) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", role).
		Order("created_at DESC").
		Find(&users).Error
	return users, err
}

func (r *repository) CountByRole(ctx context.Context) (map[enums.Role]int64, error) {
	var rows []struct {
		Role  enums.Role
		Total int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("role, COUNT(*) AS total").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.Role]int64, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Total
	}
	return counts, nil
}

func (r *repository) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	return r.exists(ctx, &models.AdminUser{}, telegramID)
}

func (r *repository) IsOperator(ctx context.Context, telegramID int64) (bool, error) {
	return r.exists(ctx, &models.OperatorUser{}, telegramID)
}

func (r *repository) exists(ctx context.Context, model any, telegramID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(model).Where("telegram_id = ?", telegramID).Count(&count).Error
	return count > 0, err
}

func (r *repository) ListAdminIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.AdminUser{}).Order("telegram_id").Pluck("telegram_id", &ids).Error
	return ids, err
}

func (r *repository) ListOperators(ctx context.Context) ([]models.OperatorUser, error) {
	var ops []models.OperatorUser
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&ops).Error
	return ops, err
}

// AddOperator inserts the membership row; false means it already existed.
func (r *repository) AddOperator(ctx context.Context, telegramID, addedBy int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "telegram_id"}}, DoNothing: true}).
		Create(&models.OperatorUser{TelegramID: telegramID, AddedBy: &addedBy})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RemoveOperator(ctx context.Context, telegramID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Delete(&models.OperatorUser{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
