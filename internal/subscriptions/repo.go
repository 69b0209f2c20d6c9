package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
)

// Repository persists subscriptions and their daily usage.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindActiveForClient(ctx context.Context, clientID int64, today time.Time) (*models.Subscription, error)
	ListActive(ctx context.Context, today time.Time) ([]models.Subscription, error)
	RecordUsage(ctx context.Context, id uuid.UUID, version int64, used int, day time.Time) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindActiveForClient returns the active subscription with the latest end date.
func (r *repository) FindActiveForClient(ctx context.Context, clientID int64, today time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("client_id = ? AND is_active = ? AND end_date >= ?", clientID, true, today).
		Order("end_date DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListActive(ctx context.Context, today time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND end_date >= ?", true, today).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// RecordUsage writes the new daily usage only if nobody else did since version was read.
func (r *repository) RecordUsage(ctx context.Context, id uuid.UUID, version int64, used int, day time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND usage_version = ?", id, version).
		Updates(map[string]any{
			"bags_used_today": used,
			"last_order_date": day,
			"usage_version":   gorm.Expr("usage_version + 1"),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
