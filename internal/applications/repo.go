package applications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Repository persists courier applications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, app *models.CourierApplication) error
	FindPending(ctx context.Context, telegramID int64) (*models.CourierApplication, error)
	Decide(ctx context.Context, telegramID int64, status enums.ApplicationStatus, reviewer int64, at time.Time) (*models.CourierApplication, error)
	ListPending(ctx context.Context) ([]models.CourierApplication, error)
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

func (r *repository) Create(ctx context.Context, app *models.CourierApplication) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	if app.Status == "" {
		app.Status = enums.ApplicationPending
	}
	return r.db.WithContext(ctx).Create(app).Error
}

func (r *repository) FindPending(ctx context.Context, telegramID int64) (*models.CourierApplication, error) {
	var app models.CourierApplication
	err := r.db.WithContext(ctx).
		Where("telegram_id = ? AND status = ?", telegramID, enums.ApplicationPending).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// Decide moves the pending application of telegramID to status. It returns
// gorm.ErrRecordNotFound when nothing was pending.
func (r *repository) Decide(ctx context.Context, telegramID int64, status enums.ApplicationStatus, reviewer int64, at time.Time) (*models.CourierApplication, error) {
	app, err := r.FindPending(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).
		Model(&models.CourierApplication{}).
		Where("id = ? AND status = ?", app.ID, enums.ApplicationPending).
		Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewer,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	app.Status = status
	app.ReviewedBy = &reviewer
	app.ReviewedAt = &at
	return app, nil
}

func (r *repository) ListPending(ctx context.Context) ([]models.CourierApplication, error) {
	var apps []models.CourierApplication
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ApplicationPending).
		Order("created_at ASC").
		Find(&apps).Error
	return apps, err
}
