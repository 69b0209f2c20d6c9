// Package drafts keeps the per-actor conversation state used while composing an order.
package drafts

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

// Store persists drafts. A missing draft is returned as nil without error.
type Store interface {
	Get(ctx context.Context, telegramID int64) (*models.OrderDraft, error)
	AwaitCustomBags(ctx context.Context, telegramID int64) error
	AwaitAddress(ctx context.Context, telegramID int64, bags int) error
	Clear(ctx context.Context, telegramID int64) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Get(ctx context.Context, telegramID int64) (*models.OrderDraft, error) {
	var draft models.OrderDraft
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order draft")
	}
	return &draft, nil
}

func (s *store) AwaitCustomBags(ctx context.Context, telegramID int64) error {
	return s.put(ctx, models.OrderDraft{TelegramID: telegramID, State: enums.DraftWaitingCustomBags})
}

func (s *store) AwaitAddress(ctx context.Context, telegramID int64, bags int) error {
	return s.put(ctx, models.OrderDraft{TelegramID: telegramID, State: enums.DraftWaitingAddress, BagCount: bags})
}

func (s *store) put(ctx context.Context, draft models.OrderDraft) error {
	draft.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "bag_count", "updated_at"}),
		}).
		Create(&draft).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order draft")
	}
	return nil
}

func (s *store) Clear(ctx context.Context, telegramID int64) error {
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Delete(&models.OrderDraft{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear order draft")
	}
	return nil
}

// DeleteStale removes drafts untouched since cutoff.
func (s *store) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.OrderDraft{})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete stale drafts")
	}
	return res.RowsAffected, nil
}
