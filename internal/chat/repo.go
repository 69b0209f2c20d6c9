package chat

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Repository persists chat sessions, live messages and the archive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertSession(ctx context.Context, telegramID, orderID int64) error
	FindSession(ctx context.Context, telegramID int64) (*models.ChatSession, error)
	DeleteSession(ctx context.Context, telegramID int64) error
	DeleteSessionsForOrder(ctx context.Context, orderID int64, actors ...int64) (int64, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, orderID int64, limit int) ([]models.ChatMessage, error)
	RecentMessages(ctx context.Context, orderID int64, limit int) ([]models.ChatMessage, error)
	CountLive(ctx context.Context, orderID int64) (int64, error)
	ListArchived(ctx context.Context, orderID int64) ([]models.ChatArchiveMessage, error)
	ArchiveClosedBefore(ctx context.Context, cutoff, archivedAt time.Time) (int64, error)
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

func (r *repository) UpsertSession(ctx context.Context, telegramID, orderID int64) error {
	session := models.ChatSession{TelegramID: telegramID, OrderID: orderID, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"order_id", "updated_at"}),
		}).
		Create(&session).Error
}

func (r *repository) FindSession(ctx context.Context, telegramID int64) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) DeleteSession(ctx context.Context, telegramID int64) error {
	return r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Delete(&models.ChatSession{}).Error
}

// DeleteSessionsForOrder removes sessions pointing at orderID. When actors are
// given only their sessions are removed.
func (r *repository) DeleteSessionsForOrder(ctx context.Context, orderID int64, actors ...int64) (int64, error) {
	q := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if len(actors) > 0 {
		q = q.Where("telegram_id IN ?", actors)
	}
	res := q.Delete(&models.ChatSession{})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListMessages returns the oldest live messages first.
func (r *repository) ListMessages(ctx context.Context, orderID int64, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND is_archived = ?", orderID, false).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// RecentMessages returns the newest limit messages in chronological order.
func (r *repository) RecentMessages(ctx context.Context, orderID int64, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *repository) CountLive(ctx context.Context, orderID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("order_id = ? AND is_archived = ?", orderID, false).
		Count(&count).Error
	return count, err
}

func (r *repository) ListArchived(ctx context.Context, orderID int64) ([]models.ChatArchiveMessage, error) {
	var msgs []models.ChatArchiveMessage
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

// ArchiveClosedBefore copies live messages of terminal orders last touched
// before cutoff into the archive and flags the originals. Must run in a tx.
func (r *repository) ArchiveClosedBefore(ctx context.Context, cutoff, archivedAt time.Time) (int64, error) {
	terminal := []enums.OrderDetailedStatus{enums.OrderDetailedCompleted, enums.OrderDetailedCancelled}
	db := r.db.WithContext(ctx)

	closed := db.Model(&models.Order{}).
		Select("id").
		Where("detailed_status IN ? AND updated_at < ?", terminal, cutoff)

	copied := db.Exec(`INSERT INTO order_chat_archive (order_id, sender_id, message, created_at, archived_at)
SELECT order_id, sender_id, message, created_at, ?
FROM order_chat
WHERE is_archived = ? AND order_id IN (?)`, archivedAt, false, closed)
	if copied.Error != nil {
		return 0, copied.Error
	}

	flagged := db.Model(&models.ChatMessage{}).
		Where("is_archived = ? AND order_id IN (?)", false, closed).
		Update("is_archived", true)
	if flagged.Error != nil {
		return 0, flagged.Error
	}
	return flagged.RowsAffected, nil
}
