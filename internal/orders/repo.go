package orders

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

var terminalStatuses = []enums.OrderDetailedStatus{enums.OrderDetailedCompleted, enums.OrderDetailedCancelled}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	order.Status = enums.Coarsen(order.DetailedStatus)
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Transition moves the order out of from only if it is still there. The coarse
// status is always recomputed from the target.
func (r *repository) Transition(ctx context.Context, id int64, from enums.OrderDetailedStatus, change Change) (bool, error) {
	updates := map[string]any{
		"detailed_status": change.To,
		"status":          enums.Coarsen(change.To),
	}
	for k, v := range change.Fields {
		updates[k] = v
	}

	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND detailed_status = ?", id, from)
	if change.RequireNoCourier {
		q = q.Where("courier_id IS NULL")
	}
	if change.RequireCourier != nil {
		q = q.Where("courier_id = ?", *change.RequireCourier)
	}
	if change.RequirePayment != nil {
		q = q.Where("payment_status = ?", *change.RequirePayment)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetPayment stores the provider payment while the order still awaits it.
func (r *repository) SetPayment(ctx context.Context, id int64, paymentID, paymentURL string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND detailed_status = ? AND payment_status = ?", id, enums.OrderDetailedWaitingPayment, enums.PaymentStatusPending).
		Updates(map[string]any{"payment_id": paymentID, "payment_url": paymentURL})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListAvailable(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("detailed_status = ? AND courier_id IS NULL", enums.OrderDetailedSearchingCourier).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *repository) ListForCourier(ctx context.Context, courierID int64, statuses []enums.OrderDetailedStatus, limit int) ([]models.Order, error) {
	return r.list(ctx, r.db.Where("courier_id = ?", courierID), statuses, limit)
}

func (r *repository) ListForClient(ctx context.Context, clientID int64, statuses []enums.OrderDetailedStatus, limit int) ([]models.Order, error) {
	return r.list(ctx, r.db.Where("client_id = ?", clientID), statuses, limit)
}

func (r *repository) ListByStatus(ctx context.Context, statuses []enums.OrderDetailedStatus, limit int) ([]models.Order, error) {
	return r.list(ctx, r.db, statuses, limit)
}

func (r *repository) list(ctx context.Context, q *gorm.DB, statuses []enums.OrderDetailedStatus, limit int) ([]models.Order, error) {
	q = q.WithContext(ctx)
	if len(statuses) > 0 {
		q = q.Where("detailed_status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var orders []models.Order
	err := q.Order("created_at DESC, id DESC").Find(&orders).Error
	return orders, err
}

// AddCourierEarnings accumulates one completed order into courier_stats.
func (r *repository) AddCourierEarnings(ctx context.Context, courierID, earnings int64) error {
	row := models.CourierStats{CourierID: courierID, TotalOrders: 1, TotalEarnings: earnings}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "courier_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"total_orders":   gorm.Expr("courier_stats.total_orders + excluded.total_orders"),
				"total_earnings": gorm.Expr("courier_stats.total_earnings + excluded.total_earnings"),
				"updated_at":     gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&row).Error
}

func (r *repository) FindCourierStats(ctx context.Context, courierID int64) (*models.CourierStats, error) {
	var stats models.CourierStats
	if err := r.db.WithContext(ctx).Where("courier_id = ?", courierID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *repository) CreateRating(ctx context.Context, rating *models.Rating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

func (r *repository) FindRating(ctx context.Context, orderID int64) (*models.Rating, error) {
	var rating models.Rating
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&rating).Error; err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *repository) AverageRating(ctx context.Context, courierID int64) (float64, int64, error) {
	var row struct {
		Average float64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("courier_id = ?", courierID).
		Scan(&row).Error
	return row.Average, row.Count, err
}

func (r *repository) Totals(ctx context.Context) (Totals, error) {
	var totals Totals
	err := r.db.WithContext(ctx).Raw(`SELECT
	COUNT(*) AS orders,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
	COALESCE(SUM(CASE WHEN detailed_status = ? THEN 1 ELSE 0 END), 0) AS completed,
	COALESCE(SUM(CASE WHEN detailed_status NOT IN ? THEN 1 ELSE 0 END), 0) AS active,
	COALESCE(SUM(CASE WHEN detailed_status = ? THEN price ELSE 0 END), 0) AS revenue
FROM orders`, enums.OrderStatusPending, enums.OrderDetailedCompleted, terminalStatuses, enums.OrderDetailedCompleted).
		Scan(&totals).Error
	return totals, err
}

// CountCompletedSince counts orders completed at or after since.
func (r *repository) CountCompletedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("detailed_status = ? AND completed_at >= ?", enums.OrderDetailedCompleted, since.UTC()).
		Count(&n).Error
	return n, err
}
