package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/internal/subscriptions"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

// Repository defines persistence operations for orders, ratings and courier totals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id int64) (*models.Order, error)
	Transition(ctx context.Context, id int64, from enums.OrderDetailedStatus, change Change) (bool, error)
	SetPayment(ctx context.Context, id int64, paymentID, paymentURL string) (bool, error)
	ListAvailable(ctx context.Context, limit int) ([]models.Order, error)
	ListForCourier(ctx context.Context, courierID int64, statuses []enums.OrderDetailedStatus, limit int) ([]models.Order, error)
	ListForClient(ctx context.Context, clientID int64, statuses []enums.OrderDetailedStatus, limit int) ([]models.Order, error)
	ListByStatus(ctx context.Context, statuses []enums.OrderDetailedStatus, limit int) ([]models.Order, error)
	AddCourierEarnings(ctx context.Context, courierID, earnings int64) error
	FindCourierStats(ctx context.Context, courierID int64) (*models.CourierStats, error)
	CreateRating(ctx context.Context, rating *models.Rating) error
	FindRating(ctx context.Context, orderID int64) (*models.Rating, error)
	AverageRating(ctx context.Context, courierID int64) (float64, int64, error)
	Totals(ctx context.Context) (Totals, error)
	CountCompletedSince(ctx context.Context, since time.Time) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Quota previews and consumes subscription coverage.
type Quota interface {
	Quote(ctx context.Context, clientID int64, bags int) (subscriptions.Decision, error)
	Consume(ctx context.Context, tx *gorm.DB, clientID int64, bags int) (bool, error)
}

// SessionCleaner drops chat session pointers when an order closes.
type SessionCleaner interface {
	ClearForOrder(ctx context.Context, tx *gorm.DB, orderID int64, actors ...int64) error
}

// Notifier delivers lifecycle events after commit. Failures never roll back state.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type transitionMetrics interface {
	ObserveTransition(operation, outcome string)
	ObserveCreated(covered bool)
}
