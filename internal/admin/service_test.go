package admin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/internal/users"
	"github.com/angelmondragon/courierbot-backend/pkg/db/dbtest"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

const adminID int64 = 1

type fakeGranter struct {
	granted []int64
}

func (f *fakeGranter) Grant(ctx context.Context, clientID int64, subType enums.SubscriptionType) (*models.Subscription, error) {
	f.granted = append(f.granted, clientID)
	return &models.Subscription{ClientID: clientID, Type: subType, EndDate: time.Date(2026, 11, 13, 0, 0, 0, 0, time.UTC)}, nil
}

type fixedTotals orders.Totals

func (f fixedTotals) Summary(ctx context.Context) (orders.Totals, error) {
	return orders.Totals(f), nil
}

func newTestService(t *testing.T) (Service, *gorm.DB, *fakeGranter) {
	t.Helper()
	conn := dbtest.Open(t)
	for _, u := range []models.User{
		{TelegramID: adminID, FirstName: "Админ", Role: enums.RoleClient},
		{TelegramID: 2, FirstName: "Олег", Role: enums.RoleClient},
		{TelegramID: 3, FirstName: "Курьер", Role: enums.RoleCourier},
	} {
		require.NoError(t, conn.Create(&u).Error)
	}
	require.NoError(t, conn.Create(&models.AdminUser{TelegramID: adminID}).Error)

	granter := &fakeGranter{}
	svc, err := NewService(ServiceParams{
		Users:         users.NewRepository(conn),
		Subscriptions: granter,
		Orders:        fixedTotals{Orders: 4, Completed: 2, Active: 1, Revenue: 300},
	})
	require.NoError(t, err)
	return svc, conn, granter
}

func TestHandleRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Handle(context.Background(), 2, enums.RoleOperator, "operator_add 2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestOperatorAddAndRemove(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Handle(ctx, adminID, enums.RoleAdmin, "operator_add 2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TargetID)
	assert.NotEmpty(t, res.TargetNotice)

	var op models.OperatorUser
	require.NoError(t, conn.First(&op, "telegram_id = ?", 2).Error)
	require.NotNil(t, op.AddedBy)
	assert.Equal(t, adminID, *op.AddedBy)

	again, err := svc.Handle(ctx, adminID, enums.RoleAdmin, "operator_add 2")
	require.NoError(t, err)
	assert.Empty(t, again.TargetNotice)

	_, err = svc.Handle(ctx, adminID, enums.RoleAdmin, "operator_add 77")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Handle(ctx, adminID, enums.RoleAdmin, "operator_remove 2")
	require.NoError(t, err)
	_, err = svc.Handle(ctx, adminID, enums.RoleAdmin, "operator_remove 2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCourierRemoveResetsRole(t *testing.T) {
	svc, conn, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Handle(ctx, adminID, enums.RoleAdmin, "courier_remove 2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.Handle(ctx, adminID, enums.RoleAdmin, "courier_remove 3")
	require.NoError(t, err)

	var user models.User
	require.NoError(t, conn.First(&user, "telegram_id = ?", 3).Error)
	assert.Equal(t, enums.RoleClient, user.Role)
}

func TestSubscriptionAddDelegatesToGranter(t *testing.T) {
	svc, _, granter := newTestService(t)
	res, err := svc.Handle(context.Background(), adminID, enums.RoleAdmin, "sub_add 2 alternate")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, granter.granted)
	assert.Contains(t, res.TargetNotice, "13.11.2026")
	assert.Equal(t, enums.SubscriptionAlternateDay, res.Subscription.Type)
}

func TestStats(t *testing.T) {
	svc, conn, _ := newTestService(t)
	require.NoError(t, conn.Create(&models.OperatorUser{TelegramID: 2}).Error)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Clients)
	assert.Equal(t, int64(1), stats.Couriers)
	assert.Equal(t, int64(1), stats.Operators)
	assert.Equal(t, int64(4), stats.Orders)
	assert.InDelta(t, 150.0, stats.AverageCheck, 0.001)
}
