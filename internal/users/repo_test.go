package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courierbot-backend/pkg/db/dbtest"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

func TestEnsureCreatesClientOnce(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	ctx := context.Background()

	user, err := svc.Ensure(ctx, Profile{TelegramID: 100, Username: "anna", FirstName: "Anna"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleClient, user.Role)
	require.NotNil(t, user.Username)
	assert.Equal(t, "anna", *user.Username)

	require.NoError(t, conn.Model(&models.User{}).Where("telegram_id = ?", 100).Update("role", enums.RoleCourier).Error)

	again, err := svc.Ensure(ctx, Profile{TelegramID: 100, FirstName: "Changed"})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleCourier, again.Role, "existing role must survive repeated /start")
	assert.Equal(t, "Anna", again.FirstName)
}

func TestGetMissingUserIsNotFound(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), 404)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestOperatorMembership(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	added, err := repo.AddOperator(ctx, 7, 1)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.AddOperator(ctx, 7, 1)
	require.NoError(t, err)
	assert.False(t, added, "second insert is a no-op")

	isOp, err := repo.IsOperator(ctx, 7)
	require.NoError(t, err)
	assert.True(t, isOp)

	removed, err := repo.RemoveOperator(ctx, 7)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.RemoveOperator(ctx, 7)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStaffIDsDeduplicates(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, conn.Create(&models.AdminUser{TelegramID: 1}).Error)
	repo := NewRepository(conn)
	_, err := repo.AddOperator(context.Background(), 1, 1)
	require.NoError(t, err)
	_, err = repo.AddOperator(context.Background(), 2, 1)
	require.NoError(t, err)

	svc, err := NewService(repo)
	require.NoError(t, err)
	ids, err := svc.StaffIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestCountByRoleAndCourierIDs(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, conn.Create(&[]models.User{
		{TelegramID: 1, Role: enums.RoleClient},
		{TelegramID: 2, Role: enums.RoleCourier},
		{TelegramID: 3, Role: enums.RoleCourier},
	}).Error)
	repo := NewRepository(conn)

	counts, err := repo.CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[enums.RoleClient])
	assert.Equal(t, int64(2), counts[enums.RoleCourier])

	svc, _ := NewService(repo)
	ids, err := svc.CourierIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2, 3}, ids)
}
