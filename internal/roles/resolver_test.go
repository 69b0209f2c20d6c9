package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
)

type stubLookup struct {
	admins    map[int64]bool
	operators map[int64]bool
	users     map[int64]enums.Role
	adminErr  error
	opErr     error
	userErr   error
}

func (s *stubLookup) IsAdmin(ctx context.Context, id int64) (bool, error) {
	return s.admins[id], s.adminErr
}

func (s *stubLookup) IsOperator(ctx context.Context, id int64) (bool, error) {
	return s.operators[id], s.opErr
}

func (s *stubLookup) FindByID(ctx context.Context, id int64) (*models.User, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	role, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.User{TelegramID: id, Role: role}, nil
}

func TestPickPrecedence(t *testing.T) {
	courier := enums.RoleCourier
	bogus := enums.Role("root")

	assert.Equal(t, enums.RoleAdmin, Pick(true, true, &courier))
	assert.Equal(t, enums.RoleOperator, Pick(false, true, &courier))
	assert.Equal(t, enums.RoleCourier, Pick(false, false, &courier))
	assert.Equal(t, enums.RoleClient, Pick(false, false, nil))
	assert.Equal(t, enums.RoleClient, Pick(false, false, &bogus))
}

func TestResolveUsesMembershipBeforeStoredRole(t *testing.T) {
	lookup := &stubLookup{
		admins:    map[int64]bool{1: true},
		operators: map[int64]bool{1: true, 2: true},
		users:     map[int64]enums.Role{1: enums.RoleCourier, 2: enums.RoleCourier, 3: enums.RoleCourier},
	}
	r, err := NewResolver(lookup, nil)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, enums.RoleAdmin, r.Resolve(ctx, 1))
	assert.Equal(t, enums.RoleOperator, r.Resolve(ctx, 2))
	assert.Equal(t, enums.RoleCourier, r.Resolve(ctx, 3))
	assert.Equal(t, enums.RoleClient, r.Resolve(ctx, 4))
}

func TestResolveLookupErrorsDegradeToNotMember(t *testing.T) {
	boom := errors.New("connection refused")
	lookup := &stubLookup{
		adminErr: boom,
		opErr:    boom,
		userErr:  boom,
	}
	r, err := NewResolver(lookup, nil)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleClient, r.Resolve(context.Background(), 9))

	lookup = &stubLookup{adminErr: boom, users: map[int64]enums.Role{9: enums.RoleCourier}}
	r, _ = NewResolver(lookup, nil)
	assert.Equal(t, enums.RoleCourier, r.Resolve(context.Background(), 9))
}
