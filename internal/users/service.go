package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

// Profile is the identity data carried by every inbound update.
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
}

// Service exposes the user directory to the rest of the bot.
type Service interface {
	Ensure(ctx context.Context, profile Profile) (*models.User, error)
	Get(ctx context.Context, telegramID int64) (*models.User, error)
	ListCouriers(ctx context.Context) ([]models.User, error)
	ListOperators(ctx context.Context) ([]models.OperatorUser, error)
	CourierIDs(ctx context.Context) ([]int64, error)
	StaffIDs(ctx context.Context) ([]int64, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo}, nil
}

// Ensure returns the stored user, creating it with the client role on first contact.
func (s *service) Ensure(ctx context.Context, profile Profile) (*models.User, error) {
	if profile.TelegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}
	user := &models.User{
		TelegramID: profile.TelegramID,
		FirstName:  strings.TrimSpace(profile.FirstName),
		Role:       enums.RoleClient,
	}
	if username := strings.TrimSpace(profile.Username); username != "" {
		user.Username = &username
	}
	if _, err := s.repo.CreateIfMissing(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return s.Get(ctx, profile.TelegramID)
}

func (s *service) Get(ctx context.Context, telegramID int64) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "пользователь %d не найден", telegramID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) ListCouriers(ctx context.Context) ([]models.User, error) {
	couriers, err := s.repo.ListByRole(ctx, enums.RoleCourier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list couriers")
	}
	return couriers, nil
}

func (s *service) ListOperators(ctx context.Context) ([]models.OperatorUser, error) {
	operators, err := s.repo.ListOperators(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list operators")
	}
	return operators, nil
}

// CourierIDs lists every actor holding the courier role, used for order broadcasts.
func (s *service) CourierIDs(ctx context.Context) ([]int64, error) {
	couriers, err := s.ListCouriers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(couriers))
	for _, c := range couriers {
		ids = append(ids, c.TelegramID)
	}
	return ids, nil
}

// StaffIDs lists admins and operators without duplicates.
func (s *service) StaffIDs(ctx context.Context) ([]int64, error) {
	admins, err := s.repo.ListAdminIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admins")
	}
	operators, err := s.repo.ListOperators(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list operators")
	}
	seen := make(map[int64]struct{}, len(admins)+len(operators))
	ids := make([]int64, 0, len(admins)+len(operators))
	for _, id := range admins {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, op := range operators {
		if _, ok := seen[op.TelegramID]; !ok {
			seen[op.TelegramID] = struct{}{}
			ids = append(ids, op.TelegramID)
		}
	}
	return ids, nil
}
