// Package applications runs the client-to-courier approval workflow.
package applications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/internal/users"
	"github.com/angelmondragon/courierbot-backend/pkg/db"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

const onePendingIndex = "idx_courier_applications_one_pending"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Apply(ctx context.Context, actorID int64) (*models.CourierApplication, error)
	Approve(ctx context.Context, reviewerID int64, role enums.Role, applicantID int64) (*models.CourierApplication, error)
	Reject(ctx context.Context, reviewerID int64, role enums.Role, applicantID int64) (*models.CourierApplication, error)
	ListPending(ctx context.Context) ([]models.CourierApplication, error)
}

type ServiceParams struct {
	Repo  Repository
	Users users.Repository
	Tx    txRunner
	Now   func() time.Time
}

type service struct {
	repo  Repository
	users users.Repository
	tx    txRunner
	now   func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("applications repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, users: params.Users, tx: params.Tx, now: now}, nil
}

func (s *service) Apply(ctx context.Context, actorID int64) (*models.CourierApplication, error) {
	user, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "сначала отправьте /start")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.Role == enums.RoleCourier {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "вы уже курьер")
	}

	if _, err := s.repo.FindPending(ctx, actorID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "ваша заявка уже на рассмотрении")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending application")
	}

	app := &models.CourierApplication{TelegramID: actorID}
	if err := s.repo.Create(ctx, app); err != nil {
		if db.IsUniqueViolation(err, onePendingIndex) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "ваша заявка уже на рассмотрении")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create application")
	}
	return app, nil
}

// Approve decides the pending application and promotes the applicant in one tx.
func (s *service) Approve(ctx context.Context, reviewerID int64, role enums.Role, applicantID int64) (*models.CourierApplication, error) {
	if role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "рассматривать заявки может только администратор")
	}
	var decided *models.CourierApplication
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		app, err := s.decide(ctx, s.repo.WithTx(tx), applicantID, enums.ApplicationApproved, reviewerID)
		if err != nil {
			return err
		}
		if _, err := s.users.WithTx(tx).SetRole(ctx, applicantID, enums.RoleCourier); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote courier")
		}
		decided = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

func (s *service) Reject(ctx context.Context, reviewerID int64, role enums.Role, applicantID int64) (*models.CourierApplication, error) {
	if role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "рассматривать заявки может только администратор")
	}
	return s.decide(ctx, s.repo, applicantID, enums.ApplicationRejected, reviewerID)
}

func (s *service) decide(ctx context.Context, repo Repository, applicantID int64, status enums.ApplicationStatus, reviewerID int64) (*models.CourierApplication, error) {
	app, err := repo.Decide(ctx, applicantID, status, reviewerID, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "нет ожидающей заявки от пользователя %d", applicantID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide application")
	}
	return app, nil
}

func (s *service) ListPending(ctx context.Context) ([]models.CourierApplication, error) {
	apps, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list applications")
	}
	return apps, nil
}
