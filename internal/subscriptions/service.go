package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/config"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

// ClientLookup verifies the subscription owner exists.
type ClientLookup interface {
	Get(ctx context.Context, telegramID int64) (*models.User, error)
}

// Service manages subscriptions and their bag quota.
type Service interface {
	Quote(ctx context.Context, clientID int64, bags int) (Decision, error)
	Consume(ctx context.Context, tx *gorm.DB, clientID int64, bags int) (bool, error)
	Grant(ctx context.Context, clientID int64, subType enums.SubscriptionType) (*models.Subscription, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	ListActive(ctx context.Context) ([]models.Subscription, error)
	ActiveFor(ctx context.Context, clientID int64) (*models.Subscription, error)
	Today() time.Time
}

type ServiceParams struct {
	Repo     Repository
	Users    ClientLookup
	Pricing  config.PricingConfig
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	repo    Repository
	users   ClientLookup
	pricing config.PricingConfig
	loc     *time.Location
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		users:   params.Users,
		pricing: params.Pricing,
		loc:     loc,
		now:     now,
	}, nil
}

func (s *service) Today() time.Time {
	return DateOf(s.now(), s.loc)
}

// Quote previews coverage without recording usage.
func (s *service) Quote(ctx context.Context, clientID int64, bags int) (Decision, error) {
	today := s.Today()
	sub, err := s.activeFor(ctx, s.repo, clientID, today)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(sub, bags, today), nil
}

// Consume records usage inside the caller's transaction and reports whether the
// order is free. A concurrent writer is retried once before falling back to paid.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, clientID int64, bags int) (bool, error) {
	repo := s.repo.WithTx(tx)
	today := s.Today()

	const attempts = 2
	for i := 0; i < attempts; i++ {
		sub, err := s.activeFor(ctx, repo, clientID, today)
		if err != nil {
			return false, err
		}
		decision := Evaluate(sub, bags, today)
		if !decision.Covered {
			return false, nil
		}
		ok, err := repo.RecordUsage(ctx, sub.ID, sub.UsageVersion, decision.UsedAfter, today)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record subscription usage")
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) activeFor(ctx context.Context, repo Repository, clientID int64, today time.Time) (*models.Subscription, error) {
	sub, err := repo.FindActiveForClient(ctx, clientID, today)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	return sub, nil
}

func (s *service) Grant(ctx context.Context, clientID int64, subType enums.SubscriptionType) (*models.Subscription, error) {
	if !subType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "тип подписки: daily или alternate")
	}
	if _, err := s.users.Get(ctx, clientID); err != nil {
		return nil, err
	}

	today := s.Today()
	days := s.pricing.SubscriptionDays
	if days <= 0 {
		days = 30
	}
	sub := &models.Subscription{
		ID:        uuid.New(),
		ClientID:  clientID,
		Type:      subType,
		Price:     s.priceFor(subType),
		StartDate: today,
		EndDate:   today.AddDate(0, 0, days),
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	return sub, nil
}

func (s *service) priceFor(subType enums.SubscriptionType) int64 {
	if subType == enums.SubscriptionAlternateDay {
		return s.pricing.SubscriptionAlternate
	}
	return s.pricing.SubscriptionDaily
}

func (s *service) Cancel(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "подписка не найдена")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	ok, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate subscription")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "подписка уже отменена")
	}
	sub.IsActive = false
	return sub, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Subscription, error) {
	subs, err := s.repo.ListActive(ctx, s.Today())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, nil
}

// ActiveFor returns nil when the client has no current subscription.
func (s *service) ActiveFor(ctx context.Context, clientID int64) (*models.Subscription, error) {
	return s.activeFor(ctx, s.repo, clientID, s.Today())
}
