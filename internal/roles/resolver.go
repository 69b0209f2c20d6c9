// Package roles derives the single authoritative role of an actor.
package roles

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
)

// Lookup is the read surface the resolver consults.
type Lookup interface {
	IsAdmin(ctx context.Context, telegramID int64) (bool, error)
	IsOperator(ctx context.Context, telegramID int64) (bool, error)
	FindByID(ctx context.Context, telegramID int64) (*models.User, error)
}

// Resolver answers "who is this actor" for every inbound event.
type Resolver interface {
	Resolve(ctx context.Context, telegramID int64) enums.Role
}

type resolver struct {
	lookup Lookup
	logg   *logger.Logger
}

func NewResolver(lookup Lookup, logg *logger.Logger) (Resolver, error) {
	if lookup == nil {
		return nil, fmt.Errorf("role lookup required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &resolver{lookup: lookup, logg: logg}, nil
}

// Pick applies the precedence admin > operator > stored role > client.
func Pick(isAdmin, isOperator bool, stored *enums.Role) enums.Role {
	switch {
	case isAdmin:
		return enums.RoleAdmin
	case isOperator:
		return enums.RoleOperator
	case stored != nil && stored.IsValid():
		return *stored
	default:
		return enums.RoleClient
	}
}

// Resolve never fails: lookup errors count as "not a member" and are logged.
func (r *resolver) Resolve(ctx context.Context, telegramID int64) enums.Role {
	ctx = r.logg.WithActorID(ctx, telegramID)

	isAdmin, err := r.lookup.IsAdmin(ctx, telegramID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "admin lookup failed")
		isAdmin = false
	}
	if isAdmin {
		return enums.RoleAdmin
	}

	isOperator, err := r.lookup.IsOperator(ctx, telegramID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "operator lookup failed")
		isOperator = false
	}

	var stored *enums.Role
	user, err := r.lookup.FindByID(ctx, telegramID)
	switch {
	case err == nil:
		stored = &user.Role
	case !errors.Is(err, gorm.ErrRecordNotFound):
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "user role lookup failed")
	}

	return Pick(false, isOperator, stored)
}
