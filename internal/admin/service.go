package admin

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/internal/users"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

// SubscriptionGranter creates subscriptions on behalf of an admin.
type SubscriptionGranter interface {
	Grant(ctx context.Context, clientID int64, subType enums.SubscriptionType) (*models.Subscription, error)
}

// OrderTotals supplies order aggregates for Stats.
type OrderTotals interface {
	Summary(ctx context.Context) (orders.Totals, error)
}

// Result describes an executed command. TargetNotice, when set, is sent to TargetID.
type Result struct {
	Command      Command
	Reply        string
	TargetID     int64
	TargetNotice string
	Subscription *models.Subscription
}

// Stats is the admin dashboard.
type Stats struct {
	Clients      int64
	Couriers     int64
	Operators    int64
	Orders       int64
	Completed    int64
	Active       int64
	Revenue      int64
	AverageCheck float64
}

type Service interface {
	Handle(ctx context.Context, actorID int64, role enums.Role, text string) (*Result, error)
	Execute(ctx context.Context, actorID int64, cmd Command) (*Result, error)
	Stats(ctx context.Context) (*Stats, error)
}

type ServiceParams struct {
	Users         users.Repository
	Subscriptions SubscriptionGranter
	Orders        OrderTotals
}

type service struct {
	users users.Repository
	subs  SubscriptionGranter
	order OrderTotals
}

func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription granter required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order totals required")
	}
	return &service{users: params.Users, subs: params.Subscriptions, order: params.Orders}, nil
}

// Handle authorizes and runs a raw command line.
func (s *service) Handle(ctx context.Context, actorID int64, role enums.Role, text string) (*Result, error) {
	if role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "команда доступна только администратору")
	}
	cmd, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, actorID, cmd)
}

func (s *service) Execute(ctx context.Context, actorID int64, cmd Command) (*Result, error) {
	switch cmd.Kind {
	case KindOperatorAdd:
		return s.addOperator(ctx, actorID, cmd)
	case KindOperatorRemove:
		return s.removeOperator(ctx, cmd)
	case KindCourierRemove:
		return s.removeCourier(ctx, cmd)
	case KindSubscriptionAdd:
		return s.addSubscription(ctx, cmd)
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "неизвестная команда")
}

func (s *service) requireUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "пользователь %d не найден", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) addOperator(ctx context.Context, actorID int64, cmd Command) (*Result, error) {
	if _, err := s.requireUser(ctx, cmd.TargetID); err != nil {
		return nil, err
	}
	added, err := s.users.AddOperator(ctx, cmd.TargetID, actorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add operator")
	}
	if !added {
		return &Result{Command: cmd, Reply: fmt.Sprintf("Пользователь %d уже оператор", cmd.TargetID)}, nil
	}
	return &Result{
		Command:      cmd,
		Reply:        fmt.Sprintf("✅ Пользователь %d назначен оператором", cmd.TargetID),
		TargetID:     cmd.TargetID,
		TargetNotice: "🎧 Вам выданы права оператора. Отправьте /start, чтобы открыть панель.",
	}, nil
}

func (s *service) removeOperator(ctx context.Context, cmd Command) (*Result, error) {
	removed, err := s.users.RemoveOperator(ctx, cmd.TargetID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove operator")
	}
	if !removed {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "пользователь %d не является оператором", cmd.TargetID)
	}
	return &Result{
		Command:      cmd,
		Reply:        fmt.Sprintf("✅ Пользователь %d больше не оператор", cmd.TargetID),
		TargetID:     cmd.TargetID,
		TargetNotice: "Права оператора отозваны.",
	}, nil
}

func (s *service) removeCourier(ctx context.Context, cmd Command) (*Result, error) {
	user, err := s.requireUser(ctx, cmd.TargetID)
	if err != nil {
		return nil, err
	}
	if user.Role != enums.RoleCourier {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "пользователь %d не является курьером", cmd.TargetID)
	}
	if _, err := s.users.SetRole(ctx, cmd.TargetID, enums.RoleClient); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset courier role")
	}
	return &Result{
		Command:      cmd,
		Reply:        fmt.Sprintf("✅ Курьер %d отстранён", cmd.TargetID),
		TargetID:     cmd.TargetID,
		TargetNotice: "Вы больше не курьер сервиса.",
	}, nil
}

func (s *service) addSubscription(ctx context.Context, cmd Command) (*Result, error) {
	sub, err := s.subs.Grant(ctx, cmd.TargetID, cmd.SubType)
	if err != nil {
		return nil, err
	}
	return &Result{
		Command:      cmd,
		Reply:        fmt.Sprintf("✅ Подписка %s выдана пользователю %d до %s", sub.Type, cmd.TargetID, sub.EndDate.Format("02.01.2006")),
		TargetID:     cmd.TargetID,
		TargetNotice: fmt.Sprintf("🎉 Вам оформлена подписка (%s) до %s", subscriptionTitle(sub.Type), sub.EndDate.Format("02.01.2006")),
		Subscription: sub,
	}, nil
}

func subscriptionTitle(t enums.SubscriptionType) string {
	if t == enums.SubscriptionAlternateDay {
		return "через день"
	}
	return "ежедневно"
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count users")
	}
	ops, err := s.users.ListOperators(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list operators")
	}
	totals, err := s.order.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Clients:      counts[enums.RoleClient],
		Couriers:     counts[enums.RoleCourier],
		Operators:    int64(len(ops)),
		Orders:       totals.Orders,
		Completed:    totals.Completed,
		Active:       totals.Active,
		Revenue:      totals.Revenue,
		AverageCheck: totals.AverageCheck(),
	}, nil
}
