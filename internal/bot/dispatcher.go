// Package bot turns inbound chat updates into domain operations and replies.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/angelmondragon/courierbot-backend/internal/admin"
	"github.com/angelmondragon/courierbot-backend/internal/applications"
	"github.com/angelmondragon/courierbot-backend/internal/bot/callback"
	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/drafts"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/internal/roles"
	"github.com/angelmondragon/courierbot-backend/internal/subscriptions"
	"github.com/angelmondragon/courierbot-backend/internal/users"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/redis"
	"github.com/angelmondragon/courierbot-backend/pkg/telegram"
)

const rateWindow = time.Minute

// Notifier is the slice of the notifications service the dispatcher triggers directly.
type Notifier interface {
	ChatDelivery(ctx context.Context, delivery *chat.Delivery) error
	ApplicationSubmitted(ctx context.Context, applicant models.User) error
	ApplicationDecided(ctx context.Context, app models.CourierApplication) error
	Direct(ctx context.Context, recipient int64, text string) error
}

type Params struct {
	Messenger     telegram.Messenger
	Users         users.Service
	Roles         roles.Resolver
	Orders        orders.Service
	Pricing       orders.Pricing
	Chat          chat.Service
	Subscriptions subscriptions.Service
	Applications  applications.Service
	Admin         admin.Service
	Drafts        drafts.Store
	Notifier      Notifier
	// Limiter is optional; without it updates are never throttled.
	Limiter   redis.RateLimiter
	RateLimit int64
	// SupportURL is linked from the courier payout screen when set.
	SupportURL string
	Logger     *logger.Logger
	Now        func() time.Time
}

// Dispatcher handles one update at a time; it holds no per-actor state.
type Dispatcher struct {
	messenger telegram.Messenger
	users     users.Service
	roles     roles.Resolver
	orders    orders.Service
	pricing   orders.Pricing
	chat      chat.Service
	subs      subscriptions.Service
	apps      applications.Service
	admin     admin.Service
	drafts    drafts.Store
	notifier  Notifier
	limiter   redis.RateLimiter
	rateLimit int64
	support   string
	logg      *logger.Logger
	now       func() time.Time
}

func NewDispatcher(p Params) (*Dispatcher, error) {
	switch {
	case p.Messenger == nil:
		return nil, fmt.Errorf("messenger required")
	case p.Users == nil:
		return nil, fmt.Errorf("users service required")
	case p.Roles == nil:
		return nil, fmt.Errorf("role resolver required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders service required")
	case p.Chat == nil:
		return nil, fmt.Errorf("chat service required")
	case p.Subscriptions == nil:
		return nil, fmt.Errorf("subscriptions service required")
	case p.Applications == nil:
		return nil, fmt.Errorf("applications service required")
	case p.Admin == nil:
		return nil, fmt.Errorf("admin service required")
	case p.Drafts == nil:
		return nil, fmt.Errorf("draft store required")
	case p.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	}
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		messenger: p.Messenger,
		users:     p.Users,
		roles:     p.Roles,
		orders:    p.Orders,
		pricing:   p.Pricing,
		chat:      p.Chat,
		subs:      p.Subscriptions,
		apps:      p.Applications,
		admin:     p.Admin,
		drafts:    p.Drafts,
		notifier:  p.Notifier,
		limiter:   p.Limiter,
		rateLimit: p.RateLimit,
		support:   p.SupportURL,
		logg:      logg,
		now:       now,
	}, nil
}

// event is the per-update context passed down the handlers.
type event struct {
	actor   int64
	role    enums.Role
	profile users.Profile
	target  telegram.RenderTarget
}

// HandleUpdate processes one update. Rejections are rendered to the actor;
// the returned error only reports failures the actor could not be told about.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ctx = d.logg.WithUpdateID(ctx, update.UpdateID)
	switch {
	case update.CallbackQuery != nil:
		return d.dispatchCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		return d.dispatchMessage(ctx, update.Message)
	}
	d.logg.Debug(ctx, "update without message or callback ignored")
	return nil
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, msg *tgbotapi.Message) error {
	ev := d.newEvent(msg.From, telegram.RenderTarget{ChatID: chatIDOf(msg, msg.From)})
	ctx = d.logg.WithActorID(ctx, ev.actor)
	if !d.allow(ctx, ev) {
		return nil
	}
	ev.role = d.roles.Resolve(ctx, ev.actor)
	ctx = d.logg.WithActorRole(ctx, ev.role.String())
	return d.handleText(ctx, ev, strings.TrimSpace(msg.Text))
}

func (d *Dispatcher) dispatchCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q.From == nil {
		return nil
	}
	if err := d.messenger.Answer(ctx, q.ID); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "answer callback failed")
	}
	target := telegram.RenderTarget{ChatID: q.From.ID}
	if q.Message != nil {
		target = telegram.RenderTarget{ChatID: chatIDOf(q.Message, q.From), MessageID: q.Message.MessageID}
	}
	ev := d.newEvent(q.From, target)
	ctx = d.logg.WithActorID(ctx, ev.actor)
	if !d.allow(ctx, ev) {
		return nil
	}
	ev.role = d.roles.Resolve(ctx, ev.actor)
	ctx = d.logg.WithActorRole(ctx, ev.role.String())
	return d.handleCallback(ctx, ev, q.Data)
}

func (d *Dispatcher) newEvent(from *tgbotapi.User, target telegram.RenderTarget) event {
	return event{
		actor: from.ID,
		profile: users.Profile{
			TelegramID: from.ID,
			Username:   from.UserName,
			FirstName:  from.FirstName,
		},
		target: target,
	}
}

func chatIDOf(msg *tgbotapi.Message, from *tgbotapi.User) int64 {
	if msg.Chat != nil && msg.Chat.ID != 0 {
		return msg.Chat.ID
	}
	return from.ID
}

// allow applies the per-actor fixed window. Limiter failures fail open.
func (d *Dispatcher) allow(ctx context.Context, ev event) bool {
	if d.limiter == nil || d.rateLimit <= 0 {
		return true
	}
	ok, count, err := d.limiter.FixedWindowAllow(ctx, fmt.Sprintf("actor:%d", ev.actor), d.rateLimit, rateWindow)
	if err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "rate limiter unavailable")
		return true
	}
	if ok {
		return true
	}
	if count == d.rateLimit+1 {
		d.reply(ctx, ev.target.Fresh(), textRateLimited, nil)
	}
	d.logg.Info(ctx, "update throttled")
	return false
}

func (d *Dispatcher) reply(ctx context.Context, target telegram.RenderTarget, text string, kb telegram.Keyboard) {
	if err := d.messenger.Render(ctx, target, text, kb); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "reply failed")
	}
}

// fail renders a rejection. Typed client-facing errors show their message;
// everything else is logged and replaced by a generic notice.
func (d *Dispatcher) fail(ctx context.Context, ev event, err error) error {
	if typed := pkgerrors.As(err); typed != nil && pkgerrors.IsClientFacing(typed.Code()) {
		d.logg.Info(d.logg.WithFields(ctx, map[string]any{"code": typed.Code(), "reason": typed.Message()}), "request rejected")
		d.reply(ctx, ev.target.Fresh(), "❌ "+typed.Message(), backKeyboard(callback.ActionStart))
		return nil
	}
	d.logg.Error(d.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), "update handling failed", err)
	d.reply(ctx, ev.target.Fresh(), textGenericError, nil)
	return err
}

// notified logs a best-effort delivery failure.
func (d *Dispatcher) notified(ctx context.Context, what string, err error) {
	if err != nil {
		d.logg.Warn(d.logg.WithFields(ctx, map[string]any{"notification": what, "error": err.Error()}), "notification failed")
	}
}

func requireStaff(role enums.Role) error {
	if !role.IsStaff() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "Доступно только операторам")
	}
	return nil
}

func requireAdmin(role enums.Role) error {
	if role != enums.RoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "Доступно только администраторам")
	}
	return nil
}

func requireCourier(role enums.Role) error {
	if role != enums.RoleCourier && role != enums.RoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "Доступно только курьерам")
	}
	return nil
}
