// Package notifications fans out best-effort messages after state changes.
package notifications

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/multierr"

	"github.com/angelmondragon/courierbot-backend/internal/bot/callback"
	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/telegram"
)

// Directory resolves broadcast audiences.
type Directory interface {
	CourierIDs(ctx context.Context) ([]int64, error)
	StaffIDs(ctx context.Context) ([]int64, error)
}

// Service delivers notifications through the messenger. Every method returns
// the aggregated delivery failures; callers log them and move on.
type Service struct {
	messenger telegram.Messenger
	directory Directory
	logg      *logger.Logger
}

func NewService(messenger telegram.Messenger, directory Directory, logg *logger.Logger) (*Service, error) {
	if messenger == nil {
		return nil, fmt.Errorf("messenger required")
	}
	if directory == nil {
		return nil, fmt.Errorf("directory required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{messenger: messenger, directory: directory, logg: logg}, nil
}

// Notify implements orders.Notifier.
func (s *Service) Notify(ctx context.Context, event orders.Event) error {
	order := event.Order
	switch event.Kind {
	case orders.EventCreated:
		return s.broadcastToCouriers(ctx, order)

	case orders.EventPaymentConfirmed:
		err := s.send(ctx, order.ClientID, fmt.Sprintf("✅ Оплата заказа #%d получена. Ищем курьера!", order.ID), nil)
		return multierr.Append(err, s.broadcastToCouriers(ctx, order))

	case orders.EventAccepted:
		kb := telegram.NewKeyboard(telegram.Row(
			telegram.DataButton("💬 Написать курьеру", callback.Order(callback.ActionClientChat, order.ID)),
		))
		return s.send(ctx, order.ClientID, fmt.Sprintf("🚚 Курьер принял заказ #%d и уже в пути.", order.ID), kb)

	case orders.EventWorkStarted:
		return s.send(ctx, order.ClientID, fmt.Sprintf("🧹 Курьер приступил к выполнению заказа #%d.", order.ID), nil)

	case orders.EventCompleted:
		return s.send(ctx, order.ClientID, fmt.Sprintf("✅ Заказ #%d выполнен! Оцените работу курьера:", order.ID), RatingKeyboard(order.ID))

	case orders.EventCancelled:
		if event.ActorID == order.ClientID {
			return nil
		}
		return s.send(ctx, order.ClientID, fmt.Sprintf("❌ Заказ #%d отменён оператором.", order.ID), nil)

	case orders.EventStatusForced:
		text := fmt.Sprintf("ℹ️ Статус заказа #%d изменён: %s", order.ID, StatusLabel(order.DetailedStatus))
		err := s.send(ctx, order.ClientID, text, nil)
		if order.CourierID != nil {
			err = multierr.Append(err, s.send(ctx, *order.CourierID, text, nil))
		}
		return err
	}
	return nil
}

// RatingKeyboard offers 1..5 stars for a completed order.
func RatingKeyboard(orderID int64) telegram.Keyboard {
	row := make([]telegram.Button, 0, 5)
	for stars := 1; stars <= 5; stars++ {
		row = append(row, telegram.DataButton(fmt.Sprintf("%d⭐", stars), callback.Rate(orderID, stars)))
	}
	return telegram.NewKeyboard(row)
}

func (s *Service) broadcastToCouriers(ctx context.Context, order models.Order) error {
	ids, err := s.directory.CourierIDs(ctx)
	if err != nil {
		return err
	}
	text := "🆕 Новый заказ!\n\n" + OrderCard(order)
	kb := telegram.NewKeyboard(telegram.Row(
		telegram.DataButton("✅ Принять заказ", callback.Order(callback.ActionAcceptOrder, order.ID)),
	))
	return s.fanOut(ctx, ids, text, kb)
}

// ChatDelivery relays a chat message to each recipient with a reply button
// matching their side of the conversation.
func (s *Service) ChatDelivery(ctx context.Context, delivery *chat.Delivery) error {
	if delivery == nil {
		return nil
	}
	text := fmt.Sprintf("💬 %s · заказ #%d\n\n%s",
		senderLabel(string(delivery.Sender)), delivery.Order.ID, html.EscapeString(delivery.Message.Message))

	var errs error
	for _, r := range delivery.Recipients {
		action := callback.ActionClientChat
		if r.Kind == chat.SenderCourier {
			action = callback.ActionCourierChat
		}
		kb := telegram.NewKeyboard(telegram.Row(
			telegram.DataButton("↩️ Ответить", callback.Order(action, delivery.Order.ID)),
		))
		errs = multierr.Append(errs, s.send(ctx, r.TelegramID, text, kb))
	}
	return errs
}

// ApplicationSubmitted asks every admin and operator to review applicant.
func (s *Service) ApplicationSubmitted(ctx context.Context, applicant models.User) error {
	ids, err := s.directory.StaffIDs(ctx)
	if err != nil {
		return err
	}
	name := html.EscapeString(applicant.FirstName)
	if applicant.Username != nil && *applicant.Username != "" {
		name += " (@" + html.EscapeString(*applicant.Username) + ")"
	}
	text := fmt.Sprintf("📝 Новая заявка курьера\n\n%s\nID: <code>%d</code>", name, applicant.TelegramID)
	kb := telegram.NewKeyboard(telegram.Row(
		telegram.DataButton("✅ Одобрить", callback.User(callback.ActionApproveCourier, applicant.TelegramID)),
		telegram.DataButton("❌ Отклонить", callback.User(callback.ActionRejectCourier, applicant.TelegramID)),
	))
	return s.fanOut(ctx, ids, text, kb)
}

// ApplicationDecided tells the applicant the outcome.
func (s *Service) ApplicationDecided(ctx context.Context, app models.CourierApplication) error {
	if app.Status == enums.ApplicationApproved {
		kb := telegram.NewKeyboard(telegram.Row(
			telegram.DataButton("🚚 Меню курьера", callback.Menu(callback.ActionCourierMenu)),
		))
		return s.send(ctx, app.TelegramID, "🎉 Ваша заявка одобрена! Теперь вы курьер.", kb)
	}
	return s.send(ctx, app.TelegramID, "😔 Ваша заявка курьера отклонена.", nil)
}

// Direct sends a plain notice to one actor.
func (s *Service) Direct(ctx context.Context, recipient int64, text string) error {
	return s.send(ctx, recipient, text, nil)
}

func (s *Service) fanOut(ctx context.Context, ids []int64, text string, kb telegram.Keyboard) error {
	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, s.send(ctx, id, text, kb))
	}
	return errs
}

func (s *Service) send(ctx context.Context, recipient int64, text string, kb telegram.Keyboard) error {
	if err := s.messenger.Send(ctx, recipient, text, kb); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"recipient": recipient,
			"error":     err.Error(),
		}), "notification delivery failed")
		return fmt.Errorf("notify %d: %w", recipient, err)
	}
	return nil
}
