package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/angelmondragon/courierbot-backend/internal/admin"
	"github.com/angelmondragon/courierbot-backend/internal/bot/callback"
	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

const (
	commandStart     = "/start"
	commandHelp      = "/help"
	chatCommandToken = "chat_"
	maxCustomBags    = 100
)

// handleText routes free text: slash commands, admin commands, the chat_ID
// command, the open chat, the pending draft step, then the fallback.
func (d *Dispatcher) handleText(ctx context.Context, ev event, text string) error {
	if text == "" {
		return nil
	}
	switch command := strings.ToLower(strings.Fields(text)[0]); {
	case command == commandStart || strings.HasPrefix(command, commandStart+"@"):
		return d.start(ctx, ev)
	case command == commandHelp:
		d.reply(ctx, ev.target, textHelp, backKeyboard(callback.ActionStart))
		return nil
	case strings.HasPrefix(command, "/"):
		d.reply(ctx, ev.target, textFallback, nil)
		return nil
	}

	if admin.IsCommand(text) {
		return d.adminCommand(ctx, ev, text)
	}
	if rest, ok := strings.CutPrefix(text, chatCommandToken); ok {
		return d.chatCommand(ctx, ev, rest)
	}

	routed, err := d.chat.RouteFreeText(ctx, ev.actor, ev.role, text)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	switch {
	case routed.Routed:
		d.delivered(ctx, ev, routed.Delivery)
		return nil
	case routed.SessionDropped:
		d.reply(ctx, ev.target, "💬 Чат по этому заказу закрыт", backKeyboard(callback.ActionStart))
		return nil
	}

	draft, err := d.drafts.Get(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	if draft != nil {
		switch draft.State {
		case enums.DraftWaitingCustomBags:
			return d.customBags(ctx, ev, text)
		case enums.DraftWaitingAddress:
			return d.submitAddress(ctx, ev, draft, text)
		}
	}
	d.reply(ctx, ev.target, textFallback, nil)
	return nil
}

func (d *Dispatcher) delivered(ctx context.Context, ev event, delivery *chat.Delivery) {
	d.notified(ctx, "chat", d.notifier.ChatDelivery(ctx, delivery))
	d.reply(ctx, ev.target, "✉️ Сообщение отправлено", nil)
}

// start greets the actor, registering them on first contact.
func (d *Dispatcher) start(ctx context.Context, ev event) error {
	if _, err := d.users.Ensure(ctx, ev.profile); err != nil {
		return d.fail(ctx, ev, err)
	}
	if n, err := d.chat.ArchiveStale(ctx, d.now().Add(-d.chat.Retention())); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "opportunistic chat archive failed")
	} else if n > 0 {
		d.logg.Info(d.logg.WithField(ctx, "archived", n), "stale chats archived")
	}
	d.clearDraft(ctx, ev)
	d.leaveChat(ctx, ev)
	text, kb := mainMenu(ev.role)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) adminCommand(ctx context.Context, ev event, text string) error {
	res, err := d.admin.Handle(ctx, ev.actor, ev.role, text)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	if res.TargetID != 0 && res.TargetNotice != "" {
		d.notified(ctx, "admin_command", d.notifier.Direct(ctx, res.TargetID, res.TargetNotice))
	}
	d.reply(ctx, ev.target, res.Reply, backKeyboard(callback.ActionAdminMenu))
	return nil
}

// chatCommand handles "chat_ID text", which sends into the order chat, and the
// staff-only "chat_ID", which shows the full history.
func (d *Dispatcher) chatCommand(ctx context.Context, ev event, rest string) error {
	rawID, body, hasBody := strings.Cut(strings.TrimSpace(rest), " ")
	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || orderID <= 0 {
		return d.fail(ctx, ev, pkgerrors.New(pkgerrors.CodeValidation, "Использование: chat_ID текст"))
	}
	ctx = d.logg.WithOrderID(ctx, orderID)
	if hasBody && strings.TrimSpace(body) != "" {
		delivery, err := d.chat.Send(ctx, ev.actor, ev.role, orderID, body)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.delivered(ctx, ev, delivery)
		return nil
	}
	if !ev.role.IsStaff() {
		return d.fail(ctx, ev, pkgerrors.New(pkgerrors.CodeValidation, "Отправьте сообщение после номера заказа: chat_ID текст"))
	}
	if _, err := d.orders.Get(ctx, orderID); err != nil {
		return d.fail(ctx, ev, err)
	}
	entries, err := d.chat.History(ctx, orderID)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	d.reply(ctx, ev.target, historyView(orderID, entries), backKeyboard(callback.ActionOperatorOrders))
	return nil
}

func (d *Dispatcher) customBags(ctx context.Context, ev event, text string) error {
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > maxCustomBags {
		d.reply(ctx, ev.target, "Введите число от 1 до 100", backKeyboard(callback.ActionClientMenu))
		return nil
	}
	return d.chooseBags(ctx, ev, n)
}

func (d *Dispatcher) chooseBags(ctx context.Context, ev event, bags int) error {
	preview, err := d.orders.Preview(ctx, ev.actor, bags)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	if err := d.drafts.AwaitAddress(ctx, ev.actor, bags); err != nil {
		return d.fail(ctx, ev, err)
	}
	d.leaveChat(ctx, ev)
	d.reply(ctx, ev.target, bagsChosen(preview), backKeyboard(callback.ActionClientMenu))
	return nil
}

func (d *Dispatcher) submitAddress(ctx context.Context, ev event, draft *models.OrderDraft, address string) error {
	if _, err := d.users.Ensure(ctx, ev.profile); err != nil {
		return d.fail(ctx, ev, err)
	}
	res, err := d.orders.Create(ctx, orders.CreateInput{ClientID: ev.actor, Address: address, Bags: draft.BagCount})
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	d.clearDraft(ctx, ev)
	text, kb := orderCreated(res)
	d.reply(ctx, ev.target, text, kb)
	return nil
}
