package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/angelmondragon/courierbot-backend/internal/bot/callback"
	"github.com/angelmondragon/courierbot-backend/internal/notifications"
	"github.com/angelmondragon/courierbot-backend/pkg/telegram"
)

func (d *Dispatcher) handleCallback(ctx context.Context, ev event, raw string) error {
	data, err := callback.Parse(raw)
	if err != nil {
		d.logg.Warn(d.logg.WithFields(ctx, map[string]any{"data": raw, "error": err.Error()}), "unknown callback")
		d.reply(ctx, ev.target.Fresh(), textStaleButton, nil)
		return nil
	}
	if data.OrderID != 0 {
		ctx = d.logg.WithOrderID(ctx, data.OrderID)
	}

	switch data.Action {
	case callback.ActionStart:
		return d.start(ctx, ev)
	case callback.ActionHelp:
		d.reply(ctx, ev.target, textHelp, backKeyboard(callback.ActionStart))
		return nil

	// client
	case callback.ActionClientMenu:
		d.clearDraft(ctx, ev)
		d.leaveChat(ctx, ev)
		text, kb := clientMenu()
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionNewOrder:
		d.clearDraft(ctx, ev)
		d.leaveChat(ctx, ev)
		text, kb := bagSelection(d.pricing)
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionSelectBags:
		return d.chooseBags(ctx, ev, data.Number)
	case callback.ActionCustomBags:
		if err := d.drafts.AwaitCustomBags(ctx, ev.actor); err != nil {
			return d.fail(ctx, ev, err)
		}
		d.leaveChat(ctx, ev)
		d.reply(ctx, ev.target, "✏️ Введите количество пакетов (от 1 до 100):", backKeyboard(callback.ActionClientMenu))
		return nil
	case callback.ActionMyOrders:
		return d.clientOrders(ctx, ev)
	case callback.ActionOrderHistory:
		return d.clientHistory(ctx, ev)
	case callback.ActionMySubscription:
		return d.mySubscription(ctx, ev)
	case callback.ActionBuySubscription:
		d.reply(ctx, ev.target, "⭐ Чтобы оформить подписку, напишите администратору. Подписка выдаётся на 30 дней.",
			backKeyboard(callback.ActionMySubscription))
		return nil
	case callback.ActionBecomeCourier:
		return d.becomeCourier(ctx, ev)
	case callback.ActionCancelOrder:
		order, err := d.orders.Cancel(ctx, data.OrderID, ev.actor, ev.role)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.reply(ctx, ev.target, fmt.Sprintf("❌ Заказ #%d отменён", order.ID), telegram.NewKeyboard(
			telegram.Row(telegram.DataButton("➕ Новый заказ", callback.Menu(callback.ActionNewOrder))),
			backButton(callback.ActionClientMenu),
		))
		return nil
	case callback.ActionPayOrder:
		order, err := d.orders.RetryPayment(ctx, data.OrderID, ev.actor)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.reply(ctx, ev.target, notifications.OrderCard(*order), paymentKeyboard(*order))
		return nil
	case callback.ActionRate:
		if _, err := d.orders.Rate(ctx, data.OrderID, ev.actor, data.Number); err != nil {
			return d.fail(ctx, ev, err)
		}
		d.reply(ctx, ev.target, fmt.Sprintf("Спасибо за оценку %s", strings.Repeat("⭐", data.Number)), backKeyboard(callback.ActionClientMenu))
		return nil

	// chat
	case callback.ActionClientChat, callback.ActionCourierChat, callback.ActionViewChat:
		return d.openChat(ctx, ev, data.OrderID)
	case callback.ActionCloseChat:
		if err := d.chat.Close(ctx, ev.actor); err != nil {
			return d.fail(ctx, ev, err)
		}
		d.reply(ctx, ev.target, "💬 Чат закрыт", backKeyboard(callback.ActionStart))
		return nil

	// courier
	case callback.ActionCourierMenu:
		if err := requireCourier(ev.role); err != nil {
			return d.fail(ctx, ev, err)
		}
		d.leaveChat(ctx, ev)
		text, kb := courierMenu()
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionAvailableOrders:
		return d.availableOrders(ctx, ev)
	case callback.ActionCourierActive:
		return d.courierActive(ctx, ev)
	case callback.ActionCourierHistory:
		return d.courierHistory(ctx, ev)
	case callback.ActionCourierStats:
		return d.courierStats(ctx, ev)
	case callback.ActionCourierWithdraw:
		return d.courierWithdraw(ctx, ev)
	case callback.ActionAcceptOrder:
		order, err := d.orders.Accept(ctx, data.OrderID, ev.actor, ev.role)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		text, kb := acceptedView(*order)
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionStartWork:
		order, err := d.orders.StartWork(ctx, data.OrderID, ev.actor)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		text, kb := workingView(*order)
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionCompleteOrder:
		order, err := d.orders.Complete(ctx, data.OrderID, ev.actor)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		text, kb := completedView(*order)
		d.reply(ctx, ev.target, text, kb)
		return nil

	// staff
	case callback.ActionOperatorMenu:
		if err := requireStaff(ev.role); err != nil {
			return d.fail(ctx, ev, err)
		}
		d.leaveChat(ctx, ev)
		text, kb := operatorMenu()
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionOperatorOrders:
		return d.operatorOrders(ctx, ev)
	case callback.ActionOperatorChats:
		return d.operatorChats(ctx, ev)
	case callback.ActionOperatorStats:
		return d.operatorStats(ctx, ev)
	case callback.ActionSearchChat:
		if err := requireStaff(ev.role); err != nil {
			return d.fail(ctx, ev, err)
		}
		text, kb := searchChatPrompt()
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionOperatorStatus:
		if err := requireStaff(ev.role); err != nil {
			return d.fail(ctx, ev, err)
		}
		order, err := d.orders.Get(ctx, data.OrderID)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		text, kb := statusPicker(*order)
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionSetStatus:
		order, err := d.orders.ForceStatus(ctx, data.OrderID, ev.actor, ev.role, data.Status)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.reply(ctx, ev.target, fmt.Sprintf("✅ Статус заказа #%d изменён на: %s", order.ID, notifications.StatusLabel(order.DetailedStatus)),
			backKeyboard(callback.ActionOperatorOrders))
		return nil

	// admin
	case callback.ActionAdminMenu:
		if err := requireAdmin(ev.role); err != nil {
			return d.fail(ctx, ev, err)
		}
		d.leaveChat(ctx, ev)
		text, kb := adminMenu()
		d.reply(ctx, ev.target, text, kb)
		return nil
	case callback.ActionAdminStats:
		return d.adminStats(ctx, ev)
	case callback.ActionAdminOrders:
		if err := requireAdmin(ev.role); err != nil {
			return d.fail(ctx, ev, err)
		}
		totals, err := d.orders.Summary(ctx)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.reply(ctx, ev.target, adminOrdersView(totals), backKeyboard(callback.ActionAdminMenu))
		return nil
	case callback.ActionAdminApplications:
		return d.pendingApplications(ctx, ev)
	case callback.ActionApproveCourier:
		app, err := d.apps.Approve(ctx, ev.actor, ev.role, data.UserID)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.notified(ctx, "application", d.notifier.ApplicationDecided(ctx, *app))
		d.reply(ctx, ev.target, fmt.Sprintf("✅ Пользователь %d теперь курьер", app.TelegramID), backKeyboard(callback.ActionAdminApplications))
		return nil
	case callback.ActionRejectCourier:
		app, err := d.apps.Reject(ctx, ev.actor, ev.role, data.UserID)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.notified(ctx, "application", d.notifier.ApplicationDecided(ctx, *app))
		d.reply(ctx, ev.target, fmt.Sprintf("❌ Заявка %d отклонена", app.TelegramID), backKeyboard(callback.ActionAdminApplications))
		return nil
	case callback.ActionAdminSubs:
		return d.adminSubscriptions(ctx, ev)
	case callback.ActionCancelSub:
		if err := requireAdmin(ev.role); err != nil {
			return d.fail(ctx, ev, err)
		}
		sub, err := d.subs.Cancel(ctx, data.SubID)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		d.notified(ctx, "subscription", d.notifier.Direct(ctx, sub.ClientID, "ℹ️ Ваша подписка отменена администратором"))
		d.reply(ctx, ev.target, "✅ Подписка отменена", backKeyboard(callback.ActionAdminSubs))
		return nil
	case callback.ActionAdminOperators:
		return d.adminOperators(ctx, ev)
	case callback.ActionAdminCouriers:
		return d.adminCouriers(ctx, ev)
	}

	d.reply(ctx, ev.target.Fresh(), textStaleButton, nil)
	return nil
}

func (d *Dispatcher) clearDraft(ctx context.Context, ev event) {
	if err := d.drafts.Clear(ctx, ev.actor); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "clear draft failed")
	}
}

// leaveChat drops the actor's chat session when they navigate back to a menu.
func (d *Dispatcher) leaveChat(ctx context.Context, ev event) {
	if err := d.chat.Close(ctx, ev.actor); err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "close chat failed")
	}
}

func (d *Dispatcher) clientOrders(ctx context.Context, ev event) error {
	list, err := d.orders.ListClientActive(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	text, kb := orderList("📦 <b>Мои заказы</b>", "Нет активных заказов", list, clientOrderButtons, callback.ActionClientMenu)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) clientHistory(ctx context.Context, ev event) error {
	list, err := d.orders.ListClientHistory(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	text, kb := orderList("📊 <b>История заказов</b>", "Заказов пока нет", list, nil, callback.ActionClientMenu)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) mySubscription(ctx context.Context, ev event) error {
	sub, err := d.subs.ActiveFor(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	used := 0
	if sub != nil && sub.LastOrderDate != nil && sub.LastOrderDate.Equal(d.subs.Today()) {
		used = sub.BagsUsedToday
	}
	kb := backKeyboard(callback.ActionClientMenu)
	if sub == nil {
		kb = telegram.NewKeyboard(
			telegram.Row(telegram.DataButton("⭐ Оформить подписку", callback.Menu(callback.ActionBuySubscription))),
			backButton(callback.ActionClientMenu),
		)
	}
	d.reply(ctx, ev.target, subscriptionView(sub, used), kb)
	return nil
}

func (d *Dispatcher) becomeCourier(ctx context.Context, ev event) error {
	user, err := d.users.Ensure(ctx, ev.profile)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	if _, err := d.apps.Apply(ctx, ev.actor); err != nil {
		return d.fail(ctx, ev, err)
	}
	d.notified(ctx, "application", d.notifier.ApplicationSubmitted(ctx, *user))
	d.reply(ctx, ev.target, "📝 Заявка отправлена! Мы сообщим, когда администратор её рассмотрит.", backKeyboard(callback.ActionStart))
	return nil
}

func (d *Dispatcher) openChat(ctx context.Context, ev event, orderID int64) error {
	order, err := d.chat.Open(ctx, ev.actor, ev.role, orderID)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	// free text now belongs to the chat, not to a half-filled order
	d.clearDraft(ctx, ev)
	if order.DetailedStatus.IsTerminal() {
		history, err := d.chat.History(ctx, orderID)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		text, kb := closedChatView(*order, history)
		d.reply(ctx, ev.target, text, kb)
		return nil
	}
	recent, err := d.chat.Recent(ctx, orderID)
	if err != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "load recent chat failed")
	}
	text, kb := chatOpened(*order, recent, ev.actor)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) availableOrders(ctx context.Context, ev event) error {
	if err := requireCourier(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	list, err := d.orders.ListAvailable(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	text, kb := orderList("📦 <b>Доступные заказы</b>", "Нет доступных заказов", list, availableOrderButtons, callback.ActionCourierMenu)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) courierActive(ctx context.Context, ev event) error {
	if err := requireCourier(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	list, err := d.orders.ListCourierActive(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	text, kb := orderList("🛠 <b>Текущие заказы</b>", "Нет текущих заказов", list, courierOrderButtons, callback.ActionCourierMenu)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) courierHistory(ctx context.Context, ev event) error {
	if err := requireCourier(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	list, err := d.orders.ListCourierHistory(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	text, kb := orderList("📊 <b>История заказов</b>", "Выполненных заказов пока нет", list, nil, callback.ActionCourierMenu)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) courierStats(ctx context.Context, ev event) error {
	if err := requireCourier(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	stats, err := d.orders.CourierStats(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	d.reply(ctx, ev.target, courierStatsView(stats), backKeyboard(callback.ActionCourierMenu))
	return nil
}

func (d *Dispatcher) courierWithdraw(ctx context.Context, ev event) error {
	if err := requireCourier(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	stats, err := d.orders.CourierStats(ctx, ev.actor)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	text, kb := withdrawView(stats.TotalEarnings, d.support)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) operatorStats(ctx context.Context, ev event) error {
	if err := requireStaff(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	stats, err := d.orders.OperatorStats(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	d.reply(ctx, ev.target, operatorStatsView(stats), backKeyboard(callback.ActionOperatorMenu))
	return nil
}

const chatListLimit = 20

func (d *Dispatcher) operatorChats(ctx context.Context, ev event) error {
	if err := requireStaff(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	list, err := d.orders.ListActive(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	if len(list) > chatListLimit {
		list = list[:chatListLimit]
	}
	rows := make([]chatRow, 0, len(list))
	for _, order := range list {
		count, err := d.chat.CountLive(ctx, order.ID)
		if err != nil {
			return d.fail(ctx, ev, err)
		}
		row := chatRow{order: order, client: d.displayName(ctx, order.ClientID), messages: count}
		if order.CourierID != nil {
			row.courier = d.displayName(ctx, *order.CourierID)
		}
		rows = append(rows, row)
	}
	text, kb := operatorChatsView(rows)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

// displayName falls back to the numeric id for users who never opened the bot.
func (d *Dispatcher) displayName(ctx context.Context, telegramID int64) string {
	user, err := d.users.Get(ctx, telegramID)
	if err != nil || user == nil || user.FirstName == "" {
		return fmt.Sprint(telegramID)
	}
	return user.FirstName
}

func (d *Dispatcher) operatorOrders(ctx context.Context, ev event) error {
	if err := requireStaff(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	list, err := d.orders.ListActive(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	text, kb := orderList("📋 <b>Активные заказы</b>", "Нет активных заказов", list, operatorOrderButtons, callback.ActionOperatorMenu)
	d.reply(ctx, ev.target, text, kb)
	return nil
}

func (d *Dispatcher) adminStats(ctx context.Context, ev event) error {
	if err := requireAdmin(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	stats, err := d.admin.Stats(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	d.reply(ctx, ev.target, adminStatsView(stats), backKeyboard(callback.ActionAdminMenu))
	return nil
}

func (d *Dispatcher) pendingApplications(ctx context.Context, ev event) error {
	if err := requireAdmin(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	pending, err := d.apps.ListPending(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	if len(pending) == 0 {
		d.reply(ctx, ev.target, "📝 <b>Заявки курьеров</b>\n\nНовых заявок нет", backKeyboard(callback.ActionAdminMenu))
		return nil
	}
	var sb strings.Builder
	sb.WriteString("📝 <b>Заявки курьеров</b>")
	kb := telegram.NewKeyboard()
	for _, app := range pending {
		fmt.Fprintf(&sb, "\n\n<code>%d</code> · %s", app.TelegramID, app.CreatedAt.Format("02.01.2006 15:04"))
		kb = kb.Append(telegram.Row(
			telegram.DataButton(fmt.Sprintf("✅ %d", app.TelegramID), callback.User(callback.ActionApproveCourier, app.TelegramID)),
			telegram.DataButton(fmt.Sprintf("❌ %d", app.TelegramID), callback.User(callback.ActionRejectCourier, app.TelegramID)),
		))
	}
	d.reply(ctx, ev.target, sb.String(), kb.Append(backButton(callback.ActionAdminMenu)))
	return nil
}

func (d *Dispatcher) adminSubscriptions(ctx context.Context, ev event) error {
	if err := requireAdmin(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	subs, err := d.subs.ListActive(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	var revenue int64
	kb := telegram.NewKeyboard()
	var sb strings.Builder
	for _, sub := range subs {
		revenue += sub.Price
		fmt.Fprintf(&sb, "\n<code>%d</code> · %s · до %s", sub.ClientID, subscriptionLabel(sub.Type), sub.EndDate.Format("02.01.2006"))
		kb = kb.Append(telegram.Row(telegram.DataButton(fmt.Sprintf("❌ Отменить %d", sub.ClientID), callback.CancelSub(sub.ID))))
	}
	text := fmt.Sprintf("⭐ <b>Подписки</b>\n\n📊 Активных: %d\n💰 Доход: %d ₽\n%s\n\nВыдать: <code>sub_add USER_ID daily|alternate</code>",
		len(subs), revenue, sb.String())
	d.reply(ctx, ev.target, text, kb.Append(backButton(callback.ActionAdminMenu)))
	return nil
}

func (d *Dispatcher) adminOperators(ctx context.Context, ev event) error {
	if err := requireAdmin(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	operators, err := d.users.ListOperators(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	var sb strings.Builder
	sb.WriteString("🎧 <b>Операторы</b>\n")
	if len(operators) == 0 {
		sb.WriteString("\nОператоров нет")
	}
	for _, op := range operators {
		fmt.Fprintf(&sb, "\n<code>%d</code>", op.TelegramID)
	}
	sb.WriteString("\n\nДобавить: <code>operator_add ID</code>\nУдалить: <code>operator_remove ID</code>")
	d.reply(ctx, ev.target, sb.String(), backKeyboard(callback.ActionAdminMenu))
	return nil
}

func (d *Dispatcher) adminCouriers(ctx context.Context, ev event) error {
	if err := requireAdmin(ev.role); err != nil {
		return d.fail(ctx, ev, err)
	}
	couriers, err := d.users.ListCouriers(ctx)
	if err != nil {
		return d.fail(ctx, ev, err)
	}
	var sb strings.Builder
	sb.WriteString("🚚 <b>Курьеры</b>\n")
	if len(couriers) == 0 {
		sb.WriteString("\nКурьеров нет")
	}
	for _, c := range couriers {
		fmt.Fprintf(&sb, "\n<code>%d</code> %s", c.TelegramID, html.EscapeString(c.FirstName))
	}
	sb.WriteString("\n\nУдалить: <code>courier_remove ID</code>")
	d.reply(ctx, ev.target, sb.String(), backKeyboard(callback.ActionAdminMenu))
	return nil
}
