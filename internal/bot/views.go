package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/angelmondragon/courierbot-backend/internal/admin"
	"github.com/angelmondragon/courierbot-backend/internal/bot/callback"
	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/notifications"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	"github.com/angelmondragon/courierbot-backend/pkg/telegram"
)

const (
	textFallback     = "Используйте /start для начала работы"
	textGenericError = "⚠️ Что-то пошло не так. Попробуйте позже."
	textRateLimited  = "⏳ Слишком много запросов. Подождите минуту."
	textStaleButton  = "Эта кнопка устарела. Используйте /start"
	textHelp         = "ℹ️ <b>Помощь</b>\n\n" +
		"Закажите вывоз мусора: выберите количество пакетов и отправьте адрес.\n" +
		"После оплаты заказ увидят курьеры. С курьером можно переписываться прямо в боте.\n\n" +
		"Подписка даёт до 2 бесплатных пакетов в день."
)

const quickBagButtons = 10

func backButton(action callback.Action) []telegram.Button {
	return telegram.Row(telegram.DataButton("⬅️ Назад", callback.Menu(action)))
}

func backKeyboard(action callback.Action) telegram.Keyboard {
	return telegram.NewKeyboard(backButton(action))
}

func mainMenu(role enums.Role) (string, telegram.Keyboard) {
	switch role {
	case enums.RoleAdmin:
		return adminMenu()
	case enums.RoleOperator:
		return operatorMenu()
	case enums.RoleCourier:
		return courierMenu()
	}
	return clientMenu()
}

func clientMenu() (string, telegram.Keyboard) {
	return "👤 <b>Меню клиента</b>\n\nВыберите действие:", telegram.NewKeyboard(
		telegram.Row(telegram.DataButton("➕ Сделать заказ", callback.Menu(callback.ActionNewOrder))),
		telegram.Row(
			telegram.DataButton("📦 Мои заказы", callback.Menu(callback.ActionMyOrders)),
			telegram.DataButton("📊 История", callback.Menu(callback.ActionOrderHistory)),
		),
		telegram.Row(telegram.DataButton("⭐ Подписка", callback.Menu(callback.ActionMySubscription))),
		telegram.Row(telegram.DataButton("🚚 Стать курьером", callback.Menu(callback.ActionBecomeCourier))),
		telegram.Row(telegram.DataButton("ℹ️ Помощь", callback.Menu(callback.ActionHelp))),
	)
}

func operatorMenu() (string, telegram.Keyboard) {
	return "🎧 <b>Панель оператора</b>\n\nВыберите действие:", telegram.NewKeyboard(
		telegram.Row(telegram.DataButton("📋 Активные заказы", callback.Menu(callback.ActionOperatorOrders))),
		telegram.Row(telegram.DataButton("💬 Чаты заказов", callback.Menu(callback.ActionOperatorChats))),
		telegram.Row(telegram.DataButton("📊 Статистика", callback.Menu(callback.ActionOperatorStats))),
		telegram.Row(telegram.DataButton("👤 Меню клиента", callback.Menu(callback.ActionClientMenu))),
	)
}

func courierMenu() (string, telegram.Keyboard) {
	return "🚚 <b>Меню курьера</b>\n\nВыберите действие:", telegram.NewKeyboard(
		telegram.Row(telegram.DataButton("📦 Доступные заказы", callback.Menu(callback.ActionAvailableOrders))),
		telegram.Row(telegram.DataButton("🛠 Текущие заказы", callback.Menu(callback.ActionCourierActive))),
		telegram.Row(
			telegram.DataButton("📊 История", callback.Menu(callback.ActionCourierHistory)),
			telegram.DataButton("💰 Статистика", callback.Menu(callback.ActionCourierStats)),
		),
		telegram.Row(telegram.DataButton("💵 Вывод средств", callback.Menu(callback.ActionCourierWithdraw))),
		telegram.Row(telegram.DataButton("👤 Меню клиента", callback.Menu(callback.ActionClientMenu))),
	)
}

func adminMenu() (string, telegram.Keyboard) {
	return "👑 <b>Админ-панель</b>\n\nВыберите действие:", telegram.NewKeyboard(
		telegram.Row(
			telegram.DataButton("📊 Статистика", callback.Menu(callback.ActionAdminStats)),
			telegram.DataButton("📦 Все заказы", callback.Menu(callback.ActionAdminOrders)),
		),
		telegram.Row(telegram.DataButton("📝 Заявки курьеров", callback.Menu(callback.ActionAdminApplications))),
		telegram.Row(
			telegram.DataButton("⭐ Подписки", callback.Menu(callback.ActionAdminSubs)),
			telegram.DataButton("🎧 Операторы", callback.Menu(callback.ActionAdminOperators)),
		),
		telegram.Row(telegram.DataButton("🚚 Курьеры", callback.Menu(callback.ActionAdminCouriers))),
		telegram.Row(
			telegram.DataButton("📋 Режим оператора", callback.Menu(callback.ActionOperatorMenu)),
			telegram.DataButton("🛵 Режим курьера", callback.Menu(callback.ActionCourierMenu)),
		),
		telegram.Row(telegram.DataButton("👤 Меню клиента", callback.Menu(callback.ActionClientMenu))),
	)
}

func bagSelection(pricing orders.Pricing) (string, telegram.Keyboard) {
	kb := telegram.NewKeyboard()
	for i := 1; i <= quickBagButtons; i += 2 {
		kb = kb.Append(telegram.Row(
			bagButton(pricing, i),
			bagButton(pricing, i+1),
		))
	}
	kb = kb.Append(
		telegram.Row(telegram.DataButton("✏️ Своё количество", callback.Menu(callback.ActionCustomBags))),
		backButton(callback.ActionClientMenu),
	)
	return "➕ <b>Новый заказ</b>\n\nСколько пакетов нужно вынести?", kb
}

func bagButton(pricing orders.Pricing, n int) telegram.Button {
	return telegram.DataButton(fmt.Sprintf("%s · %d ₽", orders.BagsLabel(n), pricing.Price(n, false)), callback.SelectBags(n))
}

func bagsChosen(p orders.Preview) string {
	price := fmt.Sprintf("💰 Стоимость: %d ₽", p.Price)
	if p.Covered {
		price = "⭐ Бесплатно по подписке"
	}
	return fmt.Sprintf("🛍 Пакетов: %d\n%s\n\n📍 Отправьте адрес одним сообщением.", p.Bags, price)
}

func orderCreated(res *orders.CreateResult) (string, telegram.Keyboard) {
	order := res.Order
	card := notifications.OrderCard(order)
	switch {
	case res.PaymentErr != nil:
		return card + "\n\n⚠️ Не удалось создать платёж. Попробуйте ещё раз.", telegram.NewKeyboard(
			telegram.Row(telegram.DataButton("💳 Повторить оплату", callback.Order(callback.ActionPayOrder, order.ID))),
			backButton(callback.ActionClientMenu),
		)
	case order.DetailedStatus == enums.OrderDetailedWaitingPayment && order.PaymentURL != nil:
		return card + "\n\nОплатите заказ, и мы начнём поиск курьера.", paymentKeyboard(order)
	}
	return card + "\n\n✅ Заказ создан! Ищем курьера.", backKeyboard(callback.ActionClientMenu)
}

func paymentKeyboard(order models.Order) telegram.Keyboard {
	return telegram.NewKeyboard(
		telegram.Row(telegram.URLButton(fmt.Sprintf("💳 Оплатить %d ₽", order.Price), *order.PaymentURL)),
		backButton(callback.ActionClientMenu),
	)
}

func orderList(title, empty string, list []models.Order, buttons func(models.Order) []telegram.Button, back callback.Action) (string, telegram.Keyboard) {
	if len(list) == 0 {
		return title + "\n\n" + empty, backKeyboard(back)
	}
	var sb strings.Builder
	sb.WriteString(title)
	kb := telegram.NewKeyboard()
	for _, o := range list {
		sb.WriteString("\n\n")
		sb.WriteString(notifications.OrderCard(o))
		if buttons != nil {
			if row := buttons(o); len(row) > 0 {
				kb = kb.Append(row)
			}
		}
	}
	return sb.String(), kb.Append(backButton(back))
}

func clientOrderButtons(o models.Order) []telegram.Button {
	var row []telegram.Button
	switch o.DetailedStatus {
	case enums.OrderDetailedWaitingPayment:
		row = append(row, telegram.DataButton(fmt.Sprintf("💳 Оплатить #%d", o.ID), callback.Order(callback.ActionPayOrder, o.ID)))
	case enums.OrderDetailedSearchingCourier:
		row = append(row, telegram.DataButton(fmt.Sprintf("❌ Отменить #%d", o.ID), callback.Order(callback.ActionCancelOrder, o.ID)))
	case enums.OrderDetailedCourierOnWay, enums.OrderDetailedCourierWorking:
		row = append(row, telegram.DataButton(fmt.Sprintf("💬 Чат #%d", o.ID), callback.Order(callback.ActionClientChat, o.ID)))
	}
	return row
}

func courierOrderButtons(o models.Order) []telegram.Button {
	row := []telegram.Button{}
	switch o.DetailedStatus {
	case enums.OrderDetailedCourierOnWay:
		row = append(row, telegram.DataButton(fmt.Sprintf("🛠 Начать #%d", o.ID), callback.Order(callback.ActionStartWork, o.ID)))
	case enums.OrderDetailedCourierWorking:
		row = append(row, telegram.DataButton(fmt.Sprintf("✅ Завершить #%d", o.ID), callback.Order(callback.ActionCompleteOrder, o.ID)))
	}
	return append(row, telegram.DataButton("💬 Чат", callback.Order(callback.ActionCourierChat, o.ID)))
}

func availableOrderButtons(o models.Order) []telegram.Button {
	return telegram.Row(telegram.DataButton(fmt.Sprintf("✅ Принять #%d", o.ID), callback.Order(callback.ActionAcceptOrder, o.ID)))
}

func operatorOrderButtons(o models.Order) []telegram.Button {
	return telegram.Row(
		telegram.DataButton(fmt.Sprintf("💬 Чат #%d", o.ID), callback.Order(callback.ActionViewChat, o.ID)),
		telegram.DataButton(fmt.Sprintf("📝 Статус #%d", o.ID), callback.Order(callback.ActionOperatorStatus, o.ID)),
	)
}

var forcibleStatuses = []enums.OrderDetailedStatus{
	enums.OrderDetailedSearchingCourier,
	enums.OrderDetailedCourierOnWay,
	enums.OrderDetailedCourierWorking,
	enums.OrderDetailedCompleted,
	enums.OrderDetailedCancelled,
}

func statusPicker(order models.Order) (string, telegram.Keyboard) {
	kb := telegram.NewKeyboard()
	for _, s := range forcibleStatuses {
		if s == order.DetailedStatus {
			continue
		}
		kb = kb.Append(telegram.Row(telegram.DataButton(notifications.StatusLabel(s), callback.SetStatus(order.ID, s))))
	}
	return fmt.Sprintf("📝 Изменить статус заказа #%d\n\nСейчас: %s", order.ID, notifications.StatusLabel(order.DetailedStatus)),
		kb.Append(backButton(callback.ActionOperatorOrders))
}

func acceptedView(order models.Order) (string, telegram.Keyboard) {
	return notifications.OrderCard(order) + "\n\n✅ Заказ принят! Клиент уведомлён.", telegram.NewKeyboard(
		telegram.Row(telegram.DataButton("🛠 Начать работу", callback.Order(callback.ActionStartWork, order.ID))),
		telegram.Row(telegram.DataButton("💬 Чат с клиентом", callback.Order(callback.ActionCourierChat, order.ID))),
		backButton(callback.ActionCourierMenu),
	)
}

func workingView(order models.Order) (string, telegram.Keyboard) {
	return notifications.OrderCard(order) + "\n\n🛠 Работа начата.", telegram.NewKeyboard(
		telegram.Row(telegram.DataButton("✅ Завершить заказ", callback.Order(callback.ActionCompleteOrder, order.ID))),
		telegram.Row(telegram.DataButton("💬 Чат с клиентом", callback.Order(callback.ActionCourierChat, order.ID))),
		backButton(callback.ActionCourierActive),
	)
}

func completedView(order models.Order) (string, telegram.Keyboard) {
	return fmt.Sprintf("✅ Заказ #%d завершён!\n\n💰 Заработано: %d ₽", order.ID, order.Price), telegram.NewKeyboard(
		telegram.Row(telegram.DataButton("💰 Статистика", callback.Menu(callback.ActionCourierStats))),
		backButton(callback.ActionCourierMenu),
	)
}

func courierStatsView(s *orders.CourierSummary) string {
	rating := "нет оценок"
	if s.RatingsCount > 0 {
		rating = fmt.Sprintf("%.1f ⭐ (%d)", s.AverageRating, s.RatingsCount)
	}
	return fmt.Sprintf("💰 <b>Статистика</b>\n\n📦 Выполнено заказов: %d\n💵 Заработано: %d ₽\n🧾 Средний чек: %.0f ₽\n⭐ Рейтинг: %s",
		s.TotalOrders, s.TotalEarnings, s.AverageCheck, rating)
}

func withdrawView(earnings int64, supportURL string) (string, telegram.Keyboard) {
	text := fmt.Sprintf("💵 <b>Вывод средств</b>\n\nДоступно для вывода: <b>%d ₽</b>\n\n"+
		"Для вывода средств свяжитесь с администратором.", earnings)
	kb := telegram.NewKeyboard()
	if supportURL != "" {
		kb = kb.Append(telegram.Row(telegram.URLButton("💬 Связаться с администратором", supportURL)))
	}
	return text, kb.Append(backButton(callback.ActionCourierMenu))
}

func operatorStatsView(s *orders.OperatorSummary) string {
	return fmt.Sprintf("📊 <b>Статистика оператора</b>\n\n🔍 Ожидают курьера: %d\n🚚 В работе: %d\n✅ Завершено сегодня: %d",
		s.Pending, s.InProgress, s.CompletedToday)
}

// chatRow is one line of the operator chat list.
type chatRow struct {
	order    models.Order
	client   string
	courier  string
	messages int64
}

func operatorChatsView(rows []chatRow) (string, telegram.Keyboard) {
	search := telegram.Row(telegram.DataButton("🔍 Найти чат по номеру", callback.Menu(callback.ActionSearchChat)))
	if len(rows) == 0 {
		return "💬 <b>Чаты заказов</b>\n\nНет активных заказов", telegram.NewKeyboard(search, backButton(callback.ActionOperatorMenu))
	}
	var sb strings.Builder
	sb.WriteString("💬 <b>Чаты заказов</b>\n\nВыберите заказ для просмотра чата:")
	kb := telegram.NewKeyboard()
	for _, row := range rows {
		courier := row.courier
		if courier == "" {
			courier = "не назначен"
		}
		fmt.Fprintf(&sb, "\n\n🆔 Заказ #%d · %s\n👤 Клиент: %s\n🚚 Курьер: %s\n💬 Сообщений: %d",
			row.order.ID, notifications.StatusLabel(row.order.DetailedStatus),
			html.EscapeString(row.client), html.EscapeString(courier), row.messages)
		kb = kb.Append(telegram.Row(telegram.DataButton(fmt.Sprintf("💬 Чат #%d", row.order.ID), callback.Order(callback.ActionViewChat, row.order.ID))))
	}
	return sb.String(), kb.Append(search, backButton(callback.ActionOperatorMenu))
}

func searchChatPrompt() (string, telegram.Keyboard) {
	text := "🔍 <b>Поиск чата</b>\n\nОтправьте номер заказа, например: <code>chat_123</code>\n" +
		"Чтобы написать в чат: <code>chat_123 текст</code>"
	return text, backKeyboard(callback.ActionOperatorChats)
}

func adminOrdersView(t orders.Totals) string {
	return fmt.Sprintf("📦 <b>Все заказы</b>\n\n🔍 В ожидании: %d\n🚚 В работе: %d\n✅ Завершено: %d\n\n💰 Общая выручка: %d ₽",
		t.Pending, t.Active-t.Pending, t.Completed, t.Revenue)
}

func adminStatsView(s *admin.Stats) string {
	return fmt.Sprintf("📊 <b>Статистика сервиса</b>\n\n"+
		"👤 Клиентов: %d\n🚚 Курьеров: %d\n🎧 Операторов: %d\n\n"+
		"📦 Заказов: %d\n✅ Выполнено: %d\n🔄 В работе: %d\n\n"+
		"💰 Выручка: %d ₽\n🧾 Средний чек: %.0f ₽",
		s.Clients, s.Couriers, s.Operators, s.Orders, s.Completed, s.Active, s.Revenue, s.AverageCheck)
}

func subscriptionView(sub *models.Subscription, used int) string {
	if sub == nil {
		return "⭐ <b>Подписка</b>\n\nУ вас нет активной подписки.\n\nПодписка даёт до 2 бесплатных пакетов в день."
	}
	return fmt.Sprintf("⭐ <b>Подписка</b>\n\nТип: %s\nДействует до: %s\nИспользовано сегодня: %d из 2",
		subscriptionLabel(sub.Type), sub.EndDate.Format("02.01.2006"), used)
}

func subscriptionLabel(t enums.SubscriptionType) string {
	if t == enums.SubscriptionAlternateDay {
		return "через день"
	}
	return "ежедневная"
}

func chatOpened(order models.Order, recent []chat.Entry, actor int64) (string, telegram.Keyboard) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💬 <b>Чат по заказу #%d</b>\n\nПишите сообщения, они будут доставлены собеседнику.", order.ID)
	if len(recent) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(transcript(recent, actor))
	}
	return sb.String(), telegram.NewKeyboard(
		telegram.Row(telegram.DataButton("✖️ Закрыть чат", callback.Menu(callback.ActionCloseChat))),
	)
}

// closedChatView is the read-only transcript staff see for a finished order.
func closedChatView(order models.Order, entries []chat.Entry) (string, telegram.Keyboard) {
	return historyView(order.ID, entries) + "\n\n🔒 Заказ закрыт, отправка сообщений недоступна.",
		backKeyboard(callback.ActionOperatorChats)
}

func historyView(orderID int64, entries []chat.Entry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("💬 Чат заказа #%d пуст", orderID)
	}
	return fmt.Sprintf("💬 <b>История чата #%d</b>\n\n%s", orderID, transcript(entries, 0))
}

func transcript(entries []chat.Entry, self int64) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		who := fmt.Sprintf("%d", e.SenderID)
		if e.SenderID == self {
			who = "Вы"
		}
		mark := ""
		if e.Archived {
			mark = "🗄 "
		}
		lines = append(lines, fmt.Sprintf("%s<i>%s %s</i>: %s", mark, who, e.CreatedAt.Format("02.01 15:04"), html.EscapeString(e.Message)))
	}
	return strings.Join(lines, "\n")
}

func ratingPrompt(orderID int64) string {
	return fmt.Sprintf("⭐ Оцените курьера по заказу #%d", orderID)
}
