package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/courierbot-backend/internal/admin"
	"github.com/angelmondragon/courierbot-backend/internal/applications"
	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/drafts"
	"github.com/angelmondragon/courierbot-backend/internal/notifications"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/internal/roles"
	"github.com/angelmondragon/courierbot-backend/internal/subscriptions"
	"github.com/angelmondragon/courierbot-backend/internal/users"
	"github.com/angelmondragon/courierbot-backend/pkg/config"
	"github.com/angelmondragon/courierbot-backend/pkg/db/dbtest"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	"github.com/angelmondragon/courierbot-backend/pkg/telegram"
	"github.com/angelmondragon/courierbot-backend/pkg/yookassa"
)

const (
	clientID  int64 = 101
	courierID int64 = 202
	rivalID   int64 = 303
	adminID   int64 = 404
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type outgoing struct {
	to       int64
	edit     bool
	text     string
	keyboard telegram.Keyboard
}

type fakeMessenger struct {
	out      []outgoing
	answered []string
}

func (f *fakeMessenger) Send(ctx context.Context, recipient int64, text string, kb telegram.Keyboard) error {
	f.out = append(f.out, outgoing{to: recipient, text: text, keyboard: kb})
	return nil
}

func (f *fakeMessenger) Edit(ctx context.Context, recipient int64, messageID int, text string, kb telegram.Keyboard) error {
	f.out = append(f.out, outgoing{to: recipient, edit: true, text: text, keyboard: kb})
	return nil
}

func (f *fakeMessenger) Delete(ctx context.Context, recipient int64, messageID int) error { return nil }

func (f *fakeMessenger) Answer(ctx context.Context, callbackID string) error {
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeMessenger) Render(ctx context.Context, target telegram.RenderTarget, text string, kb telegram.Keyboard) error {
	if target.MessageID != 0 {
		return f.Edit(ctx, target.ChatID, target.MessageID, text, kb)
	}
	return f.Send(ctx, target.ChatID, text, kb)
}

func (f *fakeMessenger) last(to int64) outgoing {
	for i := len(f.out) - 1; i >= 0; i-- {
		if f.out[i].to == to {
			return f.out[i]
		}
	}
	return outgoing{}
}

func (f *fakeMessenger) reset() { f.out = nil }

func (o outgoing) hasButton(data string) bool {
	for _, row := range o.keyboard {
		for _, b := range row {
			if b.Data == data {
				return true
			}
		}
	}
	return false
}

type fakePayments struct{ calls int }

func (f *fakePayments) CreatePayment(ctx context.Context, amount int64, description string, orderID int64) (*yookassa.Payment, error) {
	f.calls++
	return &yookassa.Payment{
		ID:     fmt.Sprintf("pay-%d", orderID),
		Status: "pending",
		URL:    fmt.Sprintf("https://yoomoney.test/checkout/%d", orderID),
	}, nil
}

type fakeLimiter struct {
	counts map[string]int64
	limit  int64
}

func (f *fakeLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

type brokenLimiter struct{}

func (brokenLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	return false, 0, errors.New("redis: connection refused")
}

type harness struct {
	d         *Dispatcher
	messenger *fakeMessenger
	orders    orders.Service
	conn      *gorm.DB
	nextID    int
}

func newHarness(t *testing.T, opts ...func(*Params)) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	now := func() time.Time { return fixedNow }
	pricing := config.PricingConfig{
		RawModel:              config.PricingModelPerBag,
		BagPrice:              50,
		FlatPrice:             300,
		SubscriptionDaily:     2499,
		SubscriptionAlternate: 1399,
		SubscriptionDays:      30,
	}

	usersRepo := users.NewRepository(conn)
	usersSvc, err := users.NewService(usersRepo)
	require.NoError(t, err)
	resolver, err := roles.NewResolver(usersRepo, nil)
	require.NoError(t, err)
	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo: subscriptions.NewRepository(conn), Users: usersSvc, Pricing: pricing, Now: now,
	})
	require.NoError(t, err)
	ordersRepo := orders.NewRepository(conn)
	chatSvc, err := chat.NewService(chat.ServiceParams{Repo: chat.NewRepository(conn), Orders: ordersRepo, Tx: client, Now: now})
	require.NoError(t, err)

	messenger := &fakeMessenger{}
	notifier, err := notifications.NewService(messenger, usersSvc, nil)
	require.NoError(t, err)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       client,
		Pricing:  orders.NewPricing(pricing),
		Quota:    subs,
		Payments: &fakePayments{},
		Sessions: chatSvc,
		Notifier: notifier,
		Now:      now,
	})
	require.NoError(t, err)
	apps, err := applications.NewService(applications.ServiceParams{
		Repo: applications.NewRepository(conn), Users: usersRepo, Tx: client, Now: now,
	})
	require.NoError(t, err)
	adminSvc, err := admin.NewService(admin.ServiceParams{Users: usersRepo, Subscriptions: subs, Orders: ordersSvc})
	require.NoError(t, err)

	params := Params{
		Messenger:     messenger,
		Users:         usersSvc,
		Roles:         resolver,
		Orders:        ordersSvc,
		Pricing:       orders.NewPricing(pricing),
		Chat:          chatSvc,
		Subscriptions: subs,
		Applications:  apps,
		Admin:         adminSvc,
		Drafts:        drafts.NewStore(conn),
		Notifier:      notifier,
		Now:           now,
	}
	for _, opt := range opts {
		opt(&params)
	}
	d, err := NewDispatcher(params)
	require.NoError(t, err)

	require.NoError(t, conn.Create(&models.AdminUser{TelegramID: adminID}).Error)
	for _, u := range []models.User{
		{TelegramID: courierID, FirstName: "Пётр", Role: enums.RoleCourier},
		{TelegramID: rivalID, FirstName: "Иван", Role: enums.RoleCourier},
		{TelegramID: adminID, FirstName: "Админ", Role: enums.RoleClient},
	} {
		require.NoError(t, conn.Create(&u).Error)
	}
	return &harness{d: d, messenger: messenger, orders: ordersSvc, conn: conn}
}

func (h *harness) say(t *testing.T, from int64, text string) {
	t.Helper()
	h.nextID++
	err := h.d.HandleUpdate(context.Background(), tgbotapi.Update{
		UpdateID: h.nextID,
		Message: &tgbotapi.Message{
			MessageID: h.nextID,
			From:      &tgbotapi.User{ID: from, FirstName: "Анна", UserName: "anna"},
			Chat:      &tgbotapi.Chat{ID: from},
			Text:      text,
		},
	})
	require.NoError(t, err)
}

func (h *harness) press(t *testing.T, from int64, data string) {
	t.Helper()
	h.nextID++
	err := h.d.HandleUpdate(context.Background(), tgbotapi.Update{
		UpdateID: h.nextID,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      fmt.Sprintf("cb-%d", h.nextID),
			From:    &tgbotapi.User{ID: from, FirstName: "Анна"},
			Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: from}},
			Data:    data,
		},
	})
	require.NoError(t, err)
}

func TestStartRegistersClientAndShowsMenu(t *testing.T) {
	h := newHarness(t)
	h.say(t, clientID, "/start")

	var user models.User
	require.NoError(t, h.conn.First(&user, "telegram_id = ?", clientID).Error)
	assert.Equal(t, enums.RoleClient, user.Role)
	assert.Equal(t, "anna", *user.Username)

	reply := h.messenger.last(clientID)
	assert.Contains(t, reply.text, "Меню клиента")
	assert.True(t, reply.hasButton("new_order"))
}

func TestStartShowsRoleMenus(t *testing.T) {
	h := newHarness(t)
	h.say(t, adminID, "/start")
	assert.Contains(t, h.messenger.last(adminID).text, "Админ-панель")

	h.say(t, courierID, "/start")
	assert.Contains(t, h.messenger.last(courierID).text, "Меню курьера")
}

func TestOrderFlowThroughUpdates(t *testing.T) {
	h := newHarness(t)
	h.say(t, clientID, "/start")

	h.press(t, clientID, "new_order")
	assert.True(t, h.messenger.last(clientID).edit)
	assert.True(t, h.messenger.last(clientID).hasButton("select_bags_3"))

	h.press(t, clientID, "select_bags_3")
	assert.Contains(t, h.messenger.last(clientID).text, "150 ₽")

	h.say(t, clientID, "ул. Ленина, 1")
	created := h.messenger.last(clientID)
	assert.Contains(t, created.text, "Заказ #1")
	require.NotEmpty(t, created.keyboard)
	assert.Equal(t, "https://yoomoney.test/checkout/1", created.keyboard[0][0].URL)

	var draftCount int64
	require.NoError(t, h.conn.Model(&models.OrderDraft{}).Count(&draftCount).Error)
	assert.Zero(t, draftCount)

	_, err := h.orders.ConfirmPayment(context.Background(), 1, "pay-1")
	require.NoError(t, err)
	assert.True(t, h.messenger.last(courierID).hasButton("accept_order_1"))

	h.press(t, courierID, "accept_order_1")
	assert.Contains(t, h.messenger.last(courierID).text, "Заказ принят")

	h.press(t, rivalID, "accept_order_1")
	assert.Contains(t, h.messenger.last(rivalID).text, "уже принят")

	h.press(t, clientID, "client_chat_1")
	assert.Contains(t, h.messenger.last(clientID).text, "Чат по заказу #1")
	h.messenger.reset()
	h.say(t, clientID, "Пакеты у двери")
	assert.Contains(t, h.messenger.last(courierID).text, "Пакеты у двери")
	assert.Contains(t, h.messenger.last(clientID).text, "Сообщение отправлено")

	h.press(t, courierID, "start_work_1")
	h.press(t, courierID, "complete_order_1")
	assert.Contains(t, h.messenger.last(courierID).text, "Заработано: 150 ₽")
	assert.True(t, h.messenger.last(clientID).hasButton("rate_1_5"))

	var sessions int64
	require.NoError(t, h.conn.Model(&models.ChatSession{}).Count(&sessions).Error)
	assert.Zero(t, sessions)

	h.press(t, clientID, "rate_1_5")
	assert.Contains(t, h.messenger.last(clientID).text, "Спасибо за оценку")

	h.press(t, courierID, "courier_stats")
	stats := h.messenger.last(courierID).text
	assert.Contains(t, stats, "Выполнено заказов: 1")
	assert.Contains(t, stats, "5.0")
}

func TestCustomBagsRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	h.press(t, clientID, "custom_bags")
	h.say(t, clientID, "сто")
	assert.Contains(t, h.messenger.last(clientID).text, "от 1 до 100")

	h.say(t, clientID, "12")
	assert.Contains(t, h.messenger.last(clientID).text, "Пакетов: 12")

	var draft models.OrderDraft
	require.NoError(t, h.conn.First(&draft, "telegram_id = ?", clientID).Error)
	assert.Equal(t, enums.DraftWaitingAddress, draft.State)
	assert.Equal(t, 12, draft.BagCount)
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t)
	h.say(t, clientID, "/start")

	h.say(t, courierID, fmt.Sprintf("operator_add %d", clientID))
	assert.True(t, strings.HasPrefix(h.messenger.last(courierID).text, "❌"))

	h.say(t, adminID, "operator_add")
	assert.Contains(t, h.messenger.last(adminID).text, "operator_add ID")

	h.messenger.reset()
	h.say(t, adminID, fmt.Sprintf("operator_add %d", clientID))
	assert.NotEmpty(t, h.messenger.last(clientID).text)

	var ops int64
	require.NoError(t, h.conn.Model(&models.OperatorUser{}).Where("telegram_id = ?", clientID).Count(&ops).Error)
	assert.EqualValues(t, 1, ops)

	h.say(t, clientID, "/start")
	assert.Contains(t, h.messenger.last(clientID).text, "Панель оператора")
}

func TestChatCommandWithoutTextIsStaffOnly(t *testing.T) {
	h := newHarness(t)
	h.say(t, clientID, "chat_1")
	assert.Contains(t, h.messenger.last(clientID).text, "chat_ID текст")

	h.say(t, adminID, "chat_abc")
	assert.Contains(t, h.messenger.last(adminID).text, "chat_ID")
}

func TestCourierApplicationFlow(t *testing.T) {
	h := newHarness(t)
	h.say(t, clientID, "/start")
	h.messenger.reset()

	h.press(t, clientID, "become_courier")
	assert.Contains(t, h.messenger.last(clientID).text, "Заявка отправлена")
	assert.True(t, h.messenger.last(adminID).hasButton(fmt.Sprintf("approve_courier_%d", clientID)))

	h.press(t, clientID, "become_courier")
	assert.True(t, strings.HasPrefix(h.messenger.last(clientID).text, "❌"))

	h.press(t, adminID, fmt.Sprintf("approve_courier_%d", clientID))
	assert.Contains(t, h.messenger.last(clientID).text, "одобрена")

	var user models.User
	require.NoError(t, h.conn.First(&user, "telegram_id = ?", clientID).Error)
	assert.Equal(t, enums.RoleCourier, user.Role)
}

func TestFreeTextWithoutContextFallsBack(t *testing.T) {
	h := newHarness(t)
	h.say(t, clientID, "привет")
	assert.Equal(t, textFallback, h.messenger.last(clientID).text)

	var messages int64
	require.NoError(t, h.conn.Model(&models.ChatMessage{}).Count(&messages).Error)
	assert.Zero(t, messages)
}

func TestUnknownCallbackIsAnsweredAndIgnored(t *testing.T) {
	h := newHarness(t)
	h.press(t, clientID, "legacy_button_42")
	assert.Equal(t, textStaleButton, h.messenger.last(clientID).text)
	assert.Len(t, h.messenger.answered, 1)
}

func TestStaffMenusAreGuarded(t *testing.T) {
	h := newHarness(t)
	h.press(t, clientID, "admin_stats")
	assert.Contains(t, h.messenger.last(clientID).text, "только администраторам")

	h.press(t, clientID, "operator_orders")
	assert.Contains(t, h.messenger.last(clientID).text, "только операторам")

	h.press(t, adminID, "admin_stats")
	assert.Contains(t, h.messenger.last(adminID).text, "Статистика сервиса")
}

func TestRateLimitNotifiesOnce(t *testing.T) {
	limiter := &fakeLimiter{counts: map[string]int64{}}
	h := newHarness(t, func(p *Params) {
		p.Limiter = limiter
		p.RateLimit = 2
	})
	for i := 0; i < 5; i++ {
		h.say(t, clientID, "привет")
	}
	var throttled, fallback int
	for _, o := range h.messenger.out {
		switch o.text {
		case textRateLimited:
			throttled++
		case textFallback:
			fallback++
		}
	}
	assert.Equal(t, 1, throttled)
	assert.Equal(t, 2, fallback)
}

func TestRateLimiterFailureFailsOpen(t *testing.T) {
	h := newHarness(t, func(p *Params) {
		p.Limiter = brokenLimiter{}
		p.RateLimit = 1
	})
	h.say(t, clientID, "привет")
	assert.Equal(t, textFallback, h.messenger.last(clientID).text)
}

func TestNewDispatcherRequiresDependencies(t *testing.T) {
	_, err := NewDispatcher(Params{})
	assert.Error(t, err)
}

// acceptedOrder walks the client through checkout and lets courierID accept order #1.
func (h *harness) acceptedOrder(t *testing.T) {
	t.Helper()
	h.say(t, clientID, "/start")
	h.press(t, clientID, "new_order")
	h.press(t, clientID, "select_bags_3")
	h.say(t, clientID, "ул. Ленина, 1")
	_, err := h.orders.ConfirmPayment(context.Background(), 1, "pay-1")
	require.NoError(t, err)
	h.press(t, courierID, "accept_order_1")
	require.Contains(t, h.messenger.last(courierID).text, "Заказ принят")
}

func (h *harness) sessionsOf(t *testing.T, telegramID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.ChatSession{}).Where("telegram_id = ?", telegramID).Count(&n).Error)
	return n
}

func (h *harness) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestOpenChatWinsOverAbandonedDraft(t *testing.T) {
	h := newHarness(t)
	h.acceptedOrder(t)

	h.press(t, clientID, "new_order")
	h.press(t, clientID, "select_bags_2")
	h.press(t, clientID, "my_orders")
	h.press(t, clientID, "client_chat_1")
	h.messenger.reset()

	h.say(t, clientID, "Где вы?")
	assert.Contains(t, h.messenger.last(courierID).text, "Где вы?")
	assert.Contains(t, h.messenger.last(clientID).text, "Сообщение отправлено")
	assert.EqualValues(t, 1, h.orderCount(t))

	var drafts int64
	require.NoError(t, h.conn.Model(&models.OrderDraft{}).Count(&drafts).Error)
	assert.Zero(t, drafts)
}

func TestStartingDraftLeavesChat(t *testing.T) {
	h := newHarness(t)
	h.acceptedOrder(t)
	h.press(t, clientID, "client_chat_1")
	require.EqualValues(t, 1, h.sessionsOf(t, clientID))

	h.press(t, clientID, "new_order")
	h.press(t, clientID, "select_bags_2")
	assert.Zero(t, h.sessionsOf(t, clientID))
	h.messenger.reset()

	h.say(t, clientID, "пр. Мира, 5")
	assert.EqualValues(t, 2, h.orderCount(t))
	assert.Contains(t, h.messenger.last(clientID).text, "Заказ #2")
	assert.NotContains(t, h.messenger.last(courierID).text, "пр. Мира, 5")
}

func TestMenuNavigationClosesChat(t *testing.T) {
	h := newHarness(t)
	h.acceptedOrder(t)

	h.press(t, courierID, "courier_chat_1")
	require.EqualValues(t, 1, h.sessionsOf(t, courierID))
	h.press(t, courierID, "courier_menu")
	assert.Contains(t, h.messenger.last(courierID).text, "Меню курьера")
	assert.Zero(t, h.sessionsOf(t, courierID))

	h.press(t, adminID, "view_chat_1")
	require.EqualValues(t, 1, h.sessionsOf(t, adminID))
	h.press(t, adminID, "operator_menu")
	assert.Contains(t, h.messenger.last(adminID).text, "Панель оператора")
	assert.Zero(t, h.sessionsOf(t, adminID))

	h.press(t, adminID, "view_chat_1")
	h.press(t, adminID, "admin_menu")
	assert.Zero(t, h.sessionsOf(t, adminID))

	h.press(t, clientID, "client_chat_1")
	h.say(t, clientID, "/start")
	assert.Zero(t, h.sessionsOf(t, clientID))

	h.messenger.reset()
	h.say(t, courierID, "уже еду")
	assert.Equal(t, textFallback, h.messenger.last(courierID).text)
	assert.Empty(t, h.messenger.last(clientID).text)
}

func TestChatCommandSendsIntoOrderChat(t *testing.T) {
	h := newHarness(t)
	h.acceptedOrder(t)
	h.messenger.reset()

	h.say(t, clientID, "chat_1 привет, я дома")
	assert.Contains(t, h.messenger.last(courierID).text, "привет, я дома")
	assert.Contains(t, h.messenger.last(clientID).text, "Сообщение отправлено")

	h.say(t, rivalID, "chat_1 это не мой заказ")
	assert.True(t, strings.HasPrefix(h.messenger.last(rivalID).text, "❌"))

	var messages int64
	require.NoError(t, h.conn.Model(&models.ChatMessage{}).Count(&messages).Error)
	assert.EqualValues(t, 1, messages)
}

func TestStaffReadsClosedChatWithoutSession(t *testing.T) {
	h := newHarness(t)
	h.acceptedOrder(t)
	h.say(t, clientID, "chat_1 пакеты у двери")
	h.press(t, courierID, "start_work_1")
	h.press(t, courierID, "complete_order_1")

	h.press(t, adminID, "view_chat_1")
	reply := h.messenger.last(adminID)
	assert.Contains(t, reply.text, "пакеты у двери")
	assert.Contains(t, reply.text, "Заказ закрыт")
	assert.Zero(t, h.sessionsOf(t, adminID))

	h.press(t, clientID, "client_chat_1")
	assert.Contains(t, h.messenger.last(clientID).text, "уже закрыт")
}

func TestOperatorScreens(t *testing.T) {
	h := newHarness(t)
	h.acceptedOrder(t)
	h.say(t, clientID, "chat_1 жду")

	h.press(t, adminID, "operator_chats")
	chats := h.messenger.last(adminID)
	assert.Contains(t, chats.text, "Заказ #1")
	assert.Contains(t, chats.text, "Клиент: Анна")
	assert.Contains(t, chats.text, "Курьер: Пётр")
	assert.Contains(t, chats.text, "Сообщений: 1")
	assert.True(t, chats.hasButton("view_chat_1"))
	assert.True(t, chats.hasButton("search_chat"))

	h.press(t, adminID, "search_chat")
	assert.Contains(t, h.messenger.last(adminID).text, "chat_123")

	h.press(t, adminID, "operator_stats")
	stats := h.messenger.last(adminID).text
	assert.Contains(t, stats, "Ожидают курьера: 0")
	assert.Contains(t, stats, "В работе: 1")
	assert.Contains(t, stats, "Завершено сегодня: 0")

	h.press(t, courierID, "operator_stats")
	assert.Contains(t, h.messenger.last(courierID).text, "только операторам")
	h.press(t, clientID, "operator_chats")
	assert.Contains(t, h.messenger.last(clientID).text, "только операторам")
}

func TestAdminOrdersOverview(t *testing.T) {
	h := newHarness(t)
	h.acceptedOrder(t)
	h.press(t, courierID, "start_work_1")
	h.press(t, courierID, "complete_order_1")

	h.press(t, adminID, "admin_orders")
	text := h.messenger.last(adminID).text
	assert.Contains(t, text, "Завершено: 1")
	assert.Contains(t, text, "В работе: 0")
	assert.Contains(t, text, "150 ₽")

	h.press(t, courierID, "admin_orders")
	assert.Contains(t, h.messenger.last(courierID).text, "только администраторам")
}

func TestCourierWithdrawShowsEarnings(t *testing.T) {
	h := newHarness(t, func(p *Params) { p.SupportURL = "https://t.me/courier_help" })
	h.acceptedOrder(t)
	h.press(t, courierID, "start_work_1")
	h.press(t, courierID, "complete_order_1")

	h.press(t, courierID, "courier_withdraw")
	reply := h.messenger.last(courierID)
	assert.Contains(t, reply.text, "Доступно для вывода: <b>150 ₽</b>")
	require.NotEmpty(t, reply.keyboard)
	assert.Equal(t, "https://t.me/courier_help", reply.keyboard[0][0].URL)
	assert.True(t, reply.hasButton("courier_menu"))

	h.press(t, clientID, "courier_withdraw")
	assert.True(t, strings.HasPrefix(h.messenger.last(clientID).text, "❌"))
}
