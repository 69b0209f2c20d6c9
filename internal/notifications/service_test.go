package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/pkg/db/models"
	"github.com/angelmondragon/courierbot-backend/pkg/enums"
	"github.com/angelmondragon/courierbot-backend/pkg/telegram"
)

type sent struct {
	to       int64
	text     string
	keyboard telegram.Keyboard
}

type fakeMessenger struct {
	sent    []sent
	failFor map[int64]bool
}

func (f *fakeMessenger) Send(ctx context.Context, recipient int64, text string, kb telegram.Keyboard) error {
	if f.failFor[recipient] {
		return errors.New("bot was blocked by the user")
	}
	f.sent = append(f.sent, sent{to: recipient, text: text, keyboard: kb})
	return nil
}

func (f *fakeMessenger) Edit(ctx context.Context, recipient int64, messageID int, text string, kb telegram.Keyboard) error {
	return nil
}

func (f *fakeMessenger) Delete(ctx context.Context, recipient int64, messageID int) error { return nil }

func (f *fakeMessenger) Answer(ctx context.Context, callbackID string) error { return nil }

func (f *fakeMessenger) Render(ctx context.Context, target telegram.RenderTarget, text string, kb telegram.Keyboard) error {
	return f.Send(ctx, target.ChatID, text, kb)
}

func (f *fakeMessenger) recipients() []int64 {
	out := make([]int64, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.to)
	}
	return out
}

type fakeDirectory struct {
	couriers []int64
	staff    []int64
}

func (d fakeDirectory) CourierIDs(ctx context.Context) ([]int64, error) { return d.couriers, nil }
func (d fakeDirectory) StaffIDs(ctx context.Context) ([]int64, error)   { return d.staff, nil }

func newTestService(t *testing.T, m *fakeMessenger) *Service {
	t.Helper()
	svc, err := NewService(m, fakeDirectory{couriers: []int64{21, 22}, staff: []int64{1}}, nil)
	require.NoError(t, err)
	return svc
}

func TestPaymentConfirmedNotifiesClientAndCouriers(t *testing.T) {
	m := &fakeMessenger{}
	svc := newTestService(t, m)
	order := models.Order{ID: 7, ClientID: 10, Address: "ул. <Мира>", BagCount: 2, Price: 100, DetailedStatus: enums.OrderDetailedSearchingCourier}

	require.NoError(t, svc.Notify(context.Background(), orders.Event{Kind: orders.EventPaymentConfirmed, Order: order}))
	assert.Equal(t, []int64{10, 21, 22}, m.recipients())
	assert.Contains(t, m.sent[1].text, "ул. &lt;Мира&gt;")
	assert.Equal(t, "accept_order_7", m.sent[1].keyboard[0][0].Data)
}

func TestFanOutAggregatesFailures(t *testing.T) {
	m := &fakeMessenger{failFor: map[int64]bool{21: true, 22: true}}
	svc := newTestService(t, m)
	order := models.Order{ID: 7, ClientID: 10, DetailedStatus: enums.OrderDetailedSearchingCourier}

	err := svc.Notify(context.Background(), orders.Event{Kind: orders.EventCreated, Order: order})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestCompletedSendsRatingKeyboard(t *testing.T) {
	m := &fakeMessenger{}
	svc := newTestService(t, m)
	order := models.Order{ID: 3, ClientID: 10, DetailedStatus: enums.OrderDetailedCompleted}

	require.NoError(t, svc.Notify(context.Background(), orders.Event{Kind: orders.EventCompleted, Order: order}))
	require.Len(t, m.sent, 1)
	require.Len(t, m.sent[0].keyboard[0], 5)
	assert.Equal(t, "rate_3_5", m.sent[0].keyboard[0][4].Data)
}

func TestCancelledByClientIsSilent(t *testing.T) {
	m := &fakeMessenger{}
	svc := newTestService(t, m)
	order := models.Order{ID: 3, ClientID: 10}

	require.NoError(t, svc.Notify(context.Background(), orders.Event{Kind: orders.EventCancelled, Order: order, ActorID: 10}))
	assert.Empty(t, m.sent)

	require.NoError(t, svc.Notify(context.Background(), orders.Event{Kind: orders.EventCancelled, Order: order, ActorID: 1}))
	assert.Equal(t, []int64{10}, m.recipients())
}

func TestChatDeliveryReplyButtonsPerSide(t *testing.T) {
	m := &fakeMessenger{}
	svc := newTestService(t, m)
	delivery := &chat.Delivery{
		Message: models.ChatMessage{Message: "<b>привет</b>"},
		Order:   models.Order{ID: 5},
		Sender:  chat.SenderStaff,
		Recipients: []chat.Recipient{
			{TelegramID: 10, Kind: chat.SenderClient},
			{TelegramID: 21, Kind: chat.SenderCourier},
		},
	}

	require.NoError(t, svc.ChatDelivery(context.Background(), delivery))
	require.Len(t, m.sent, 2)
	assert.Equal(t, "client_chat_5", m.sent[0].keyboard[0][0].Data)
	assert.Equal(t, "courier_chat_5", m.sent[1].keyboard[0][0].Data)
	assert.Contains(t, m.sent[0].text, "&lt;b&gt;привет&lt;/b&gt;")
	assert.Contains(t, m.sent[0].text, "Оператор")
}

func TestApplicationSubmittedGoesToStaff(t *testing.T) {
	m := &fakeMessenger{}
	svc := newTestService(t, m)
	name := "ivan"
	require.NoError(t, svc.ApplicationSubmitted(context.Background(), models.User{TelegramID: 55, FirstName: "Иван", Username: &name}))
	require.Len(t, m.sent, 1)
	assert.Equal(t, int64(1), m.sent[0].to)
	assert.Equal(t, "approve_courier_55", m.sent[0].keyboard[0][0].Data)
	assert.Equal(t, "reject_courier_55", m.sent[0].keyboard[0][1].Data)
}
