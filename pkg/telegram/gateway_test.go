package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

type stubSender struct {
	sent       []tgbotapi.Chattable
	requested  []tgbotapi.Chattable
	sendErr    error
	requestErr error
}

func (s *stubSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: len(s.sent)}, s.sendErr
}

func (s *stubSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.requested = append(s.requested, c)
	if s.requestErr != nil {
		return nil, s.requestErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestSendAttachesKeyboardAndHTML(t *testing.T) {
	sender := &stubSender{}
	gw := NewWithSender(sender)

	kb := NewKeyboard(Row(DataButton("Принять", "accept_order_5")), Row(URLButton("Оплатить", "https://pay")))
	require.NoError(t, gw.Send(context.Background(), 77, "hello", kb))

	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(77), msg.ChatID)
	assert.Equal(t, "HTML", msg.ParseMode)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "accept_order_5", *markup.InlineKeyboard[0][0].CallbackData)
	require.NotNil(t, markup.InlineKeyboard[1][0].URL)
	assert.Equal(t, "https://pay", *markup.InlineKeyboard[1][0].URL)
}

func TestSendWithoutKeyboardLeavesMarkupNil(t *testing.T) {
	sender := &stubSender{}
	require.NoError(t, NewWithSender(sender).Send(context.Background(), 1, "x", nil))
	msg := sender.sent[0].(tgbotapi.MessageConfig)
	assert.Nil(t, msg.ReplyMarkup)
}

func TestRenderEditsWhenMessageIDPresent(t *testing.T) {
	sender := &stubSender{}
	gw := NewWithSender(sender)

	require.NoError(t, gw.Render(context.Background(), RenderTarget{ChatID: 3, MessageID: 9}, "menu", nil))
	require.Len(t, sender.requested, 1)
	edit, ok := sender.requested[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 9, edit.MessageID)
	assert.Empty(t, sender.sent)

	require.NoError(t, gw.Render(context.Background(), RenderTarget{ChatID: 3}, "menu", nil))
	assert.Len(t, sender.sent, 1)
}

func TestRenderFallsBackToSendWhenEditFails(t *testing.T) {
	sender := &stubSender{requestErr: errors.New("Bad Request: message to edit not found")}
	gw := NewWithSender(sender)

	require.NoError(t, gw.Render(context.Background(), RenderTarget{ChatID: 3, MessageID: 9}, "menu", nil))
	assert.Len(t, sender.sent, 1)
}

func TestEditIgnoresNotModified(t *testing.T) {
	sender := &stubSender{requestErr: errors.New("Bad Request: message is not modified")}
	require.NoError(t, NewWithSender(sender).Edit(context.Background(), 1, 2, "same", nil))
}

func TestSendFailureIsDependencyError(t *testing.T) {
	sender := &stubSender{sendErr: errors.New("timeout")}
	err := NewWithSender(sender).Send(context.Background(), 1, "x", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestAnswerSkipsEmptyCallbackID(t *testing.T) {
	sender := &stubSender{}
	gw := NewWithSender(sender)
	require.NoError(t, gw.Answer(context.Background(), ""))
	assert.Empty(t, sender.requested)
	require.NoError(t, gw.Answer(context.Background(), "cb-1"))
	assert.Len(t, sender.requested, 1)
}

func TestKeyboardAppendDoesNotAlias(t *testing.T) {
	base := NewKeyboard(Row(DataButton("a", "a")))
	extended := base.Append(Row(DataButton("b", "b")))
	assert.Len(t, base, 1)
	assert.Len(t, extended, 2)
	assert.Nil(t, Keyboard{}.markup())
	assert.Nil(t, Keyboard{{}}.markup())
}
