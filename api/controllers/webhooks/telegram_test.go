package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/metrics"
)

type fakeUpdateHandler struct {
	updates []tgbotapi.Update
	err     error
	panic   bool
}

func (f *fakeUpdateHandler) HandleUpdate(_ context.Context, u tgbotapi.Update) error {
	if f.panic {
		panic("boom")
	}
	f.updates = append(f.updates, u)
	return f.err
}

type fakeGuard struct {
	seen map[string]bool
	err  error
}

func (g *fakeGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

const messageUpdate = `{"update_id":77,"message":{"message_id":1,"from":{"id":101,"first_name":"Ivan"},"chat":{"id":101,"type":"private"},"date":0,"text":"/start"}}`

func postTelegram(h http.HandlerFunc, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/telegram", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(TelegramSecretHeader, secret)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestTelegramWebhookDispatchesOnce(t *testing.T) {
	handler := &fakeUpdateHandler{}
	guard := &fakeGuard{seen: map[string]bool{}}
	h := TelegramWebhook(handler, guard, "s3cret", metrics.NewWebhookMetrics(prometheus.NewRegistry()), logger.Nop())

	w := postTelegram(h, messageUpdate, "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	require.Len(t, handler.updates, 1)
	assert.Equal(t, "/start", handler.updates[0].Message.Text)
	assert.Equal(t, int64(101), handler.updates[0].Message.From.ID)

	w = postTelegram(h, messageUpdate, "s3cret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, handler.updates, 1)
}

func TestTelegramWebhookDropsBadSecret(t *testing.T) {
	handler := &fakeUpdateHandler{}
	h := TelegramWebhook(handler, nil, "s3cret", nil, nil)

	w := postTelegram(h, messageUpdate, "wrong")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, handler.updates)
}

func TestTelegramWebhookAlwaysAcks(t *testing.T) {
	cases := map[string]*fakeUpdateHandler{
		"handler error": {err: errors.New("db down")},
		"handler panic": {panic: true},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			h := TelegramWebhook(handler, nil, "", nil, logger.Nop())
			w := postTelegram(h, messageUpdate, "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"ok":true}`, w.Body.String())
		})
	}

	h := TelegramWebhook(&fakeUpdateHandler{}, nil, "", nil, logger.Nop())
	w := postTelegram(h, `{"update_id":`, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTelegramWebhookGuardFailureStillDispatches(t *testing.T) {
	handler := &fakeUpdateHandler{}
	h := TelegramWebhook(handler, &fakeGuard{err: errors.New("redis down")}, "", nil, logger.Nop())
	postTelegram(h, messageUpdate, "")
	assert.Len(t, handler.updates, 1)
}
