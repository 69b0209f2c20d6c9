package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/angelmondragon/courierbot-backend/api/responses"
	"github.com/angelmondragon/courierbot-backend/api/validators"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/metrics"
)

const (
	TelegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	sourceTelegram       = "telegram"
)

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

type UpdateGuard interface {
	CheckAndMark(ctx context.Context, id string) (bool, error)
}

// TelegramWebhook answers every delivery with 200 {"ok":true} so the
// platform never redelivers; failures are logged and counted instead.
// A nil guard disables update_id deduplication.
func TelegramWebhook(handler UpdateHandler, guard UpdateGuard, secret string, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()
		outcome := "processed"
		defer func() {
			if rec := recover(); rec != nil {
				outcome = "failed"
				logg.Error(logg.WithField(ctx, "panic", fmt.Sprint(rec)), "telegram update panicked", fmt.Errorf("panic: %v", rec))
			}
			m.Observe(sourceTelegram, outcome, time.Since(start))
			responses.WriteAck(w)
		}()

		if secret != "" && r.Header.Get(TelegramSecretHeader) != secret {
			outcome = "rejected"
			logg.Warn(ctx, "telegram update with bad secret dropped")
			return
		}

		var update tgbotapi.Update
		if err := validators.DecodeWebhookBody(w, r, &update); err != nil {
			outcome = "rejected"
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "telegram update undecodable")
			return
		}
		ctx = logg.WithUpdateID(ctx, update.UpdateID)

		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, strconv.Itoa(update.UpdateID))
			if err != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "telegram dedupe unavailable")
			} else if seen {
				outcome = "duplicate"
				logg.Info(ctx, "duplicate telegram update dropped")
				return
			}
		}

		if err := handler.HandleUpdate(ctx, update); err != nil {
			outcome = "failed"
			logg.Error(ctx, "telegram update failed", err)
		}
	}
}
