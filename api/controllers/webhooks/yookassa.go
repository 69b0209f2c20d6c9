package webhooks

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/courierbot-backend/api/responses"
	"github.com/angelmondragon/courierbot-backend/api/validators"
	yookassawebhook "github.com/angelmondragon/courierbot-backend/internal/webhooks/yookassa"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/metrics"
	"github.com/angelmondragon/courierbot-backend/pkg/yookassa"
)

const sourceYooKassa = "yookassa"

type PaymentNotificationHandler interface {
	Handle(ctx context.Context, n yookassa.Notification) (yookassawebhook.Outcome, error)
}

// YooKassaWebhook acknowledges every well formed notification. Malformed
// bodies get 400; a failed confirmation gets a 5xx so the provider retries.
func YooKassaWebhook(svc PaymentNotificationHandler, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	if logg == nil {
		logg = logger.Nop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		var n yookassa.Notification
		if err := validators.DecodeWebhookBody(w, r, &n); err != nil {
			m.Observe(sourceYooKassa, "rejected", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithFields(ctx, map[string]any{"event": n.Event, "payment_id": n.Object.ID})

		outcome, err := svc.Handle(ctx, n)
		m.Observe(sourceYooKassa, string(outcome), time.Since(start))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteAck(w)
	}
}
