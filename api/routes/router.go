package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/courierbot-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/courierbot-backend/api/controllers/webhooks"
	"github.com/angelmondragon/courierbot-backend/api/middleware"
	"github.com/angelmondragon/courierbot-backend/pkg/config"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/metrics"
)

type Params struct {
	Config *config.Config
	Logger *logger.Logger
	DB     controllers.Pinger
	Redis  controllers.Pinger

	Updates       webhookcontrollers.UpdateHandler
	UpdateGuard   webhookcontrollers.UpdateGuard
	Payments      webhookcontrollers.PaymentNotificationHandler
	Webhooks      *metrics.WebhookMetrics
	MetricsSource prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, map[string]controllers.Pinger{
			"db":    p.DB,
			"redis": p.Redis,
		}))
	})

	if p.MetricsSource != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.MetricsSource, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/telegram", webhookcontrollers.TelegramWebhook(p.Updates, p.UpdateGuard, p.Config.Telegram.WebhookSecret, p.Webhooks, p.Logger))
		if p.Payments != nil {
			r.Post("/yookassa", webhookcontrollers.YooKassaWebhook(p.Payments, p.Webhooks, p.Logger))
		}
	})

	return r
}
