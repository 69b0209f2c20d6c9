package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/courierbot-backend/api/routes"
	"github.com/angelmondragon/courierbot-backend/internal/admin"
	"github.com/angelmondragon/courierbot-backend/internal/applications"
	"github.com/angelmondragon/courierbot-backend/internal/bot"
	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/drafts"
	"github.com/angelmondragon/courierbot-backend/internal/notifications"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/internal/roles"
	"github.com/angelmondragon/courierbot-backend/internal/subscriptions"
	"github.com/angelmondragon/courierbot-backend/internal/users"
	"github.com/angelmondragon/courierbot-backend/internal/webhooks"
	yookassawebhook "github.com/angelmondragon/courierbot-backend/internal/webhooks/yookassa"
	"github.com/angelmondragon/courierbot-backend/pkg/config"
	"github.com/angelmondragon/courierbot-backend/pkg/db"
	"github.com/angelmondragon/courierbot-backend/pkg/instance"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/metrics"
	"github.com/angelmondragon/courierbot-backend/pkg/migrate"
	"github.com/angelmondragon/courierbot-backend/pkg/redis"
	"github.com/angelmondragon/courierbot-backend/pkg/telegram"
	"github.com/angelmondragon/courierbot-backend/pkg/yookassa"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fatalIf(logg, "failed to bootstrap database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	fatalIf(logg, "failed to run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	fatalIf(logg, "failed to bootstrap redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	location, err := cfg.App.Location()
	fatalIf(logg, "failed to load timezone", err)

	messenger, err := telegram.New(cfg.Telegram)
	fatalIf(logg, "failed to create telegram gateway", err)

	var payments yookassa.Gateway
	if cfg.YooKassa.Enabled() {
		client, err := yookassa.NewClient(cfg.YooKassa)
		fatalIf(logg, "failed to create yookassa client", err)
		payments = client
	} else {
		logg.Warn(ctx, "yookassa credentials missing; paid orders cannot be created")
	}

	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	usersSvc, err := users.NewService(usersRepo)
	fatalIf(logg, "failed to create users service", err)

	resolver, err := roles.NewResolver(usersRepo, logg)
	fatalIf(logg, "failed to create role resolver", err)

	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:     subscriptions.NewRepository(conn),
		Users:    usersSvc,
		Pricing:  cfg.Pricing,
		Location: location,
	})
	fatalIf(logg, "failed to create subscriptions service", err)

	ordersRepo := orders.NewRepository(conn)
	chatSvc, err := chat.NewService(chat.ServiceParams{
		Repo:      chat.NewRepository(conn),
		Orders:    ordersRepo,
		Tx:        dbClient,
		MaxLength: cfg.Chat.MaxMessageLength,
		Retention: cfg.Chat.Retention,
	})
	fatalIf(logg, "failed to create chat service", err)

	notifier, err := notifications.NewService(messenger, usersSvc, logg)
	fatalIf(logg, "failed to create notifications service", err)

	pricing := orders.NewPricing(cfg.Pricing)
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Pricing:  pricing,
		Quota:    subs,
		Payments: payments,
		Sessions: chatSvc,
		Notifier: notifier,
		Metrics:  metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
		Location: location,
	})
	fatalIf(logg, "failed to create orders service", err)

	apps, err := applications.NewService(applications.ServiceParams{
		Repo:  applications.NewRepository(conn),
		Users: usersRepo,
		Tx:    dbClient,
	})
	fatalIf(logg, "failed to create applications service", err)

	adminSvc, err := admin.NewService(admin.ServiceParams{Users: usersRepo, Subscriptions: subs, Orders: ordersSvc})
	fatalIf(logg, "failed to create admin service", err)

	dispatcher, err := bot.NewDispatcher(bot.Params{
		Messenger:     messenger,
		Users:         usersSvc,
		Roles:         resolver,
		Orders:        ordersSvc,
		Pricing:       pricing,
		Chat:          chatSvc,
		Subscriptions: subs,
		Applications:  apps,
		Admin:         adminSvc,
		Drafts:        drafts.NewStore(conn),
		Notifier:      notifier,
		Limiter:       redisClient,
		RateLimit:     cfg.Telegram.RateLimit,
		SupportURL:    cfg.Telegram.SupportURL,
		Logger:        logg,
	})
	fatalIf(logg, "failed to create dispatcher", err)

	updateGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, webhooks.ScopeTelegram)
	fatalIf(logg, "failed to create telegram idempotency guard", err)
	paymentGuard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, webhooks.ScopeYooKassa)
	fatalIf(logg, "failed to create yookassa idempotency guard", err)

	paymentWebhooks, err := yookassawebhook.NewService(yookassawebhook.ServiceParams{
		Orders: ordersSvc,
		Guard:  paymentGuard,
		Logger: logg,
	})
	fatalIf(logg, "failed to create yookassa webhook service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Updates:       dispatcher,
			UpdateGuard:   updateGuard,
			Payments:      paymentWebhooks,
			Webhooks:      metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
			MetricsSource: prometheus.DefaultGatherer,
		}),
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func fatalIf(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
