package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/courierbot-backend/internal/chat"
	"github.com/angelmondragon/courierbot-backend/internal/cron"
	"github.com/angelmondragon/courierbot-backend/internal/drafts"
	"github.com/angelmondragon/courierbot-backend/internal/orders"
	"github.com/angelmondragon/courierbot-backend/pkg/config"
	"github.com/angelmondragon/courierbot-backend/pkg/db"
	"github.com/angelmondragon/courierbot-backend/pkg/instance"
	"github.com/angelmondragon/courierbot-backend/pkg/logger"
	"github.com/angelmondragon/courierbot-backend/pkg/metrics"
	"github.com/angelmondragon/courierbot-backend/pkg/migrate"
	"github.com/angelmondragon/courierbot-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	chatSvc, err := chat.NewService(chat.ServiceParams{
		Repo:      chat.NewRepository(dbClient.DB()),
		Orders:    orders.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		MaxLength: cfg.Chat.MaxMessageLength,
		Retention: cfg.Chat.Retention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create chat service", err)
		os.Exit(1)
	}

	chatJob, err := cron.NewChatArchiveJob(cron.ChatArchiveJobParams{Logger: logg, Chat: chatSvc})
	if err != nil {
		logg.Error(context.Background(), "failed to create chat archive job", err)
		os.Exit(1)
	}
	draftJob, err := cron.NewDraftCleanupJob(cron.DraftCleanupJobParams{
		Logger: logg,
		Drafts: drafts.NewStore(dbClient.DB()),
		TTL:    cfg.Chat.DraftTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create draft cleanup job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cron.LockName, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(chatJob, draftJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}
