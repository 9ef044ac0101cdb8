package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/resto-radar/resto-radar/internal/analytics"
	"github.com/resto-radar/resto-radar/internal/app"
	"github.com/resto-radar/resto-radar/internal/bot"
	jobmetrics "github.com/resto-radar/resto-radar/internal/jobs"
	"github.com/resto-radar/resto-radar/internal/observability"
	"github.com/resto-radar/resto-radar/internal/ops"
	"github.com/resto-radar/resto-radar/internal/pos"
	"github.com/resto-radar/resto-radar/internal/scheduler"
	"github.com/resto-radar/resto-radar/internal/settings"
	"github.com/resto-radar/resto-radar/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	posClient := pos.NewClient(cfg.POSBaseURL, cfg.POSLogin, cfg.POSPassword, cfg.POSTimeout, logger)
	cache := analytics.NewCache(redisClient, cfg.CacheTTL)
	service := analytics.NewService(posClient, cache, logger)
	store := settings.NewStore(cfg.AlertThresholdPct, cfg.RollingDays, cfg.ReportTime)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error("telegram auth", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("telegram authorized", slog.String("username", api.Self.UserName))

	tgBot := bot.New(api, service, store, cfg.AdminChatID, cfg.Location(), logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queueClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	httpMetrics := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(httpMetrics.Registerer())
	reportJob := jobs.NewDailyReportJob(service, store, tgBot, cfg.AdminChatID, logger, metrics)
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeDailyReport, Handler: reportJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	reportScheduler := scheduler.New(queueClient, store, cfg.Location(), logger)

	inspector := asynq.NewInspector(redisOpts)
	jobHandler := jobs.NewHandler(inspector, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tgBot.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return reportScheduler.Run(gctx) })
	g.Go(func() error {
		return ops.Run(gctx, ops.ServerParams{
			Addr:       cfg.OpsAddr,
			Logger:     logger,
			Redis:      redisClient,
			Metrics:    httpMetrics,
			JobHandler: jobHandler,
		})
	})

	logger.Info("resto-radar started",
		slog.String("ops_addr", cfg.OpsAddr),
		slog.String("report_time", cfg.ReportTime),
		slog.String("timezone", cfg.Timezone),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runtime failure", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
