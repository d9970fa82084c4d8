package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/slowtunes/slowtunes/internal/app"
	"github.com/slowtunes/slowtunes/internal/cache"
	"github.com/slowtunes/slowtunes/internal/config"
	"github.com/slowtunes/slowtunes/internal/db"
	"github.com/slowtunes/slowtunes/internal/gateway"
	"github.com/slowtunes/slowtunes/internal/logger"
	"github.com/slowtunes/slowtunes/internal/queue"
	"github.com/slowtunes/slowtunes/internal/service/tunes"
	"github.com/slowtunes/slowtunes/internal/transcode"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Inject logger into app context
	appCtx := app.New(database, redisCache, log)

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	localGateway, err := gateway.NewLocal(cfg, log)
	if err != nil {
		log.Error("failed to init gateway", "err", err)
		return
	}

	q := queue.New(log)
	service := tunes.NewService(
		appCtx,
		cfg,
		q,
		transcode.New(cfg, log),
		localGateway,
		gateway.NewLogModerator(cfg, log),
	)

	go q.Start(ctx)
	service.Admission().StartReconciler(ctx, q, cfg.Queue.ReconcileInterval)

	log.Info("slowtunes worker started",
		"task_limit", cfg.Queue.TaskLimit,
		"speed_ratio", cfg.Audio.SpeedRatio,
	)

	<-ctx.Done()
	log.Info("shutting down, draining current job")
	q.Stop()
	<-q.Done()
	log.Info("bye")
}
