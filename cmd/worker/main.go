// Package main runs the background alert worker: it consumes low-stock
// alert jobs, re-checks stock, delivers webhooks and records activity.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stocktally/backend/config"
	"github.com/stocktally/backend/internal/activity"
	"github.com/stocktally/backend/internal/alerts"
	"github.com/stocktally/backend/internal/orgs"
	"github.com/stocktally/backend/internal/products"
	"github.com/stocktally/backend/internal/realtime"
	"github.com/stocktally/backend/pkg/database"
	"github.com/stocktally/backend/pkg/queue"
	"github.com/stocktally/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// No Migrate here: the server owns the schema.
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	notifier := alerts.NewNotifier(cfg.Alerts.WebhookURL, time.Duration(cfg.Alerts.TimeoutSeconds)*time.Second, logger)
	if !notifier.Enabled() {
		logger.Warn("ALERT_WEBHOOK_URL not set; alerts will be logged and recorded only")
	}

	processor := alerts.NewProcessor(
		products.NewPostgresStore(pool),
		orgs.NewPostgresStore(pool),
		activity.NewPostgresStore(pool),
		queue.NewQueue(rdb, logger),
		notifier,
		realtime.NewRedisPubSub(rdb, logger),
		logger,
	)

	// Run blocks until the signal context is cancelled.
	logger.Info("alert worker started")
	processor.Run(ctx)
	logger.Info("alert worker stopped")
}

func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}
