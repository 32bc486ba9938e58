// Package main runs the inventory API server with the live stock feed and
// graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stocktally/backend/config"
	"github.com/stocktally/backend/internal/activity"
	"github.com/stocktally/backend/internal/auth"
	"github.com/stocktally/backend/internal/dashboard"
	"github.com/stocktally/backend/internal/middleware"
	"github.com/stocktally/backend/internal/orgs"
	"github.com/stocktally/backend/internal/products"
	"github.com/stocktally/backend/internal/realtime"
	"github.com/stocktally/backend/pkg/database"
	"github.com/stocktally/backend/pkg/queue"
	"github.com/stocktally/backend/pkg/redis"
	"github.com/stocktally/backend/pkg/response"
	"github.com/stocktally/backend/pkg/storage"
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

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	// The server owns the schema; the worker connects to what is there.
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	tokens := auth.NewTokenService(cfg.JWT.Secret)
	pubsub := realtime.NewRedisPubSub(rdb, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)
	jobQueue := queue.NewQueue(rdb, logger)
	images := newImageStorage(ctx, cfg, logger)

	orgStore := orgs.NewPostgresStore(pool)
	productStore := products.NewPostgresStore(pool)
	activityStore := activity.NewPostgresStore(pool)

	authHandler := auth.NewHandler(auth.NewPostgresStore(pool), tokens, logger)
	orgHandler := orgs.NewHandler(orgStore, logger)
	productHandler := products.NewHandler(productStore, orgStore, images, hub, jobQueue, activityStore, logger)
	dashboardHandler := dashboard.NewHandler(orgStore, productStore, logger)
	activityHandler := activity.NewHandler(activityStore, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Identity (public)
	router.POST("/signup", authHandler.Signup)
	router.POST("/login", authHandler.Login)

	// Tenant-scoped API. Everything below the guard is parameterized by the
	// organization id from the verified token.
	api := router.Group("")
	api.Use(middleware.TenantAuth(tokens))
	{
		api.GET("/products", productHandler.List)
		api.POST("/products", productHandler.Create)
		api.GET("/products/export", productHandler.Export)
		api.GET("/products/:id", productHandler.GetByID)
		api.PUT("/products/:id", productHandler.Update)
		api.DELETE("/products/:id", productHandler.Delete)
		api.POST("/products/:id/image", productHandler.UploadImage)
		api.GET("/products/:id/image", productHandler.GetImage)

		api.GET("/dashboard", dashboardHandler.Overview)

		api.GET("/settings", orgHandler.GetSettings)
		api.PUT("/settings", orgHandler.UpdateSettings)

		api.GET("/activity", activityHandler.List)
	}

	// Live stock feed (token in query; browsers cannot set headers on WS)
	router.GET("/ws", realtime.ServeWs(hub, logger, func(token string) (uuid.UUID, uuid.UUID, error) {
		claims, err := tokens.Verify(token)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		return claims.UserID, claims.OrganizationID, nil
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newImageStorage returns nil when S3 is not configured; the image
// endpoints then answer 503 and everything else works without AWS.
func newImageStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) *storage.S3 {
	if cfg.AWS.Region == "" || cfg.AWS.ImagesBucket == "" {
		return nil
	}
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		ImagesBucket:         cfg.AWS.ImagesBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Warn("s3 disabled", zap.Error(err))
		return nil
	}
	return s3Client
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
