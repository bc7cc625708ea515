package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/feedback-sessions-api/api/swagger"
	"github.com/noah-isme/feedback-sessions-api/internal/handler"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	"github.com/noah-isme/feedback-sessions-api/internal/repository"
	"github.com/noah-isme/feedback-sessions-api/internal/service"
	"github.com/noah-isme/feedback-sessions-api/pkg/cache"
	"github.com/noah-isme/feedback-sessions-api/pkg/config"
	"github.com/noah-isme/feedback-sessions-api/pkg/database"
	"github.com/noah-isme/feedback-sessions-api/pkg/export"
	"github.com/noah-isme/feedback-sessions-api/pkg/logger"
)

// @title Feedback Sessions API
// @version 1.0.0
// @description Collects student feedback per session and freezes compiled statistics on close
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

type responseStore interface {
	Create(ctx context.Context, response *models.Response) error
	ListBySession(ctx context.Context, sessionID string) ([]models.Response, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Stats.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, stats cache disabled", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	responses, err := newResponseStore(ctx, cfg, db)
	if err != nil {
		logr.Sugar().Fatalw("failed to init response store", "store", cfg.Responses.Store, "error", err)
	}

	hasher, err := service.NewRespondentHasher(cfg.Responses.HashSecret)
	if err != nil {
		logr.Sugar().Fatalw("invalid respondent hash secret", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()
	sessions := repository.NewSessionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "feedback", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, redisClient != nil)

	sessionSvc := service.NewSessionService(sessions, responses, validate, logr)
	responseSvc := service.NewResponseService(sessions, responses, hasher, metrics, validate, logr)
	closeSvc := service.NewSessionCloseService(sessions, responses, cacheSvc, metrics, cfg.Responses.FetchTimeout, logr)
	statsSvc := service.NewStatsService(sessions, cacheSvc, cfg.Stats.CacheTTL, logr)
	exportSvc := service.NewExportService(statsSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	tokens := service.NewTokenService(cfg.JWT.Secret)

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := newRouter(cfg, logr, routerDeps{
		tokens:    tokens,
		metrics:   metrics,
		sessions:  handler.NewSessionHandler(sessionSvc, closeSvc),
		responses: handler.NewResponseHandler(responseSvc),
		stats:     handler.NewStatsHandler(statsSvc, exportSvc),
		ops:       handler.NewMetricsHandler(metrics, checks),
	})

	var autoCloser *service.AutoCloser
	if cfg.AutoClose.Enabled {
		autoCloser = service.NewAutoCloser(sessions, closeSvc, metrics, service.AutoCloserConfig{
			Interval:   cfg.AutoClose.Interval,
			Workers:    cfg.AutoClose.WorkerConcurrency,
			MaxRetries: cfg.AutoClose.WorkerRetries,
		}, logr)
		autoCloser.Start(ctx)
		logr.Sugar().Infow("auto-close enabled", "interval", cfg.AutoClose.Interval.String())
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "response_store", cfg.Responses.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if autoCloser != nil {
		autoCloser.Stop()
	}
}

func newResponseStore(ctx context.Context, cfg *config.Config, db *sqlx.DB) (responseStore, error) {
	if cfg.Responses.Store != config.ResponseStoreDynamo {
		return repository.NewResponseRepository(db), nil
	}
	client, err := database.NewDynamo(ctx, cfg.Dynamo)
	if err != nil {
		return nil, err
	}
	return repository.NewDynamoResponseRepository(client, cfg.Dynamo.ResponsesTable), nil
}
