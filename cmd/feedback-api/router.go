package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/feedback-sessions-api/internal/handler"
	"github.com/noah-isme/feedback-sessions-api/internal/middleware"
	"github.com/noah-isme/feedback-sessions-api/internal/models"
	"github.com/noah-isme/feedback-sessions-api/internal/service"
	"github.com/noah-isme/feedback-sessions-api/pkg/config"
	"github.com/noah-isme/feedback-sessions-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/feedback-sessions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/feedback-sessions-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens    middleware.TokenValidator
	metrics   *service.MetricsService
	sessions  *handler.SessionHandler
	responses *handler.ResponseHandler
	stats     *handler.StatsHandler
	ops       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	instructors := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)
	admins := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens), middleware.WithResponseMeta())
	{
		sessions := api.Group("/sessions")
		sessions.POST("", instructors, deps.sessions.Create)
		sessions.GET("", instructors, deps.sessions.List)
		sessions.GET("/:id", deps.sessions.Get)
		sessions.POST("/:id/responses", middleware.RequireRoles(models.RoleStudent), deps.responses.Submit)
		sessions.POST("/:id/close", instructors, deps.sessions.Close)
		sessions.POST("/:id/recompile", admins, deps.sessions.Recompile)
		sessions.GET("/:id/stats", instructors, deps.stats.Get)
		sessions.GET("/:id/stats/export", instructors, deps.stats.Export)

		api.GET("/metrics/summary", admins, deps.ops.Summary)
	}

	return r
}
