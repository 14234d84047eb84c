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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-events-api/api/swagger"
	"github.com/noah-isme/school-events-api/internal/handler"
	"github.com/noah-isme/school-events-api/internal/middleware"
	"github.com/noah-isme/school-events-api/internal/models"
	"github.com/noah-isme/school-events-api/internal/repository"
	"github.com/noah-isme/school-events-api/internal/service"
	"github.com/noah-isme/school-events-api/pkg/cache"
	"github.com/noah-isme/school-events-api/pkg/config"
	"github.com/noah-isme/school-events-api/pkg/database"
	"github.com/noah-isme/school-events-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-events-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-events-api/pkg/middleware/requestid"
)

// @title School Events API
// @version 1.0.0
// @description Academic events with role based visibility for the school mobile app
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Migrations.AutoApply {
		if err := database.MigrateUp(cfg.Database); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, revoked tokens kept in memory", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService(db.DB)
	}

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tokenRepo := repository.NewTokenRepository(redisClient)

	validate := service.NewValidator()
	authSvc := service.NewAuthService(userRepo, tokenRepo, auditRepo, metricsSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	eventValidator := service.NewEventValidator(validate, userRepo, time.Now, cfg.Location())
	eventSvc := service.NewEventService(eventRepo, eventValidator, logr, service.EventServiceConfig{
		Metrics:  metricsSvc,
		Location: cfg.Location(),
	})

	if cfg.Bootstrap.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := userSvc.EnsureAdmin(ctx, service.BootstrapAdmin{
			Email:     cfg.Bootstrap.AdminEmail,
			Password:  cfg.Bootstrap.AdminPassword,
			FirstName: cfg.Bootstrap.AdminFirstName,
			LastName:  cfg.Bootstrap.AdminLastName,
		})
		cancel()
		if err != nil {
			logr.Fatal("failed to bootstrap administrator", zap.Error(err))
		}
		logr.Info("bootstrap administrator checked", zap.Bool("created", created))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metricsSvc != nil {
		r.Use(middleware.Metrics(metricsSvc))
	}

	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if metricsSvc != nil {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	eventHandler := handler.NewEventHandler(eventSvc, nil)
	if cfg.Events.ExportEnabled {
		eventHandler = handler.NewEventHandler(eventSvc, service.NewExportService(eventSvc, metricsSvc, logr, nil, nil))
	}

	api := r.Group(cfg.APIPrefix)
	loginLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginAttempts, cfg.RateLimit.LoginWindow)
	api.POST("/auth/login", loginLimiter.Middleware(), authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	adminOnly := middleware.RequireRoles(models.RoleAdministrator)

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)

	events := secured.Group("/events")
	events.GET("", eventHandler.Get)
	events.GET("/list", eventHandler.List)
	events.GET("/by-role", eventHandler.ListByRole)
	if cfg.Events.ExportEnabled {
		events.GET("/export", eventHandler.Export)
	}
	events.POST("", adminOnly, eventHandler.Create)
	events.PUT("", adminOnly, eventHandler.Update)
	events.DELETE("", adminOnly, eventHandler.Delete)

	users := secured.Group("/users")
	users.GET("", userHandler.Get)
	users.GET("/list", userHandler.List)
	users.GET("/totals", userHandler.Totals)
	users.POST("", adminOnly, userHandler.Create)
	users.PUT("", adminOnly, userHandler.Update)
	users.DELETE("", adminOnly, userHandler.Delete)

	if metricsSvc != nil {
		secured.GET("/metrics/snapshot", adminOnly, metricsHandler.Snapshot)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
