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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/DPLnainar/placement-management-system-sub002/api/swagger"
	"github.com/DPLnainar/placement-management-system-sub002/internal/handler"
	"github.com/DPLnainar/placement-management-system-sub002/internal/middleware"
	"github.com/DPLnainar/placement-management-system-sub002/internal/repository"
	"github.com/DPLnainar/placement-management-system-sub002/internal/service"
	"github.com/DPLnainar/placement-management-system-sub002/migrations"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/cache"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/config"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/database"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/jobs"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/logger"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/messaging"
	corsmiddleware "github.com/DPLnainar/placement-management-system-sub002/pkg/middleware/cors"
	reqidmiddleware "github.com/DPLnainar/placement-management-system-sub002/pkg/middleware/requestid"
	"github.com/DPLnainar/placement-management-system-sub002/pkg/storage"
)

// @title Placement Portal API
// @version 1.0.0
// @description Job postings, applications, eligibility and placement tracking for campus recruitment.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const exportSweepInterval = time.Hour

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

	if len(os.Args) > 2 && os.Args[1] == "migrate" {
		if err := runMigrations(cfg, logr, os.Args[2]); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
		return
	}

	if cfg.Migrations.AutoApply {
		if err := runMigrations(cfg, logr, "up"); err != nil {
			logr.Fatal("migration failed", zap.Error(err))
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	cacheSvc := newCacheService(cfg, metrics, logr)

	publisher := newPublisher(cfg, logr)
	defer publisher.Close() //nolint:errcheck

	store, err := storage.New(cfg.Exports, logr)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	jobRepo := repository.NewJobRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), publisher, metrics, logr)
	notifyQueue := jobs.NewQueue("notifications", notifications.Handle, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notifications.UseQueue(notifyQueue)

	jobSvc := service.NewJobService(jobRepo, nil, auditRepo, metrics, validate, logr, service.JobServiceConfig{
		ClosingSoonDays: cfg.Eligibility.ClosingSoonDays,
	})
	fanout := service.NewFanoutService(jobSvc, studentRepo, notifications, logr)
	fanoutQueue := jobs.NewQueue("job-fanout", fanout.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	fanout.UseQueue(fanoutQueue)
	jobSvc.UseFanout(fanout)

	placementSvc := service.NewPlacementService(studentRepo, notifications, auditRepo, logr)
	placementSvc.UseCache(cacheSvc)
	sideEffects := service.NewSideEffects(placementSvc, jobSvc, metrics, logr)
	sideEffectQueue := jobs.NewQueue("side-effects", sideEffects.Handle, jobs.QueueConfig{
		Workers:     cfg.SideEffects.Workers,
		MaxRetries:  cfg.SideEffects.MaxRetries,
		RetryDelay:  cfg.SideEffects.RetryDelay,
		Logger:      logr,
		OnExhausted: sideEffects.OnExhausted,
	})
	sideEffects.UseQueue(sideEffectQueue)

	applicationSvc := service.NewApplicationService(applicationRepo, jobSvc, studentRepo, placementSvc, sideEffects,
		notifications, cacheSvc, auditRepo, metrics, validate, logr)
	eligibilitySvc := service.NewEligibilityService(jobSvc, studentRepo, applicationRepo, placementSvc, cacheSvc,
		store, signer, validate, logr, service.EligibilityServiceConfig{
			SummaryTTL: cfg.Eligibility.CacheTTL,
			APIPrefix:  cfg.APIPrefix,
		})
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Not tied to ctx: requests still draining after a signal enqueue notifications and retries.
	queues := []*jobs.Queue{notifyQueue, fanoutQueue, sideEffectQueue}
	for _, q := range queues {
		q.Start(context.Background())
	}
	if local, ok := store.(*storage.LocalStorage); ok {
		go sweepExports(ctx, local, cfg.Exports.SignedURLTTL, logr)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	probes := handler.NewMetricsHandler(metrics, readinessChecks(db, cacheSvc), logr)
	r.GET("/health", probes.Health)
	r.GET("/ready", probes.Ready)
	r.GET("/metrics", probes.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r.Group(cfg.APIPrefix), handler.Routes{
		Auth:         authSvc,
		Audit:        auditRepo,
		Logger:       logr,
		Jobs:         handler.NewJobHandler(jobSvc),
		Applications: handler.NewApplicationHandler(applicationSvc),
		Eligibility:  handler.NewEligibilityHandler(eligibilitySvc),
		Students:     handler.NewStudentHandler(placementSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	drain(srv, queues, 10*time.Second, logr)
}

// drain stops accepting requests, waits for in-flight ones, then stops the queues they feed.
func drain(srv *http.Server, queues []*jobs.Queue, timeout time.Duration, logr *zap.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	for _, q := range queues {
		q.Stop()
	}
}

func runMigrations(cfg *config.Config, logr *zap.Logger, direction string) error {
	migrator, err := database.NewMigrator(cfg.Database, migrations.FS, logr)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck

	switch direction {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

// newCacheService degrades to a disabled cache when Redis is unreachable.
func newCacheService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	client, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, eligibility summaries will not be cached", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Eligibility.CacheTTL, logr, false)
	}
	return service.NewCacheService(repository.NewCacheRepository(client, "placement:"), metrics, cfg.Eligibility.CacheTTL, logr, true)
}

func newPublisher(cfg *config.Config, logr *zap.Logger) messaging.Publisher {
	if !cfg.RabbitMQ.Enabled {
		return messaging.NopPublisher{Logger: logr}
	}
	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQ, logr)
	if err != nil {
		logr.Fatal("failed to connect rabbitmq", zap.Error(err))
	}
	return publisher
}

func readinessChecks(db *sqlx.DB, cacheSvc *service.CacheService) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if cacheSvc.Enabled() {
		checks["cache"] = cacheSvc.Ping
	}
	return checks
}

func sweepExports(ctx context.Context, store *storage.LocalStorage, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(exportSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.CleanupOlderThan(ttl)
			if err != nil {
				logr.Warn("export sweep failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(deleted)))
			}
		}
	}
}
