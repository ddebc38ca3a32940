package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/markr-hq/markr-api/internal/handler"
	"github.com/markr-hq/markr-api/internal/loader"
	"github.com/markr-hq/markr-api/internal/middleware"
	"github.com/markr-hq/markr-api/internal/repository"
	"github.com/markr-hq/markr-api/internal/service"
	"github.com/markr-hq/markr-api/internal/stats"
	"github.com/markr-hq/markr-api/pkg/cache"
	"github.com/markr-hq/markr-api/pkg/config"
	"github.com/markr-hq/markr-api/pkg/database"
	"github.com/markr-hq/markr-api/pkg/jobs"
	"github.com/markr-hq/markr-api/pkg/logger"
	corsmiddleware "github.com/markr-hq/markr-api/pkg/middleware/cors"
	reqidmiddleware "github.com/markr-hq/markr-api/pkg/middleware/requestid"
)

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer rdb.Close()

	studentRepo := repository.NewStudentRepository(db)
	resultRepo := repository.NewResultRepository(db)
	aggregateRepo := repository.NewAggregateRepository(db)
	jobStatusRepo := repository.NewJobStatusRepository(rdb, cfg.Import.JobStatusTTL, logr)

	loaders := loader.Default()
	registry := stats.Default()
	metricsSvc := service.NewMetricsService()

	aggregateSvc := service.NewAggregateService(db, resultRepo, aggregateRepo, registry, metricsSvc, logr)
	worker := service.NewImportWorker(db, studentRepo, resultRepo, aggregateSvc, jobStatusRepo, loaders, metricsSvc, cfg.Import.MaxRetries, logr)

	queue := jobs.NewQueue("imports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Import.Workers,
		BufferSize: cfg.Import.BufferSize,
		MaxRetries: cfg.Import.MaxRetries,
		RetryDelay: cfg.Import.RetryDelay,
		Logger:     logr,
	})

	importSvc := service.NewImportService(loaders, queue, jobStatusRepo, logr)
	studentSvc := service.NewStudentService(studentRepo, resultRepo, logr)
	exportSvc := service.NewExportService(studentSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	importSvc.RecoverInterrupted(ctx)
	queue.Start(ctx)

	importHandler := handler.NewImportHandler(importSvc)
	aggregateHandler := handler.NewAggregateHandler(aggregateSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, exportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database"})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.BasicAuth(cfg.Auth))
	{
		api.POST("/import", importHandler.Submit)
		api.GET("/jobs/:id", importHandler.JobStatus)

		api.GET("/results/:testId/aggregate", aggregateHandler.Get)
		api.GET("/tests", aggregateHandler.List)

		api.GET("/students", studentHandler.List)
		api.GET("/students/:number", studentHandler.Results)
		api.GET("/students/:number/tests/:testId", studentHandler.TestResult)

		api.GET("/tests/:testId/students", studentHandler.Leaderboard)
		api.GET("/tests/:testId/export", studentHandler.Export)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	queue.Stop()

	logr.Sugar().Infow("shutdown complete")
}
