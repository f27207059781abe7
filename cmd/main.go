package main

import (
	"context"
	"time"

	"github.com/thomas-denton/lease-intelligence/internal/handler"
	mid "github.com/thomas-denton/lease-intelligence/internal/middleware"
	"github.com/thomas-denton/lease-intelligence/internal/model"
	"github.com/thomas-denton/lease-intelligence/internal/service"
	"github.com/thomas-denton/lease-intelligence/pkg/cache"
	"github.com/thomas-denton/lease-intelligence/pkg/config"
	"github.com/thomas-denton/lease-intelligence/pkg/database"
	"github.com/thomas-denton/lease-intelligence/pkg/jwtutil"
	"github.com/thomas-denton/lease-intelligence/pkg/logger"
	"github.com/thomas-denton/lease-intelligence/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration (reads .env if present)
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting lease-intelligence", appConfig.LogConfig()...)

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize database
	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	db := database.GetDB()
	log.Info("Database connection established")

	// Optional redis cache for benchmark reads. A nil concrete client must
	// stay a nil interface, so assign only when connected.
	var kv cache.KV
	if client := cache.New(&appConfig.Cache); client != nil {
		kv = client
		log.Info("Benchmark cache enabled", zap.String("addr", appConfig.Cache.Addr))
	} else {
		log.Info("Benchmark cache disabled")
	}

	// Services
	leaseSvc := service.NewLeaseService(db, log)
	auditSvc := service.NewAuditService(db, log)
	flagSvc := service.NewFlagService(db, log)
	accountSvc := service.NewAccountService(db, log)
	benchmarkSvc := service.NewBenchmarkService(db, kv, appConfig, log)
	schemaSvc := service.NewSchemaService(db, log)
	ingestSvc := service.NewIngestService(db, leaseSvc, auditSvc, flagSvc, accountSvc, benchmarkSvc, appConfig, log)

	// Record the schema version this build writes
	bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := schemaSvc.EnsureCurrent(bootCtx); err != nil {
		cancel()
		log.Fatal("Failed to record schema version", zap.Error(err))
	}
	cancel()
	log.Info("Schema version ensured", zap.String("version", service.CurrentSchemaVersion))

	// Seed the tracked-ZIP gauge from the existing benchmark rows
	var trackedZips int64
	if err := db.Model(&model.ZipBenchmark{}).Count(&trackedZips).Error; err == nil {
		prometheus.SetTrackedZips(int(trackedZips))
	}

	// Handlers
	ingestHandler := handler.NewIngestHandler(ingestSvc)
	leaseHandler := handler.NewLeaseHandler(leaseSvc, flagSvc)
	benchmarkHandler := handler.NewBenchmarkHandler(benchmarkSvc)
	auditHandler := handler.NewAuditHandler(auditSvc, appConfig.Benchmark.ConfidenceFloor)
	accountHandler := handler.NewAccountHandler(accountSvc)
	schemaHandler := handler.NewSchemaHandler(schemaSvc)

	// Initialize Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Health check endpoint
	e.GET("/health", handler.HealthCheck(db))

	// Public benchmark reads: aggregate-only data, no auth required
	e.GET("/api/benchmarks/:zip", benchmarkHandler.GetBenchmark)

	// Ingest API - pipeline service identity only
	ingestAPI := e.Group("/api/ingest", mid.AuthMiddleware)
	ingestAPI.POST("", ingestHandler.Ingest)

	// Lease API
	leaseAPI := e.Group("/api/leases", mid.AuthMiddleware)
	leaseAPI.GET("", leaseHandler.ListLeases)
	leaseAPI.GET("/:id", leaseHandler.GetLease)
	leaseAPI.GET("/by-extraction/:extraction_id", leaseHandler.GetLeaseByExtractionID)
	leaseAPI.PATCH("/:id", leaseHandler.UpdateLease)
	leaseAPI.DELETE("/:id", leaseHandler.DeleteLease)
	leaseAPI.DELETE("/:id/purge", leaseHandler.PurgeLease)
	leaseAPI.GET("/:id/audit", leaseHandler.GetLeaseForAudit)
	leaseAPI.GET("/:id/flags", leaseHandler.ListLeaseFlags)
	leaseAPI.POST("/:id/flags", leaseHandler.AttachLeaseFlags)
	leaseAPI.POST("/:id/fields", auditHandler.RecordField)
	leaseAPI.GET("/:id/fields/:field/history", auditHandler.FieldHistory)

	// Audit API
	auditAPI := e.Group("/api/audit", mid.AuthMiddleware)
	auditAPI.GET("/low-confidence", auditHandler.ListLowConfidence)
	auditAPI.POST("/entries/:entry_id/override", auditHandler.OverrideField)

	// Benchmark admin API
	benchmarkAPI := e.Group("/api/benchmarks", mid.AuthMiddleware)
	benchmarkAPI.POST("/:zip/recompute", benchmarkHandler.RecomputeBenchmark)

	// Account API
	accountAPI := e.Group("/api/accounts", mid.AuthMiddleware)
	accountAPI.POST("", accountHandler.CreateAccount)
	accountAPI.GET("/:id", accountHandler.GetAccount)
	accountAPI.POST("/:id/deactivate", accountHandler.DeactivateAccount)

	// Schema version ledger
	schemaAPI := e.Group("/api/schema-versions", mid.AuthMiddleware)
	schemaAPI.GET("", schemaHandler.ListSchemaVersions)
	schemaAPI.POST("", schemaHandler.AppendSchemaVersion)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
