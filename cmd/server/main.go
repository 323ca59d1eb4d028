package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	financeapp "github.com/erp/setoff/internal/application/finance"
	"github.com/erp/setoff/internal/domain/shared"
	"github.com/erp/setoff/internal/infrastructure/auth"
	"github.com/erp/setoff/internal/infrastructure/cache"
	"github.com/erp/setoff/internal/infrastructure/config"
	"github.com/erp/setoff/internal/infrastructure/event"
	"github.com/erp/setoff/internal/infrastructure/logger"
	"github.com/erp/setoff/internal/infrastructure/persistence"
	"github.com/erp/setoff/internal/infrastructure/storage"
	"github.com/erp/setoff/internal/infrastructure/telemetry"
	"github.com/erp/setoff/internal/interfaces/http/handler"
	"github.com/erp/setoff/internal/interfaces/http/middleware"
	"github.com/erp/setoff/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	production := cfg.App.Env == "production"

	// The bootstrap logger only covers telemetry setup; the process logger
	// tees into the OTEL logs pipeline once it exists.
	bootLog, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	providers, err := telemetry.Setup(context.Background(), cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to set up telemetry", zap.Error(err))
	}
	log, err := logger.New(cfg.Log, providers.LogCore(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	zap.ReplaceGlobals(log)
	defer func() {
		_ = providers.Shutdown(context.Background())
		_ = log.Sync()
	}()

	log.Info("Starting setoff service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	profiler, err := telemetry.StartProfiler(cfg.Profiler, cfg.App.Name, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() { _ = profiler.Stop() }()
	if profiler.Active() {
		providers.EnableSpanProfiles()
	}

	dbOpts := persistence.Options{Logger: log, LogLevel: logger.GormLevel(cfg.Log.Level)}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbOpts.Trace = telemetry.InstrumentGorm
	}
	db, err := persistence.NewDatabase(&cfg.Database, dbOpts)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if db.Driver() == "sqlite" {
		// postgres schemas are applied by cmd/migrate
		if err := db.AutoMigrate(context.Background()); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	metrics, err := telemetry.NewSetoffMetrics(otel.Meter("setoff"))
	if err != nil {
		log.Fatal("Failed to create metrics", zap.Error(err))
	}

	objects, err := newObjectStorage(context.Background(), cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}

	stores, err := cache.NewStores(context.Background(), cfg.Redis, production, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency stores", zap.Error(err))
	}
	defer func() { _ = stores.Close() }()

	// Application services share one transaction scope
	serializer := event.NewSetoffEventSerializer()
	scope := persistence.NewGormTransactionScope(db.DB, serializer)

	ledgerService := financeapp.NewLedgerService(scope, log)
	ledgerService.SetMetrics(metrics)
	prepaymentService := financeapp.NewPrepaymentService(scope, log)
	prepaymentService.SetMetrics(metrics)
	prepaymentService.SetRetryMaxElapsed(cfg.Setoff.UsageRetryMaxElapsed)
	setoffService := financeapp.NewSetoffService(scope, ledgerService, prepaymentService, log)
	setoffService.SetMetrics(metrics)
	setoffService.SetCodePrefix(cfg.Setoff.CodePrefix)
	sourceLineService := financeapp.NewSourceLineService(scope, log)
	sourceLineService.SetMetrics(metrics)
	statementService := financeapp.NewStatementService(scope, objects, log)
	statementService.SetMetrics(metrics)

	// Outbox relay: document events are archived to object storage
	eventBus := event.NewInMemoryEventBus(log)
	archiver := event.NewDocumentArchiveHandler(persistence.NewGormSetoffDocumentRepository(db.DB), objects, log)
	eventBus.Subscribe(event.NewIdempotentHandler(archiver, stores.Events, log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: cfg.Outbox.IdempotencyTTL}),
	))
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Outbox.ProcessorEnabled {
		outboxConfig := event.OutboxProcessorConfigFrom(cfg.Outbox)
		processor := event.NewOutboxProcessor(event.NewGormOutboxRepository(db.DB), eventBus, serializer, outboxConfig, log, metrics)
		if err := processor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := processor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxConfig.BatchSize),
			zap.Duration("poll_interval", outboxConfig.PollInterval),
		)
	}

	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up validator", zap.Error(err))
	}
	if cfg.JWT.Disabled {
		log.Warn("JWT authentication disabled, trusting X-Tenant-ID")
	}

	engineCfg := router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		Tracing:        cfg.Telemetry.Enabled,
		IdempotencyTTL: cfg.Outbox.IdempotencyTTL,
		Logger:         log,
		Auth: middleware.AuthConfig{
			Validator: auth.NewJWTService(cfg.JWT),
			Disabled:  cfg.JWT.Disabled,
		},
	}
	if cfg.Setoff.RequestIdempotency {
		engineCfg.Idempotency = stores.Requests
	}
	engine := router.NewEngine(engineCfg, router.Handlers{
		Setoff:      handler.NewSetoffHandler(setoffService),
		SourceLines: handler.NewSourceLineHandler(sourceLineService, setoffService),
		Prepayments: handler.NewPrepaymentHandler(prepaymentService),
		Ledger:      handler.NewLedgerHandler(ledgerService, statementService),
		Tax:         handler.NewTaxHandler(financeapp.NewTaxService()),
		System:      handler.NewSystemHandler(db, version),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// objectStore is what statements and the archive handler write to
type objectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// newObjectStorage connects to S3 when a bucket is configured. Without one,
// statements and archives are kept in memory and lost on restart.
func newObjectStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (objectStore, error) {
	if !cfg.Enabled() {
		log.Warn("object storage not configured, keeping statements and archives in memory")
		return storage.NewMemoryObjectStorage(), nil
	}
	s3, err := storage.NewS3ObjectStorage(ctx, &cfg, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("object storage ready", zap.String("bucket", s3.Bucket()))
	return s3, nil
}
